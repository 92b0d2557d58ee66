// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-dpos
//
// go-dpos is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-dpos is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-dpos.  If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"errors"
	"fmt"

	"github.com/algorand/go-dpos/data/basics"
)

// Handler faults. Apply and Revert return them without touching state.
var (
	ErrInsufficientBalance      = errors.New("insufficient balance in the wallet")
	ErrUnexpectedMultiSignature = errors.New("transaction carries signatures of a wallet without multi-signature")
	ErrInvalidSignature         = errors.New("transaction signature is invalid")
	ErrMissingSignatures        = errors.New("transaction has fewer signatures than its multi-signature wallet requires")
	ErrMissingRecipient         = errors.New("transaction has no recipient")
	ErrMissingAsset             = errors.New("transaction asset is missing")
	ErrAlreadyDelegate          = errors.New("wallet is already a delegate")
	ErrNotDelegate              = errors.New("wallet is not a delegate")
	ErrAlreadyResigned          = errors.New("delegate has already resigned")
	ErrAlreadyVoted             = errors.New("wallet has already voted")
	ErrNoVote                   = errors.New("wallet has not voted")
	ErrUnvoteMismatch           = errors.New("wallet voted for a different delegate")
	ErrVotedForNonDelegate      = errors.New("vote for a wallet that is not a delegate")
	ErrVotedForResignedDelegate = errors.New("vote for a resigned delegate")
	ErrNoPayments               = errors.New("multi-payment has no payments")
)

// UnexpectedNonceError reports a nonce that does not follow the sender's.
type UnexpectedNonceError struct {
	Sender   string
	Expected basics.BigNum
	Got      basics.BigNum
	Reverted bool
}

func (err UnexpectedNonceError) Error() string {
	action := "apply"
	if err.Reverted {
		action = "revert"
	}
	return fmt.Sprintf("cannot %s a transaction with nonce %s: the sender %s has nonce %s", action, err.Got, err.Sender, err.Expected)
}

// FeeTooLowError reports a fee below the milestone's static fee.
type FeeTooLowError struct {
	Fee      basics.BigNum
	Required basics.BigNum
}

func (err FeeTooLowError) Error() string {
	return fmt.Sprintf("fee %s is below the minimum %s", err.Fee, err.Required)
}

// UsernameError reports an unusable delegate username.
type UsernameError struct {
	Username string
	Taken    bool
}

func (err UsernameError) Error() string {
	if err.Taken {
		return fmt.Sprintf("delegate username %q is already registered", err.Username)
	}
	return fmt.Sprintf("invalid delegate username %q", err.Username)
}

// UnknownHandlerError is returned when no handler serves a transaction.
type UnknownHandlerError struct {
	Key Key
}

func (err UnknownHandlerError) Error() string {
	return fmt.Sprintf("no transaction handler for %v", err.Key)
}
