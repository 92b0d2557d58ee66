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
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/wallets"
)

var one = basics.NewBigNum(1)

// base holds the checks and balance moves every core type shares.
type base struct {
	env *Env
}

// Verify checks the transaction signature and, for multi-signature
// senders, that enough signatures are attached.
func (b base) Verify(wr *wallets.Repository, tx *transactions.Transaction) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if msig, ok := wallets.GetAttribute(sender, wallets.MultiSignature); ok {
		if len(tx.Signatures) < int(msig.Min) {
			return ErrMissingSignatures
		}
	} else if len(tx.Signatures) > 0 && !tx.IsMultiSignatureRegistration() {
		return ErrUnexpectedMultiSignature
	}
	if !b.env.Signatures.VerifyTransaction(tx) {
		return ErrInvalidSignature
	}
	return nil
}

// checkSender runs the checks that do not depend on the transaction type.
// spend is what leaves the sender besides the fee.
func (b base) checkSender(tx *transactions.Transaction, sender *wallets.Wallet, spend basics.BigNum) error {
	if len(tx.Signatures) > 0 && !sender.HasMultiSignature() && !tx.IsMultiSignatureRegistration() {
		return ErrUnexpectedMultiSignature
	}
	if b.env.exempt(tx) {
		return nil
	}
	if required, ok := b.env.Config.Current().StaticFee(tx.Type.String()); ok && tx.Fee.Cmp(required) < 0 {
		return FeeTooLowError{Fee: tx.Fee, Required: required}
	}
	if sender.Balance.Sub(spend).Sub(tx.Fee).IsNegative() {
		return ErrInsufficientBalance
	}
	return nil
}

// debitSender takes spend plus the fee from the sender and advances its
// nonce. It changes nothing when it fails.
func (b base) debitSender(tx *transactions.Transaction, sender *wallets.Wallet, spend basics.BigNum) error {
	if tx.HasNonce() {
		if expected := sender.Nonce.Add(one); !expected.Equal(tx.Nonce) {
			return UnexpectedNonceError{Sender: tx.SenderPublicKey, Expected: sender.Nonce, Got: tx.Nonce}
		}
	}
	balance := sender.Balance.Sub(spend).Sub(tx.Fee)
	if balance.IsNegative() && !b.env.exempt(tx) {
		return ErrInsufficientBalance
	}
	if b.env.Config.IsExceptionTransaction(tx.ID) {
		b.env.Log.Warnf("Transaction forcibly applied as an exception: %s", tx.ID)
	}
	sender.Balance = balance
	if tx.HasNonce() {
		sender.Nonce = tx.Nonce
	}
	return nil
}

// creditSender undoes debitSender.
func (b base) creditSender(tx *transactions.Transaction, sender *wallets.Wallet, spend basics.BigNum) error {
	if tx.HasNonce() && !sender.Nonce.Equal(tx.Nonce) {
		return UnexpectedNonceError{Sender: tx.SenderPublicKey, Expected: sender.Nonce, Got: tx.Nonce, Reverted: true}
	}
	sender.Balance = sender.Balance.Add(spend).Add(tx.Fee)
	if tx.HasNonce() {
		sender.Nonce = sender.Nonce.Sub(one)
	}
	return nil
}

// applyPlain is Apply for types that only pay the fee.
func (b base) applyPlain(h Handler, wr *wallets.Repository, tx *transactions.Transaction, mutate func(sender *wallets.Wallet)) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := h.ThrowIfCannotBeApplied(wr, tx, sender); err != nil {
		return err
	}
	if err := b.debitSender(tx, sender, basics.Zero); err != nil {
		return err
	}
	mutate(sender)
	return nil
}

// revertPlain is Revert for types that only pay the fee.
func (b base) revertPlain(wr *wallets.Repository, tx *transactions.Transaction, mutate func(sender *wallets.Wallet)) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := b.creditSender(tx, sender, basics.Zero); err != nil {
		return err
	}
	mutate(sender)
	return nil
}

// EmitEvents emits nothing; types with notifications override it.
func (b base) EmitEvents(*transactions.Transaction, events.Emitter) {}
