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
	"regexp"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/wallets"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9!@$&_.]{1,20}$`)

type delegateRegistrationHandler struct {
	base
}

func (h delegateRegistrationHandler) ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error {
	if tx.Asset == nil || tx.Asset.Delegate == nil {
		return ErrMissingAsset
	}
	username := tx.Asset.Delegate.Username
	if !usernamePattern.MatchString(username) {
		return UsernameError{Username: username}
	}
	if sender.IsDelegate() {
		return ErrAlreadyDelegate
	}
	if wr.HasByUsername(username) {
		return UsernameError{Username: username, Taken: true}
	}
	return h.checkSender(tx, sender, basics.Zero)
}

func (h delegateRegistrationHandler) Apply(wr *wallets.Repository, tx *transactions.Transaction) error {
	return h.applyPlain(h, wr, tx, func(sender *wallets.Wallet) {
		wallets.SetAttribute(sender, wallets.DelegateUsername, tx.Asset.Delegate.Username)
		wallets.SetAttribute(sender, wallets.DelegateVoteBalance, basics.Zero)
		wallets.SetAttribute(sender, wallets.DelegateProducedBlocks, uint64(0))
		wallets.SetAttribute(sender, wallets.DelegateForgedFees, basics.Zero)
		wallets.SetAttribute(sender, wallets.DelegateForgedRewards, basics.Zero)
		wr.Index(sender)
	})
}

func (h delegateRegistrationHandler) Revert(wr *wallets.Repository, tx *transactions.Transaction) error {
	return h.revertPlain(wr, tx, func(sender *wallets.Wallet) {
		wallets.ForgetAttribute(sender, wallets.DelegateUsername)
		wallets.ForgetAttribute(sender, wallets.DelegateVoteBalance)
		wallets.ForgetAttribute(sender, wallets.DelegateProducedBlocks)
		wallets.ForgetAttribute(sender, wallets.DelegateForgedFees)
		wallets.ForgetAttribute(sender, wallets.DelegateForgedRewards)
		wallets.ForgetAttribute(sender, wallets.DelegateLastBlock)
		wallets.ForgetAttribute(sender, wallets.DelegateRank)
		wallets.ForgetAttribute(sender, wallets.DelegateRound)
		wr.Index(sender)
	})
}

func (h delegateRegistrationHandler) EmitEvents(tx *transactions.Transaction, em events.Emitter) {
	em.Dispatch(events.DelegateRegistered, *tx)
}

type delegateResignationHandler struct {
	base
}

func (h delegateResignationHandler) ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error {
	if !sender.IsDelegate() {
		return ErrNotDelegate
	}
	if sender.IsResigned() {
		return ErrAlreadyResigned
	}
	return h.checkSender(tx, sender, basics.Zero)
}

func (h delegateResignationHandler) Apply(wr *wallets.Repository, tx *transactions.Transaction) error {
	return h.applyPlain(h, wr, tx, func(sender *wallets.Wallet) {
		wallets.SetAttribute(sender, wallets.DelegateResigned, true)
	})
}

func (h delegateResignationHandler) Revert(wr *wallets.Repository, tx *transactions.Transaction) error {
	return h.revertPlain(wr, tx, func(sender *wallets.Wallet) {
		wallets.ForgetAttribute(sender, wallets.DelegateResigned)
	})
}

func (h delegateResignationHandler) EmitEvents(tx *transactions.Transaction, em events.Emitter) {
	em.Dispatch(events.DelegateResigned, *tx)
}
