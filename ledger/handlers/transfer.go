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
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/wallets"
)

type transferHandler struct {
	base
}

func (h transferHandler) ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error {
	if tx.RecipientID == "" {
		return ErrMissingRecipient
	}
	return h.checkSender(tx, sender, tx.Amount)
}

func (h transferHandler) Apply(wr *wallets.Repository, tx *transactions.Transaction) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := h.ThrowIfCannotBeApplied(wr, tx, sender); err != nil {
		return err
	}
	if err := h.debitSender(tx, sender, tx.Amount); err != nil {
		return err
	}
	recipient := wr.FindByAddress(tx.RecipientID)
	recipient.Balance = recipient.Balance.Add(tx.Amount)
	return nil
}

func (h transferHandler) Revert(wr *wallets.Repository, tx *transactions.Transaction) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := h.creditSender(tx, sender, tx.Amount); err != nil {
		return err
	}
	recipient := wr.FindByAddress(tx.RecipientID)
	recipient.Balance = recipient.Balance.Sub(tx.Amount)
	return nil
}

type multiPaymentHandler struct {
	base
}

func (h multiPaymentHandler) ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error {
	payments := tx.Payments()
	if len(payments) == 0 {
		return ErrNoPayments
	}
	for _, p := range payments {
		if p.RecipientID == "" {
			return ErrMissingRecipient
		}
	}
	return h.checkSender(tx, sender, tx.TotalAmount())
}

func (h multiPaymentHandler) Apply(wr *wallets.Repository, tx *transactions.Transaction) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := h.ThrowIfCannotBeApplied(wr, tx, sender); err != nil {
		return err
	}
	if err := h.debitSender(tx, sender, tx.TotalAmount()); err != nil {
		return err
	}
	for _, p := range tx.Payments() {
		recipient := wr.FindByAddress(p.RecipientID)
		recipient.Balance = recipient.Balance.Add(p.Amount)
	}
	return nil
}

func (h multiPaymentHandler) Revert(wr *wallets.Repository, tx *transactions.Transaction) error {
	sender := wr.FindByPublicKey(tx.SenderPublicKey)
	if err := h.creditSender(tx, sender, tx.TotalAmount()); err != nil {
		return err
	}
	for _, p := range tx.Payments() {
		recipient := wr.FindByAddress(p.RecipientID)
		recipient.Balance = recipient.Balance.Sub(p.Amount)
	}
	return nil
}
