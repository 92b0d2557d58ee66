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

// Package blockstate applies and reverts single blocks against the wallet
// repository: the transactions in order, the forger payout, and the
// delegate vote balances that follow from both.
package blockstate

import (
	"fmt"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/handlers"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
)

// Tip is the chain-tip pointer the block state moves forward.
type Tip interface {
	LastBlock() bookkeeping.Block
	SetLastBlock(blk bookkeeping.Block)
}

// BlockState mutates a wallet repository one block at a time. It is not
// safe for concurrent use.
type BlockState struct {
	wallets  *wallets.Repository
	registry *handlers.Registry
	tip      Tip
	log      logging.Logger

	lastBlocks *lastBlockJournal
}

// MakeBlockState returns a BlockState over wr.
func MakeBlockState(wr *wallets.Repository, registry *handlers.Registry, tip Tip, log logging.Logger) *BlockState {
	return &BlockState{
		wallets:    wr,
		registry:   registry,
		tip:        tip,
		log:        log,
		lastBlocks: makeLastBlockJournal(lastBlockJournalSize),
	}
}

// Wallets returns the repository the block state mutates.
func (bs *BlockState) Wallets() *wallets.Repository {
	return bs.wallets
}

// ApplyBlock applies the transactions of blk in order, pays the forger and
// moves the tip to blk. If any transaction fails, the ones already applied
// are reverted in reverse order, the previous tip is restored and the error
// is returned.
func (bs *BlockState) ApplyBlock(blk *bookkeeping.Block) (err error) {
	if blk.Height == basics.GenesisHeight {
		bs.initGenesisForgerWallet(blk.GeneratorPublicKey)
	}

	previous := bs.tip.LastBlock()
	var applied undoStack
	defer func() {
		if err == nil {
			return
		}
		bs.log.Warnf("Failed to apply all transactions in block %d (%s) - reverting previous transactions", blk.Height, blk.ID)
		if uerr := applied.unwind(); uerr != nil {
			bs.log.Errorf("block %d (%s): could not revert applied transactions: %v", blk.Height, blk.ID, uerr)
		}
		bs.tip.SetLastBlock(previous)
	}()

	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		if err = bs.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("block %d (%s): transaction %s: %w", blk.Height, blk.ID, tx.ID, err)
		}
		applied.push(func() error { return bs.RevertTransaction(tx) })
	}

	forger := bs.wallets.FindByPublicKey(blk.GeneratorPublicKey)
	bs.applyBlockToForger(forger, blk)
	bs.tip.SetLastBlock(*blk)
	return nil
}

// RevertBlock undoes ApplyBlock: first the forger payout, then the
// transactions in reverse order. On failure everything already undone is
// applied again before the error is returned. The tip is left to the caller.
func (bs *BlockState) RevertBlock(blk *bookkeeping.Block) (err error) {
	forger := bs.wallets.FindByPublicKey(blk.GeneratorPublicKey)

	var reverted undoStack
	defer func() {
		if err == nil {
			return
		}
		bs.log.Errorf("Failed to revert all transactions in block %d (%s) - applying previous transactions", blk.Height, blk.ID)
		if uerr := reverted.unwind(); uerr != nil {
			bs.log.Errorf("block %d (%s): could not re-apply reverted transactions: %v", blk.Height, blk.ID, uerr)
		}
	}()

	bs.revertBlockFromForger(forger, blk)
	reverted.push(func() error {
		bs.applyBlockToForger(forger, blk)
		return nil
	})

	for i := len(blk.Transactions) - 1; i >= 0; i-- {
		tx := &blk.Transactions[i]
		if err = bs.RevertTransaction(tx); err != nil {
			return fmt.Errorf("block %d (%s): transaction %s: %w", blk.Height, blk.ID, tx.ID, err)
		}
		reverted.push(func() error { return bs.ApplyTransaction(tx) })
	}
	return nil
}

// ApplyTransaction runs the handler of tx and then moves the vote balances
// of the delegates backing the sender and the recipients.
func (bs *BlockState) ApplyTransaction(tx *transactions.Transaction) error {
	h, err := bs.registry.GetActivatedHandlerForData(tx)
	if err != nil {
		return err
	}
	sender := bs.wallets.FindByPublicKey(tx.SenderPublicKey)
	recipient := bs.recipientOf(tx)

	if err := h.Apply(bs.wallets, tx); err != nil {
		return err
	}
	if sender.Balance.IsNegative() && !bs.registry.Env().IsGenesisTransaction(tx.ID) {
		bs.log.Warnf("Wallet %s has a negative balance of %s after transaction %s", sender.Address, sender.Balance, tx.ID)
	}
	bs.updateVoteBalances(sender, recipient, tx, false)
	return nil
}

// RevertTransaction undoes ApplyTransaction.
func (bs *BlockState) RevertTransaction(tx *transactions.Transaction) error {
	h, err := bs.registry.GetActivatedHandlerForData(tx)
	if err != nil {
		return err
	}
	sender := bs.wallets.FindByPublicKey(tx.SenderPublicKey)
	recipient := bs.recipientOf(tx)

	if err := h.Revert(bs.wallets, tx); err != nil {
		return err
	}
	bs.updateVoteBalances(sender, recipient, tx, true)
	return nil
}

// IncreaseWalletDelegateVoteBalance adds amount to the vote balance of the
// delegate w votes for. It does nothing if w has not voted.
func (bs *BlockState) IncreaseWalletDelegateVoteBalance(w *wallets.Wallet, amount basics.BigNum) {
	bs.addVoteBalance(w, amount)
}

// DecreaseWalletDelegateVoteBalance subtracts amount from the vote balance
// of the delegate w votes for. It does nothing if w has not voted.
func (bs *BlockState) DecreaseWalletDelegateVoteBalance(w *wallets.Wallet, amount basics.BigNum) {
	bs.addVoteBalance(w, amount.Neg())
}

func (bs *BlockState) addVoteBalance(w *wallets.Wallet, amount basics.BigNum) {
	vote, ok := wallets.GetAttribute(w, wallets.Vote)
	if !ok {
		return
	}
	delegate := bs.wallets.FindByPublicKey(vote)
	wallets.SetAttribute(delegate, wallets.DelegateVoteBalance, delegate.VoteBalance().Add(amount))
}

func (bs *BlockState) recipientOf(tx *transactions.Transaction) *wallets.Wallet {
	if tx.RecipientID == "" {
		return nil
	}
	return bs.wallets.FindByAddress(tx.RecipientID)
}

func (bs *BlockState) initGenesisForgerWallet(publicKey string) {
	if bs.wallets.HasByPublicKey(publicKey) {
		return
	}
	forger := bs.wallets.FindByAddress(bs.wallets.AddressOf(publicKey))
	forger.PublicKey = publicKey
	bs.wallets.Index(forger)
}

func (bs *BlockState) applyBlockToForger(forger *wallets.Wallet, blk *bookkeeping.Block) {
	prev, had := wallets.GetAttribute(forger, wallets.DelegateLastBlock)
	bs.lastBlocks.record(blk.ID, prev, had)

	wallets.SetAttribute(forger, wallets.DelegateProducedBlocks, wallets.AttributeOr(forger, wallets.DelegateProducedBlocks, 0)+1)
	wallets.SetAttribute(forger, wallets.DelegateForgedFees, wallets.AttributeOr(forger, wallets.DelegateForgedFees, basics.Zero).Add(blk.TotalFee))
	wallets.SetAttribute(forger, wallets.DelegateForgedRewards, wallets.AttributeOr(forger, wallets.DelegateForgedRewards, basics.Zero).Add(blk.Reward))
	wallets.SetAttribute(forger, wallets.DelegateLastBlock, wallets.LastBlock{ID: blk.ID, Height: blk.Height, Timestamp: blk.Timestamp})

	increase := blk.Reward.Add(blk.TotalFee)
	bs.IncreaseWalletDelegateVoteBalance(forger, increase)
	forger.Balance = forger.Balance.Add(increase)
}

func (bs *BlockState) revertBlockFromForger(forger *wallets.Wallet, blk *bookkeeping.Block) {
	produced := wallets.AttributeOr(forger, wallets.DelegateProducedBlocks, 0)
	if produced > 0 {
		produced--
	}
	fees := wallets.AttributeOr(forger, wallets.DelegateForgedFees, basics.Zero).Sub(blk.TotalFee)
	rewards := wallets.AttributeOr(forger, wallets.DelegateForgedRewards, basics.Zero).Sub(blk.Reward)

	if !forger.IsDelegate() && produced == 0 && fees.IsZero() && rewards.IsZero() {
		// the genesis forger is not a delegate; drop what the payout created
		wallets.ForgetAttribute(forger, wallets.DelegateProducedBlocks)
		wallets.ForgetAttribute(forger, wallets.DelegateForgedFees)
		wallets.ForgetAttribute(forger, wallets.DelegateForgedRewards)
	} else {
		wallets.SetAttribute(forger, wallets.DelegateProducedBlocks, produced)
		wallets.SetAttribute(forger, wallets.DelegateForgedFees, fees)
		wallets.SetAttribute(forger, wallets.DelegateForgedRewards, rewards)
	}

	if prev, had, ok := bs.lastBlocks.take(blk.ID); ok && had {
		wallets.SetAttribute(forger, wallets.DelegateLastBlock, prev)
	} else {
		wallets.ForgetAttribute(forger, wallets.DelegateLastBlock)
	}

	decrease := blk.Reward.Add(blk.TotalFee)
	bs.DecreaseWalletDelegateVoteBalance(forger, decrease)
	forger.Balance = forger.Balance.Sub(decrease)
}

// updateVoteBalances moves the vote balances affected by tx. The handler has
// already applied (or reverted) the balance changes of tx.
func (bs *BlockState) updateVoteBalances(sender, recipient *wallets.Wallet, tx *transactions.Transaction, revert bool) {
	sign := int64(1)
	if revert {
		sign = -1
	}

	if tx.IsCore(protocol.VoteTx) {
		// on revert the fee is back in the balance but was never delegated
		delegated := sender.Balance
		if revert {
			delegated = delegated.Sub(tx.Fee)
		}
		for i, entry := range tx.Votes() {
			v, err := transactions.ParseVote(entry)
			if err != nil {
				continue
			}
			change := delegated
			dir := sign
			if v.Unvote {
				if i == 0 {
					change = change.Add(tx.Fee)
				}
				dir = -dir
			}
			delegate := bs.wallets.FindByPublicKey(v.DelegatePublicKey)
			wallets.SetAttribute(delegate, wallets.DelegateVoteBalance, delegate.VoteBalance().Add(change.MulInt64(dir)))
		}
		return
	}

	if sender.HasVoted() {
		total := tx.TotalAmount().Add(tx.Fee)
		bs.addVoteBalance(sender, total.MulInt64(-sign))
	}

	if tx.IsCore(protocol.MultiPaymentTx) {
		for _, p := range tx.Payments() {
			bs.addVoteBalance(bs.wallets.FindByAddress(p.RecipientID), p.Amount.MulInt64(sign))
		}
	}

	if recipient != nil {
		bs.addVoteBalance(recipient, tx.Amount.MulInt64(sign))
	}
}
