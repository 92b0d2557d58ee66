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

// VoteEvent is the payload of the vote and unvote notifications.
type VoteEvent struct {
	Delegate    string
	Transaction transactions.Transaction
}

type voteHandler struct {
	base
}

func parseVotes(tx *transactions.Transaction) ([]transactions.Vote, error) {
	entries := tx.Votes()
	if len(entries) == 0 {
		return nil, ErrMissingAsset
	}
	votes := make([]transactions.Vote, len(entries))
	for i, entry := range entries {
		v, err := transactions.ParseVote(entry)
		if err != nil {
			return nil, err
		}
		votes[i] = v
	}
	return votes, nil
}

// ThrowIfCannotBeApplied walks the entries in order: an entry may unvote
// the current delegate and a later one vote for another.
func (h voteHandler) ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error {
	votes, err := parseVotes(tx)
	if err != nil {
		return err
	}
	current, voted := wallets.GetAttribute(sender, wallets.Vote)
	for _, v := range votes {
		if v.Unvote {
			if !voted {
				return ErrNoVote
			}
			if current != v.DelegatePublicKey {
				return ErrUnvoteMismatch
			}
			voted = false
			continue
		}
		if voted {
			return ErrAlreadyVoted
		}
		if !wr.HasByPublicKey(v.DelegatePublicKey) {
			return ErrVotedForNonDelegate
		}
		delegate := wr.FindByPublicKey(v.DelegatePublicKey)
		if !delegate.IsDelegate() {
			return ErrVotedForNonDelegate
		}
		if delegate.IsResigned() {
			return ErrVotedForResignedDelegate
		}
		current, voted = v.DelegatePublicKey, true
	}
	return h.checkSender(tx, sender, basics.Zero)
}

func (h voteHandler) Apply(wr *wallets.Repository, tx *transactions.Transaction) error {
	return h.applyPlain(h, wr, tx, func(sender *wallets.Wallet) {
		votes, _ := parseVotes(tx)
		for _, v := range votes {
			if v.Unvote {
				wallets.ForgetAttribute(sender, wallets.Vote)
			} else {
				wallets.SetAttribute(sender, wallets.Vote, v.DelegatePublicKey)
			}
		}
	})
}

func (h voteHandler) Revert(wr *wallets.Repository, tx *transactions.Transaction) error {
	votes, err := parseVotes(tx)
	if err != nil {
		return err
	}
	return h.revertPlain(wr, tx, func(sender *wallets.Wallet) {
		for i := len(votes) - 1; i >= 0; i-- {
			if votes[i].Unvote {
				wallets.SetAttribute(sender, wallets.Vote, votes[i].DelegatePublicKey)
			} else {
				wallets.ForgetAttribute(sender, wallets.Vote)
			}
		}
	})
}

func (h voteHandler) EmitEvents(tx *transactions.Transaction, em events.Emitter) {
	votes, _ := parseVotes(tx)
	for _, v := range votes {
		topic := events.WalletVote
		if v.Unvote {
			topic = events.WalletUnvote
		}
		em.Dispatch(topic, VoteEvent{Delegate: v.DelegatePublicKey, Transaction: *tx})
	}
}
