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

// Package store defines the persistence boundary of the ledger: blocks,
// their transaction ids, and the saved delegate ranking of each round.
//
// Two engines implement BlockStore: sqlitedb on top of util/db and kvdb on
// top of util/kvstore. Values are msgpack-encoded with protocol.Encode.
package store

import (
	"context"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
)

// RoundDelegate is one row of a saved round ranking.
type RoundDelegate struct {
	Round     uint64        `codec:"rnd"`
	PublicKey string        `codec:"pk"`
	Balance   basics.BigNum `codec:"bal"`
}

// BlockStore persists the chain.
//
// Lookups of missing heights or ids return ledgercore.ErrNoEntry. A block
// that is present but cannot be decoded is reported as
// ledgercore.ErrCorruptBlock.
type BlockStore interface {
	// LatestBlock returns the highest stored block.
	LatestBlock(ctx context.Context) (bookkeeping.Block, error)
	BlockByHeight(ctx context.Context, h basics.Height) (bookkeeping.Block, error)
	BlockByID(ctx context.Context, id string) (bookkeeping.Block, error)
	// BlocksByHeightRange returns the stored blocks with from <= height <= to
	// in ascending order.
	BlocksByHeightRange(ctx context.Context, from, to basics.Height) ([]bookkeeping.Block, error)

	// SaveBlocks stores consecutive blocks in one transaction.
	SaveBlocks(ctx context.Context, blks []bookkeeping.Block) error
	// DeleteBlocks removes every block at or above height from, with its
	// transaction ids. Corrupt blocks can be removed this way too.
	DeleteBlocks(ctx context.Context, from basics.Height) error

	// ForgedTransactionIDs returns the subset of ids already stored.
	ForgedTransactionIDs(ctx context.Context, ids []string) ([]string, error)

	// SaveRound stores the ranking of one round, in rank order.
	SaveRound(ctx context.Context, delegates []RoundDelegate) error
	// GetRound returns the saved ranking of round in rank order. A round that
	// was never saved has no rows.
	GetRound(ctx context.Context, round uint64) ([]RoundDelegate, error)
	DeleteRound(ctx context.Context, round uint64) error

	// Reset drops everything.
	Reset(ctx context.Context) error
	Close()
}

// CheckConsecutive reports whether blks are in strictly consecutive heights.
func CheckConsecutive(blks []bookkeeping.Block) bool {
	for i := 1; i < len(blks); i++ {
		if blks[i].Height != blks[i-1].Height+1 {
			return false
		}
	}
	return true
}
