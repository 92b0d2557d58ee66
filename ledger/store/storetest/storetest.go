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

// Package storetest holds the behaviour every store.BlockStore engine must
// share, run by each engine's tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/protocol"
)

// Opener opens an empty store for one test.
type Opener func(t *testing.T) store.BlockStore

// MakeChain builds n chained blocks from height 1, each carrying txPerBlock
// transfers with distinct ids.
func MakeChain(n, txPerBlock int) []bookkeeping.Block {
	blks := make([]bookkeeping.Block, n)
	prev := bookkeeping.BlockHeader{}
	for i := range blks {
		txns := make([]transactions.Transaction, txPerBlock)
		for j := range txns {
			txns[j] = transactions.Transaction{
				Version:         transactions.Version2,
				Type:            protocol.TransferTx,
				TypeGroup:       protocol.CoreTypeGroup,
				SenderPublicKey: "03aa",
				RecipientID:     fmt.Sprintf("D%d", j),
				Nonce:           basics.NewBigNum(int64(i*txPerBlock + j + 1)),
				Amount:          basics.NewBigNum(int64(j + 1)),
				Fee:             basics.NewBigNum(10),
			}
			txns[j].Seal()
		}
		blks[i] = bookkeeping.MakeBlock(prev, int64(8*i), "03bb", basics.Zero, txns)
		prev = blks[i].BlockHeader
	}
	return blks
}

func ids(blks []bookkeeping.Block) []string {
	out := make([]string, len(blks))
	for i := range blks {
		out[i] = blks[i].ID
	}
	return out
}

// Run runs the shared cases against the engine opened by open.
func Run(t *testing.T, open Opener) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, open(t)) })
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, open(t)) })
	t.Run("DeleteBlocks", func(t *testing.T) { testDeleteBlocks(t, open(t)) })
	t.Run("ForgedTransactions", func(t *testing.T) { testForgedTransactions(t, open(t)) })
	t.Run("Rounds", func(t *testing.T) { testRounds(t, open(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, open(t)) })
}

func testEmpty(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.LatestBlock(ctx)
	require.ErrorAs(t, err, &ledgercore.ErrNoEntry{})
	_, err = s.BlockByHeight(ctx, 1)
	require.ErrorAs(t, err, &ledgercore.ErrNoEntry{})
	_, err = s.BlockByID(ctx, "nope")
	require.ErrorAs(t, err, &ledgercore.ErrNoEntry{})
	blks, err := s.BlocksByHeightRange(ctx, 1, 10)
	require.NoError(t, err)
	require.Empty(t, blks)
	require.NoError(t, s.DeleteBlocks(ctx, 1))
}

func testSaveAndLoad(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()
	chain := MakeChain(5, 2)

	require.NoError(t, s.SaveBlocks(ctx, chain[:3]))
	require.NoError(t, s.SaveBlocks(ctx, chain[3:]))
	require.Error(t, s.SaveBlocks(ctx, []bookkeeping.Block{chain[0], chain[2]}))

	latest, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[4].ID, latest.ID)
	require.Equal(t, chain[4].TotalAmount.String(), latest.TotalAmount.String())
	require.Len(t, latest.Transactions, 2)
	require.Equal(t, chain[4].Transactions[1].ID, latest.Transactions[1].ID)

	blk, err := s.BlockByHeight(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, chain[1].ID, blk.ID)
	require.Equal(t, chain[1].ID, blk.ComputeID())

	blk, err = s.BlockByID(ctx, chain[3].ID)
	require.NoError(t, err)
	require.Equal(t, basics.Height(4), blk.Height)

	blks, err := s.BlocksByHeightRange(ctx, 2, 4)
	require.NoError(t, err)
	require.Equal(t, ids(chain[1:4]), ids(blks))

	_, err = s.BlockByHeight(ctx, 6)
	var noEntry ledgercore.ErrNoEntry
	require.ErrorAs(t, err, &noEntry)
	require.Equal(t, basics.Height(6), noEntry.Height)
}

func testDeleteBlocks(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()
	chain := MakeChain(5, 1)
	require.NoError(t, s.SaveBlocks(ctx, chain))

	require.NoError(t, s.DeleteBlocks(ctx, 4))
	latest, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, basics.Height(3), latest.Height)

	forged, err := s.ForgedTransactionIDs(ctx, chain[3].TransactionIDs())
	require.NoError(t, err)
	require.Empty(t, forged)

	// heights can be stored again once deleted
	require.NoError(t, s.SaveBlocks(ctx, chain[3:]))
	latest, err = s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[4].ID, latest.ID)

	require.NoError(t, s.DeleteBlocks(ctx, 1))
	_, err = s.LatestBlock(ctx)
	require.ErrorAs(t, err, &ledgercore.ErrNoEntry{})
}

func testForgedTransactions(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()
	chain := MakeChain(3, 3)
	require.NoError(t, s.SaveBlocks(ctx, chain[:2]))

	query := append(chain[1].TransactionIDs(), chain[2].TransactionIDs()...)
	query = append(query, "unknown")
	forged, err := s.ForgedTransactionIDs(ctx, query)
	require.NoError(t, err)
	require.ElementsMatch(t, chain[1].TransactionIDs(), forged)

	forged, err = s.ForgedTransactionIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, forged)
}

func testRounds(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()

	rows := []store.RoundDelegate{
		{Round: 2, PublicKey: "03cc", Balance: basics.MustParseBigNum("123456789012345678901234567890")},
		{Round: 2, PublicKey: "03aa", Balance: basics.NewBigNum(5)},
		{Round: 2, PublicKey: "03bb", Balance: basics.Zero},
	}
	require.NoError(t, s.SaveRound(ctx, rows))
	require.NoError(t, s.SaveRound(ctx, []store.RoundDelegate{{Round: 3, PublicKey: "03dd", Balance: basics.NewBigNum(1)}}))

	got, err := s.GetRound(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range rows {
		require.Equal(t, rows[i].PublicKey, got[i].PublicKey)
		require.Equal(t, rows[i].Balance.String(), got[i].Balance.String())
		require.Equal(t, uint64(2), got[i].Round)
	}

	require.NoError(t, s.DeleteRound(ctx, 2))
	got, err = s.GetRound(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, got)
	got, err = s.GetRound(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func testReset(t *testing.T, s store.BlockStore) {
	defer s.Close()
	ctx := context.Background()
	chain := MakeChain(2, 1)
	require.NoError(t, s.SaveBlocks(ctx, chain))
	require.NoError(t, s.SaveRound(ctx, []store.RoundDelegate{{Round: 1, PublicKey: "03aa", Balance: basics.NewBigNum(1)}}))

	require.NoError(t, s.Reset(ctx))
	_, err := s.LatestBlock(ctx)
	require.ErrorAs(t, err, &ledgercore.ErrNoEntry{})
	got, err := s.GetRound(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, s.SaveBlocks(ctx, chain[:1]))
}
