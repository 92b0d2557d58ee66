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

package kvdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/ledger/store/storetest"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func TestSuite(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, impl := range []string{"pebble", "badger"} {
		impl := impl
		t.Run(impl, func(t *testing.T) {
			storetest.Run(t, func(t *testing.T) store.BlockStore {
				s, err := Open(impl, t.TempDir(), true, logging.TestingLog(t))
				require.NoError(t, err)
				return s
			})
		})
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	partitiontest.PartitionTest(t)

	dir := t.TempDir()
	ctx := context.Background()
	chain := storetest.MakeChain(3, 2)

	s, err := Open("pebble", dir, false, logging.TestingLog(t))
	require.NoError(t, err)
	require.NoError(t, s.SaveBlocks(ctx, chain))
	s.Close()

	s, err = Open("pebble", dir, false, logging.TestingLog(t))
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[2].ID, latest.ID)
	forged, err := s.ForgedTransactionIDs(ctx, chain[0].TransactionIDs())
	require.NoError(t, err)
	require.Len(t, forged, 2)
}

func TestCorruptBlock(t *testing.T) {
	partitiontest.PartitionTest(t)

	s, err := Open("pebble", t.TempDir(), true, logging.TestingLog(t))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	chain := storetest.MakeChain(3, 1)
	require.NoError(t, s.SaveBlocks(ctx, chain))
	require.NoError(t, s.kv.Set(blockKey(3), []byte{0xc1, 0xff}))

	_, err = s.LatestBlock(ctx)
	var corrupt ledgercore.ErrCorruptBlock
	require.ErrorAs(t, err, &corrupt)
	require.EqualValues(t, 3, corrupt.Height)

	require.NoError(t, s.DeleteBlocks(ctx, 3))
	latest, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[1].ID, latest.ID)
	forged, err := s.ForgedTransactionIDs(ctx, chain[2].TransactionIDs())
	require.NoError(t, err)
	require.Empty(t, forged)
}

func TestSaveRequiresNextHeight(t *testing.T) {
	partitiontest.PartitionTest(t)

	s, err := Open("pebble", t.TempDir(), true, logging.TestingLog(t))
	require.NoError(t, err)
	defer s.Close()
	chain := storetest.MakeChain(3, 0)
	require.Error(t, s.SaveBlocks(context.Background(), chain[1:]))
	require.NoError(t, s.SaveBlocks(context.Background(), chain[:1]))
}
