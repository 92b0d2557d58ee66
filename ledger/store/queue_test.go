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

package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/ledger/store/kvdb"
	"github.com/algorand/go-dpos/ledger/store/storetest"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func memoryStore(t *testing.T) *kvdb.Store {
	s, err := kvdb.Open("pebble", t.TempDir(), true, logging.TestingLog(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// failingStore fails SaveBlocks while fail is set.
type failingStore struct {
	store.BlockStore
	fail atomic.Bool
}

func (f *failingStore) SaveBlocks(ctx context.Context, blks []bookkeeping.Block) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.BlockStore.SaveBlocks(ctx, blks)
}

func TestQueueBatches(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := memoryStore(t)
	var committed atomic.Uint64
	q := store.MakeQueue(s, 0, 3, logging.TestingLog(t), func(h basics.Height) { committed.Store(uint64(h)) })
	defer q.Close()

	chain := storetest.MakeChain(7, 1)
	for _, blk := range chain {
		require.NoError(t, q.Push(blk))
	}
	require.Equal(t, basics.Height(7), q.Latest())

	q.WaitCommit(6)
	require.GreaterOrEqual(t, q.LastCommitted(), basics.Height(6))
	require.Equal(t, basics.Height(7), q.Latest())

	require.NoError(t, q.Flush())
	require.Equal(t, basics.Height(7), q.LastCommitted())
	require.Empty(t, q.Pending())
	require.Equal(t, uint64(7), committed.Load())

	latest, err := s.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, chain[6].ID, latest.ID)
}

func TestQueuePushOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	q := store.MakeQueue(memoryStore(t), 0, 10, logging.TestingLog(t), nil)
	defer q.Close()

	chain := storetest.MakeChain(3, 0)
	require.NoError(t, q.Push(chain[0]))
	require.Error(t, q.Push(chain[2]))

	err := q.Push(chain[0])
	var inLedger ledgercore.BlockInLedgerError
	require.ErrorAs(t, err, &inLedger)
	require.Equal(t, basics.Height(2), inLedger.Next)

	require.NoError(t, q.Push(chain[1]))
	require.Len(t, q.Pending(), 2)
}

func TestQueueRemove(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := memoryStore(t)
	var committed atomic.Uint64
	q := store.MakeQueue(s, 0, 100, logging.TestingLog(t), func(h basics.Height) { committed.Store(uint64(h)) })
	defer q.Close()
	ctx := context.Background()

	chain := storetest.MakeChain(6, 1)
	for _, blk := range chain[:4] {
		require.NoError(t, q.Push(blk))
	}
	require.NoError(t, q.Flush())
	for _, blk := range chain[4:] {
		require.NoError(t, q.Push(blk))
	}

	// only queued blocks are dropped
	require.NoError(t, q.Remove(ctx, 6))
	require.Equal(t, basics.Height(5), q.Latest())
	require.Equal(t, basics.Height(4), q.LastCommitted())

	// stored blocks are deleted too
	require.NoError(t, q.Remove(ctx, 3))
	require.Equal(t, basics.Height(2), q.Latest())
	require.Equal(t, basics.Height(2), q.LastCommitted())
	require.Equal(t, uint64(2), committed.Load())
	latest, err := s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[1].ID, latest.ID)

	require.NoError(t, q.Push(chain[2]))
	require.NoError(t, q.Flush())
	latest, err = s.LatestBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, chain[2].ID, latest.ID)
}

func TestQueueFlushReportsFailure(t *testing.T) {
	partitiontest.PartitionTest(t)

	s := &failingStore{BlockStore: memoryStore(t)}
	s.fail.Store(true)
	q := store.MakeQueue(s, 0, 100, logging.TestingLog(t), nil)
	defer q.Close()

	chain := storetest.MakeChain(2, 0)
	require.NoError(t, q.Push(chain[0]))
	require.ErrorContains(t, q.Flush(), "disk full")
	require.Equal(t, basics.Height(0), q.LastCommitted())
	require.Len(t, q.Pending(), 1)

	s.fail.Store(false)
	require.NoError(t, q.Push(chain[1]))
	require.NoError(t, q.Flush())
	require.Equal(t, basics.Height(2), q.LastCommitted())
}
