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

package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/pipeline"
	ledgertesting "github.com/algorand/go-dpos/ledger/testing"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/node"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func TestNodeProcessesAndRollsBack(t *testing.T) {
	partitiontest.PartitionTest(t)

	n, ws := ledgertesting.Network(t, 7, "alice", "bob")
	dir := t.TempDir()
	cfg := ledgertesting.LocalConfig()
	cfg.StoreBackend = "sqlite"

	nd, err := node.MakeNode(logging.TestingLog(t), dir, cfg, n)
	require.NoError(t, err)

	var applied []basics.Height
	require.NoError(t, nd.Events().Subscribe(events.BlockApplied, func(payload interface{}) {
		applied = append(applied, payload.(bookkeeping.Block).Height)
	}))

	nd.Start()
	status := nd.Status()
	require.True(t, status.Started)
	require.Equal(t, "devnet", status.Network)
	require.Equal(t, basics.GenesisHeight, status.LastHeight)
	require.Len(t, status.Session, 36)

	l := nd.Ledger()
	for i := 0; i < 3; i++ {
		tx := ledgertesting.Transfer(l, ws["alice"], ws["bob"].Address, 1000, 0)
		require.Equal(t, pipeline.Accepted, <-nd.ProcessBlock(ledgertesting.NextBlock(t, l, 0, 0, tx)))
	}
	require.Equal(t, []basics.Height{2, 3, 4}, applied)
	require.Equal(t, basics.Height(4), nd.Status().LastHeight)
	require.Equal(t, uint64(1), nd.Status().Round.Round)

	tip, err := nd.Rollback(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, basics.Height(2), tip.Height)
	require.Equal(t, "1", l.Wallets().GetNonce(ws["alice"].PublicKey).String())
	nd.Stop()

	reopened, err := node.MakeNode(logging.TestingLog(t), dir, cfg, n)
	require.NoError(t, err)
	defer reopened.Stop()
	require.Equal(t, basics.Height(2), reopened.Status().LastHeight)
	require.False(t, reopened.Status().Started)
}
