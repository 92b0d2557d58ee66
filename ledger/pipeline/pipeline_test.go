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

package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/gen"
	"github.com/algorand/go-dpos/ledger"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/pipeline"
	ledgertesting "github.com/algorand/go-dpos/ledger/testing"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/test/partitiontest"
)

type recordingPool struct {
	removed []string
}

func (p *recordingPool) RemoveTransactionsByID(ids []string) {
	p.removed = append(p.removed, ids...)
}

type fixture struct {
	network config.Network
	wallets map[string]gen.Wallet
	ledger  *ledger.Ledger
	pool    *recordingPool
	proc    *pipeline.Processor
}

func makeFixture(t *testing.T) *fixture {
	n, ws := ledgertesting.Network(t, 7, "alice", "bob")
	return makeFixtureOn(t, n, ws)
}

func makeFixtureOn(t *testing.T, n config.Network, ws map[string]gen.Wallet) *fixture {
	l := ledgertesting.OpenLedger(t, n, ledgertesting.LocalConfig(), nil)
	pool := &recordingPool{}
	return &fixture{
		network: n,
		wallets: ws,
		ledger:  l,
		pool:    pool,
		proc:    pipeline.MakeProcessor(l, pool, nil, logging.TestingLog(t)),
	}
}

func (f *fixture) process(blk bookkeeping.Block) pipeline.Result {
	return f.proc.Process(context.Background(), blk)
}

// processUnchanged processes blk expecting want, and requires the wallets to
// be left as they were.
func (f *fixture) processUnchanged(t *testing.T, blk bookkeeping.Block, want pipeline.Result) {
	t.Helper()
	before := f.ledger.Wallets().Snapshot()
	require.Equal(t, want, f.process(blk))
	require.Empty(t, cmp.Diff(before, f.ledger.Wallets().Snapshot()))
}

func legacyTransfer(l *ledger.Ledger, sender gen.Wallet, recipient string, amount int64) transactions.Transaction {
	fee, _ := l.Params().Current().StaticFee(protocol.TransferTx.String())
	return transactions.Transaction{
		Version:         1,
		Type:            protocol.TransferTx,
		TypeGroup:       protocol.CoreTypeGroup,
		SenderPublicKey: sender.PublicKey,
		RecipientID:     recipient,
		Amount:          basics.NewBigNum(amount),
		Fee:             fee,
	}
}

func TestResultString(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, "accepted", pipeline.Accepted.String())
	require.Equal(t, "discarded", pipeline.DiscardedButCanBeBroadcasted.String())
	require.Equal(t, "rejected", pipeline.Rejected.String())
	require.Equal(t, "rollback", pipeline.Rollback.String())
	require.Equal(t, "reverted", pipeline.Reverted.String())
	require.Equal(t, "corrupted", pipeline.Corrupted.String())
	require.Equal(t, "unknown", pipeline.Result(42).String())
}

func TestAcceptNextBlock(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	alice, bob := f.wallets["alice"], f.wallets["bob"]
	tx := ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 0)
	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0, tx)

	require.Equal(t, pipeline.Accepted, f.process(blk))
	require.Equal(t, blk.ID, f.ledger.LastBlock().ID)
	require.Equal(t, blk.TransactionIDs(), f.pool.removed)
	require.Equal(t, blk.Height, f.ledger.Chain().LastDownloadedBlock().Height)
	require.Equal(t, "1", f.ledger.Wallets().GetNonce(alice.PublicKey).String())

	require.Equal(t, pipeline.Accepted, f.process(ledgertesting.NextBlock(t, f.ledger, 2, 0)))
	require.Equal(t, basics.Height(3), f.ledger.LastBlock().Height)
}

func TestRejectFailedVerification(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0)
	blk.TotalFee = basics.NewBigNum(1)

	f.processUnchanged(t, blk, pipeline.Rejected)
	require.Equal(t, basics.GenesisHeight, f.ledger.LastBlock().Height)
}

func TestRejectIncompatibleTransactions(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	alice, bob := f.wallets["alice"], f.wallets["bob"]
	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0,
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 0),
		legacyTransfer(f.ledger, bob, alice.Address, 1000),
	)

	f.processUnchanged(t, blk, pipeline.Rejected)
	require.Equal(t, basics.GenesisHeight, f.ledger.LastBlock().Height)
}

func TestRejectNonceOutOfOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	alice, bob := f.wallets["alice"], f.wallets["bob"]

	gap := ledgertesting.NextBlock(t, f.ledger, 0, 0,
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 0),
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 2),
	)
	f.processUnchanged(t, gap, pipeline.Rejected)

	swapped := ledgertesting.NextBlock(t, f.ledger, 0, 0,
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 1),
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 0),
	)
	f.processUnchanged(t, swapped, pipeline.Rejected)

	inOrder := ledgertesting.NextBlock(t, f.ledger, 0, 0,
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 0),
		ledgertesting.Transfer(f.ledger, bob, alice.Address, 1000, 0),
		ledgertesting.Transfer(f.ledger, alice, bob.Address, 1000, 1),
	)
	require.Equal(t, pipeline.Accepted, f.process(inOrder))
	require.Equal(t, "2", f.ledger.Wallets().GetNonce(alice.PublicKey).String())
}

func TestRejectInvalidGenerator(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	next := ledgertesting.NextBlock(t, f.ledger, 0, 0)
	blk := ledgertesting.NextBlockBy(f.ledger, f.wallets["alice"].PublicKey, next.Timestamp, 0)

	f.processUnchanged(t, blk, pipeline.Rejected)
	require.Equal(t, basics.GenesisHeight, f.ledger.LastBlock().Height)
}

// openSchedule has nobody scheduled in any slot.
type openSchedule struct {
	*ledger.Ledger
}

func (openSchedule) GetActiveDelegates(context.Context, *ledgercore.RoundInfo, []*wallets.Wallet) ([]*wallets.Wallet, error) {
	return nil, nil
}

func TestUnscheduledSlotNeedsDelegate(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	ctx := context.Background()
	proc := pipeline.MakeProcessor(openSchedule{Ledger: f.ledger}, f.pool, nil, logging.TestingLog(t))
	next := ledgertesting.NextBlock(t, f.ledger, 0, 0)

	before := f.ledger.Wallets().Snapshot()
	stranger := ledgertesting.NextBlockBy(f.ledger, f.wallets["alice"].PublicKey, next.Timestamp, 0)
	require.Equal(t, pipeline.Rejected, proc.Process(ctx, stranger))
	require.Empty(t, cmp.Diff(before, f.ledger.Wallets().Snapshot()))

	other := f.wallets["genesis_1"].PublicKey
	if other == next.GeneratorPublicKey {
		other = f.wallets["genesis_2"].PublicKey
	}
	blk := ledgertesting.NextBlockBy(f.ledger, other, next.Timestamp, 0)
	require.Equal(t, pipeline.Accepted, proc.Process(ctx, blk))
	require.Equal(t, blk.ID, f.ledger.LastBlock().ID)
}

func TestUnchainedBlocks(t *testing.T) {
	partitiontest.PartitionTest(t)

	ahead := makeFixture(t)
	behind := makeFixtureOn(t, ahead.network, ahead.wallets)

	var blks []bookkeeping.Block
	for i := 0; i < 3; i++ {
		blk := ledgertesting.NextBlock(t, ahead.ledger, 0, 0)
		require.Equal(t, pipeline.Accepted, ahead.process(blk))
		blks = append(blks, blk)
	}
	require.Equal(t, pipeline.Accepted, behind.process(blks[0]))

	// Height 4 on a node at height 2: a gap, from a scheduled forger.
	behind.processUnchanged(t, blks[2], pipeline.DiscardedButCanBeBroadcasted)
	// The tip itself and a block below it.
	ahead.processUnchanged(t, blks[2], pipeline.DiscardedButCanBeBroadcasted)
	ahead.processUnchanged(t, blks[0], pipeline.DiscardedButCanBeBroadcasted)

	// A gap from a wallet that is not a delegate.
	stranger := blks[2]
	stranger.GeneratorPublicKey = ahead.wallets["alice"].PublicKey
	stranger.ID = stranger.ComputeID()
	behind.processUnchanged(t, stranger, pipeline.Rejected)

	require.Equal(t, pipeline.Accepted, behind.process(blks[1]))
	require.Equal(t, pipeline.Accepted, behind.process(blks[2]))
	require.Equal(t, ahead.ledger.LastBlock().ID, behind.ledger.LastBlock().ID)
}

func TestDoubleForgingAtTip(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	ctx := context.Background()
	tip := ledgertesting.NextBlock(t, f.ledger, 0, 0)
	require.Equal(t, pipeline.Accepted, f.process(tip))

	tx := ledgertesting.Transfer(f.ledger, f.wallets["alice"], f.wallets["bob"].Address, 1000, 0)
	tx.Seal()
	competitor := bookkeeping.MakeBlock(f.ledger.Chain().Genesis().BlockHeader, tip.Timestamp, tip.GeneratorPublicKey, basics.Zero, []transactions.Transaction{tx})
	require.NotEqual(t, tip.ID, competitor.ID)

	require.Equal(t, pipeline.Rollback, f.process(competitor))
	forked, ok := f.ledger.Chain().ForkedBlock()
	require.True(t, ok)
	require.Equal(t, competitor.ID, forked.ID)

	_, err := f.ledger.RemoveBlocks(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, pipeline.Accepted, f.process(competitor))
	_, ok = f.ledger.Chain().ForkedBlock()
	require.False(t, ok)
}

func TestRejectAlreadyForged(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	alice, bob := f.wallets["alice"], f.wallets["bob"]

	tx := legacyTransfer(f.ledger, alice, bob.Address, 1000)
	first := ledgertesting.NextBlock(t, f.ledger, 0, 0, tx)
	require.Equal(t, pipeline.Accepted, f.process(first))

	f.pool.removed = nil
	replay := ledgertesting.NextBlock(t, f.ledger, 0, 0, tx)
	f.processUnchanged(t, replay, pipeline.Rejected)
	require.Equal(t, first.TransactionIDs(), f.pool.removed)
	require.Equal(t, first.ID, f.ledger.LastBlock().ID)

	// Still rejected once the first block is persisted.
	require.NoError(t, f.ledger.Queue().Flush())
	f.processUnchanged(t, replay, pipeline.Rejected)
}

func TestExceptionBlockIsForced(t *testing.T) {
	partitiontest.PartitionTest(t)

	scratch := makeFixture(t)
	next := ledgertesting.NextBlock(t, scratch.ledger, 0, 0)
	forced := ledgertesting.NextBlockBy(scratch.ledger, scratch.wallets["alice"].PublicKey, next.Timestamp, 0)
	require.Equal(t, pipeline.Rejected, scratch.process(forced))

	n := scratch.network
	n.Exceptions.Blocks = []string{forced.ID}
	f := makeFixtureOn(t, n, scratch.wallets)

	require.Equal(t, pipeline.Accepted, f.process(forced))
	require.Equal(t, forced.ID, f.ledger.LastBlock().ID)
	require.Equal(t, pipeline.Rejected, f.process(forced))
}

func TestAcceptFailureIsRejected(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	alice, bob := f.wallets["alice"], f.wallets["bob"]
	f.ledger.Chain().SetLastDownloadedBlock(bookkeeping.BlockHeader{Height: 10})

	tx := ledgertesting.Transfer(f.ledger, alice, bob.Address, 2*ledgertesting.Stake, 0)
	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0, tx)

	require.Equal(t, pipeline.Rejected, f.process(blk))
	require.Equal(t, basics.GenesisHeight, f.ledger.LastBlock().Height)
	require.Equal(t, basics.GenesisHeight, f.ledger.Chain().LastDownloadedBlock().Height)
	require.Empty(t, f.pool.removed)
}

// unsaved fails to queue blocks after applying them, and optionally to
// revert them.
type unsaved struct {
	*ledger.Ledger
	revertErr error
}

func (u unsaved) SaveBlock(bookkeeping.Block) error {
	return errors.New("queue is closed")
}

func (u unsaved) RevertBlock(ctx context.Context, blk bookkeeping.Block) error {
	if u.revertErr != nil {
		return u.revertErr
	}
	return u.Ledger.RevertBlock(ctx, blk)
}

func TestAcceptFailureAfterApplyReverts(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	reg := prometheus.NewRegistry()
	proc := pipeline.MakeProcessor(unsaved{Ledger: f.ledger}, f.pool, reg, logging.TestingLog(t))
	before := f.ledger.Wallets().Snapshot()

	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0,
		ledgertesting.Transfer(f.ledger, f.wallets["alice"], f.wallets["bob"].Address, 1000, 0))
	require.Equal(t, pipeline.Rejected, proc.Process(context.Background(), blk))
	require.Equal(t, basics.GenesisHeight, f.ledger.LastBlock().Height)
	require.Equal(t, "0", f.ledger.Wallets().GetNonce(f.wallets["alice"].PublicKey).String())
	require.Len(t, f.ledger.Wallets().Snapshot(), len(before))

	count, err := testutil.GatherAndCount(reg, "dpos_pipeline_blocks_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAcceptFailureWithoutRevertIsCorrupted(t *testing.T) {
	partitiontest.PartitionTest(t)

	f := makeFixture(t)
	proc := pipeline.MakeProcessor(unsaved{Ledger: f.ledger, revertErr: errors.New("disk gone")}, f.pool, nil, logging.TestingLog(t))

	blk := ledgertesting.NextBlock(t, f.ledger, 0, 0)
	require.Equal(t, pipeline.Corrupted, proc.Process(context.Background(), blk))
}
