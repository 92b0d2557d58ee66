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

package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/pipeline"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/test/partitiontest"
)

// scripted returns results by block height and records what it saw.
type scripted struct {
	mu       deadlock.Mutex
	results  map[basics.Height]pipeline.Result
	seen     []basics.Height
	busy     int
	maxBusy  int
	gate     chan struct{}
	removals []int
	failRm   error
}

func (p *scripted) Process(_ context.Context, blk bookkeeping.Block) pipeline.Result {
	p.mu.Lock()
	p.busy++
	if p.busy > p.maxBusy {
		p.maxBusy = p.busy
	}
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy--
	p.seen = append(p.seen, blk.Height)
	if res, ok := p.results[blk.Height]; ok {
		return res
	}
	return pipeline.Accepted
}

func (p *scripted) RemoveBlocks(_ context.Context, n int) (bookkeeping.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removals = append(p.removals, n)
	if p.failRm != nil {
		return bookkeeping.Block{}, p.failRm
	}
	return bookkeeping.Block{BlockHeader: bookkeeping.BlockHeader{Height: 1}}, nil
}

func blockAt(h basics.Height) bookkeeping.Block {
	return bookkeeping.Block{BlockHeader: bookkeeping.BlockHeader{Height: h, ID: "b"}}
}

func TestServiceProcessesInOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{results: map[basics.Height]pipeline.Result{3: pipeline.Rejected}}
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), nil)
	s.Start()
	defer s.Close()

	var replies []<-chan pipeline.Result
	for h := basics.Height(2); h <= 6; h++ {
		replies = append(replies, s.Enqueue(blockAt(h)))
	}
	var got []pipeline.Result
	for _, r := range replies {
		got = append(got, <-r)
	}

	require.Equal(t, []pipeline.Result{pipeline.Accepted, pipeline.Rejected, pipeline.Accepted, pipeline.Accepted, pipeline.Accepted}, got)
	require.Equal(t, []basics.Height{2, 3, 4, 5, 6}, p.seen)
	require.Equal(t, 1, p.maxBusy)
	require.Len(t, s.Session(), 36)
}

func TestServiceRollbackResultRemovesTip(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{results: map[basics.Height]pipeline.Result{5: pipeline.Rollback}}
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), nil)
	s.Start()
	defer s.Close()

	require.Equal(t, pipeline.Rollback, <-s.Enqueue(blockAt(5)))
	require.Equal(t, []int{1}, p.removals)

	require.False(t, s.Halted())
}

func TestServiceHaltsOnFailedRollback(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{
		results: map[basics.Height]pipeline.Result{5: pipeline.Rollback},
		failRm:  errors.New("disk gone"),
	}
	corrupted := 0
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), func(bookkeeping.Block) { corrupted++ })
	s.Start()
	defer s.Close()

	require.Equal(t, pipeline.Corrupted, <-s.Enqueue(blockAt(5)))
	require.Equal(t, []int{1}, p.removals)
	require.True(t, s.Halted())
	require.Equal(t, 1, corrupted)

	require.Equal(t, pipeline.Corrupted, <-s.Enqueue(blockAt(6)))
	require.Equal(t, []basics.Height{5}, p.seen)
}

func TestServiceHaltsOnFailedManualRollback(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{failRm: errors.New("disk gone")}
	corrupted := 0
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), func(bookkeeping.Block) { corrupted++ })
	s.Start()
	defer s.Close()

	_, err := s.Rollback(context.Background(), 2)
	require.ErrorContains(t, err, "disk gone")
	require.True(t, s.Halted())
	require.Equal(t, 1, corrupted)

	_, err = s.Rollback(context.Background(), 1)
	require.ErrorIs(t, err, ErrServiceHalted)
	require.Equal(t, []int{2}, p.removals)
}

func TestServiceRollback(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{}
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), nil)
	s.Start()

	tip, err := s.Rollback(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, basics.Height(1), tip.Height)
	require.Equal(t, []int{3}, p.removals)

	s.Close()
	_, err = s.Rollback(context.Background(), 1)
	require.ErrorIs(t, err, ErrServiceClosed)
}

func TestServiceHaltsWhenCorrupted(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{results: map[basics.Height]pipeline.Result{4: pipeline.Corrupted}}
	var corrupted []basics.Height
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), func(blk bookkeeping.Block) {
		corrupted = append(corrupted, blk.Height)
	})
	s.Start()
	defer s.Close()

	require.Equal(t, pipeline.Corrupted, <-s.Enqueue(blockAt(4)))
	require.True(t, s.Halted())
	require.Equal(t, []basics.Height{4}, corrupted)

	require.Equal(t, pipeline.Corrupted, <-s.Enqueue(blockAt(5)))
	_, err := s.Rollback(context.Background(), 1)
	require.ErrorIs(t, err, ErrServiceHalted)
	require.Equal(t, []basics.Height{4}, p.seen)
}

func TestServiceCloseCancelsPending(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{gate: make(chan struct{})}
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), nil)
	s.Start()

	first := s.Enqueue(blockAt(2))
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.busy == 1
	}, time.Second, time.Millisecond)
	second := s.Enqueue(blockAt(3))

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.running
	}, time.Second, time.Millisecond)
	close(p.gate)
	<-closed

	require.Equal(t, pipeline.Accepted, <-first)
	require.Equal(t, pipeline.Rejected, <-second)
	require.Equal(t, pipeline.Rejected, <-s.Enqueue(blockAt(4)))
}

func TestServiceRollbackHonorsContext(t *testing.T) {
	partitiontest.PartitionTest(t)

	p := &scripted{gate: make(chan struct{})}
	s := MakeBlockProcessingService(p, p, logging.TestingLog(t), nil)
	s.Start()
	defer s.Close()

	s.Enqueue(blockAt(2))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Rollback(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the abandoned rollback never reaches the ledger
	close(p.gate)
	require.Equal(t, pipeline.Accepted, <-s.Enqueue(blockAt(3)))
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Empty(t, p.removals)
}
