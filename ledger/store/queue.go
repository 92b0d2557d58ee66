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

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/logging"
)

// Queue is the tail of accepted blocks that are not yet persisted. A
// background syncer writes them to the store in batches.
type Queue struct {
	store BlockStore
	log   logging.Logger
	batch int

	// onCommit is told the new last committed height after each write. It
	// runs with the queue lock held and must not call back into the queue.
	onCommit func(basics.Height)

	lastCommitted basics.Height
	q             []bookkeeping.Block

	mu       deadlock.Mutex
	cond     *sync.Cond
	running  bool
	writing  bool
	flushing int
	closed   chan struct{}

	// attempts counts writes; lastErr is the error of the latest failed one
	attempts int
	lastErr  error
}

// retryDelay is the pause between a failed write and the next attempt.
const retryDelay = 100 * time.Millisecond

// MakeQueue starts a queue on top of s. lastCommitted is the height of the
// latest stored block. Blocks are written once batch of them are queued, or
// on Flush.
func MakeQueue(s BlockStore, lastCommitted basics.Height, batch int, log logging.Logger, onCommit func(basics.Height)) *Queue {
	if batch < 1 {
		batch = 1
	}
	if onCommit == nil {
		onCommit = func(basics.Height) {}
	}
	bq := &Queue{
		store:         s,
		log:           log,
		batch:         batch,
		onCommit:      onCommit,
		lastCommitted: lastCommitted,
		running:       true,
		closed:        make(chan struct{}),
	}
	bq.cond = sync.NewCond(&bq.mu)
	go bq.syncer()
	return bq
}

// Close writes whatever is queued and stops the syncer.
func (bq *Queue) Close() {
	if err := bq.Flush(); err != nil {
		bq.log.Errorf("store.Queue.Close: %d blocks were not stored: %v", len(bq.Pending()), err)
	}

	bq.mu.Lock()
	if bq.running {
		bq.running = false
		bq.cond.Broadcast()
	}
	bq.mu.Unlock()
	<-bq.closed
}

func (bq *Queue) syncer() {
	defer close(bq.closed)
	bq.mu.Lock()
	for {
		for bq.running && (len(bq.q) == 0 || (len(bq.q) < bq.batch && bq.flushing == 0)) {
			bq.cond.Wait()
		}

		if !bq.running {
			bq.mu.Unlock()
			return
		}

		workQ := append([]bookkeeping.Block(nil), bq.q...)
		bq.writing = true
		bq.mu.Unlock()

		err := bq.store.SaveBlocks(context.Background(), workQ)

		bq.mu.Lock()
		bq.writing = false
		bq.attempts++
		bq.lastErr = err
		if err != nil {
			bq.log.Warnf("store.Queue.syncer: could not flush %d blocks: %v", len(workQ), err)
			bq.cond.Broadcast()
			bq.mu.Unlock()
			time.Sleep(retryDelay)
			bq.mu.Lock()
			continue
		}

		bq.lastCommitted = workQ[len(workQ)-1].Height
		bq.q = bq.q[len(workQ):]
		bq.onCommit(bq.lastCommitted)
		bq.cond.Broadcast()
	}
}

// Push queues blk, which must be the block right after the latest queued one.
func (bq *Queue) Push(blk bookkeeping.Block) error {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	next := bq.latestLocked() + 1
	if blk.Height < next {
		return ledgercore.BlockInLedgerError{Height: blk.Height, Next: next}
	}
	if blk.Height != next {
		return fmt.Errorf("store.Queue.Push: got block %d, but expected %d", blk.Height, next)
	}
	bq.q = append(bq.q, blk)
	bq.cond.Broadcast()
	return nil
}

func (bq *Queue) latestLocked() basics.Height {
	return bq.lastCommitted + basics.Height(len(bq.q))
}

// Latest is the height of the latest queued or stored block.
func (bq *Queue) Latest() basics.Height {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	return bq.latestLocked()
}

// LastCommitted is the height of the latest stored block.
func (bq *Queue) LastCommitted() basics.Height {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	return bq.lastCommitted
}

// Pending returns a copy of the blocks not yet stored, in height order.
func (bq *Queue) Pending() []bookkeeping.Block {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	return append([]bookkeeping.Block(nil), bq.q...)
}

// WaitCommit blocks until height h is stored or the syncer stops.
func (bq *Queue) WaitCommit(h basics.Height) {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	for bq.running && bq.lastCommitted < h {
		bq.cond.Wait()
	}
}

// Flush writes every queued block regardless of the batch size and waits
// for the write. It returns the error of the write if it failed.
func (bq *Queue) Flush() error {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	target := bq.latestLocked()
	if bq.lastCommitted >= target || !bq.running {
		return nil
	}
	bq.flushing++
	defer func() { bq.flushing-- }()
	bq.cond.Broadcast()

	start := bq.attempts
	for bq.running && bq.lastCommitted < target && len(bq.q) > 0 {
		if bq.attempts > start && bq.lastErr != nil {
			return bq.lastErr
		}
		bq.cond.Wait()
	}
	return nil
}

// Remove drops every block at or above from, queued or stored. A write in
// flight finishes first, so a removed block cannot reappear in the store.
func (bq *Queue) Remove(ctx context.Context, from basics.Height) error {
	if from == 0 {
		from = 1
	}
	bq.mu.Lock()
	defer bq.mu.Unlock()
	for bq.writing {
		bq.cond.Wait()
	}

	if from <= bq.lastCommitted {
		bq.q = nil
	} else if keep := int(from - bq.lastCommitted - 1); keep < len(bq.q) {
		bq.q = bq.q[:keep]
	}

	if from <= bq.lastCommitted {
		if err := bq.store.DeleteBlocks(ctx, from); err != nil {
			return err
		}
		bq.lastCommitted = from - 1
		bq.onCommit(bq.lastCommitted)
	}
	bq.cond.Broadcast()
	return nil
}
