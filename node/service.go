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
	"fmt"
	"sync"

	"github.com/algorand/go-deadlock"
	"github.com/google/uuid"

	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/pipeline"
	"github.com/algorand/go-dpos/logging"
)

var (
	// ErrServiceClosed is returned for work handed to a closed service.
	ErrServiceClosed = errors.New("block processing service is closed")
	// ErrServiceHalted is returned for work handed to a service that saw a
	// corrupted ledger.
	ErrServiceHalted = errors.New("block processing service halted on a corrupted ledger")
)

// Processor decides the fate of one block.
type Processor interface {
	Process(ctx context.Context, blk bookkeeping.Block) pipeline.Result
}

// Rollbacker removes blocks from the tip of the chain.
type Rollbacker interface {
	RemoveBlocks(ctx context.Context, n int) (bookkeeping.Block, error)
}

type job struct {
	run    func(ctx context.Context)
	cancel func(err error)
}

// BlockProcessingService runs every block and rollback on one worker, so
// the ledger only ever sees one mutation at a time.
type BlockProcessingService struct {
	mu      deadlock.Mutex
	cond    *sync.Cond
	pending []job
	running bool
	halted  bool

	ctx      context.Context
	shutdown context.CancelFunc
	done     chan struct{}

	proc        Processor
	ledger      Rollbacker
	log         logging.Logger
	session     string
	onCorrupted func(blk bookkeeping.Block)
}

// MakeBlockProcessingService creates a stopped service. onCorrupted, if
// set, is called from the worker when a block leaves the ledger corrupted or
// a rollback fails partway.
func MakeBlockProcessingService(proc Processor, l Rollbacker, log logging.Logger, onCorrupted func(blk bookkeeping.Block)) *BlockProcessingService {
	session := uuid.NewString()
	s := &BlockProcessingService{
		proc:        proc,
		ledger:      l,
		log:         log.With("session", session),
		session:     session,
		onCorrupted: onCorrupted,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Session identifies this run of the service in its log lines.
func (s *BlockProcessingService) Session() string {
	return s.session
}

// Start launches the worker.
func (s *BlockProcessingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ctx, s.shutdown = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	go s.worker()
}

// Close stops the worker once the job in progress is done. Jobs still
// queued are cancelled.
func (s *BlockProcessingService) Close() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cond.Broadcast()
	done := s.done
	s.mu.Unlock()

	<-done
	s.shutdown()
}

// Halted reports whether a corrupted ledger stopped the service.
func (s *BlockProcessingService) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

func (s *BlockProcessingService) worker() {
	defer close(s.done)
	s.mu.Lock()

	for {
		for s.running && len(s.pending) == 0 {
			s.cond.Wait()
		}

		if !s.running {
			jobs := s.pending
			s.pending = nil
			s.mu.Unlock()
			for _, j := range jobs {
				j.cancel(ErrServiceClosed)
			}
			return
		}

		j := s.pending[0]
		s.pending = s.pending[1:]
		halted := s.halted
		s.mu.Unlock()

		if halted {
			j.cancel(ErrServiceHalted)
		} else {
			j.run(s.ctx)
		}

		s.mu.Lock()
	}
}

func (s *BlockProcessingService) push(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.halted:
		j.cancel(ErrServiceHalted)
	case !s.running:
		j.cancel(ErrServiceClosed)
	default:
		s.pending = append(s.pending, j)
		s.cond.Broadcast()
	}
}

// Enqueue queues blk for processing. Its result is delivered on the
// returned channel: Rejected if the service closes first, Corrupted if it
// halted.
func (s *BlockProcessingService) Enqueue(blk bookkeeping.Block) <-chan pipeline.Result {
	reply := make(chan pipeline.Result, 1)
	s.push(job{
		run: func(ctx context.Context) {
			reply <- s.process(ctx, blk)
		},
		cancel: func(err error) {
			if err == ErrServiceHalted {
				reply <- pipeline.Corrupted
				return
			}
			reply <- pipeline.Rejected
		},
	})
	return reply
}

// Rollback removes the n most recent blocks between two blocks being
// processed and returns the new tip. A rollback still queued when ctx is
// done is dropped. If removing fails, the service halts.
func (s *BlockProcessingService) Rollback(ctx context.Context, n int) (bookkeeping.Block, error) {
	type outcome struct {
		tip bookkeeping.Block
		err error
	}
	reply := make(chan outcome, 1)
	s.push(job{
		run: func(wctx context.Context) {
			if err := ctx.Err(); err != nil {
				reply <- outcome{err: err}
				return
			}
			tip, err := s.ledger.RemoveBlocks(wctx, n)
			if err != nil {
				s.halt(s.log.WithBlock(uint64(tip.Height), tip.ID), tip, fmt.Errorf("rolling back %d blocks: %w", n, err))
			}
			reply <- outcome{tip, err}
		},
		cancel: func(err error) {
			reply <- outcome{err: err}
		},
	})

	select {
	case o := <-reply:
		return o.tip, o.err
	case <-ctx.Done():
		return bookkeeping.Block{}, ctx.Err()
	}
}

func (s *BlockProcessingService) process(ctx context.Context, blk bookkeeping.Block) pipeline.Result {
	res := s.proc.Process(ctx, blk)
	log := s.log.WithBlock(uint64(blk.Height), blk.ID)
	log.Debugf("processed: %v", res)

	switch res {
	case pipeline.Rollback:
		tip, err := s.ledger.RemoveBlocks(ctx, 1)
		if err != nil {
			s.halt(log, tip, fmt.Errorf("rolling back for a fork: %w", err))
			return pipeline.Corrupted
		}
		log.Infof("rolled back to %d (%s) to resolve a fork", tip.Height, tip.ID)
	case pipeline.Corrupted:
		s.halt(log, blk, errors.New("ledger corrupted"))
	}
	return res
}

// halt stops block processing for good. A partial revert leaves the ledger
// as corrupted as a failed apply, so both end here.
func (s *BlockProcessingService) halt(log logging.Logger, blk bookkeeping.Block, cause error) {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
	log.Errorf("%v, block processing halted", cause)
	if s.onCorrupted != nil {
		s.onCorrupted(blk)
	}
}
