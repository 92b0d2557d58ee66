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

// Package chainstate keeps the in-memory pointers around the chain tip: the
// last applied block and a short cache of its predecessors, the last stored
// height, and the markers the block pipeline uses while syncing.
package chainstate

import (
	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
)

// State is the chain-tip pointer. Writes come from the block processing
// goroutine only; reads may come from anywhere.
type State struct {
	mu deadlock.RWMutex

	genesis       bookkeeping.Block
	maxLastBlocks int

	// lastBlocks holds consecutive blocks in ascending height, the tip last.
	lastBlocks []bookkeeping.Block

	lastStoredHeight basics.Height

	forkedBlock    *bookkeeping.BlockHeader
	lastDownloaded *bookkeeping.BlockHeader
	started        bool
}

// MakeState returns a State that caches up to maxLastBlocks recent blocks.
func MakeState(genesis bookkeeping.Block, maxLastBlocks int) *State {
	if maxLastBlocks < 1 {
		maxLastBlocks = 1
	}
	return &State{genesis: genesis, maxLastBlocks: maxLastBlocks}
}

// Genesis returns the genesis block of the chain.
func (s *State) Genesis() bookkeeping.Block {
	return s.genesis
}

// LastBlock returns the tip. Before anything is applied it is the zero block.
func (s *State) LastBlock() bookkeeping.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.lastBlocks) == 0 {
		return bookkeeping.Block{}
	}
	return s.lastBlocks[len(s.lastBlocks)-1]
}

// LastHeight is the height of the tip.
func (s *State) LastHeight() basics.Height {
	return s.LastBlock().Height
}

// SetLastBlock moves the tip to blk. Cached blocks at or above blk's height
// are dropped first, so moving the tip backwards keeps the cache consecutive.
func (s *State) SetLastBlock(blk bookkeeping.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if blk.Height == 0 {
		s.lastBlocks = nil
		return
	}
	keep := len(s.lastBlocks)
	for keep > 0 && s.lastBlocks[keep-1].Height >= blk.Height {
		keep--
	}
	if keep > 0 && s.lastBlocks[keep-1].Height+1 != blk.Height {
		keep = 0
	}
	s.lastBlocks = append(s.lastBlocks[:keep], blk)
	if over := len(s.lastBlocks) - s.maxLastBlocks; over > 0 {
		s.lastBlocks = append([]bookkeeping.Block(nil), s.lastBlocks[over:]...)
	}
}

// LastBlocks returns the cached blocks, most recent first.
func (s *State) LastBlocks() []bookkeeping.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bookkeeping.Block, len(s.lastBlocks))
	for i := range s.lastBlocks {
		out[len(out)-1-i] = s.lastBlocks[i]
	}
	return out
}

// LastBlocksByHeight returns the cached blocks with from <= height <= to in
// ascending height. Heights outside the cache are simply missing.
func (s *State) LastBlocksByHeight(from, to basics.Height) []bookkeeping.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []bookkeeping.Block
	for _, blk := range s.lastBlocks {
		if blk.Height >= from && blk.Height <= to {
			out = append(out, blk)
		}
	}
	return out
}

// LastBlockByHeight returns the cached block at h.
func (s *State) LastBlockByHeight(h basics.Height) (bookkeeping.Block, bool) {
	blks := s.LastBlocksByHeight(h, h)
	if len(blks) == 0 {
		return bookkeeping.Block{}, false
	}
	return blks[0], true
}

// LastStoredBlockHeight is the highest height known to be persisted.
func (s *State) LastStoredBlockHeight() basics.Height {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStoredHeight
}

// SetLastStoredBlockHeight records the highest persisted height.
func (s *State) SetLastStoredBlockHeight(h basics.Height) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStoredHeight = h
}

// ForkedBlock returns the block that revealed a fork, if any.
func (s *State) ForkedBlock() (bookkeeping.BlockHeader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forkedBlock == nil {
		return bookkeeping.BlockHeader{}, false
	}
	return *s.forkedBlock, true
}

// SetForkedBlock marks hdr as the block that revealed a fork.
func (s *State) SetForkedBlock(hdr bookkeeping.BlockHeader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forkedBlock = &hdr
}

// ClearForkedBlock drops the fork marker.
func (s *State) ClearForkedBlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forkedBlock = nil
}

// LastDownloadedBlock returns the highest block handed to the pipeline so
// far. It falls back to the tip when nothing was downloaded.
func (s *State) LastDownloadedBlock() bookkeeping.BlockHeader {
	s.mu.RLock()
	downloaded := s.lastDownloaded
	s.mu.RUnlock()
	if downloaded != nil {
		return *downloaded
	}
	return s.LastBlock().BlockHeader
}

// SetLastDownloadedBlock records hdr as the highest downloaded block.
func (s *State) SetLastDownloadedBlock(hdr bookkeeping.BlockHeader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDownloaded = &hdr
}

// ResetLastDownloadedBlock moves the download pointer back to the tip, so
// the blocks after it are downloaded again.
func (s *State) ResetLastDownloadedBlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDownloaded = nil
}

// Started reports whether the node finished starting up.
func (s *State) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SetStarted marks startup as finished.
func (s *State) SetStarted(started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = started
}

// Reset forgets everything but the genesis block.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBlocks = nil
	s.lastStoredHeight = 0
	s.forkedBlock = nil
	s.lastDownloaded = nil
	s.started = false
}
