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

package blockstate

import (
	"github.com/algorand/go-dpos/ledger/wallets"
)

// undoStack holds the compensations of the operations applied so far, most
// recent last.
type undoStack []func() error

func (s *undoStack) push(undo func() error) {
	*s = append(*s, undo)
}

// unwind runs every compensation in reverse order. It keeps going after a
// failure and returns the first error.
func (s *undoStack) unwind() error {
	var first error
	for i := len(*s) - 1; i >= 0; i-- {
		if err := (*s)[i](); err != nil && first == nil {
			first = err
		}
	}
	*s = nil
	return first
}

// lastBlockJournalSize bounds how many blocks back a revert restores the
// previous delegate.lastBlock of the forger.
const lastBlockJournalSize = 1024

type lastBlockEntry struct {
	prev wallets.LastBlock
	had  bool
}

// lastBlockJournal remembers, per applied block id, the delegate.lastBlock
// value the forger had before the block.
type lastBlockJournal struct {
	limit   int
	order   []string
	entries map[string]lastBlockEntry
}

func makeLastBlockJournal(limit int) *lastBlockJournal {
	return &lastBlockJournal{limit: limit, entries: make(map[string]lastBlockEntry)}
}

func (j *lastBlockJournal) record(id string, prev wallets.LastBlock, had bool) {
	if _, ok := j.entries[id]; !ok {
		j.order = append(j.order, id)
	}
	j.entries[id] = lastBlockEntry{prev: prev, had: had}
	for len(j.order) > j.limit {
		delete(j.entries, j.order[0])
		j.order = j.order[1:]
	}
}

func (j *lastBlockJournal) take(id string) (wallets.LastBlock, bool, bool) {
	e, ok := j.entries[id]
	if !ok {
		return wallets.LastBlock{}, false, false
	}
	delete(j.entries, id)
	for i := len(j.order) - 1; i >= 0; i-- {
		if j.order[i] == id {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
	return e.prev, e.had, true
}
