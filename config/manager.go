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

package config

import (
	"sort"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
)

// Manager answers milestone queries for a network and tracks the height the
// node is currently working at. Like the rest of the ledger it is driven by a
// single block-processing goroutine.
type Manager struct {
	network    Network
	milestones Milestones
	height     basics.Height

	exceptionBlocks map[string]struct{}
	exceptionTxs    map[string]struct{}
}

// MakeManager validates n and builds a Manager positioned at the genesis height.
func MakeManager(n Network) (*Manager, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		network:         n,
		milestones:      append(Milestones(nil), n.Milestones...),
		height:          basics.GenesisHeight,
		exceptionBlocks: make(map[string]struct{}, len(n.Exceptions.Blocks)),
		exceptionTxs:    make(map[string]struct{}, len(n.Exceptions.Transactions)),
	}
	for _, id := range n.Exceptions.Blocks {
		m.exceptionBlocks[id] = struct{}{}
	}
	for _, id := range n.Exceptions.Transactions {
		m.exceptionTxs[id] = struct{}{}
	}
	return m, nil
}

// Network returns the static network description.
func (m *Manager) Network() Network {
	return m.network
}

// Genesis returns the genesis block.
func (m *Manager) Genesis() bookkeeping.Block {
	return m.network.Genesis
}

// Height returns the height the node is working at.
func (m *Manager) Height() basics.Height {
	return m.height
}

// SetHeight moves the working height.
func (m *Manager) SetHeight(h basics.Height) {
	m.height = h
}

// Current returns the milestone at the working height.
func (m *Manager) Current() Milestone {
	return m.Milestone(m.height)
}

// Milestones returns all milestones in height order.
func (m *Manager) Milestones() Milestones {
	return m.milestones
}

// Milestone returns the milestone in force at height h.
func (m *Manager) Milestone(h basics.Height) Milestone {
	// first milestone strictly above h, the one before it is in force
	idx := sort.Search(len(m.milestones), func(i int) bool {
		return m.milestones[i].Height > h
	})
	if idx == 0 {
		return m.milestones[0]
	}
	return m.milestones[idx-1]
}

// NextDelegateCountChange returns the first milestone above height h whose
// delegate count differs from the count in force at h.
func (m *Manager) NextDelegateCountChange(h basics.Height) (Milestone, bool) {
	return m.nextChange(h, func(a, b Milestone) bool { return a.ActiveDelegates != b.ActiveDelegates })
}

// NextBlockTimeChange returns the first milestone above height h whose block
// time differs from the block time in force at h.
func (m *Manager) NextBlockTimeChange(h basics.Height) (Milestone, bool) {
	return m.nextChange(h, func(a, b Milestone) bool { return a.BlockTime != b.BlockTime })
}

func (m *Manager) nextChange(h basics.Height, differs func(a, b Milestone) bool) (Milestone, bool) {
	current := m.Milestone(h)
	for _, ms := range m.milestones {
		if ms.Height > h && differs(ms, current) {
			return ms, true
		}
	}
	return Milestone{}, false
}

// BlockParams implements bookkeeping.ParamsSource.
func (m *Manager) BlockParams(h basics.Height) bookkeeping.BlockParams {
	ms := m.Milestone(h)
	return bookkeeping.BlockParams{
		Version:         ms.Block.Version,
		MaxTransactions: ms.Block.MaxTransactions,
		MaxPayload:      ms.Block.MaxPayload,
		Reward:          ms.Reward,
	}
}

// IsExceptionBlock reports whether id is a hard-coded exceptional block.
func (m *Manager) IsExceptionBlock(id string) bool {
	_, ok := m.exceptionBlocks[id]
	return ok
}

// IsExceptionTransaction reports whether id is a hard-coded exceptional transaction.
func (m *Manager) IsExceptionTransaction(id string) bool {
	_, ok := m.exceptionTxs[id]
	return ok
}
