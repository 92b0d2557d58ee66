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
	"fmt"

	"github.com/algorand/go-dpos/data/basics"
)

// BlockLimits are the per-block constraints of a milestone.
type BlockLimits struct {
	Version         uint8 `json:"version"`
	MaxTransactions int   `json:"maxTransactions"`
	MaxPayload      int   `json:"maxPayload"`
}

// Fees holds the static minimum fee of each transaction type, keyed by type name.
type Fees struct {
	StaticFees map[string]basics.BigNum `json:"staticFees"`
}

// Milestone is the consensus configuration in force from Height until the
// next milestone.
type Milestone struct {
	Height          basics.Height `json:"height"`
	BlockTime       int64         `json:"blocktime"`
	Reward          basics.BigNum `json:"reward"`
	ActiveDelegates int           `json:"activeDelegates"`
	Block           BlockLimits   `json:"block"`
	Fees            Fees          `json:"fees"`
}

// StaticFee returns the configured minimum fee for a transaction type name.
func (m Milestone) StaticFee(txType string) (basics.BigNum, bool) {
	fee, ok := m.Fees.StaticFees[txType]
	return fee, ok
}

// BadMilestoneError reports a delegate-count change that does not fall on a round boundary.
type BadMilestoneError struct {
	Height          basics.Height
	ActiveDelegates int
}

func (err BadMilestoneError) Error() string {
	return fmt.Sprintf("bad milestone at height %d: the number of delegates can only be changed at the beginning of a new round (previous round size %d)", err.Height, err.ActiveDelegates)
}

// Milestones is an ordered list of milestones.
type Milestones []Milestone

// Validate checks the ordering of the milestones and that delegate counts
// only change on a round boundary of the previous count.
func (ms Milestones) Validate() error {
	if len(ms) == 0 {
		return fmt.Errorf("no milestones")
	}
	if ms[0].Height != basics.GenesisHeight {
		return fmt.Errorf("first milestone must start at height %d, not %d", basics.GenesisHeight, ms[0].Height)
	}

	spanStart := ms[0].Height
	delegates := ms[0].ActiveDelegates
	for i, m := range ms {
		if m.ActiveDelegates <= 0 {
			return fmt.Errorf("milestone at height %d: activeDelegates must be positive", m.Height)
		}
		if m.BlockTime <= 0 {
			return fmt.Errorf("milestone at height %d: blocktime must be positive", m.Height)
		}
		if i == 0 {
			continue
		}
		if m.Height <= ms[i-1].Height {
			return fmt.Errorf("milestone heights must increase: %d after %d", m.Height, ms[i-1].Height)
		}
		if m.ActiveDelegates != delegates {
			if uint64(m.Height-spanStart)%uint64(delegates) != 0 {
				return BadMilestoneError{Height: m.Height, ActiveDelegates: delegates}
			}
			spanStart = m.Height
			delegates = m.ActiveDelegates
		}
	}
	return nil
}
