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

package ledgercore

import (
	"fmt"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
)

// MilestoneSource answers the milestone queries the round calculator needs.
// *config.Manager implements it.
type MilestoneSource interface {
	Milestone(h basics.Height) config.Milestone
	NextDelegateCountChange(h basics.Height) (config.Milestone, bool)
}

// RoundInfo places a height within the round schedule.
type RoundInfo struct {
	// Round is the round the height belongs to, starting at 1.
	Round uint64
	// RoundHeight is the height of the first block of Round.
	RoundHeight basics.Height
	// NextRound is the round of the following height.
	NextRound uint64
	// MaxDelegates is the number of forging slots in Round.
	MaxDelegates int
}

// LastHeight is the height of the block closing the round.
func (ri RoundInfo) LastHeight() basics.Height {
	return ri.RoundHeight + basics.Height(ri.MaxDelegates) - 1
}

// Contains reports whether h falls within the round.
func (ri RoundInfo) Contains(h basics.Height) bool {
	return h >= ri.RoundHeight && h <= ri.LastHeight()
}

func (ri RoundInfo) String() string {
	return fmt.Sprintf("round %d (height %d, %d delegates)", ri.Round, ri.RoundHeight, ri.MaxDelegates)
}

// CalculateRound derives the round of height h. Delegate counts may only
// change on a round boundary of the previous count; config.Milestones.Validate
// enforces that when the network is loaded.
func CalculateRound(ms MilestoneSource, h basics.Height) RoundInfo {
	if h < basics.GenesisHeight {
		h = basics.GenesisHeight
	}
	res := RoundInfo{Round: 1, RoundHeight: basics.GenesisHeight}

	activeDelegates := uint64(ms.Milestone(basics.GenesisHeight).ActiveDelegates)
	milestoneHeight := basics.GenesisHeight

	next, ok := ms.NextDelegateCountChange(basics.GenesisHeight)
	for ok && next.Height <= h {
		span := uint64(next.Height - milestoneHeight)
		res.Round += span / activeDelegates
		res.RoundHeight = next.Height
		activeDelegates = uint64(next.ActiveDelegates)
		milestoneHeight = next.Height
		next, ok = ms.NextDelegateCountChange(next.Height)
	}

	fromLastSpan := uint64(h - milestoneHeight)
	increase := fromLastSpan / activeDelegates
	res.Round += increase
	res.RoundHeight += basics.Height(increase * activeDelegates)
	res.NextRound = res.Round
	if (fromLastSpan+1)%activeDelegates == 0 {
		res.NextRound++
	}
	res.MaxDelegates = int(activeDelegates)
	return res
}

// IsNewRound reports whether h is the first height of a round.
func IsNewRound(ms MilestoneSource, h basics.Height) bool {
	return CalculateRound(ms, h).RoundHeight == h
}
