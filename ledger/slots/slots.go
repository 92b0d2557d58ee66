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

// Package slots maps block timestamps onto forging slots.
//
// Time is counted in whole seconds since the network epoch. Every milestone
// span with a constant block time contributes floor(span duration / block
// time) slots; the slot of a timestamp is the number of slots of all closed
// spans plus the slots elapsed within the current one. Span boundaries are
// anchored on the timestamps of real blocks, so slot arithmetic needs a
// BlockTimeLookup.
package slots

import (
	"fmt"
	"time"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
)

// MilestoneSource answers the milestone queries slot arithmetic needs.
// *config.Manager implements it.
type MilestoneSource interface {
	Milestone(h basics.Height) config.Milestone
	NextBlockTimeChange(h basics.Height) (config.Milestone, bool)
	NextDelegateCountChange(h basics.Height) (config.Milestone, bool)
}

// BlockTimeLookup returns the timestamp of the block at height h.
type BlockTimeLookup func(h basics.Height) (int64, error)

// MissingBlockTimeError is returned by a lookup asked for a height it was
// not built for.
type MissingBlockTimeError struct {
	Height basics.Height
}

func (err MissingBlockTimeError) Error() string {
	return fmt.Sprintf("attempted lookup of block height %d for milestone span calculation, but none exists", err.Height)
}

// Info describes the slot a timestamp falls into.
type Info struct {
	BlockTime  int64
	StartTime  int64
	EndTime    int64
	SlotNumber int64
	// ForgingStatus is set while the first half of the slot has not elapsed.
	ForgingStatus bool
}

// Time returns the network time of now: whole seconds since epoch.
func Time(epoch, now time.Time) int64 {
	return floorDiv(int64(now.Sub(epoch)), int64(time.Second))
}

// SlotInfo places timestamp within the slot schedule in force at height.
func SlotInfo(ms MilestoneSource, lookup BlockTimeLookup, timestamp int64, height basics.Height) (Info, error) {
	blockTime := ms.Milestone(basics.GenesisHeight).BlockTime
	var totalSlotsFromLastSpan, lastSpanEndTime int64
	previousMilestoneHeight := basics.GenesisHeight

	next, ok := ms.NextBlockTimeChange(basics.GenesisHeight)
	for ok && height >= next.Height {
		spanStart, err := lookup(previousMilestoneHeight)
		if err != nil {
			return Info{}, err
		}
		spanEnd, err := lookup(next.Height - 1)
		if err != nil {
			return Info{}, err
		}
		lastSpanEndTime = spanEnd + blockTime
		totalSlotsFromLastSpan += floorDiv(lastSpanEndTime-spanStart, blockTime)

		blockTime = next.BlockTime
		previousMilestoneHeight = next.Height
		next, ok = ms.NextBlockTimeChange(next.Height)
	}

	slotsInSpan := floorDiv(timestamp-lastSpanEndTime, blockTime)
	start := lastSpanEndTime + slotsInSpan*blockTime
	return Info{
		BlockTime:     blockTime,
		StartTime:     start,
		EndTime:       start + blockTime - 1,
		SlotNumber:    totalSlotsFromLastSpan + slotsInSpan,
		ForgingStatus: timestamp < start+blockTime/2,
	}, nil
}

// SlotNumber returns the slot of timestamp under the schedule in force at height.
func SlotNumber(ms MilestoneSource, lookup BlockTimeLookup, timestamp int64, height basics.Height) (int64, error) {
	info, err := SlotInfo(ms, lookup, timestamp, height)
	return info.SlotNumber, err
}

// IsBlockChained reports whether next directly extends prev: it references
// prev's id, sits one height above it and falls into a later slot.
func IsBlockChained(ms MilestoneSource, lookup BlockTimeLookup, prev, next bookkeeping.BlockHeader) (bool, error) {
	if next.PreviousBlockID != prev.ID || next.Height != prev.Height+1 {
		return false, nil
	}
	prevSlot, err := SlotNumber(ms, lookup, prev.Timestamp, next.Height)
	if err != nil {
		return false, err
	}
	nextSlot, err := SlotNumber(ms, lookup, next.Timestamp, next.Height)
	if err != nil {
		return false, err
	}
	return prevSlot < nextSlot, nil
}

// ForgingInfo tells which position of the round's shuffled delegate list
// forges at a timestamp.
type ForgingInfo struct {
	BlockTimestamp int64
	CurrentForger  int
	NextForger     int
	CanForge       bool
}

// CalculateForgingInfo returns the forger positions for timestamp at height.
// Positions restart at every delegate count change.
func CalculateForgingInfo(ms MilestoneSource, lookup BlockTimeLookup, timestamp int64, height basics.Height) (ForgingInfo, error) {
	maxDelegates := int64(ms.Milestone(height).ActiveDelegates)
	info, err := SlotInfo(ms, lookup, timestamp, height)
	if err != nil {
		return ForgingInfo{}, err
	}

	var lastSpanSlotNumber int64
	next, ok := ms.NextDelegateCountChange(basics.GenesisHeight)
	for ok && height >= next.Height {
		spanEnd, err := lookup(next.Height - 1)
		if err != nil {
			return ForgingInfo{}, err
		}
		endSlot, err := SlotNumber(ms, lookup, spanEnd, next.Height-1)
		if err != nil {
			return ForgingInfo{}, err
		}
		lastSpanSlotNumber = endSlot + 1
		next, ok = ms.NextDelegateCountChange(next.Height)
	}

	current := mod(info.SlotNumber-lastSpanSlotNumber, maxDelegates)
	return ForgingInfo{
		BlockTimestamp: info.StartTime,
		CurrentForger:  int(current),
		NextForger:     int((current + 1) % maxDelegates),
		CanForge:       info.ForgingStatus,
	}, nil
}

// BuildBlockTimeLookup prefetches the timestamps slot arithmetic at height
// can ask for and returns a lookup over them. Only heights below height are
// fetched, so height may be the block being validated.
func BuildBlockTimeLookup(ms MilestoneSource, height basics.Height, fetch BlockTimeLookup) (BlockTimeLookup, error) {
	heights := map[basics.Height]struct{}{basics.GenesisHeight: {}}
	for _, nextChange := range []func(basics.Height) (config.Milestone, bool){ms.NextBlockTimeChange, ms.NextDelegateCountChange} {
		next, ok := nextChange(basics.GenesisHeight)
		for ok && next.Height <= height {
			heights[next.Height-1] = struct{}{}
			heights[next.Height] = struct{}{}
			next, ok = nextChange(next.Height)
		}
	}

	timestamps := make(map[basics.Height]int64, len(heights))
	for h := range heights {
		if h >= height {
			continue
		}
		ts, err := fetch(h)
		if err != nil {
			return nil, fmt.Errorf("block time lookup at %d: %w", h, err)
		}
		timestamps[h] = ts
	}

	return func(h basics.Height) (int64, error) {
		ts, ok := timestamps[h]
		if !ok {
			return 0, MissingBlockTimeError{Height: h}
		}
		return ts, nil
	}, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
