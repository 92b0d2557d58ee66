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

package pipeline

// Result is the outcome of processing one block.
type Result int

const (
	// Accepted blocks extend the chain.
	Accepted Result = iota
	// DiscardedButCanBeBroadcasted blocks do not extend the chain but come
	// from a scheduled forger and may still be relayed.
	DiscardedButCanBeBroadcasted
	// Rejected blocks are invalid or useless to this node.
	Rejected
	// Rollback means a competing block was seen at the tip height and the
	// tip should be removed so the fork can be resolved.
	Rollback
	// Reverted means a partially committed block was undone.
	Reverted
	// Corrupted means undoing a failed block failed as well. The node
	// cannot continue.
	Corrupted
)

var resultNames = [...]string{
	Accepted:                     "accepted",
	DiscardedButCanBeBroadcasted: "discarded",
	Rejected:                     "rejected",
	Rollback:                     "rollback",
	Reverted:                     "reverted",
	Corrupted:                    "corrupted",
}

func (r Result) String() string {
	if r < 0 || int(r) >= len(resultNames) {
		return "unknown"
	}
	return resultNames[r]
}
