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

package basics

import "strconv"

// Height is the position of a block in the chain; the genesis block is at height 1.
type Height uint64

// GenesisHeight is the height of the first block of every chain.
const GenesisHeight Height = 1

// Successor returns the next height.
func (h Height) Successor() Height {
	return h + 1
}

// SubSaturate subtracts x, stopping at zero.
func (h Height) SubSaturate(x Height) Height {
	return SubSaturate(h, x)
}

// AddSaturate adds x, stopping at the largest height.
func (h Height) AddSaturate(x Height) Height {
	return AddSaturate(h, x)
}

func (h Height) String() string {
	return strconv.FormatUint(uint64(h), 10)
}
