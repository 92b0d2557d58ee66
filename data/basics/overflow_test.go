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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/test/partitiontest"
)

func TestUnsignedOverflow(t *testing.T) {
	partitiontest.PartitionTest(t)

	_, overflowed := OAdd(uint64(math.MaxUint64), 1)
	require.True(t, overflowed)
	_, overflowed = OSub(uint32(0), 1)
	require.True(t, overflowed)

	require.Equal(t, uint64(math.MaxUint64), AddSaturate(uint64(math.MaxUint64), 5))
	require.Equal(t, Height(0), SubSaturate(Height(3), Height(7)))
	require.Equal(t, Height(4), SubSaturate(Height(7), Height(3)))
}

func TestHeightSaturation(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, Height(0), GenesisHeight.SubSaturate(2))
	require.Equal(t, GenesisHeight, Height(3).SubSaturate(2))
	require.Equal(t, Height(math.MaxUint64), Height(math.MaxUint64-1).AddSaturate(10))
	require.Equal(t, Height(1001), GenesisHeight.AddSaturate(1000))
}
