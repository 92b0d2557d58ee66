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
	"golang.org/x/exp/constraints"
)

// OAdd returns a+b and whether the sum wrapped around.
func OAdd[T constraints.Unsigned](a, b T) (T, bool) {
	sum := a + b
	return sum, sum < a
}

// OSub returns a-b and whether the difference wrapped around.
func OSub[T constraints.Unsigned](a, b T) (T, bool) {
	return a - b, b > a
}

// AddSaturate returns a+b, or the largest T if the sum wraps.
func AddSaturate[T constraints.Unsigned](a, b T) T {
	if sum, wrapped := OAdd(a, b); !wrapped {
		return sum
	}
	return ^T(0)
}

// SubSaturate returns a-b, or 0 if b > a.
func SubSaturate[T constraints.Unsigned](a, b T) T {
	if diff, wrapped := OSub(a, b); !wrapped {
		return diff
	}
	return 0
}
