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
	"bytes"
	"fmt"
	"math/big"
	"strconv"
)

var bigZero = new(big.Int)

// BigNum is an immutable arbitrary-precision signed integer used for every
// monetary amount and nonce. The zero value is 0. Operations never modify
// their receiver or arguments.
type BigNum struct {
	i *big.Int
}

// Zero is the BigNum 0.
var Zero = BigNum{}

// NewBigNum returns v as a BigNum.
func NewBigNum(v int64) BigNum {
	return BigNum{i: big.NewInt(v)}
}

// NewBigNumFromUint returns v as a BigNum.
func NewBigNumFromUint(v uint64) BigNum {
	return BigNum{i: new(big.Int).SetUint64(v)}
}

// ParseBigNum parses a base-10 integer.
func ParseBigNum(s string) (BigNum, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigNum{}, fmt.Errorf("invalid integer %q", s)
	}
	return BigNum{i: i}, nil
}

// MustParseBigNum is ParseBigNum for constants; it panics on malformed input.
func MustParseBigNum(s string) BigNum {
	b, err := ParseBigNum(s)
	if err != nil {
		panic(err)
	}
	return b
}

func (a BigNum) big() *big.Int {
	if a.i == nil {
		return bigZero
	}
	return a.i
}

// Add returns a+b.
func (a BigNum) Add(b BigNum) BigNum {
	return BigNum{i: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b.
func (a BigNum) Sub(b BigNum) BigNum {
	return BigNum{i: new(big.Int).Sub(a.big(), b.big())}
}

// Neg returns -a.
func (a BigNum) Neg() BigNum {
	return BigNum{i: new(big.Int).Neg(a.big())}
}

// MulInt64 returns a*x.
func (a BigNum) MulInt64(x int64) BigNum {
	return BigNum{i: new(big.Int).Mul(a.big(), big.NewInt(x))}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a BigNum) Cmp(b BigNum) int {
	return a.big().Cmp(b.big())
}

// Equal reports whether a == b.
func (a BigNum) Equal(b BigNum) bool {
	return a.Cmp(b) == 0
}

// Sign returns -1, 0 or +1 depending on the sign of a.
func (a BigNum) Sign() int {
	return a.big().Sign()
}

// IsZero reports whether a == 0.
func (a BigNum) IsZero() bool {
	return a.Sign() == 0
}

// IsNegative reports whether a < 0.
func (a BigNum) IsNegative() bool {
	return a.Sign() < 0
}

// Int64 returns a truncated to int64.
func (a BigNum) Int64() int64 {
	return a.big().Int64()
}

// String returns the base-10 representation.
func (a BigNum) String() string {
	return a.big().String()
}

// MarshalText implements encoding.TextMarshaler.
func (a BigNum) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *BigNum) UnmarshalText(text []byte) error {
	b, err := ParseBigNum(string(text))
	if err != nil {
		return err
	}
	*a = b
	return nil
}

// MarshalBinary encodes the decimal form; msgpack stores amounts as strings.
func (a BigNum) MarshalBinary() ([]byte, error) {
	return a.MarshalText()
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *BigNum) UnmarshalBinary(data []byte) error {
	return a.UnmarshalText(data)
}

// MarshalJSON encodes amounts as JSON strings so no precision is lost in transit.
func (a BigNum) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (a *BigNum) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = BigNum{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}

// SumBigNums adds up a list of values.
func SumBigNums(values ...BigNum) BigNum {
	sum := new(big.Int)
	for _, v := range values {
		sum.Add(sum, v.big())
	}
	return BigNum{i: sum}
}
