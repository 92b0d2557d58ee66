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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func TestBigNumZeroValue(t *testing.T) {
	partitiontest.PartitionTest(t)

	var z BigNum
	require.True(t, z.IsZero())
	require.Equal(t, "0", z.String())
	require.True(t, z.Equal(NewBigNum(0)))
	require.Equal(t, "5", z.Add(NewBigNum(5)).String())
}

func TestBigNumImmutable(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := NewBigNum(10)
	b := NewBigNum(3)
	c := a.Sub(b)
	require.Equal(t, "10", a.String())
	require.Equal(t, "3", b.String())
	require.Equal(t, "7", c.String())
	require.Equal(t, "-7", c.Neg().String())
	require.Equal(t, "7", c.String())
}

func TestBigNumBeyondInt64(t *testing.T) {
	partitiontest.PartitionTest(t)

	huge := MustParseBigNum("9223372036854775807")
	sum := huge.Add(NewBigNum(1))
	require.Equal(t, "9223372036854775808", sum.String())
	require.Equal(t, 1, sum.Cmp(huge))
}

func TestBigNumJSON(t *testing.T) {
	partitiontest.PartitionTest(t)

	type holder struct {
		Amount BigNum `json:"amount"`
	}

	out, err := json.Marshal(holder{Amount: NewBigNum(-42)})
	require.NoError(t, err)
	require.JSONEq(t, `{"amount":"-42"}`, string(out))

	var h holder
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 1000}`), &h))
	require.Equal(t, "1000", h.Amount.String())
	require.NoError(t, json.Unmarshal([]byte(`{"amount": "25"}`), &h))
	require.Equal(t, "25", h.Amount.String())
	require.Error(t, json.Unmarshal([]byte(`{"amount": "1x"}`), &h))
}

func TestBigNumMsgpack(t *testing.T) {
	partitiontest.PartitionTest(t)

	type holder struct {
		_struct struct{} `codec:",omitempty,omitemptyarray"`
		Balance BigNum   `codec:"bal"`
	}

	enc := protocol.Encode(&holder{Balance: MustParseBigNum("123456789012345678901234567890")})
	var h holder
	require.NoError(t, protocol.Decode(enc, &h))
	require.Equal(t, "123456789012345678901234567890", h.Balance.String())
}

func TestBigNumAddSubInverse(t *testing.T) {
	partitiontest.PartitionTest(t)

	rapid.Check(t, func(t *rapid.T) {
		a := NewBigNum(rapid.Int64().Draw(t, "a"))
		b := NewBigNum(rapid.Int64().Draw(t, "b"))
		if !a.Add(b).Sub(b).Equal(a) {
			t.Fatalf("%s + %s - %s != %s", a, b, b, a)
		}
	})
}
