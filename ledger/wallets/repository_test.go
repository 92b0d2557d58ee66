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

package wallets

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/test/partitiontest"
)

const testPublicKey = "03aa0000000000000000000000000000000000000000000000000000000000000001"

func TestFindCreatesLazily(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	require.False(t, r.HasByPublicKey(testPublicKey))

	w := r.FindByPublicKey(testPublicKey)
	require.Equal(t, testPublicKey, w.PublicKey)
	require.Equal(t, r.AddressOf(testPublicKey), w.Address)
	require.True(t, r.HasByPublicKey(testPublicKey))
	require.True(t, r.HasByAddress(w.Address))
	require.Same(t, w, r.FindByAddress(w.Address))
	require.Same(t, w, r.FindByPublicKey(testPublicKey))
	require.Equal(t, 1, r.Len())

	require.True(t, r.GetNonce("unknown").IsZero())
	w.Nonce = basics.NewBigNum(3)
	require.Equal(t, "3", r.GetNonce(testPublicKey).String())
}

func TestAddressWalletLearnsPublicKey(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	byAddr := r.FindByAddress(r.AddressOf(testPublicKey))
	byAddr.Balance = basics.NewBigNum(10)
	require.False(t, r.HasByPublicKey(testPublicKey))

	w := r.FindByPublicKey(testPublicKey)
	require.Same(t, byAddr, w)
	require.Equal(t, "10", w.Balance.String())
}

func TestCreateWalletIsNotIndexed(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	w := r.CreateWallet("addr")
	require.False(t, r.HasByAddress("addr"))
	r.Index(w)
	require.True(t, r.HasByAddress("addr"))
}

func TestUsernameIndex(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	w := r.FindByPublicKey(testPublicKey)
	SetAttribute(w, DelegateUsername, "alice")
	require.False(t, r.HasByUsername("alice"))
	r.Index(w)
	found, ok := r.FindByUsername("alice")
	require.True(t, ok)
	require.Same(t, w, found)
	require.True(t, w.IsDelegate())

	SetAttribute(w, DelegateUsername, "bob")
	r.Index(w)
	require.False(t, r.HasByUsername("alice"))
	require.True(t, r.HasByUsername("bob"))

	ForgetAttribute(w, DelegateUsername)
	r.Index(w)
	require.False(t, r.HasByUsername("bob"))
	require.Empty(t, r.AllByUsername())
}

func TestAttributes(t *testing.T) {
	partitiontest.PartitionTest(t)

	w := NewWallet("addr")
	_, ok := GetAttribute(w, DelegateRank)
	require.False(t, ok)
	require.Equal(t, 7, AttributeOr(w, DelegateRank, 7))

	SetAttribute(w, DelegateRank, 2)
	rank, ok := GetAttribute(w, DelegateRank)
	require.True(t, ok)
	require.Equal(t, 2, rank)
	require.Equal(t, []string{"delegate.rank"}, w.AttributeNames())

	ForgetAttribute(w, DelegateRank)
	require.False(t, HasAttribute(w, DelegateRank))

	require.Panics(t, func() { SetAttribute(w, Attribute[int]{name: "delegate.bogus"}, 1) })
	require.Panics(t, func() { SetAttribute(w, Attribute[int]{}, 1) })
	require.Panics(t, func() { Declare[int]("vote") })
	require.True(t, IsDeclared("delegate.voteBalance"))
}

func TestCloneIsIndependent(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	w := r.FindByPublicKey(testPublicKey)
	w.Balance = basics.NewBigNum(100)
	SetAttribute(w, DelegateUsername, "alice")
	SetAttribute(w, DelegateVoteBalance, basics.NewBigNum(100))
	r.Index(w)
	before := r.Snapshot()

	c := r.Clone()
	cw := c.FindByPublicKey(testPublicKey)
	require.NotSame(t, w, cw)
	byName, ok := c.FindByUsername("alice")
	require.True(t, ok)
	require.Same(t, cw, byName)

	cw.Balance = basics.NewBigNum(1)
	SetAttribute(cw, DelegateVoteBalance, basics.NewBigNum(1))
	c.FindByAddress("other").Balance = basics.NewBigNum(5)

	require.Empty(t, cmp.Diff(before, r.Snapshot()))
	require.NotEmpty(t, cmp.Diff(before, c.Snapshot()))
	require.False(t, r.HasByAddress("other"))
}

func TestSnapshotSkipsUntouchedWallets(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	before := r.Snapshot()
	r.FindByAddress("looked-up")
	require.Empty(t, cmp.Diff(before, r.Snapshot()))

	r.FindByAddress("funded").Balance = basics.NewBigNum(1)
	require.Len(t, r.Snapshot(), 1)
}

func TestSnapshotIgnoresLearnedPublicKey(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	addr := r.AddressOf(testPublicKey)
	r.FindByAddress(addr).Balance = basics.NewBigNum(7)
	before := r.Snapshot()

	w := r.FindByPublicKey(testPublicKey)
	require.Equal(t, testPublicKey, w.PublicKey)
	require.Same(t, w, r.FindByAddress(addr))
	require.Empty(t, cmp.Diff(before, r.Snapshot()))
}

func TestAllSorted(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := MakeRepository(30)
	for _, name := range []string{"carol", "alice", "bob"} {
		w := r.FindByAddress("addr-" + name)
		SetAttribute(w, DelegateUsername, name)
		r.Index(w)
	}
	r.FindByAddress("addr-0")

	var addrs, names []string
	for _, w := range r.AllByAddress() {
		addrs = append(addrs, w.Address)
	}
	for _, w := range r.AllByUsername() {
		names = append(names, w.Username())
	}
	require.Equal(t, []string{"addr-0", "addr-alice", "addr-bob", "addr-carol"}, addrs)
	require.Equal(t, []string{"alice", "bob", "carol"}, names)
}
