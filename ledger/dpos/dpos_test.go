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

package dpos

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func addDelegate(r *wallets.Repository, name, publicKey string, votes int64) *wallets.Wallet {
	w := r.FindByPublicKey(publicKey)
	wallets.SetAttribute(w, wallets.DelegateUsername, name)
	wallets.SetAttribute(w, wallets.DelegateVoteBalance, basics.NewBigNum(votes))
	r.Index(w)
	return w
}

func pk(i int) string {
	return fmt.Sprintf("03%064x", i)
}

func TestRanking(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := wallets.MakeRepository(30)
	a := addDelegate(r, "a", pk(3), 100)
	b := addDelegate(r, "b", pk(2), 300)
	c := addDelegate(r, "c", pk(1), 100)
	d := addDelegate(r, "d", pk(4), 500)
	wallets.SetAttribute(d, wallets.DelegateResigned, true)
	wallets.SetAttribute(d, wallets.DelegateRank, 1)

	s := MakeState(r, logging.TestingLog(t))
	require.NoError(t, s.BuildDelegateRanking())
	require.Equal(t, []*wallets.Wallet{b, c, a}, s.ActiveDelegates())
	require.Equal(t, 1, wallets.AttributeOr(b, wallets.DelegateRank, 0))
	require.Equal(t, 2, wallets.AttributeOr(c, wallets.DelegateRank, 0))
	require.Equal(t, 3, wallets.AttributeOr(a, wallets.DelegateRank, 0))
	require.False(t, wallets.HasAttribute(d, wallets.DelegateRank))

	ri := ledgercore.RoundInfo{Round: 4, RoundHeight: 7, NextRound: 4, MaxDelegates: 2}
	require.NoError(t, s.SetDelegatesRound(ri))
	require.Equal(t, []*wallets.Wallet{b, c}, s.RoundDelegates())
	require.Equal(t, uint64(4), wallets.AttributeOr(c, wallets.DelegateRound, 0))
	require.False(t, wallets.HasAttribute(a, wallets.DelegateRound))
	require.Equal(t, ri, s.RoundInfo())
}

func TestNotEnoughDelegates(t *testing.T) {
	partitiontest.PartitionTest(t)

	r := wallets.MakeRepository(30)
	addDelegate(r, "a", pk(1), 1)
	s := MakeState(r, logging.TestingLog(t))
	require.NoError(t, s.BuildDelegateRanking())

	err := s.SetDelegatesRound(ledgercore.RoundInfo{Round: 1, RoundHeight: 1, NextRound: 1, MaxDelegates: 3})
	require.ErrorAs(t, err, &NotEnoughDelegatesError{})
	require.EqualError(t, err, "Expected to find 3 delegates but only found 1. This indicates an issue with the genesis block & delegates")
}
