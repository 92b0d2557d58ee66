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

// Package dpos ranks delegates by vote balance and selects the delegates of
// a round.
package dpos

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
)

// DuplicateDelegateError reports two ranked entries with the same balance and
// public key, which means one delegate is indexed under two usernames.
type DuplicateDelegateError struct {
	Username  string
	PublicKey string
}

func (err DuplicateDelegateError) Error() string {
	return fmt.Sprintf("the balance and public key of both delegates are identical: delegate %q (%s) appears twice in the list", err.Username, err.PublicKey)
}

// NotEnoughDelegatesError is returned when fewer delegates are ranked than
// the round has slots.
type NotEnoughDelegatesError struct {
	Expected int
	Found    int
}

func (err NotEnoughDelegatesError) Error() string {
	return fmt.Sprintf("Expected to find %d delegates but only found %d. This indicates an issue with the genesis block & delegates", err.Expected, err.Found)
}

// State holds the current delegate ranking of a wallet repository.
type State struct {
	wallets *wallets.Repository
	log     logging.Logger

	active    []*wallets.Wallet
	round     []*wallets.Wallet
	roundInfo ledgercore.RoundInfo
}

// MakeState returns an empty ranking over wr.
func MakeState(wr *wallets.Repository, log logging.Logger) *State {
	return &State{wallets: wr, log: log}
}

// BuildDelegateRanking ranks every non-resigned delegate by vote balance,
// highest first, breaking ties by public key. Ranks start at 1. Resigned
// delegates lose their rank.
func (s *State) BuildDelegateRanking() error {
	s.active = s.active[:0]
	for _, d := range s.wallets.AllByUsername() {
		if d.IsResigned() {
			wallets.ForgetAttribute(d, wallets.DelegateRank)
			continue
		}
		s.active = append(s.active, d)
	}

	slices.SortFunc(s.active, compareDelegates)
	for i := 1; i < len(s.active); i++ {
		a, b := s.active[i-1], s.active[i]
		if a.PublicKey == b.PublicKey && a.VoteBalance().Equal(b.VoteBalance()) {
			return DuplicateDelegateError{Username: b.Username(), PublicKey: b.PublicKey}
		}
	}

	for i, d := range s.active {
		wallets.SetAttribute(d, wallets.DelegateRank, i+1)
	}
	return nil
}

func compareDelegates(a, b *wallets.Wallet) int {
	if c := b.VoteBalance().Cmp(a.VoteBalance()); c != 0 {
		return c
	}
	return strings.Compare(a.PublicKey, b.PublicKey)
}

// SetDelegatesRound takes the top ri.MaxDelegates ranked delegates as the
// delegates of round ri and stamps delegate.round on them.
func (s *State) SetDelegatesRound(ri ledgercore.RoundInfo) error {
	if len(s.active) < ri.MaxDelegates {
		return NotEnoughDelegatesError{Expected: ri.MaxDelegates, Found: len(s.active)}
	}
	s.round = make([]*wallets.Wallet, ri.MaxDelegates)
	for i := 0; i < ri.MaxDelegates; i++ {
		wallets.SetAttribute(s.active[i], wallets.DelegateRound, ri.Round)
		s.round[i] = s.active[i]
	}
	s.roundInfo = ri
	s.log.Debugf("Loaded %d active delegates for %v", len(s.round), ri)
	return nil
}

// ActiveDelegates returns the ranked delegates of the last BuildDelegateRanking.
func (s *State) ActiveDelegates() []*wallets.Wallet {
	return s.active
}

// RoundDelegates returns the delegates selected by the last SetDelegatesRound
// in rank order.
func (s *State) RoundDelegates() []*wallets.Wallet {
	return s.round
}

// RoundInfo returns the round of the last SetDelegatesRound.
func (s *State) RoundInfo() ledgercore.RoundInfo {
	return s.roundInfo
}
