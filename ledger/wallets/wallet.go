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
	"fmt"
	"sort"

	"github.com/algorand/go-dpos/data/basics"
)

// Wallet is the state of one account. Wallets are owned by a Repository and
// mutated only by the goroutine driving the ledger.
type Wallet struct {
	Address   string
	PublicKey string
	Balance   basics.BigNum
	Nonce     basics.BigNum

	attributes map[string]interface{}

	// username the repository indexed this wallet under
	indexedUsername string
}

// NewWallet returns an empty wallet for address.
func NewWallet(address string) *Wallet {
	return &Wallet{Address: address}
}

// HasVoted reports whether the wallet votes for a delegate.
func (w *Wallet) HasVoted() bool {
	return HasAttribute(w, Vote)
}

// IsDelegate reports whether the wallet registered as a delegate.
func (w *Wallet) IsDelegate() bool {
	return HasAttribute(w, DelegateUsername)
}

// IsResigned reports whether the wallet resigned as a delegate.
func (w *Wallet) IsResigned() bool {
	return AttributeOr(w, DelegateResigned, false)
}

// HasMultiSignature reports whether the wallet is a multi-signature wallet.
func (w *Wallet) HasMultiSignature() bool {
	return HasAttribute(w, MultiSignature)
}

// Username returns the delegate username, or "" for non-delegates.
func (w *Wallet) Username() string {
	return AttributeOr(w, DelegateUsername, "")
}

// VoteBalance returns the delegate vote balance, zero when unset.
func (w *Wallet) VoteBalance() basics.BigNum {
	return AttributeOr(w, DelegateVoteBalance, basics.Zero)
}

// AttributeNames returns the keys set on the wallet in sorted order.
func (w *Wallet) AttributeNames() []string {
	names := make([]string, 0, len(w.attributes))
	for name := range w.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the wallet.
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.attributes = make(map[string]interface{}, len(w.attributes))
	for k, v := range w.attributes {
		c.attributes[k] = v
	}
	return &c
}

func (w *Wallet) String() string {
	if name := w.Username(); name != "" {
		return fmt.Sprintf("%s (%s)", name, w.Address)
	}
	return w.Address
}
