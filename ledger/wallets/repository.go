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

// Package wallets holds the in-memory account state of the ledger.
//
// A Repository indexes wallets by address, public key and delegate
// username. It has a single writer: the goroutine processing blocks.
package wallets

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/algorand/go-dpos/crypto"
	"github.com/algorand/go-dpos/data/basics"
)

// Repository is the keyed store of wallets.
type Repository struct {
	addressVersion byte

	byAddress   map[string]*Wallet
	byPublicKey map[string]*Wallet
	byUsername  map[string]*Wallet
}

// MakeRepository creates an empty repository deriving addresses with addressVersion.
func MakeRepository(addressVersion byte) *Repository {
	r := &Repository{addressVersion: addressVersion}
	r.Reset()
	return r
}

// Reset drops every wallet.
func (r *Repository) Reset() {
	r.byAddress = make(map[string]*Wallet)
	r.byPublicKey = make(map[string]*Wallet)
	r.byUsername = make(map[string]*Wallet)
}

// AddressOf derives the address of a public key.
func (r *Repository) AddressOf(publicKey string) string {
	return crypto.AddressFromPublicKey(publicKey, r.addressVersion)
}

// CreateWallet returns a fresh wallet for address without indexing it.
func (r *Repository) CreateWallet(address string) *Wallet {
	return NewWallet(address)
}

// FindByAddress returns the wallet of address, creating it on first reference.
func (r *Repository) FindByAddress(address string) *Wallet {
	w, ok := r.byAddress[address]
	if !ok {
		w = NewWallet(address)
		r.byAddress[address] = w
	}
	return w
}

// FindByPublicKey returns the wallet of publicKey, creating it on first
// reference. A wallet known only by address learns its public key here.
func (r *Repository) FindByPublicKey(publicKey string) *Wallet {
	if w, ok := r.byPublicKey[publicKey]; ok {
		return w
	}
	w := r.FindByAddress(r.AddressOf(publicKey))
	w.PublicKey = publicKey
	r.byPublicKey[publicKey] = w
	return w
}

// FindByUsername returns the delegate registered under username.
func (r *Repository) FindByUsername(username string) (*Wallet, bool) {
	w, ok := r.byUsername[username]
	return w, ok
}

// HasByAddress reports whether a wallet for address exists.
func (r *Repository) HasByAddress(address string) bool {
	_, ok := r.byAddress[address]
	return ok
}

// HasByPublicKey reports whether a wallet for publicKey exists.
func (r *Repository) HasByPublicKey(publicKey string) bool {
	_, ok := r.byPublicKey[publicKey]
	return ok
}

// HasByUsername reports whether a delegate is registered under username.
func (r *Repository) HasByUsername(username string) bool {
	_, ok := r.byUsername[username]
	return ok
}

// GetNonce returns the last applied nonce of publicKey, zero for unknown keys.
func (r *Repository) GetNonce(publicKey string) basics.BigNum {
	if w, ok := r.byPublicKey[publicKey]; ok {
		return w.Nonce
	}
	return basics.Zero
}

// Index (re)indexes w under its current address, public key and username.
// It must be called after a handler changes any of them.
func (r *Repository) Index(w *Wallet) {
	if w.Address != "" {
		r.byAddress[w.Address] = w
	}
	if w.PublicKey != "" {
		r.byPublicKey[w.PublicKey] = w
	}

	username := w.Username()
	if w.indexedUsername != "" && w.indexedUsername != username {
		if r.byUsername[w.indexedUsername] == w {
			delete(r.byUsername, w.indexedUsername)
		}
	}
	if username != "" {
		r.byUsername[username] = w
	}
	w.indexedUsername = username
}

// AllByAddress returns every wallet ordered by address.
func (r *Repository) AllByAddress() []*Wallet {
	all := make([]*Wallet, 0, len(r.byAddress))
	for _, w := range r.byAddress {
		all = append(all, w)
	}
	slices.SortFunc(all, func(a, b *Wallet) int { return strings.Compare(a.Address, b.Address) })
	return all
}

// AllByUsername returns every registered delegate ordered by username.
func (r *Repository) AllByUsername() []*Wallet {
	all := make([]*Wallet, 0, len(r.byUsername))
	for _, w := range r.byUsername {
		all = append(all, w)
	}
	slices.SortFunc(all, func(a, b *Wallet) int { return strings.Compare(a.Username(), b.Username()) })
	return all
}

// Len returns the number of wallets.
func (r *Repository) Len() int {
	return len(r.byAddress)
}

// Clone returns an independent deep copy of the repository.
func (r *Repository) Clone() *Repository {
	c := &Repository{
		addressVersion: r.addressVersion,
		byAddress:      make(map[string]*Wallet, len(r.byAddress)),
		byPublicKey:    make(map[string]*Wallet, len(r.byPublicKey)),
		byUsername:     make(map[string]*Wallet, len(r.byUsername)),
	}
	for addr, w := range r.byAddress {
		c.byAddress[addr] = w.Clone()
	}
	remap := func(w *Wallet) *Wallet {
		if cw, ok := c.byAddress[w.Address]; ok {
			return cw
		}
		return w.Clone()
	}
	for pk, w := range r.byPublicKey {
		c.byPublicKey[pk] = remap(w)
	}
	for name, w := range r.byUsername {
		c.byUsername[name] = remap(w)
	}
	return c
}

// WalletState is the plain comparable state of one wallet. The public key
// is left out: it is learned by the first FindByPublicKey of a wallet known
// only by address, and no block reverts that.
type WalletState struct {
	Balance    basics.BigNum
	Nonce      basics.BigNum
	Attributes map[string]interface{}
}

// Snapshot is a point-in-time copy of every wallet keyed by address.
type Snapshot map[string]WalletState

// Snapshot copies the state of every wallet. Wallets that were referenced but
// never changed are left out, so lazily created lookups do not show up as
// differences.
func (r *Repository) Snapshot() Snapshot {
	s := make(Snapshot, len(r.byAddress))
	for addr, w := range r.byAddress {
		if w.Balance.IsZero() && w.Nonce.IsZero() && len(w.attributes) == 0 {
			continue
		}
		attrs := make(map[string]interface{}, len(w.attributes))
		for k, v := range w.attributes {
			attrs[k] = v
		}
		s[addr] = WalletState{
			Balance:    w.Balance,
			Nonce:      w.Nonce,
			Attributes: attrs,
		}
	}
	return s
}

func (r *Repository) String() string {
	return fmt.Sprintf("wallets(%d wallets, %d delegates)", len(r.byAddress), len(r.byUsername))
}
