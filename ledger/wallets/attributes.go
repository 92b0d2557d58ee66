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

	"github.com/algorand/go-deadlock"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
)

// An Attribute is a declared, typed key of the wallet attribute bag.
// Values stored under an attribute are treated as immutable.
type Attribute[T any] struct {
	name string
}

// Name returns the attribute key.
func (a Attribute[T]) Name() string {
	return a.name
}

var declared struct {
	mu    deadlock.Mutex
	names map[string]string
}

// Declare registers a new attribute key. Transaction handlers outside this
// package declare their own attributes at init time. Declaring the same key
// twice panics.
func Declare[T any](name string) Attribute[T] {
	declared.mu.Lock()
	defer declared.mu.Unlock()
	if declared.names == nil {
		declared.names = make(map[string]string)
	}
	if _, ok := declared.names[name]; ok {
		panic(fmt.Sprintf("wallets: attribute %s declared twice", name))
	}
	var zero T
	declared.names[name] = fmt.Sprintf("%T", zero)
	return Attribute[T]{name: name}
}

// IsDeclared reports whether name is a declared attribute key.
func IsDeclared(name string) bool {
	declared.mu.Lock()
	defer declared.mu.Unlock()
	_, ok := declared.names[name]
	return ok
}

// LastBlock is what a delegate remembers about the last block it forged.
type LastBlock struct {
	ID        string
	Height    basics.Height
	Timestamp int64
}

// The attributes of the core transaction types.
var (
	DelegateUsername       = Declare[string]("delegate.username")
	DelegateVoteBalance    = Declare[basics.BigNum]("delegate.voteBalance")
	DelegateProducedBlocks = Declare[uint64]("delegate.producedBlocks")
	DelegateForgedFees     = Declare[basics.BigNum]("delegate.forgedFees")
	DelegateForgedRewards  = Declare[basics.BigNum]("delegate.forgedRewards")
	DelegateLastBlock      = Declare[LastBlock]("delegate.lastBlock")
	DelegateRank           = Declare[int]("delegate.rank")
	DelegateRound          = Declare[uint64]("delegate.round")
	DelegateResigned       = Declare[bool]("delegate.resigned")

	// Vote holds the public key of the delegate the wallet votes for.
	Vote            = Declare[string]("vote")
	MultiSignature  = Declare[transactions.MultiSignatureAsset]("multiSignature")
	SecondPublicKey = Declare[string]("secondPublicKey")
)

// GetAttribute returns the value of a on w.
func GetAttribute[T any](w *Wallet, a Attribute[T]) (T, bool) {
	v, ok := w.attributes[a.name]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// AttributeOr returns the value of a on w, or def when it is not set.
func AttributeOr[T any](w *Wallet, a Attribute[T], def T) T {
	if v, ok := GetAttribute(w, a); ok {
		return v
	}
	return def
}

// SetAttribute sets a on w. It panics if a was never declared.
func SetAttribute[T any](w *Wallet, a Attribute[T], v T) {
	if a.name == "" || !IsDeclared(a.name) {
		panic(fmt.Sprintf("wallets: setting undeclared attribute %q", a.name))
	}
	if w.attributes == nil {
		w.attributes = make(map[string]interface{})
	}
	w.attributes[a.name] = v
}

// HasAttribute reports whether a is set on w.
func HasAttribute[T any](w *Wallet, a Attribute[T]) bool {
	_, ok := w.attributes[a.name]
	return ok
}

// ForgetAttribute removes a from w.
func ForgetAttribute[T any](w *Wallet, a Attribute[T]) {
	delete(w.attributes, a.name)
}
