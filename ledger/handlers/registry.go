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

// Package handlers applies and reverts the effects of individual
// transactions on wallets.
//
// Every transaction type is served by a Handler looked up in a Registry by
// (type, type group, version). Handlers take the wallet repository as an
// argument, so the same registry serves both the live repository and the
// clones the round state works on when it rebuilds a previous round.
package handlers

import (
	"fmt"
	"sort"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
)

// Key identifies the handler of a transaction.
type Key struct {
	Type      protocol.TxType
	TypeGroup protocol.TxTypeGroup
	Version   uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%v/%d v%d", k.Type, k.TypeGroup, k.Version)
}

// KeyOf returns the handler key of tx.
func KeyOf(tx *transactions.Transaction) Key {
	return Key{Type: tx.Type, TypeGroup: tx.TypeGroupOrDefault(), Version: tx.VersionOrDefault()}
}

// Handler is the capability set of one transaction type.
type Handler interface {
	// Verify re-checks the signatures of tx against its sender's wallet.
	Verify(wr *wallets.Repository, tx *transactions.Transaction) error
	// ThrowIfCannotBeApplied checks that tx can be applied to sender.
	ThrowIfCannotBeApplied(wr *wallets.Repository, tx *transactions.Transaction, sender *wallets.Wallet) error
	// Apply applies tx. On error nothing has changed.
	Apply(wr *wallets.Repository, tx *transactions.Transaction) error
	// Revert undoes Apply. On error nothing has changed.
	Revert(wr *wallets.Repository, tx *transactions.Transaction) error
	// EmitEvents publishes the type-specific notifications of an applied tx.
	EmitEvents(tx *transactions.Transaction, em events.Emitter)
}

// Env is what handlers consult besides wallets.
type Env struct {
	Config     *config.Manager
	Signatures bookkeeping.SignatureVerifier
	Log        logging.Logger

	genesis map[string]struct{}
}

// MakeEnv builds an Env for the network cfg manages.
func MakeEnv(cfg *config.Manager, sigs bookkeeping.SignatureVerifier, log logging.Logger) *Env {
	g := cfg.Genesis()
	env := &Env{Config: cfg, Signatures: sigs, Log: log, genesis: make(map[string]struct{}, len(g.Transactions))}
	for _, id := range g.TransactionIDs() {
		env.genesis[id] = struct{}{}
	}
	return env
}

// IsGenesisTransaction reports whether id belongs to the genesis block.
func (env *Env) IsGenesisTransaction(id string) bool {
	_, ok := env.genesis[id]
	return ok
}

// exempt transactions skip the fee floor and the balance check.
func (env *Env) exempt(tx *transactions.Transaction) bool {
	return env.IsGenesisTransaction(tx.ID) || env.Config.IsExceptionTransaction(tx.ID)
}

// Registry maps handler keys to handlers.
type Registry struct {
	env      *Env
	handlers map[Key]Handler
}

// MakeRegistry creates an empty registry.
func MakeRegistry(env *Env) *Registry {
	return &Registry{env: env, handlers: make(map[Key]Handler)}
}

// NewCoreRegistry returns a registry serving the core transaction types.
func NewCoreRegistry(env *Env) *Registry {
	r := MakeRegistry(env)
	b := base{env: env}
	core := func(t protocol.TxType, h Handler, versions ...uint8) {
		for _, v := range versions {
			if err := r.Register(Key{Type: t, TypeGroup: protocol.CoreTypeGroup, Version: v}, h); err != nil {
				panic(err)
			}
		}
	}
	core(protocol.TransferTx, transferHandler{b}, 1, transactions.Version2)
	core(protocol.DelegateRegistrationTx, delegateRegistrationHandler{b}, 1, transactions.Version2)
	core(protocol.VoteTx, voteHandler{b}, 1, transactions.Version2)
	core(protocol.MultiPaymentTx, multiPaymentHandler{b}, transactions.Version2)
	core(protocol.DelegateResignationTx, delegateResignationHandler{b}, transactions.Version2)
	return r
}

// Env returns the environment handlers were built with.
func (r *Registry) Env() *Env {
	return r.env
}

// Register adds h under key. Keys are registered once, at startup.
func (r *Registry) Register(key Key, h Handler) error {
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("handler for %v registered twice", key)
	}
	r.handlers[key] = h
	return nil
}

// GetActivatedHandlerForData returns the handler serving tx.
func (r *Registry) GetActivatedHandlerForData(tx *transactions.Transaction) (Handler, error) {
	key := KeyOf(tx)
	h, ok := r.handlers[key]
	if !ok {
		return nil, UnknownHandlerError{Key: key}
	}
	return h, nil
}

// Keys returns the registered keys in a stable order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.TypeGroup != b.TypeGroup {
			return a.TypeGroup < b.TypeGroup
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Version < b.Version
	})
	return keys
}
