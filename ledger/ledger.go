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

// Package ledger sequences the block state and the round state into one
// apply/revert unit and owns startup and recovery of the block store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/blockstate"
	"github.com/algorand/go-dpos/ledger/chainstate"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/handlers"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/roundstate"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/ledger/store/kvdb"
	"github.com/algorand/go-dpos/ledger/store/sqlitedb"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
)

// replayChunk is how many stored blocks are loaded at a time while the
// wallets are rebuilt on startup.
const replayChunk = 1000

// Ledger is the state of one chain: its wallets, its rounds and its blocks.
// Apply and revert calls must come from a single goroutine.
type Ledger struct {
	cfg     config.Local
	params  *config.Manager
	log     logging.Logger
	emitter events.Emitter

	store store.BlockStore
	queue *store.Queue
	chain *chainstate.State

	wallets  *wallets.Repository
	registry *handlers.Registry
	blocks   *blockstate.BlockState
	rounds   *roundstate.State

	metrics *ledgerMetrics
}

// Open creates a Ledger over the block store in dir selected by
// cfg.StoreBackend. Nothing is loaded until Initialize.
func Open(log logging.Logger, dir string, cfg config.Local, network config.Network, emitter events.Emitter) (l *Ledger, err error) {
	params, err := config.MakeManager(network)
	if err != nil {
		return nil, err
	}
	s, err := openStore(log, dir, cfg.StoreBackend)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: %w", err)
	}
	if emitter == nil {
		emitter = events.Multi(nil)
	}

	var reg prometheus.Registerer = prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}

	l = &Ledger{
		cfg:     cfg,
		params:  params,
		log:     log,
		emitter: emitter,
		store:   s,
		chain:   chainstate.MakeState(network.Genesis, cfg.MaxLastBlocks),
		wallets: wallets.MakeRepository(network.AddressVersion),
		metrics: makeLedgerMetrics(reg),
	}
	l.registry = handlers.NewCoreRegistry(handlers.MakeEnv(params, bookkeeping.AcceptAllSignatures{}, log))
	l.blocks = blockstate.MakeBlockState(l.wallets, l.registry, l.chain, log)
	l.rounds = roundstate.MakeState(params, blockSource{l}, l.wallets, l.registry, l.chain, emitter, log)
	return l, nil
}

// openStore opens the block store engine named by backend.
func openStore(log logging.Logger, dir, backend string) (store.BlockStore, error) {
	switch backend {
	case config.StoreSQLite, "":
		return sqlitedb.Open(filepath.Join(dir, config.LedgerFilenamePrefix+".sqlite"), false, log)
	case config.StorePebble, config.StoreBadger:
		return kvdb.Open(backend, filepath.Join(dir, config.LedgerFilenamePrefix+"."+backend), false, log)
	case config.StoreMemory:
		return kvdb.Open(config.StorePebble, dir, true, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Close flushes the queued blocks and closes the store.
func (l *Ledger) Close() {
	if l.queue != nil {
		l.queue.Close()
	}
	l.store.Close()
}

// Params returns the milestone manager of the chain.
func (l *Ledger) Params() *config.Manager { return l.params }

// Chain returns the chain-tip pointer.
func (l *Ledger) Chain() *chainstate.State { return l.chain }

// Wallets returns the live wallet repository.
func (l *Ledger) Wallets() *wallets.Repository { return l.wallets }

// Registry returns the transaction handlers.
func (l *Ledger) Registry() *handlers.Registry { return l.registry }

// Rounds returns the round state.
func (l *Ledger) Rounds() *roundstate.State { return l.rounds }

// Store returns the block store.
func (l *Ledger) Store() store.BlockStore { return l.store }

// Queue returns the persistence queue. It is nil before Initialize.
func (l *Ledger) Queue() *store.Queue { return l.queue }

// LastBlock returns the tip.
func (l *Ledger) LastBlock() bookkeeping.Block { return l.chain.LastBlock() }

// Initialize loads the chain from the block store. The store is seeded
// with the genesis block when empty, or first wiped when cfg.ResetDatabase
// is set. A tip block that cannot be decoded is removed, up to
// cfg.MaxStartupRetries times; past that the ledger is unrecoverable. The
// wallets are rebuilt by replaying the stored blocks, then the current round
// is restored.
func (l *Ledger) Initialize(ctx context.Context) error {
	genesis := l.params.Genesis()

	if l.cfg.ResetDatabase {
		l.log.Warnf("ledger: resetting the block store")
		if err := l.store.Reset(ctx); err != nil {
			return ledgercore.ErrUnrecoverable{Reason: "reset block store", Err: err}
		}
	}

	tip, err := l.loadLatestBlock(ctx)
	var noEntry ledgercore.ErrNoEntry
	switch {
	case errors.As(err, &noEntry):
		l.log.Infof("ledger: empty block store, saving genesis block %s", genesis.ID)
		if err := l.store.SaveBlocks(ctx, []bookkeeping.Block{genesis}); err != nil {
			return ledgercore.ErrUnrecoverable{Reason: "save genesis block", Err: err}
		}
		tip = genesis
	case err != nil:
		return err
	}

	stored, err := l.store.BlockByHeight(ctx, basics.GenesisHeight)
	if err != nil {
		return ledgercore.ErrUnrecoverable{Reason: "load genesis block", Err: err}
	}
	if stored.ID != genesis.ID {
		return ledgercore.ErrUnrecoverable{Reason: fmt.Sprintf("stored genesis block %s does not match the network genesis block %s", stored.ID, genesis.ID)}
	}

	l.chain.Reset()
	l.wallets.Reset()
	l.chain.SetLastStoredBlockHeight(tip.Height)
	if err := l.replay(ctx, tip.Height); err != nil {
		return ledgercore.ErrUnrecoverable{Reason: "replay stored blocks", Err: err}
	}
	l.queue = store.MakeQueue(l.store, tip.Height, l.cfg.BlockFlushBatch, l.log, l.chain.SetLastStoredBlockHeight)

	if err := l.RestoreCurrentRound(ctx); err != nil {
		return ledgercore.ErrUnrecoverable{Reason: "restore current round", Err: err}
	}
	l.metrics.observeTip(l.chain.LastBlock())
	l.log.Infof("ledger: loaded %d blocks, tip %s", tip.Height, tip.String())
	return nil
}

// loadLatestBlock returns the stored tip, dropping tips that cannot be
// decoded.
func (l *Ledger) loadLatestBlock(ctx context.Context) (bookkeeping.Block, error) {
	for attempt := 1; ; attempt++ {
		blk, err := l.store.LatestBlock(ctx)
		var corrupt ledgercore.ErrCorruptBlock
		if !errors.As(err, &corrupt) {
			return blk, err
		}
		if attempt > l.cfg.MaxStartupRetries || corrupt.Height <= basics.GenesisHeight {
			return bookkeeping.Block{}, ledgercore.ErrUnrecoverable{Reason: "the last stored block cannot be loaded", Err: err}
		}
		l.log.Warnf("ledger: %v, removing it (attempt %d of %d)", err, attempt, l.cfg.MaxStartupRetries)
		if err := l.store.DeleteBlocks(ctx, corrupt.Height); err != nil {
			return bookkeeping.Block{}, ledgercore.ErrUnrecoverable{Reason: fmt.Sprintf("remove corrupt block %d", corrupt.Height), Err: err}
		}
	}
}

// replay applies the stored blocks 1..tip to the wallets.
func (l *Ledger) replay(ctx context.Context, tip basics.Height) error {
	for from := basics.GenesisHeight; from <= tip; from += replayChunk {
		to := from + replayChunk - 1
		if to > tip {
			to = tip
		}
		blks, err := l.store.BlocksByHeightRange(ctx, from, to)
		if err != nil {
			return err
		}
		if len(blks) != int(to-from)+1 {
			return fmt.Errorf("expected blocks %d to %d, found %d blocks", from, to, len(blks))
		}
		for i := range blks {
			l.params.SetHeight(blks[i].Height)
			if err := l.blocks.ApplyBlock(&blks[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// RestoreCurrentRound rebuilds the round of the tip.
func (l *Ledger) RestoreCurrentRound(ctx context.Context) error {
	return l.rounds.Restore(ctx)
}

// ApplyBlock applies blk on top of the tip: missed-block detection, the
// block state, then the round state. If the round state fails, the block
// state is reverted and the tip restored before the error is returned.
// Events for the transactions and the block follow a successful apply.
func (l *Ledger) ApplyBlock(ctx context.Context, blk bookkeeping.Block) error {
	prev := l.chain.LastBlock()
	l.params.SetHeight(blk.Height)

	if err := l.rounds.DetectMissedBlocks(blk); err != nil {
		l.params.SetHeight(prev.Height)
		return fmt.Errorf("block %d (%s): missed blocks: %w", blk.Height, blk.ID, err)
	}
	if err := l.blocks.ApplyBlock(&blk); err != nil {
		l.params.SetHeight(prev.Height)
		return err
	}
	if err := l.rounds.ApplyBlock(ctx, blk); err != nil {
		if rerr := l.blocks.RevertBlock(&blk); rerr != nil {
			return fmt.Errorf("block %d (%s): round state: %w (reverting block state: %v)", blk.Height, blk.ID, err, rerr)
		}
		l.chain.SetLastBlock(prev)
		l.params.SetHeight(prev.Height)
		return fmt.Errorf("block %d (%s): round state: %w", blk.Height, blk.ID, err)
	}

	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		if h, err := l.registry.GetActivatedHandlerForData(tx); err == nil {
			h.EmitEvents(tx, l.emitter)
		}
		l.emitter.Dispatch(events.TransactionApplied, *tx)
	}
	l.emitter.Dispatch(events.BlockApplied, blk)
	l.metrics.applied(blk)
	return nil
}

// RevertBlock reverts blk, which must be the tip: the round state, then the
// block state. The predecessor becomes the tip and blk is dropped from the
// persistence queue and the store.
func (l *Ledger) RevertBlock(ctx context.Context, blk bookkeeping.Block) error {
	tip := l.chain.LastBlock()
	if tip.ID != blk.ID {
		return ledgercore.WrongBlockError{Expected: tip.ID, Got: blk.ID}
	}
	if blk.Height <= basics.GenesisHeight {
		return fmt.Errorf("the genesis block cannot be reverted")
	}

	prev, err := l.blockAt(ctx, blk.Height-1)
	if err != nil {
		return fmt.Errorf("block %d (%s): previous block: %w", blk.Height, blk.ID, err)
	}
	if err := l.rounds.RevertBlock(ctx, blk); err != nil {
		return fmt.Errorf("block %d (%s): round state: %w", blk.Height, blk.ID, err)
	}
	if err := l.blocks.RevertBlock(&blk); err != nil {
		return err
	}
	l.chain.SetLastBlock(prev)
	l.params.SetHeight(prev.Height)
	if l.queue != nil {
		if err := l.queue.Remove(ctx, blk.Height); err != nil {
			return fmt.Errorf("block %d (%s): remove from store: %w", blk.Height, blk.ID, err)
		}
	}

	for i := range blk.Transactions {
		l.emitter.Dispatch(events.TransactionReverted, blk.Transactions[i])
	}
	l.emitter.Dispatch(events.BlockReverted, blk)
	l.metrics.reverted(prev)
	return nil
}

// RemoveBlocks reverts the n most recent blocks, stopping at genesis. It
// returns the new tip.
func (l *Ledger) RemoveBlocks(ctx context.Context, n int) (bookkeeping.Block, error) {
	for i := 0; i < n; i++ {
		tip := l.chain.LastBlock()
		if tip.Height <= basics.GenesisHeight {
			break
		}
		l.log.Infof("ledger: removing block %d (%s)", tip.Height, tip.ID)
		if err := l.RevertBlock(ctx, tip); err != nil {
			return l.chain.LastBlock(), err
		}
	}
	return l.chain.LastBlock(), nil
}

// GetActiveDelegates returns the forging schedule of round ri, the round of
// the next block when ri is nil.
func (l *Ledger) GetActiveDelegates(ctx context.Context, ri *ledgercore.RoundInfo, delegates []*wallets.Wallet) ([]*wallets.Wallet, error) {
	return l.rounds.GetActiveDelegates(ctx, ri, delegates)
}

// SaveBlock queues an applied block for persistence.
func (l *Ledger) SaveBlock(blk bookkeeping.Block) error {
	if l.queue == nil {
		return fmt.Errorf("ledger is not initialized")
	}
	return l.queue.Push(blk)
}

// ForgedTransactionIDs returns the ids among ids that are already in a
// block, stored or still queued.
func (l *Ledger) ForgedTransactionIDs(ctx context.Context, ids []string) ([]string, error) {
	stored := l.chain.LastStoredBlockHeight()
	forged, err := l.store.ForgedTransactionIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(forged))
	for _, id := range forged {
		seen[id] = true
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	for _, blk := range l.chain.LastBlocksByHeight(stored+1, l.chain.LastHeight()) {
		for _, id := range blk.TransactionIDs() {
			if wanted[id] && !seen[id] {
				seen[id] = true
				forged = append(forged, id)
			}
		}
	}
	return forged, nil
}

// BlockTime returns the timestamp of the block at h, for slot arithmetic.
func (l *Ledger) BlockTime(h basics.Height) (int64, error) {
	blk, err := l.blockAt(context.Background(), h)
	if err != nil {
		return 0, err
	}
	return blk.Timestamp, nil
}

func (l *Ledger) blockAt(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	blks, err := blockSource{l}.BlocksByHeightRange(ctx, h, h)
	if err != nil {
		return bookkeeping.Block{}, err
	}
	if len(blks) != 1 {
		return bookkeeping.Block{}, ledgercore.ErrNoEntry{Height: h}
	}
	return blks[0], nil
}

// blockSource serves the round state: recent blocks from the chain cache,
// the rest from the store and the persistence queue.
type blockSource struct {
	l *Ledger
}

func (bs blockSource) BlocksByHeightRange(ctx context.Context, from, to basics.Height) ([]bookkeeping.Block, error) {
	if to < from {
		return nil, nil
	}
	want := int(to-from) + 1
	if cached := bs.l.chain.LastBlocksByHeight(from, to); len(cached) == want {
		return cached, nil
	}

	blks, err := bs.l.store.BlocksByHeightRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(blks) == want || bs.l.queue == nil {
		return blks, nil
	}
	next := from + basics.Height(len(blks))
	for _, blk := range bs.l.queue.Pending() {
		if blk.Height == next && next <= to {
			blks = append(blks, blk)
			next++
		}
	}
	return blks, nil
}

func (bs blockSource) SaveRound(ctx context.Context, delegates []store.RoundDelegate) error {
	return bs.l.store.SaveRound(ctx, delegates)
}

func (bs blockSource) GetRound(ctx context.Context, round uint64) ([]store.RoundDelegate, error) {
	return bs.l.store.GetRound(ctx, round)
}

func (bs blockSource) DeleteRound(ctx context.Context, round uint64) error {
	return bs.l.store.DeleteRound(ctx, round)
}
