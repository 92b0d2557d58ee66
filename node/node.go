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

// Package node wires a ledger, the block processing pipeline and the events
// bus into a running node.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/pipeline"
	"github.com/algorand/go-dpos/logging"
)

// StatusReport is a snapshot of the node's chain.
type StatusReport struct {
	Network          string
	LastHeight       basics.Height
	LastBlockID      string
	LastStoredHeight basics.Height
	Round            ledgercore.RoundInfo
	ForkedHeight     basics.Height
	Started          bool
	Halted           bool
	Session          string
}

// DposNode owns one ledger and serializes every change to it.
type DposNode struct {
	log     logging.Logger
	rootDir string
	cfg     config.Local
	network config.Network

	events    *events.Dispatcher
	ledger    *ledger.Ledger
	processor *pipeline.Processor
	service   *BlockProcessingService

	corruptedOnce sync.Once
	corrupted     chan struct{}
}

// MakeNode opens and loads the ledger in rootDir. Nothing is processed
// until Start.
func MakeNode(log logging.Logger, rootDir string, cfg config.Local, network config.Network) (*DposNode, error) {
	node := &DposNode{
		log:       log,
		rootDir:   rootDir,
		cfg:       cfg,
		network:   network,
		events:    events.MakeDispatcher(cfg.EventsAsync, log),
		corrupted: make(chan struct{}),
	}

	ledgerDir := filepath.Join(rootDir, network.Name)
	if err := os.MkdirAll(ledgerDir, 0700); err != nil {
		return nil, fmt.Errorf("MakeNode: %w", err)
	}
	l, err := ledger.Open(log, ledgerDir, cfg, network, node.events)
	if err != nil {
		log.Errorf("Cannot open ledger in %s: %v", ledgerDir, err)
		return nil, err
	}
	if err := l.Initialize(context.Background()); err != nil {
		l.Close()
		log.Errorf("Cannot initialize ledger in %s: %v", ledgerDir, err)
		return nil, err
	}
	node.ledger = l

	var reg prometheus.Registerer = prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}
	node.processor = pipeline.MakeProcessor(l, nil, reg, log)
	node.service = MakeBlockProcessingService(node.processor, l, log, node.onCorrupted)
	return node, nil
}

// Config returns the node's local configuration.
func (node *DposNode) Config() config.Local {
	return node.cfg
}

// Ledger exposes the node's ledger. Mutations must go through the node.
func (node *DposNode) Ledger() *ledger.Ledger {
	return node.ledger
}

// Events exposes the node's event bus for subscribers.
func (node *DposNode) Events() *events.Dispatcher {
	return node.events
}

// Start starts processing blocks.
func (node *DposNode) Start() {
	node.service.Start()
	node.ledger.Chain().SetStarted(true)
	tip := node.ledger.LastBlock()
	node.log.Infof("Node started on %s at height %d (%s), session %s", node.network.Name, tip.Height, tip.ID, node.service.Session())
}

// Stop finishes the block in progress, flushes the ledger and closes it.
func (node *DposNode) Stop() {
	node.ledger.Chain().SetStarted(false)
	node.service.Close()
	node.events.WaitAsync()
	node.ledger.Close()
	node.log.Info("Node stopped")
}

// ProcessBlock hands blk to the pipeline. The result arrives on the
// returned channel.
func (node *DposNode) ProcessBlock(blk bookkeeping.Block) <-chan pipeline.Result {
	return node.service.Enqueue(blk)
}

// Rollback removes the n most recent blocks and returns the new tip.
func (node *DposNode) Rollback(ctx context.Context, n int) (bookkeeping.Block, error) {
	return node.service.Rollback(ctx, n)
}

// Corrupted is closed once a block left the ledger in a state the node
// cannot recover from. The host should stop the process.
func (node *DposNode) Corrupted() <-chan struct{} {
	return node.corrupted
}

func (node *DposNode) onCorrupted(blk bookkeeping.Block) {
	node.corruptedOnce.Do(func() {
		node.log.Errorf("Ledger corrupted while processing block %d (%s)", blk.Height, blk.ID)
		close(node.corrupted)
	})
}

// Status reports the current state of the chain.
func (node *DposNode) Status() StatusReport {
	chain := node.ledger.Chain()
	tip := chain.LastBlock()
	s := StatusReport{
		Network:          node.network.Name,
		LastHeight:       tip.Height,
		LastBlockID:      tip.ID,
		LastStoredHeight: chain.LastStoredBlockHeight(),
		Round:            ledgercore.CalculateRound(node.ledger.Params(), tip.Height),
		Started:          chain.Started(),
		Halted:           node.service.Halted(),
		Session:          node.service.Session(),
	}
	if forked, ok := chain.ForkedBlock(); ok {
		s.ForkedHeight = forked.Height
	}
	return s
}
