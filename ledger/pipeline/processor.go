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

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/chainstate"
	"github.com/algorand/go-dpos/ledger/handlers"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/slots"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
)

// Ledger is the chain a Processor extends. *ledger.Ledger implements it.
type Ledger interface {
	Params() *config.Manager
	Chain() *chainstate.State
	Wallets() *wallets.Repository
	Registry() *handlers.Registry
	LastBlock() bookkeeping.Block

	ApplyBlock(ctx context.Context, blk bookkeeping.Block) error
	RevertBlock(ctx context.Context, blk bookkeeping.Block) error
	SaveBlock(blk bookkeeping.Block) error

	GetActiveDelegates(ctx context.Context, ri *ledgercore.RoundInfo, delegates []*wallets.Wallet) ([]*wallets.Wallet, error)
	ForgedTransactionIDs(ctx context.Context, ids []string) ([]string, error)
	BlockTime(h basics.Height) (int64, error)
}

// Pool holds unconfirmed transactions. Transactions of accepted or already
// forged blocks are evicted from it.
type Pool interface {
	RemoveTransactionsByID(ids []string)
}

// NonceOrderError reports a transaction whose nonce does not continue its
// sender's sequence within a block.
type NonceOrderError struct {
	Sender   string
	Expected basics.BigNum
	Got      basics.BigNum
}

func (err NonceOrderError) Error() string {
	return fmt.Sprintf("invalid nonce order for sender %s: expected %s, got %s", err.Sender, err.Expected, err.Got)
}

type noPool struct{}

func (noPool) RemoveTransactionsByID([]string) {}

// Processor runs the checks a candidate block goes through and hands it to
// the handler of the first failing check, or to the accept handler.
type Processor struct {
	ledger   Ledger
	pool     Pool
	verifier *bookkeeping.Verifier
	log      logging.Logger
	metrics  *processorMetrics

	verificationFailed VerificationFailedHandler
	incompatible       IncompatibleTransactionsHandler
	nonceOutOfOrder    NonceOutOfOrderHandler
	invalidGenerator   InvalidGeneratorHandler
	alreadyForged      AlreadyForgedHandler
	accept             AcceptBlockHandler
	exception          ExceptionHandler
}

// MakeProcessor creates a Processor over l. pool may be nil. Metrics are
// registered with reg, or kept private when reg is nil.
func MakeProcessor(l Ledger, pool Pool, reg prometheus.Registerer, log logging.Logger) *Processor {
	if pool == nil {
		pool = noPool{}
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	env := l.Registry().Env()
	p := &Processor{
		ledger:   l,
		pool:     pool,
		verifier: bookkeeping.MakeVerifier(l.Params(), env.Signatures),
		log:      log,
		metrics:  makeProcessorMetrics(reg),
	}
	p.verificationFailed = VerificationFailedHandler{log: log}
	p.incompatible = IncompatibleTransactionsHandler{log: log}
	p.nonceOutOfOrder = NonceOutOfOrderHandler{log: log}
	p.invalidGenerator = InvalidGeneratorHandler{log: log}
	p.alreadyForged = AlreadyForgedHandler{pool: pool, log: log}
	p.accept = AcceptBlockHandler{
		ledger: l,
		pool:   pool,
		log:    log,
		revert: RevertBlockHandler{ledger: l, log: log},
	}
	p.exception = ExceptionHandler{ledger: l, accept: p.accept, forged: p.alreadyForged, log: log}
	return p
}

// Process runs blk through the pipeline and returns its outcome.
func (p *Processor) Process(ctx context.Context, blk bookkeeping.Block) Result {
	start := time.Now()
	res := p.process(ctx, &blk)
	p.metrics.observe(res, time.Since(start))
	return res
}

func (p *Processor) process(ctx context.Context, blk *bookkeeping.Block) Result {
	if p.ledger.Params().IsExceptionBlock(blk.ID) {
		return p.exception.Execute(ctx, blk)
	}

	if errs := p.verify(blk); len(errs) > 0 {
		return p.verificationFailed.Execute(ctx, blk, errs)
	}
	if !p.compatibleTransactions(blk) {
		return p.incompatible.Execute(ctx, blk)
	}
	if err := p.checkNonces(blk); err != nil {
		return p.nonceOutOfOrder.Execute(ctx, blk, err)
	}

	tip := p.ledger.LastBlock()
	lookup, err := slots.BuildBlockTimeLookup(p.ledger.Params(), blk.Height, p.ledger.BlockTime)
	if err != nil {
		p.log.Debugf("pipeline: block %d (%s): %v", blk.Height, blk.ID, err)
	}
	validGenerator := lookup != nil && p.validateGenerator(ctx, lookup, blk)
	chained := false
	if lookup != nil {
		chained, err = slots.IsBlockChained(p.ledger.Params(), lookup, tip.BlockHeader, blk.BlockHeader)
		if err != nil {
			p.log.Debugf("pipeline: block %d (%s): %v", blk.Height, blk.ID, err)
			chained = false
		}
	}
	if !chained {
		h := UnchainedHandler{ledger: p.ledger, log: p.log, isValidGenerator: validGenerator}
		return h.Execute(ctx, blk)
	}
	if !validGenerator {
		return p.invalidGenerator.Execute(ctx, blk)
	}

	forged, err := p.ledger.ForgedTransactionIDs(ctx, blk.TransactionIDs())
	if err != nil {
		p.log.Warnf("pipeline: block %d (%s): looking up forged transactions: %v", blk.Height, blk.ID, err)
		return Rejected
	}
	if len(forged) > 0 {
		return p.alreadyForged.Execute(ctx, blk, forged)
	}

	return p.accept.Execute(ctx, blk)
}

// verify runs the structural checks and, for blocks carrying
// multi-signature transactions, re-verifies those against the wallets.
func (p *Processor) verify(blk *bookkeeping.Block) (errs []string) {
	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, fmt.Sprintf("verification panicked: %v", r))
		}
	}()

	res := p.verifier.Verify(blk)
	errs = res.Errors
	if !res.ContainsMultiSignatures {
		return errs
	}

	wr := p.ledger.Wallets()
	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		h, err := p.ledger.Registry().GetActivatedHandlerForData(tx)
		if err == nil {
			err = h.Verify(wr, tx)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("Invalid transaction: %s: %v", tx.ID, err))
		}
	}
	if !p.verifier.VerifySignature(blk) {
		errs = append(errs, "Failed to verify block signature")
	}
	return errs
}

// compatibleTransactions reports whether all transactions share a version.
func (p *Processor) compatibleTransactions(blk *bookkeeping.Block) bool {
	for i := 1; i < len(blk.Transactions); i++ {
		if blk.Transactions[i].VersionOrDefault() != blk.Transactions[0].VersionOrDefault() {
			return false
		}
	}
	return true
}

// checkNonces requires the nonces of every sender to continue its wallet
// nonce without gaps. Legacy transactions end the check.
func (p *Processor) checkNonces(blk *bookkeeping.Block) error {
	wr := p.ledger.Wallets()
	next := make(map[string]basics.BigNum)
	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		if !tx.HasNonce() {
			break
		}
		n, ok := next[tx.SenderPublicKey]
		if !ok {
			n = wr.GetNonce(tx.SenderPublicKey)
		}
		n = n.Add(basics.NewBigNum(1))
		if !tx.Nonce.Equal(n) {
			return NonceOrderError{Sender: tx.SenderPublicKey, Expected: n, Got: tx.Nonce}
		}
		next[tx.SenderPublicKey] = n
	}
	return nil
}

// validateGenerator checks that blk was forged by the delegate scheduled
// for its slot. A slot without a scheduled delegate passes any registered
// delegate.
func (p *Processor) validateGenerator(ctx context.Context, lookup slots.BlockTimeLookup, blk *bookkeeping.Block) bool {
	params := p.ledger.Params()
	ri := ledgercore.CalculateRound(params, blk.Height)
	delegates, err := p.ledger.GetActiveDelegates(ctx, &ri, nil)
	if err != nil {
		p.log.Warnf("pipeline: block %d (%s): active delegates of round %d: %v", blk.Height, blk.ID, ri.Round, err)
		return false
	}
	info, err := slots.CalculateForgingInfo(params, lookup, blk.Timestamp, blk.Height)
	if err != nil {
		p.log.Warnf("pipeline: block %d (%s): forging info: %v", blk.Height, blk.ID, err)
		return false
	}

	if info.CurrentForger >= len(delegates) || delegates[info.CurrentForger] == nil {
		wr := p.ledger.Wallets()
		if !wr.HasByPublicKey(blk.GeneratorPublicKey) || !wr.FindByPublicKey(blk.GeneratorPublicKey).IsDelegate() {
			p.log.Warnf("Generator %s of block %d is not a registered delegate", blk.GeneratorPublicKey, blk.Height)
			return false
		}
		p.log.Debugf("Could not decide if delegate %s is allowed to forge block %d", blk.GeneratorPublicKey, blk.Height)
		return true
	}
	forger := delegates[info.CurrentForger]
	if forger.PublicKey != blk.GeneratorPublicKey {
		name, _ := wallets.GetAttribute(forger, wallets.DelegateUsername)
		p.log.Warnf("Delegate %s not allowed to forge in this slot at height %d, should be %s (%s)",
			blk.GeneratorPublicKey, blk.Height, name, forger.PublicKey)
		return false
	}
	p.log.Debugf("Delegate %s allowed to forge block %d", blk.GeneratorPublicKey, blk.Height)
	return true
}
