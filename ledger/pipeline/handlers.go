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
	"strings"

	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/logging"
)

// VerificationFailedHandler rejects blocks that failed verification.
type VerificationFailedHandler struct {
	log logging.Logger
}

// Execute logs the verification errors of blk.
func (h VerificationFailedHandler) Execute(_ context.Context, blk *bookkeeping.Block, errs []string) Result {
	h.log.Warnf("Block %d (%s) disregarded because verification failed: %s", blk.Height, blk.ID, strings.Join(errs, "; "))
	return Rejected
}

// IncompatibleTransactionsHandler rejects blocks mixing transaction versions.
type IncompatibleTransactionsHandler struct {
	log logging.Logger
}

// Execute logs the rejection of blk.
func (h IncompatibleTransactionsHandler) Execute(_ context.Context, blk *bookkeeping.Block) Result {
	h.log.Warnf("Block %d (%s) disregarded because it contains incompatible transactions", blk.Height, blk.ID)
	return Rejected
}

// NonceOutOfOrderHandler rejects blocks whose nonces do not follow the
// senders' wallets.
type NonceOutOfOrderHandler struct {
	log logging.Logger
}

// Execute logs the offending nonce.
func (h NonceOutOfOrderHandler) Execute(_ context.Context, blk *bookkeeping.Block, err error) Result {
	h.log.Warnf("Block %d (%s) disregarded: %v", blk.Height, blk.ID, err)
	return Rejected
}

// InvalidGeneratorHandler rejects blocks forged out of turn.
type InvalidGeneratorHandler struct {
	log logging.Logger
}

// Execute logs the rejection of blk.
func (h InvalidGeneratorHandler) Execute(_ context.Context, blk *bookkeeping.Block) Result {
	h.log.Warnf("Block %d (%s) disregarded because the generator %s is not allowed to forge it", blk.Height, blk.ID, blk.GeneratorPublicKey)
	return Rejected
}

// AlreadyForgedHandler rejects blocks replaying forged transactions. The
// forged transactions are evicted from the pool.
type AlreadyForgedHandler struct {
	pool Pool
	log  logging.Logger
}

// Execute evicts forged from the pool.
func (h AlreadyForgedHandler) Execute(_ context.Context, blk *bookkeeping.Block, forged []string) Result {
	h.log.Warnf("Block %d (%s) disregarded because it contains already forged transactions: %s", blk.Height, blk.ID, strings.Join(forged, ", "))
	h.pool.RemoveTransactionsByID(forged)
	return Rejected
}

type unchainedStatus int

const (
	notReadyToAcceptNewHeight unchainedStatus = iota
	alreadyInBlockchain
	equalToLastBlock
	invalidTimestamp
	doubleForging
	generatorMismatch
)

var unchainedReasons = [...]string{
	notReadyToAcceptNewHeight: "it is not the next height",
	alreadyInBlockchain:       "its height is already in the chain",
	equalToLastBlock:          "it is the last block",
	invalidTimestamp:          "its timestamp is not after the last block",
	doubleForging:             "it forks the chain",
	generatorMismatch:         "it forks the chain and its generator is not scheduled",
}

// UnchainedHandler deals with blocks that do not extend the tip. Blocks
// from a scheduled forger may still be relayed.
type UnchainedHandler struct {
	ledger           Ledger
	log              logging.Logger
	isValidGenerator bool
}

func (h UnchainedHandler) classify(tip, blk *bookkeeping.Block) unchainedStatus {
	switch {
	case blk.Height > tip.Height+1:
		return notReadyToAcceptNewHeight
	case blk.Height < tip.Height:
		return alreadyInBlockchain
	case blk.Height == tip.Height && blk.ID == tip.ID:
		return equalToLastBlock
	case blk.Timestamp < tip.Timestamp:
		return invalidTimestamp
	case h.isValidGenerator:
		return doubleForging
	default:
		return generatorMismatch
	}
}

// Execute classifies blk against the tip. A scheduled competitor of the
// tip marks the chain as forked and asks for a rollback.
func (h UnchainedHandler) Execute(_ context.Context, blk *bookkeeping.Block) Result {
	tip := h.ledger.LastBlock()
	status := h.classify(&tip, blk)
	h.log.Infof("Block %d (%s) disregarded because %s (tip %d %s)", blk.Height, blk.ID, unchainedReasons[status], tip.Height, tip.ID)

	switch {
	case status == doubleForging && blk.Height == tip.Height:
		h.log.Warnf("Detected double forging at height %d by %s: %s and %s", blk.Height, blk.GeneratorPublicKey, tip.ID, blk.ID)
		h.ledger.Chain().SetForkedBlock(blk.BlockHeader)
		return Rollback
	case h.isValidGenerator:
		return DiscardedButCanBeBroadcasted
	default:
		return Rejected
	}
}

// AcceptBlockHandler commits a block that passed every check.
type AcceptBlockHandler struct {
	ledger Ledger
	pool   Pool
	log    logging.Logger
	revert RevertBlockHandler
}

// Execute applies blk and queues it for persistence. If blk cannot be
// committed after it reached the tip, it is reverted again.
func (h AcceptBlockHandler) Execute(ctx context.Context, blk *bookkeeping.Block) Result {
	chain := h.ledger.Chain()

	err := h.ledger.ApplyBlock(ctx, *blk)
	if err == nil {
		err = h.ledger.SaveBlock(*blk)
	}
	if err != nil {
		h.log.Warnf("Refused new block %d (%s): %v", blk.Height, blk.ID, err)
		chain.ResetLastDownloadedBlock()

		tip := h.ledger.LastBlock()
		if tip.Height != blk.Height || tip.ID != blk.ID {
			return Rejected
		}
		if h.revert.Execute(ctx, blk) == Corrupted {
			return Corrupted
		}
		return Rejected
	}

	if forked, ok := chain.ForkedBlock(); ok && forked.Height == blk.Height {
		chain.ClearForkedBlock()
	}
	if blk.Height > chain.LastDownloadedBlock().Height {
		chain.SetLastDownloadedBlock(blk.BlockHeader)
	}
	h.pool.RemoveTransactionsByID(blk.TransactionIDs())
	h.log.Debugf("Accepted block %d (%s) with %d transactions", blk.Height, blk.ID, len(blk.Transactions))
	return Accepted
}

// RevertBlockHandler undoes a block that reached the tip but could not be
// committed.
type RevertBlockHandler struct {
	ledger Ledger
	log    logging.Logger
}

// Execute reverts blk. Failing to do so leaves the ledger corrupted.
func (h RevertBlockHandler) Execute(ctx context.Context, blk *bookkeeping.Block) Result {
	if err := h.ledger.RevertBlock(ctx, *blk); err != nil {
		h.log.Errorf("Failed to revert block %d (%s): %v", blk.Height, blk.ID, err)
		return Corrupted
	}
	h.log.Infof("Reverted block %d (%s)", blk.Height, blk.ID)
	return Reverted
}

// ExceptionHandler force-accepts the network's hard-coded exception blocks.
// Only the height and replay checks apply to them.
type ExceptionHandler struct {
	ledger Ledger
	accept AcceptBlockHandler
	forged AlreadyForgedHandler
	log    logging.Logger
}

// Execute accepts blk if it is the next block and not forged yet.
func (h ExceptionHandler) Execute(ctx context.Context, blk *bookkeeping.Block) Result {
	tip := h.ledger.LastBlock()
	if blk.Height <= tip.Height {
		h.log.Infof("Exception block %d (%s) is already in the chain", blk.Height, blk.ID)
		return Rejected
	}
	if blk.Height != tip.Height+1 {
		h.log.Infof("Exception block %d (%s) disregarded because the tip is %d", blk.Height, blk.ID, tip.Height)
		return Rejected
	}

	forged, err := h.ledger.ForgedTransactionIDs(ctx, blk.TransactionIDs())
	if err != nil {
		h.log.Warnf("Exception block %d (%s): looking up forged transactions: %v", blk.Height, blk.ID, err)
		return Rejected
	}
	if len(forged) > 0 {
		return h.forged.Execute(ctx, blk, forged)
	}

	h.log.Warnf("Block %d (%s) forcibly accepted", blk.Height, blk.ID)
	return h.accept.Execute(ctx, blk)
}
