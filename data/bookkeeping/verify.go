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

package bookkeeping

import (
	"fmt"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
)

// BlockParams are the per-height limits a block is checked against.
type BlockParams struct {
	Version         uint8
	MaxTransactions int
	MaxPayload      int
	Reward          basics.BigNum
}

// ParamsSource resolves the limits in force at a height.
type ParamsSource interface {
	BlockParams(h basics.Height) BlockParams
}

// SignatureVerifier checks the cryptographic signatures of blocks and
// transactions. Key management and curve details live behind it.
type SignatureVerifier interface {
	VerifyBlockSignature(blk *Block) bool
	VerifyTransaction(tx *transactions.Transaction) bool
}

// Verification is the result of structurally verifying one block.
type Verification struct {
	Verified                bool
	Errors                  []string
	ContainsMultiSignatures bool
}

// Verifier performs the block checks that do not depend on chain state.
type Verifier struct {
	params     ParamsSource
	signatures SignatureVerifier
}

// MakeVerifier creates a Verifier.
func MakeVerifier(params ParamsSource, signatures SignatureVerifier) *Verifier {
	return &Verifier{params: params, signatures: signatures}
}

// VerifySignature re-checks the block signature alone.
func (v *Verifier) VerifySignature(blk *Block) bool {
	return v.signatures.VerifyBlockSignature(blk)
}

// VerifyTransaction re-checks one transaction signature.
func (v *Verifier) VerifyTransaction(tx *transactions.Transaction) bool {
	return v.signatures.VerifyTransaction(tx)
}

// Verify runs every structural check and collects all failures.
func (v *Verifier) Verify(blk *Block) Verification {
	var res Verification
	fail := func(format string, args ...interface{}) {
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	params := v.params.BlockParams(blk.Height)

	if blk.Version != params.Version {
		fail("Invalid block version")
	}
	if blk.Height == 0 {
		fail("Invalid block height")
	}
	if !blk.IsGenesis() {
		if blk.PreviousBlockID == "" {
			fail("Invalid previous block")
		}
		if !blk.Reward.Equal(params.Reward) {
			fail("Invalid block reward: %s expected: %s", blk.Reward, params.Reward)
		}
	}
	if !v.signatures.VerifyBlockSignature(blk) {
		fail("Failed to verify block signature")
	}
	if int(blk.NumberOfTransactions) != len(blk.Transactions) {
		fail("Invalid number of transactions")
	}
	if params.MaxTransactions > 0 && len(blk.Transactions) > params.MaxTransactions {
		fail("Transactions length is too high")
	}
	if params.MaxPayload > 0 && int(blk.PayloadLength) > params.MaxPayload {
		fail("Payload is too large")
	}

	amount, fee := basics.Zero, basics.Zero
	seen := make(map[string]struct{}, len(blk.Transactions))
	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		if _, dup := seen[tx.ID]; dup {
			fail("Encountered duplicate transaction: %s", tx.ID)
		}
		seen[tx.ID] = struct{}{}

		if tx.HasMultiSignature() {
			res.ContainsMultiSignatures = true
		}
		if !v.signatures.VerifyTransaction(tx) {
			fail("Invalid transaction: %s", tx.ID)
		}
		amount = amount.Add(tx.TotalAmount())
		fee = fee.Add(tx.Fee)
	}
	if !amount.Equal(blk.TotalAmount) {
		fail("Invalid total amount")
	}
	if !fee.Equal(blk.TotalFee) {
		fail("Invalid total fee")
	}
	if blk.ID != blk.ComputeID() {
		fail("Invalid block id")
	}

	res.Verified = len(res.Errors) == 0
	return res
}

// AcceptAllSignatures is a SignatureVerifier for networks whose blocks are
// authenticated out of band, and for tests.
type AcceptAllSignatures struct{}

// VerifyBlockSignature implements SignatureVerifier.
func (AcceptAllSignatures) VerifyBlockSignature(*Block) bool { return true }

// VerifyTransaction implements SignatureVerifier.
func (AcceptAllSignatures) VerifyTransaction(*transactions.Transaction) bool { return true }
