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

	"github.com/algorand/go-dpos/crypto"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/protocol"
)

type (
	// BlockHeader is everything in a block except its transaction bodies.
	// Amounts are arbitrary precision; no codec omitempty is used on them.
	BlockHeader struct {
		ID      string `codec:"id" json:"id"`
		Version uint8  `codec:"v" json:"version"`

		// Timestamp in seconds since the network epoch
		Timestamp int64 `codec:"ts" json:"timestamp"`

		Height          basics.Height `codec:"hgt" json:"height"`
		PreviousBlockID string        `codec:"prev" json:"previousBlock,omitempty"`

		NumberOfTransactions uint32        `codec:"ntx" json:"numberOfTransactions"`
		TotalAmount          basics.BigNum `codec:"tamt" json:"totalAmount"`
		TotalFee             basics.BigNum `codec:"tfee" json:"totalFee"`
		Reward               basics.BigNum `codec:"rwd" json:"reward"`
		PayloadLength        uint32        `codec:"plen" json:"payloadLength"`

		GeneratorPublicKey string `codec:"gen" json:"generatorPublicKey"`
		BlockSignature     string `codec:"sig" json:"blockSignature,omitempty"`
	}

	// Block is a header plus the ordered transactions it applies. Blocks are
	// treated as immutable once sealed.
	Block struct {
		BlockHeader

		Transactions []transactions.Transaction `codec:"txns" json:"transactions"`
	}
)

// blockHashRep is what a block id commits to.
type blockHashRep struct {
	Version              uint8         `codec:"v"`
	Timestamp            int64         `codec:"ts"`
	Height               basics.Height `codec:"hgt"`
	PreviousBlockID      string        `codec:"prev"`
	NumberOfTransactions uint32        `codec:"ntx"`
	TotalAmount          basics.BigNum `codec:"tamt"`
	TotalFee             basics.BigNum `codec:"tfee"`
	Reward               basics.BigNum `codec:"rwd"`
	PayloadLength        uint32        `codec:"plen"`
	GeneratorPublicKey   string        `codec:"gen"`
	TxIDs                []string      `codec:"txids"`
}

// ToBeHashed implements the crypto.Hashable interface
func (block Block) ToBeHashed() (protocol.HashID, []byte) {
	rep := blockHashRep{
		Version:              block.Version,
		Timestamp:            block.Timestamp,
		Height:               block.Height,
		PreviousBlockID:      block.PreviousBlockID,
		NumberOfTransactions: block.NumberOfTransactions,
		TotalAmount:          block.TotalAmount,
		TotalFee:             block.TotalFee,
		Reward:               block.Reward,
		PayloadLength:        block.PayloadLength,
		GeneratorPublicKey:   block.GeneratorPublicKey,
		TxIDs:                block.TransactionIDs(),
	}
	return protocol.BlockHeader, protocol.Encode(&rep)
}

// ComputeID returns the id the block's contents commit to.
func (block Block) ComputeID() string {
	return crypto.HashObj(block).String()
}

// TransactionIDs returns the ids of the block's transactions in block order.
func (block Block) TransactionIDs() []string {
	ids := make([]string, len(block.Transactions))
	for i := range block.Transactions {
		ids[i] = block.Transactions[i].ID
	}
	return ids
}

// IsGenesis reports whether block sits at the genesis height.
func (block Block) IsGenesis() bool {
	return block.Height == basics.GenesisHeight
}

// Size is the encoded size of the block in bytes.
func (block Block) Size() int {
	return len(protocol.Encode(&block))
}

// String identifies a block in logs.
func (block Block) String() string {
	return fmt.Sprintf("%d (%s)", block.Height, block.ID)
}

// MakeBlock builds a sealed block on top of prev: totals, counts and id are
// filled in from the transactions. A zero prev makes a genesis block.
func MakeBlock(prev BlockHeader, timestamp int64, generatorPublicKey string, reward basics.BigNum, txns []transactions.Transaction) Block {
	blk := Block{
		BlockHeader: BlockHeader{
			Version:            0,
			Timestamp:          timestamp,
			Height:             prev.Height + 1,
			PreviousBlockID:    prev.ID,
			Reward:             reward,
			GeneratorPublicKey: generatorPublicKey,
		},
		Transactions: txns,
	}
	blk.Seal()
	return blk
}

// Seal recomputes the derived header fields and the id.
func (block *Block) Seal() {
	amount, fee := basics.Zero, basics.Zero
	for i := range block.Transactions {
		amount = amount.Add(block.Transactions[i].TotalAmount())
		fee = fee.Add(block.Transactions[i].Fee)
	}
	block.NumberOfTransactions = uint32(len(block.Transactions))
	block.TotalAmount = amount
	block.TotalFee = fee
	block.PayloadLength = uint32(len(protocol.Encode(block.Transactions)))
	block.ID = block.ComputeID()
}
