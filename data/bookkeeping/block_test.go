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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/test/partitiontest"
)

type fixedParams BlockParams

func (p fixedParams) BlockParams(basics.Height) BlockParams { return BlockParams(p) }

type rejectSignatures struct {
	badTx string
}

func (r rejectSignatures) VerifyBlockSignature(*Block) bool { return r.badTx != "" }
func (r rejectSignatures) VerifyTransaction(tx *transactions.Transaction) bool {
	return tx.ID != r.badTx
}

func transfer(id string, amount, fee int64) transactions.Transaction {
	return transactions.Transaction{
		ID:              id,
		Version:         2,
		Type:            protocol.TransferTx,
		TypeGroup:       protocol.CoreTypeGroup,
		SenderPublicKey: "sender",
		RecipientID:     "recipient",
		Nonce:           basics.NewBigNum(1),
		Amount:          basics.NewBigNum(amount),
		Fee:             basics.NewBigNum(fee),
	}
}

func testParams() fixedParams {
	return fixedParams{MaxTransactions: 50, MaxPayload: 2097152, Reward: basics.NewBigNum(0)}
}

func TestMakeBlockSeals(t *testing.T) {
	partitiontest.PartitionTest(t)

	genesis := MakeBlock(BlockHeader{}, 0, "gen", basics.Zero, nil)
	require.True(t, genesis.IsGenesis())
	require.Equal(t, genesis.ComputeID(), genesis.ID)

	blk := MakeBlock(genesis.BlockHeader, 8, "gen", basics.Zero, []transactions.Transaction{transfer("a", 10, 1), transfer("b", 5, 2)})
	require.Equal(t, basics.Height(2), blk.Height)
	require.Equal(t, genesis.ID, blk.PreviousBlockID)
	require.Equal(t, uint32(2), blk.NumberOfTransactions)
	require.Equal(t, "15", blk.TotalAmount.String())
	require.Equal(t, "3", blk.TotalFee.String())
	require.Equal(t, []string{"a", "b"}, blk.TransactionIDs())
	require.NotEqual(t, genesis.ID, blk.ID)
}

func TestBlockIDCommitsToContents(t *testing.T) {
	partitiontest.PartitionTest(t)

	blk := MakeBlock(BlockHeader{ID: "p", Height: 1}, 8, "gen", basics.Zero, nil)
	other := blk
	other.Timestamp++
	require.NotEqual(t, blk.ComputeID(), other.ComputeID())
}

func TestBlockEncodingRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	blk := MakeBlock(BlockHeader{ID: "p", Height: 1}, 8, "gen", basics.NewBigNum(200000000), []transactions.Transaction{transfer("a", 10, 1)})
	var out Block
	require.NoError(t, protocol.Decode(protocol.Encode(&blk), &out))
	require.Equal(t, blk.ID, out.ID)
	require.Equal(t, blk.ComputeID(), out.ComputeID())
	require.Equal(t, "200000000", out.Reward.String())
	require.Equal(t, "10", out.Transactions[0].Amount.String())
}

func TestVerifyValidBlock(t *testing.T) {
	partitiontest.PartitionTest(t)

	v := MakeVerifier(testParams(), AcceptAllSignatures{})
	blk := MakeBlock(BlockHeader{ID: "p", Height: 1}, 8, "gen", basics.Zero, []transactions.Transaction{transfer("a", 10, 1)})

	res := v.Verify(&blk)
	require.True(t, res.Verified, res.Errors)
	require.False(t, res.ContainsMultiSignatures)
}

func TestVerifyCollectsFailures(t *testing.T) {
	partitiontest.PartitionTest(t)

	v := MakeVerifier(testParams(), AcceptAllSignatures{})
	blk := MakeBlock(BlockHeader{ID: "p", Height: 1}, 8, "gen", basics.NewBigNum(7), []transactions.Transaction{transfer("a", 10, 1), transfer("a", 5, 1)})
	blk.TotalFee = basics.NewBigNum(100)

	res := v.Verify(&blk)
	require.False(t, res.Verified)
	require.Contains(t, res.Errors, "Invalid block reward: 7 expected: 0")
	require.Contains(t, res.Errors, "Encountered duplicate transaction: a")
	require.Contains(t, res.Errors, "Invalid total fee")
	require.Contains(t, res.Errors, "Invalid block id")
}

func TestVerifySignatures(t *testing.T) {
	partitiontest.PartitionTest(t)

	multisig := transfer("m", 1, 1)
	multisig.Signatures = []string{"s1", "s2"}
	blk := MakeBlock(BlockHeader{ID: "p", Height: 1}, 8, "gen", basics.Zero, []transactions.Transaction{multisig})

	v := MakeVerifier(testParams(), rejectSignatures{badTx: "m"})
	res := v.Verify(&blk)
	require.False(t, res.Verified)
	require.True(t, res.ContainsMultiSignatures)
	require.Equal(t, []string{"Invalid transaction: m"}, res.Errors)

	v = MakeVerifier(testParams(), rejectSignatures{})
	require.False(t, v.VerifySignature(&blk))
}
