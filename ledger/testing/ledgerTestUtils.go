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

package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/gen"
	"github.com/algorand/go-dpos/ledger"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/slots"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
)

// Stake is the balance of every generated genesis wallet.
const Stake = 1000000000000

// Network generates a devnet with delegates self-voting delegates and the
// given plain wallets, each holding Stake. Wallets are returned by name.
func Network(t testing.TB, delegates int, plain ...string) (config.Network, map[string]gen.Wallet) {
	gd := gen.DevnetGenesis(delegates, basics.NewBigNum(Stake))
	for _, name := range plain {
		gd.Wallets = append(gd.Wallets, gen.WalletData{Name: name, Stake: basics.NewBigNum(Stake)})
	}
	n, ws, err := gen.GenerateNetwork(gd)
	require.NoError(t, err)
	byName := make(map[string]gen.Wallet, len(ws))
	for _, w := range ws {
		byName[w.Name] = w
	}
	return n, byName
}

// LocalConfig returns the defaults with an in-memory store, a flush on
// every block and metrics kept out of the default registry.
func LocalConfig() config.Local {
	cfg := config.GetDefaultLocal()
	cfg.StoreBackend = config.StoreMemory
	cfg.BlockFlushBatch = 1
	cfg.MetricsEnabled = false
	return cfg
}

// OpenLedger opens and initializes a ledger in a temporary directory. It is
// closed when the test ends.
func OpenLedger(t testing.TB, n config.Network, cfg config.Local, em events.Emitter) *ledger.Ledger {
	l, err := ledger.Open(logging.TestingLog(t), t.TempDir(), cfg, n, em)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	require.NoError(t, l.Initialize(context.Background()))
	return l
}

// NextBlock forges the block after the tip, skip slots later, signed by the
// delegate scheduled for that slot.
func NextBlock(t testing.TB, l *ledger.Ledger, skip int, reward int64, txns ...transactions.Transaction) bookkeeping.Block {
	prev := l.LastBlock()
	height := prev.Height + 1
	params := l.Params()
	ts := prev.Timestamp + params.Milestone(height).BlockTime*int64(skip+1)

	lookup, err := slots.BuildBlockTimeLookup(params, height, l.BlockTime)
	require.NoError(t, err)
	info, err := slots.CalculateForgingInfo(params, lookup, ts, height)
	require.NoError(t, err)
	ri := ledgercore.CalculateRound(params, height)
	forging, err := l.GetActiveDelegates(context.Background(), &ri, nil)
	require.NoError(t, err)

	return NextBlockBy(l, forging[info.CurrentForger].PublicKey, ts, reward, txns...)
}

// NextBlockBy builds the block after the tip with an explicit generator
// and timestamp.
func NextBlockBy(l *ledger.Ledger, generator string, ts int64, reward int64, txns ...transactions.Transaction) bookkeeping.Block {
	for i := range txns {
		txns[i].Seal()
	}
	return bookkeeping.MakeBlock(l.LastBlock().BlockHeader, ts, generator, basics.NewBigNum(reward), txns)
}

// Transfer builds a transfer from sender with the next nonce. offset shifts
// the nonce for several transactions of one sender in a block.
func Transfer(l *ledger.Ledger, sender gen.Wallet, recipient string, amount int64, offset int64) transactions.Transaction {
	fee, _ := l.Params().Current().StaticFee(protocol.TransferTx.String())
	return transactions.Transaction{
		Version:         transactions.Version2,
		Type:            protocol.TransferTx,
		TypeGroup:       protocol.CoreTypeGroup,
		SenderPublicKey: sender.PublicKey,
		RecipientID:     recipient,
		Nonce:           l.Wallets().GetNonce(sender.PublicKey).Add(basics.NewBigNum(1 + offset)),
		Amount:          basics.NewBigNum(amount),
		Fee:             fee,
	}
}

// Vote builds a vote of sender for delegatePublicKey with the next nonce.
func Vote(l *ledger.Ledger, sender gen.Wallet, delegatePublicKey string, offset int64) transactions.Transaction {
	fee, _ := l.Params().Current().StaticFee(protocol.VoteTx.String())
	return transactions.Transaction{
		Version:         transactions.Version2,
		Type:            protocol.VoteTx,
		TypeGroup:       protocol.CoreTypeGroup,
		SenderPublicKey: sender.PublicKey,
		Nonce:           l.Wallets().GetNonce(sender.PublicKey).Add(basics.NewBigNum(1 + offset)),
		Fee:             fee,
		Asset:           &transactions.Asset{Votes: []string{transactions.Vote{DelegatePublicKey: delegatePublicKey}.String()}},
	}
}

// ApplyNext forges, applies and queues the next block.
func ApplyNext(t testing.TB, l *ledger.Ledger, txns ...transactions.Transaction) bookkeeping.Block {
	blk := NextBlock(t, l, 0, 0, txns...)
	require.NoError(t, l.ApplyBlock(context.Background(), blk))
	require.NoError(t, l.SaveBlock(blk))
	return blk
}
