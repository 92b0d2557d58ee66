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

package gen

import (
	"fmt"
	"time"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/crypto"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/data/transactions"
	"github.com/algorand/go-dpos/protocol"
)

// Epoch is the network epoch of generated networks.
var Epoch = time.Date(2017, time.March, 21, 13, 0, 0, 0, time.UTC)

// defaultStaticFees are the minimum fees of generated networks, in base units.
var defaultStaticFees = map[string]basics.BigNum{
	protocol.TransferTx.String():             basics.NewBigNum(10000000),
	protocol.DelegateRegistrationTx.String(): basics.NewBigNum(2500000000),
	protocol.VoteTx.String():                 basics.NewBigNum(100000000),
	protocol.MultiPaymentTx.String():         basics.NewBigNum(10000000),
	protocol.DelegateResignationTx.String():  basics.NewBigNum(2500000000),
}

// Wallet is a generated genesis wallet.
type Wallet struct {
	Name      string
	PublicKey string
	Address   string
	Delegate  bool
}

// PublicKey derives the deterministic public key of a named wallet. Keys
// are compressed-point shaped hex strings; nothing signs with them.
func PublicKey(name string) string {
	d := crypto.Hash([]byte("go-dpos/gen/" + name))
	return "03" + d.String()
}

// GenesisPublicKey is the key of the wallet funding the genesis allocation.
func GenesisPublicKey() string {
	return PublicKey("genesis")
}

// Milestones returns the milestones of gd.
func (gd GenesisData) Milestones() config.Milestones {
	base := config.Milestone{
		Height:          basics.GenesisHeight,
		BlockTime:       gd.BlockTime,
		Reward:          gd.Reward,
		ActiveDelegates: gd.ActiveDelegates,
		Block: config.BlockLimits{
			MaxTransactions: 150,
			MaxPayload:      2097152,
		},
		Fees: config.Fees{StaticFees: defaultStaticFees},
	}
	if gd.RewardHeight <= basics.GenesisHeight {
		return config.Milestones{base}
	}
	rewarded := base
	rewarded.Height = gd.RewardHeight
	base.Reward = basics.Zero
	return config.Milestones{base, rewarded}
}

// GenerateNetwork builds the network description of gd. The genesis block
// funds every wallet, registers the delegates and casts the votes.
func GenerateNetwork(gd GenesisData) (config.Network, []Wallet, error) {
	if gd.ActiveDelegates <= 0 {
		return config.Network{}, nil, fmt.Errorf("gen: ActiveDelegates must be positive")
	}

	genesisKey := GenesisPublicKey()
	wallets := make([]Wallet, len(gd.Wallets))
	byName := make(map[string]Wallet, len(gd.Wallets))
	for i, wd := range gd.Wallets {
		if _, dup := byName[wd.Name]; dup {
			return config.Network{}, nil, fmt.Errorf("gen: duplicate wallet name %s", wd.Name)
		}
		pk := PublicKey(wd.Name)
		wallets[i] = Wallet{
			Name:      wd.Name,
			PublicKey: pk,
			Address:   crypto.AddressFromPublicKey(pk, gd.AddressVersion),
			Delegate:  wd.Delegate,
		}
		byName[wd.Name] = wallets[i]
	}

	var txns []transactions.Transaction
	nonces := make(map[string]int64)
	add := func(tx transactions.Transaction) {
		nonces[tx.SenderPublicKey]++
		tx.Version = transactions.Version2
		tx.TypeGroup = protocol.CoreTypeGroup
		tx.Nonce = basics.NewBigNum(nonces[tx.SenderPublicKey])
		tx.Seal()
		txns = append(txns, tx)
	}

	for i, wd := range gd.Wallets {
		add(transactions.Transaction{
			Type:            protocol.TransferTx,
			SenderPublicKey: genesisKey,
			RecipientID:     wallets[i].Address,
			Amount:          wd.Stake,
		})
	}
	for i, wd := range gd.Wallets {
		if !wd.Delegate {
			continue
		}
		add(transactions.Transaction{
			Type:            protocol.DelegateRegistrationTx,
			SenderPublicKey: wallets[i].PublicKey,
			Asset:           &transactions.Asset{Delegate: &transactions.DelegateAsset{Username: wd.Name}},
		})
	}
	for i, wd := range gd.Wallets {
		vote := wd.Vote
		if vote == "" && wd.Delegate {
			vote = wd.Name
		}
		if vote == "" {
			continue
		}
		delegate, ok := byName[vote]
		if !ok || !delegate.Delegate {
			return config.Network{}, nil, fmt.Errorf("gen: wallet %s votes for unknown delegate %s", wd.Name, vote)
		}
		add(transactions.Transaction{
			Type:            protocol.VoteTx,
			SenderPublicKey: wallets[i].PublicKey,
			Asset:           &transactions.Asset{Votes: []string{transactions.Vote{DelegatePublicKey: delegate.PublicKey}.String()}},
		})
	}

	genesis := bookkeeping.MakeBlock(bookkeeping.BlockHeader{}, 0, genesisKey, basics.Zero, txns)
	n := config.Network{
		Name:           gd.NetworkName,
		Epoch:          Epoch,
		AddressVersion: gd.AddressVersion,
		Genesis:        genesis,
		Milestones:     gd.Milestones(),
	}
	if err := n.Validate(); err != nil {
		return config.Network{}, nil, err
	}
	return n, wallets, nil
}
