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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/crypto"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/test/partitiontest"
	"github.com/algorand/go-dpos/util/codecs"
)

func TestGenerateDevnet(t *testing.T) {
	partitiontest.PartitionTest(t)

	gd := DevnetGenesis(7, basics.NewBigNum(1000))
	n, wallets, err := GenerateNetwork(gd)
	require.NoError(t, err)
	require.Len(t, wallets, 7)

	// one transfer, one registration and one vote per delegate
	require.Len(t, n.Genesis.Transactions, 21)
	require.True(t, n.Genesis.IsGenesis())
	require.Equal(t, n.Genesis.ComputeID(), n.Genesis.ID)
	require.Equal(t, "7000", n.Genesis.TotalAmount.String())

	for _, tx := range n.Genesis.Transactions {
		require.Equal(t, tx.ComputeID(), tx.ID)
		require.True(t, tx.HasNonce())
	}
	for _, w := range wallets {
		version, err := crypto.DecodeAddress(w.Address)
		require.NoError(t, err)
		require.Equal(t, gd.AddressVersion, version)
	}

	first := n.Genesis.Transactions[7]
	require.Equal(t, protocol.DelegateRegistrationTx, first.Type)
	require.Equal(t, "genesis_1", first.Asset.Delegate.Username)
	vote := n.Genesis.Transactions[14]
	require.Equal(t, []string{"+" + wallets[0].PublicKey}, vote.Votes())
	require.Equal(t, "2", vote.Nonce.String())
}

func TestGenerateRejectsUnknownVote(t *testing.T) {
	partitiontest.PartitionTest(t)

	gd := DevnetGenesis(2, basics.NewBigNum(10))
	gd.Wallets = append(gd.Wallets, WalletData{Name: "voter", Stake: basics.NewBigNum(5), Vote: "nobody"})
	_, _, err := GenerateNetwork(gd)
	require.Error(t, err)
}

func TestRewardHeightSplitsMilestones(t *testing.T) {
	partitiontest.PartitionTest(t)

	gd := DevnetGenesis(5, basics.NewBigNum(10))
	gd.Reward = basics.NewBigNum(200000000)
	gd.RewardHeight = 11
	ms := gd.Milestones()
	require.Len(t, ms, 2)
	require.True(t, ms[0].Reward.IsZero())
	require.Equal(t, basics.Height(11), ms[1].Height)
	require.NoError(t, ms.Validate())

	fee, ok := ms[0].StaticFee(protocol.VoteTx.String())
	require.True(t, ok)
	require.Equal(t, "100000000", fee.String())
}

func TestLoadGenesisData(t *testing.T) {
	partitiontest.PartitionTest(t)

	file := filepath.Join(t.TempDir(), "genesis.json")
	gd := DevnetGenesis(3, basics.NewBigNum(42))
	gd.NetworkName = "testnet"
	require.NoError(t, codecs.SaveObjectToFile(file, gd, true))

	loaded, err := LoadGenesisData(file)
	require.NoError(t, err)
	require.Equal(t, "testnet", loaded.NetworkName)
	require.Len(t, loaded.Wallets, 3)
	require.Equal(t, "42", loaded.Wallets[2].Stake.String())

	n, _, err := GenerateNetwork(loaded)
	require.NoError(t, err)
	mgr, err := config.MakeManager(n)
	require.NoError(t, err)
	require.Equal(t, 5, mgr.Milestone(100).ActiveDelegates)
}
