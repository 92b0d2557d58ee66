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
	"encoding/json"
	"fmt"
	"os"

	"github.com/algorand/go-dpos/data/basics"
)

// DefaultGenesis should be used as the default initial state for any GenesisData
// instance (because we have no ctors...)
var DefaultGenesis = GenesisData{
	NetworkName:     "devnet",
	AddressVersion:  30,
	ActiveDelegates: 5,
	BlockTime:       8,
	Reward:          basics.Zero,
}

// WalletData represents a genesis wallet: its name, starting balance, and
// whether it registers as a delegate and votes for itself.
type WalletData struct {
	Name     string
	Stake    basics.BigNum
	Delegate bool
	// Vote names the delegate the wallet votes for. Delegates vote for
	// themselves when it is empty.
	Vote string `json:",omitempty"`
}

// GenesisData represents the genesis data for creating a network.json
type GenesisData struct {
	NetworkName     string
	AddressVersion  byte
	ActiveDelegates int
	BlockTime       int64
	Reward          basics.BigNum
	// RewardHeight is the height from which Reward is paid. Blocks below it
	// carry no reward.
	RewardHeight basics.Height `json:",omitempty"`
	Wallets      []WalletData
	Comment      string `json:",omitempty"`
}

// LoadGenesisData loads a GenesisData structure from a json file
func LoadGenesisData(file string) (gen GenesisData, err error) {
	gen = DefaultGenesis
	f, err := os.Open(file)
	if err != nil {
		return
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	err = dec.Decode(&gen)
	return gen, err
}

// DevnetGenesis returns DefaultGenesis with n self-voting delegates holding
// stake each.
func DevnetGenesis(n int, stake basics.BigNum) GenesisData {
	gd := DefaultGenesis
	gd.Wallets = nil
	for i := 1; i <= n; i++ {
		gd.Wallets = append(gd.Wallets, WalletData{
			Name:     fmt.Sprintf("genesis_%d", i),
			Stake:    stake,
			Delegate: true,
		})
	}
	return gd
}
