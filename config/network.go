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

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/util/codecs"
)

// Exceptions lists blocks and transactions the network accepts without the
// usual checks.
type Exceptions struct {
	Blocks       []string `json:"blocks,omitempty"`
	Transactions []string `json:"transactions,omitempty"`
}

// Network is the static description of a chain: its genesis block, its
// milestones and the hard-coded exceptions.
type Network struct {
	Name           string            `json:"name"`
	Epoch          time.Time         `json:"epoch"`
	AddressVersion byte              `json:"pubKeyHash"`
	Genesis        bookkeeping.Block `json:"genesisBlock"`
	Milestones     Milestones        `json:"milestones"`
	Exceptions     Exceptions        `json:"exceptions"`
}

// Validate checks the genesis block and the milestones.
func (n Network) Validate() error {
	if !n.Genesis.IsGenesis() {
		return fmt.Errorf("genesis block has height %d", n.Genesis.Height)
	}
	if n.Genesis.ID == "" {
		return fmt.Errorf("genesis block has no id")
	}
	return n.Milestones.Validate()
}

// LoadNetworkFromDisk reads and validates root/NetworkFilename.
func LoadNetworkFromDisk(root string) (n Network, err error) {
	err = codecs.LoadObjectFromFile(filepath.Join(root, NetworkFilename), &n)
	if err != nil {
		return
	}
	err = n.Validate()
	return
}

// SaveToDisk writes the network description into root/NetworkFilename.
func (n Network) SaveToDisk(root string) error {
	return codecs.SaveObjectToFile(filepath.Join(root, NetworkFilename), n, true)
}
