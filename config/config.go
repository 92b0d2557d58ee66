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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/algorand/go-dpos/util/codecs"
)

// Files of a data directory.
const (
	// ConfigFilename holds the node-local settings (Local).
	ConfigFilename = "config.json"
	// NetworkFilename holds the genesis block and milestones of the chain the node follows.
	NetworkFilename = "network.json"
	// NodeLogFilename is the live log of the node.
	NodeLogFilename = "node.log"
	// LedgerFilenamePrefix prefixes the block store files of a network.
	LedgerFilenamePrefix = "ledger"
)

// Store backends accepted by Local.StoreBackend.
const (
	StoreSQLite = "sqlite"
	StorePebble = "pebble"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

var defaultLocal = GetVersionedDefaultLocalConfig(getLatestConfigVersion())

// GetDefaultLocal returns a copy of the defaults of the latest config version.
func GetDefaultLocal() Local {
	return defaultLocal
}

// LoadConfigFromDisk reads root/ConfigFilename over the defaults, migrates
// it to the latest version and validates it. If the file cannot be read the
// defaults are returned along with the error.
func LoadConfigFromDisk(root string) (Local, error) {
	return loadConfigFromFile(filepath.Join(root, ConfigFilename))
}

func loadConfigFromFile(configFile string) (Local, error) {
	c := defaultLocal
	// A file without a Version field is a version 0 file.
	c.Version = 0

	f, err := os.Open(configFile)
	if err != nil {
		return defaultLocal, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return defaultLocal, fmt.Errorf("%s: %w", configFile, err)
	}

	c, err = migrate(c)
	if err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", configFile, err)
	}
	return c, nil
}

// Validate checks the settings the node cannot start without.
func (cfg Local) Validate() error {
	switch cfg.StoreBackend {
	case "", StoreSQLite, StorePebble, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("unknown StoreBackend %q", cfg.StoreBackend)
	}
	if cfg.BlockFlushBatch < 1 {
		return fmt.Errorf("BlockFlushBatch must be at least 1, got %d", cfg.BlockFlushBatch)
	}
	if cfg.MaxLastBlocks < 1 {
		return fmt.Errorf("MaxLastBlocks must be at least 1, got %d", cfg.MaxLastBlocks)
	}
	if cfg.MaxStartupRetries < 0 {
		return fmt.Errorf("MaxStartupRetries cannot be negative, got %d", cfg.MaxStartupRetries)
	}
	if cfg.BaseLoggerDebugLevel > 5 {
		return fmt.Errorf("BaseLoggerDebugLevel ranges from 0 to 5, got %d", cfg.BaseLoggerDebugLevel)
	}
	return nil
}

// SaveToDisk writes cfg to root/ConfigFilename.
func (cfg Local) SaveToDisk(root string) error {
	return cfg.SaveToFile(os.ExpandEnv(filepath.Join(root, ConfigFilename)))
}

// SaveToFile writes the settings that differ from the defaults, and the
// version, to filename.
func (cfg Local) SaveToFile(filename string) error {
	return codecs.SaveNonDefaultValuesToFile(filename, cfg, defaultLocal, []string{"Version"}, true)
}
