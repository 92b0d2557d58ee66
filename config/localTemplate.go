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

// Local holds the per-node-instance configuration settings.
// !!! WARNING !!!
//
// These versioned struct tags need to be maintained CAREFULLY and treated
// like UNIVERSAL CONSTANTS - they should not be modified once committed.
//
// New fields may be added to the Local struct, along with a version tag
// denoting a new version. When changing the default of an existing field,
// add a new version tag carrying the new default; migrate() upgrades configs
// that still hold the old default.
//
// !!! WARNING !!!
type Local struct {
	// Version tracks the current version of the defaults so we can migrate old -> new
	// This is specifically important whenever we decide to change the default value
	// for an existing parameter. This field tag must be updated any time we add a new version.
	Version uint32 `version[0]:"0" version[1]:"1"`

	// StoreBackend selects the block store engine: "sqlite", "pebble", "badger" or "memory".
	StoreBackend string `version[0]:"sqlite"`

	// ResetDatabase wipes the block store on startup and reseeds it with the genesis block.
	ResetDatabase bool `version[0]:"false"`

	// BaseLoggerDebugLevel specifies the logging level for the node (node.log). The levels range from 0 (critical error / silent) to 5 (debug / verbose). The default value is 4 (‘Info’ - fairly verbose).
	BaseLoggerDebugLevel uint32 `version[0]:"4"`

	// LogSizeLimit is the log file size limit in bytes. When reached the live log is moved to LogArchiveName.
	LogSizeLimit uint64 `version[0]:"1073741824"`

	// LogArchiveName is the file name the full live log is moved to.
	LogArchiveName string `version[0]:"node.archive.log"`

	// LogFormatJSON switches node.log to JSON lines.
	LogFormatJSON bool `version[0]:"false"`

	// MaxLastBlocks is how many recent blocks the chain state keeps in memory.
	MaxLastBlocks int `version[0]:"100"`

	// BlockFlushBatch is the number of accepted blocks the store queue collects before writing them in one batch.
	BlockFlushBatch int `version[0]:"1" version[1]:"50"`

	// MaxStartupRetries bounds how many undecodable tip blocks are pruned at startup before giving up.
	MaxStartupRetries int `version[0]:"5"`

	// EventsAsync delivers ledger events to subscribers on their own goroutines.
	EventsAsync bool `version[0]:"false"`

	// MetricsEnabled registers the ledger and pipeline prometheus collectors.
	MetricsEnabled bool `version[0]:"false" version[1]:"true"`
}
