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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/logging"
)

var log = logging.Base()

var dataDir string

var logToStdout bool

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(rollbackCmd)

	rootCmd.PersistentFlags().StringVarP(&dataDir, "datadir", "d", "", "Data directory for the node (defaults to $DPOS_DATA)")
	rootCmd.PersistentFlags().BoolVarP(&logToStdout, "stdout", "o", false, "Write the log to stdout instead of node.log")
}

var rootCmd = &cobra.Command{
	Use:           "dposd",
	Short:         "DPoS block processing node",
	Long:          `dposd keeps a DPoS ledger: it validates and applies blocks, tracks delegate rounds and persists the chain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.HelpFunc()(cmd, args)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveDataDir() (string, error) {
	dir := dataDir
	if dir == "" {
		dir = os.Getenv("DPOS_DATA")
	}
	if dir == "" {
		return "", fmt.Errorf("data directory not specified: use -d or set DPOS_DATA")
	}
	return filepath.Abs(dir)
}

// loadDataDir reads the config and network of the data directory and sets
// up the base logger accordingly. The returned func closes the log file.
func loadDataDir() (string, config.Local, config.Network, func(), error) {
	dir, err := resolveDataDir()
	if err != nil {
		return "", config.Local{}, config.Network{}, nil, err
	}
	cfg, err := config.LoadConfigFromDisk(dir)
	if os.IsNotExist(err) {
		cfg = config.GetDefaultLocal()
	} else if err != nil {
		return "", config.Local{}, config.Network{}, nil, fmt.Errorf("loading config from %s: %w", dir, err)
	}
	network, err := config.LoadNetworkFromDisk(dir)
	if err != nil {
		return "", config.Local{}, config.Network{}, nil, fmt.Errorf("loading network from %s: %w", dir, err)
	}
	closeLog, err := setupLogging(dir, cfg)
	if err != nil {
		return "", config.Local{}, config.Network{}, nil, err
	}
	return dir, cfg, network, closeLog, nil
}

func setupLogging(dir string, cfg config.Local) (func(), error) {
	log.SetLevel(logging.Level(cfg.BaseLoggerDebugLevel))
	if cfg.LogFormatJSON {
		log.SetJSONFormatter()
	}
	if logToStdout {
		log.SetOutput(os.Stdout)
		return func() {}, nil
	}

	liveLog := filepath.Join(dir, config.NodeLogFilename)
	archive := cfg.LogArchiveName
	if !filepath.IsAbs(archive) {
		archive = filepath.Join(dir, archive)
	}
	writer, err := logging.MakeCyclicFileWriter(liveLog, archive, cfg.LogSizeLimit)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", liveLog, err)
	}
	log.SetOutput(writer)
	return func() { writer.Close() }, nil
}
