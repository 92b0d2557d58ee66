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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/gen"
	"github.com/algorand/go-dpos/ledger/pipeline"
	"github.com/algorand/go-dpos/node"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/util/codecs"
)

// WalletsFilename lists the wallets generated by init.
const WalletsFilename = "wallets.json"

var (
	genesisFile   string
	delegateCount int
	delegateStake int64
	storeBackend  string
	exportFrom    uint64
)

func init() {
	initCmd.Flags().StringVarP(&genesisFile, "genesis", "g", "", "Genesis data file; a devnet is generated when empty")
	initCmd.Flags().IntVarP(&delegateCount, "delegates", "n", 51, "Number of devnet delegates")
	initCmd.Flags().Int64VarP(&delegateStake, "stake", "s", 1000000000000, "Stake of every devnet delegate")
	initCmd.Flags().StringVarP(&storeBackend, "backend", "b", config.StoreSQLite, "Block store backend: sqlite, pebble or badger")

	exportCmd.Flags().Uint64VarP(&exportFrom, "from", "f", 2, "First height to export; the genesis block is part of the network")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a data directory with a network and a config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDataDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(dir, config.NetworkFilename)); err == nil {
			return fmt.Errorf("%s already holds a network", dir)
		}

		gd := gen.DevnetGenesis(delegateCount, basics.NewBigNum(delegateStake))
		if genesisFile != "" {
			gd, err = gen.LoadGenesisData(genesisFile)
			if err != nil {
				return fmt.Errorf("loading %s: %w", genesisFile, err)
			}
		}
		network, wallets, err := gen.GenerateNetwork(gd)
		if err != nil {
			return err
		}

		cfg := config.GetDefaultLocal()
		cfg.StoreBackend = storeBackend
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := network.SaveToDisk(dir); err != nil {
			return err
		}
		if err := cfg.SaveToDisk(dir); err != nil {
			return err
		}
		if err := codecs.SaveObjectToFile(filepath.Join(dir, WalletsFilename), wallets, true); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created network %s with %d wallets in %s\n", network.Name, len(wallets), dir)
		fmt.Fprintf(cmd.OutOrStdout(), "Genesis block: %s\n", network.Genesis.ID)
		return nil
	},
}

// openNode loads the data directory and opens its node.
func openNode() (*node.DposNode, func(), error) {
	dir, cfg, network, closeLog, err := loadDataDir()
	if err != nil {
		return nil, nil, err
	}
	nd, err := node.MakeNode(log, dir, cfg, network)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return nd, closeLog, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node and process blocks until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nd, closeLog, err := openNode()
		if err != nil {
			return err
		}
		defer closeLog()

		nd.Start()
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Infof("Received %v, shutting down", sig)
			nd.Stop()
			return nil
		case <-nd.Corrupted():
			nd.Stop()
			return fmt.Errorf("the ledger is corrupted, see %s", config.NodeLogFilename)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the chain tip and round",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nd, closeLog, err := openNode()
		if err != nil {
			return err
		}
		defer closeLog()
		defer nd.Stop()

		s := nd.Status()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Network: %s\n", s.Network)
		fmt.Fprintf(out, "Last block: %d (%s)\n", s.LastHeight, s.LastBlockID)
		fmt.Fprintf(out, "Last stored block: %d\n", s.LastStoredHeight)
		fmt.Fprintf(out, "Round: %d (starts at %d, %d delegates)\n", s.Round.Round, s.Round.RoundHeight, s.Round.MaxDelegates)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Process a stream of JSON blocks; reads stdin when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		nd, closeLog, err := openNode()
		if err != nil {
			return err
		}
		defer closeLog()
		nd.Start()
		defer nd.Stop()

		counts, err := importBlocks(nd, in)
		for res := pipeline.Accepted; res <= pipeline.Corrupted; res++ {
			if counts[res] > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", res, counts[res])
			}
		}
		return err
	},
}

// importBlocks feeds every block decoded from in to the node and counts
// the results. It stops at the first corrupted result.
func importBlocks(nd *node.DposNode, in io.Reader) (map[pipeline.Result]int, error) {
	counts := make(map[pipeline.Result]int)
	r := bufio.NewReader(in)
	for n := 0; ; n++ {
		err := skipSpace(r)
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return counts, fmt.Errorf("reading block %d of the stream: %w", n, err)
		}
		var blk bookkeeping.Block
		if err := protocol.NewJSONDecoder(r).Decode(&blk); err != nil {
			return counts, fmt.Errorf("decoding block %d of the stream: %w", n, err)
		}
		res := <-nd.ProcessBlock(blk)
		counts[res]++
		if res == pipeline.Corrupted {
			return counts, fmt.Errorf("block %d (%s) corrupted the ledger", blk.Height, blk.ID)
		}
	}
}

// skipSpace consumes the whitespace between blocks of a stream. It returns
// io.EOF when nothing but whitespace is left.
func skipSpace(r *bufio.Reader) error {
	for {
		c, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			return r.UnreadByte()
		}
	}
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored blocks as a stream of JSON blocks to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nd, closeLog, err := openNode()
		if err != nil {
			return err
		}
		defer closeLog()
		defer nd.Stop()
		return exportBlocks(cmd.Context(), nd, basics.Height(exportFrom), cmd.OutOrStdout())
	},
}

const exportChunk = 1000

func exportBlocks(ctx context.Context, nd *node.DposNode, from basics.Height, out io.Writer) error {
	if from <= basics.GenesisHeight {
		from = basics.GenesisHeight + 1
	}
	l := nd.Ledger()
	tip := l.LastBlock().Height
	enc := protocol.NewJSONEncoder(out)
	for from <= tip {
		to := from.AddSaturate(exportChunk - 1)
		if to > tip {
			to = tip
		}
		blks, err := l.Store().BlocksByHeightRange(ctx, from, to)
		if err != nil {
			return err
		}
		for i := range blks {
			if err := enc.Encode(blks[i]); err != nil {
				return err
			}
			if _, err := out.Write([]byte("\n")); err != nil {
				return err
			}
		}
		from = to + 1
	}
	return nil
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback [blocks]",
	Short: "Remove the most recent blocks from the chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid number of blocks %q", args[0])
		}
		nd, closeLog, err := openNode()
		if err != nil {
			return err
		}
		defer closeLog()
		nd.Start()
		defer nd.Stop()

		tip, err := nd.Rollback(cmd.Context(), n)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Last block: %d (%s)\n", tip.Height, tip.ID)
		return nil
	},
}
