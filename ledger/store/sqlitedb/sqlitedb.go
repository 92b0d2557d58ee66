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

// Package sqlitedb is the sqlite engine of the block store.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/util/db"
)

// schemaVersion is stored in the sqlite user_version.
const schemaVersion = 1

// maxQueryArgs keeps IN lists below the sqlite host parameter limit.
const maxQueryArgs = 500

var blockSchema = []string{
	`CREATE TABLE IF NOT EXISTS blocks (
		height integer primary key,
		id text not null unique,
		hdrdata blob,
		blkdata blob)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id text primary key,
		height integer not null)`,
	`CREATE INDEX IF NOT EXISTS transactions_height_idx ON transactions (height)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		round integer not null,
		seq integer not null,
		public_key text not null,
		balance text not null,
		PRIMARY KEY (round, seq))`,
}

var blockResetExprs = []string{
	`DROP TABLE IF EXISTS rounds`,
	`DROP TABLE IF EXISTS transactions`,
	`DROP TABLE IF EXISTS blocks`,
}

// Store is a store.BlockStore in a sqlite file.
type Store struct {
	dbs db.Pair
	log logging.Logger
}

// Open opens (creating if needed) the store at filename. With memory set
// the database lives in memory under that name.
func Open(filename string, memory bool, log logging.Logger) (*Store, error) {
	dbs, err := db.OpenPair(filename, memory)
	if err != nil {
		return nil, err
	}
	s := &Store{dbs: dbs, log: log}
	err = s.dbs.Wdb.Atomic("sqlitedb.init", func(ctx context.Context, tx *sql.Tx) error {
		return blockInit(ctx, tx)
	})
	if err != nil {
		dbs.Close()
		return nil, err
	}
	return s, nil
}

func blockInit(ctx context.Context, tx *sql.Tx) error {
	version, err := db.GetUserVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version > schemaVersion {
		return fmt.Errorf("sqlitedb: database schema version %d is newer than %d", version, schemaVersion)
	}
	for _, tableCreate := range blockSchema {
		if _, err := tx.ExecContext(ctx, tableCreate); err != nil {
			return fmt.Errorf("sqlitedb blockInit could not create table %v", err)
		}
	}
	if version < schemaVersion {
		_, err = db.SetUserVersion(ctx, tx, schemaVersion)
	}
	return err
}

// Close closes the database.
func (s *Store) Close() {
	s.dbs.Close()
}

// Reset implements store.BlockStore.
func (s *Store) Reset(ctx context.Context) error {
	return s.dbs.Wdb.AtomicContext(ctx, "sqlitedb.Reset", func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range blockResetExprs {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return blockInit(ctx, tx)
	})
}

func decodeBlock(h basics.Height, buf []byte) (blk bookkeeping.Block, err error) {
	if err = protocol.Decode(buf, &blk); err != nil {
		return bookkeeping.Block{}, ledgercore.ErrCorruptBlock{Height: h, Err: err}
	}
	return blk, nil
}

func (s *Store) queryBlock(ctx context.Context, desc, query string, args ...interface{}) (blk bookkeeping.Block, err error) {
	err = s.dbs.Rdb.AtomicContext(ctx, desc, func(ctx context.Context, tx *sql.Tx) error {
		var h basics.Height
		var buf []byte
		err0 := tx.QueryRowContext(ctx, query, args...).Scan(&h, &buf)
		if errors.Is(err0, sql.ErrNoRows) {
			return ledgercore.ErrNoEntry{}
		}
		if err0 != nil {
			return err0
		}
		blk, err0 = decodeBlock(h, buf)
		return err0
	})
	return
}

// LatestBlock implements store.BlockStore.
func (s *Store) LatestBlock(ctx context.Context) (bookkeeping.Block, error) {
	return s.queryBlock(ctx, "sqlitedb.LatestBlock", "SELECT height, blkdata FROM blocks ORDER BY height DESC LIMIT 1")
}

// BlockByHeight implements store.BlockStore.
func (s *Store) BlockByHeight(ctx context.Context, h basics.Height) (bookkeeping.Block, error) {
	blk, err := s.queryBlock(ctx, "sqlitedb.BlockByHeight", "SELECT height, blkdata FROM blocks WHERE height=?", h)
	var noEntry ledgercore.ErrNoEntry
	if errors.As(err, &noEntry) {
		noEntry.Height = h
		return blk, noEntry
	}
	return blk, err
}

// BlockByID implements store.BlockStore.
func (s *Store) BlockByID(ctx context.Context, id string) (bookkeeping.Block, error) {
	return s.queryBlock(ctx, "sqlitedb.BlockByID", "SELECT height, blkdata FROM blocks WHERE id=?", id)
}

// BlocksByHeightRange implements store.BlockStore.
func (s *Store) BlocksByHeightRange(ctx context.Context, from, to basics.Height) (blks []bookkeeping.Block, err error) {
	err = s.dbs.Rdb.AtomicContext(ctx, "sqlitedb.BlocksByHeightRange", func(ctx context.Context, tx *sql.Tx) error {
		blks = nil
		rows, err0 := tx.QueryContext(ctx, "SELECT height, blkdata FROM blocks WHERE height>=? AND height<=? ORDER BY height", from, to)
		if err0 != nil {
			return err0
		}
		defer rows.Close()
		for rows.Next() {
			var h basics.Height
			var buf []byte
			if err0 = rows.Scan(&h, &buf); err0 != nil {
				return err0
			}
			blk, err0 := decodeBlock(h, buf)
			if err0 != nil {
				return err0
			}
			blks = append(blks, blk)
		}
		return rows.Err()
	})
	return
}

// SaveBlocks implements store.BlockStore.
func (s *Store) SaveBlocks(ctx context.Context, blks []bookkeeping.Block) error {
	if !store.CheckConsecutive(blks) {
		return fmt.Errorf("sqlitedb.SaveBlocks: blocks are not consecutive")
	}
	return s.dbs.Wdb.AtomicContext(ctx, "sqlitedb.SaveBlocks", func(ctx context.Context, tx *sql.Tx) error {
		for i := range blks {
			blk := &blks[i]
			_, err := tx.ExecContext(ctx, "INSERT INTO blocks (height, id, hdrdata, blkdata) VALUES (?, ?, ?, ?)",
				blk.Height, blk.ID, protocol.Encode(&blk.BlockHeader), protocol.Encode(blk))
			if err != nil {
				return fmt.Errorf("block %d (%s): %w", blk.Height, blk.ID, err)
			}
			for _, id := range blk.TransactionIDs() {
				if _, err := tx.ExecContext(ctx, "INSERT INTO transactions (id, height) VALUES (?, ?)", id, blk.Height); err != nil {
					return fmt.Errorf("block %d (%s): transaction %s: %w", blk.Height, blk.ID, id, err)
				}
			}
		}
		return nil
	})
}

// DeleteBlocks implements store.BlockStore.
func (s *Store) DeleteBlocks(ctx context.Context, from basics.Height) error {
	return s.dbs.Wdb.AtomicContext(ctx, "sqlitedb.DeleteBlocks", func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE height>=?", from); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE height>=?", from)
		return err
	})
}

// ForgedTransactionIDs implements store.BlockStore.
func (s *Store) ForgedTransactionIDs(ctx context.Context, ids []string) (forged []string, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	err = s.dbs.Rdb.AtomicContext(ctx, "sqlitedb.ForgedTransactionIDs", func(ctx context.Context, tx *sql.Tx) error {
		forged = nil
		for start := 0; start < len(ids); start += maxQueryArgs {
			chunk := ids[start:min(start+maxQueryArgs, len(ids))]
			args := make([]interface{}, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			query := "SELECT id FROM transactions WHERE id IN (?" + strings.Repeat(",?", len(chunk)-1) + ")"
			rows, err0 := tx.QueryContext(ctx, query, args...)
			if err0 != nil {
				return err0
			}
			for rows.Next() {
				var id string
				if err0 = rows.Scan(&id); err0 != nil {
					rows.Close()
					return err0
				}
				forged = append(forged, id)
			}
			rows.Close()
			if err0 = rows.Err(); err0 != nil {
				return err0
			}
		}
		return nil
	})
	return
}

// SaveRound implements store.BlockStore.
func (s *Store) SaveRound(ctx context.Context, delegates []store.RoundDelegate) error {
	return s.dbs.Wdb.AtomicContext(ctx, "sqlitedb.SaveRound", func(ctx context.Context, tx *sql.Tx) error {
		for i, d := range delegates {
			_, err := tx.ExecContext(ctx, "INSERT INTO rounds (round, seq, public_key, balance) VALUES (?, ?, ?, ?)",
				d.Round, i, d.PublicKey, d.Balance.String())
			if err != nil {
				return fmt.Errorf("round %d delegate %s: %w", d.Round, d.PublicKey, err)
			}
		}
		return nil
	})
}

// GetRound implements store.BlockStore.
func (s *Store) GetRound(ctx context.Context, round uint64) (delegates []store.RoundDelegate, err error) {
	err = s.dbs.Rdb.AtomicContext(ctx, "sqlitedb.GetRound", func(ctx context.Context, tx *sql.Tx) error {
		delegates = nil
		rows, err0 := tx.QueryContext(ctx, "SELECT public_key, balance FROM rounds WHERE round=? ORDER BY seq", round)
		if err0 != nil {
			return err0
		}
		defer rows.Close()
		for rows.Next() {
			d := store.RoundDelegate{Round: round}
			var balance string
			if err0 = rows.Scan(&d.PublicKey, &balance); err0 != nil {
				return err0
			}
			if d.Balance, err0 = basics.ParseBigNum(balance); err0 != nil {
				return fmt.Errorf("round %d delegate %s: %w", round, d.PublicKey, err0)
			}
			delegates = append(delegates, d)
		}
		return rows.Err()
	})
	return
}

// DeleteRound implements store.BlockStore.
func (s *Store) DeleteRound(ctx context.Context, round uint64) error {
	return s.dbs.Wdb.AtomicContext(ctx, "sqlitedb.DeleteRound", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM rounds WHERE round=?", round)
		return err
	})
}
