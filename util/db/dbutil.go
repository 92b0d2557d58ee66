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

// Package db wraps database/sql access to sqlite files with retry-on-busy
// transactions.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/algorand/go-dpos/logging"
)

// busy timeout in milliseconds handed to sqlite on every connection
const busy = 1000

// maxTxRetries bounds the number of times a busy transaction is retried.
const maxTxRetries = 1000

// ErrNoOpAtomic is returned by Atomic when the accessor has been closed.
var ErrNoOpAtomic = errors.New("db: accessor is closed")

// An Accessor manages a sqlite database handle and any outstanding batching operations.
type Accessor struct {
	Handle   *sql.DB
	readOnly bool
	log      logging.Logger
}

// TxFn is a unit of work run inside a single transaction. It must be
// idempotent, since it may be retried when sqlite reports contention.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// MakeAccessor creates a new Accessor.
func MakeAccessor(dbfilename string, readOnly bool, inMemory bool) (Accessor, error) {
	db := Accessor{readOnly: readOnly, log: logging.Base().With("db", dbfilename)}

	var err error
	db.Handle, err = sql.Open("sqlite3", URI(dbfilename, readOnly, inMemory)+"&_journal_mode=wal")
	if err != nil {
		return Accessor{}, err
	}
	if inMemory {
		// a shared-cache memory database lives only as long as one connection does
		db.Handle.SetMaxIdleConns(1)
		db.Handle.SetConnMaxLifetime(0)
	}

	err = db.Handle.Ping()
	if err != nil {
		db.Handle.Close()
		return Accessor{}, err
	}
	return db, nil
}

// MakeErasableAccessor removes any database already present at dbfilename
// and opens a fresh writable one.
func MakeErasableAccessor(dbfilename string) (Accessor, error) {
	for _, suffix := range []string{"", "-shm", "-wal"} {
		err := os.Remove(dbfilename + suffix)
		if err != nil && !os.IsNotExist(err) {
			return Accessor{}, err
		}
	}
	return MakeAccessor(dbfilename, false, false)
}

// Close closes the connection.
func (db *Accessor) Close() {
	if db.Handle == nil {
		return
	}
	db.Handle.Close()
	db.Handle = nil
}

// IsReadOnly reports whether the accessor was opened for reading only.
func (db Accessor) IsReadOnly() bool {
	return db.readOnly
}

// Retry executes a function repeatedly as long as it returns an error
// that indicates database contention that warrants a retry.
func Retry(fn func() error) (err error) {
	for i := 0; i < maxTxRetries; i++ {
		if i > 0 {
			logging.Base().Warnf("db.Retry: %d retries (last err: %v)", i, err)
		}

		err = fn()
		if !dbretry(err) {
			return
		}
	}
	return
}

// Atomic executes fn in a transaction with a background context.
func (db Accessor) Atomic(fnDescription string, fn TxFn) error {
	return db.AtomicContext(context.Background(), fnDescription, fn)
}

// AtomicContext executes fn with respect to the database atomically.
// Transactions that fail due to sqlite contention are rolled back and
// re-run until they succeed, fail otherwise, or ctx is done.
func (db Accessor) AtomicContext(ctx context.Context, fnDescription string, fn TxFn) (err error) {
	if db.Handle == nil {
		return ErrNoOpAtomic
	}

	descr := "w"
	if db.readOnly {
		descr = "r"
	}
	log := db.log.With("description", fnDescription)

	start := time.Now()
	defer func() {
		delta := time.Since(start)
		if delta > time.Second {
			log.Warnf("dbatomic(%v): tx took %v", descr, delta)
		} else if delta > 100*time.Millisecond {
			log.Debugf("dbatomic(%v): tx took %v", descr, delta)
		}
	}()

	// the sql package drops panics raised inside an active transaction
	guardedFn := func(tx *sql.Tx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				var ok bool
				err, ok = r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
			}
		}()
		return fn(ctx, tx)
	}

	conn, err := db.Handle.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for i := 0; ; i++ {
		if i > 0 {
			if i >= maxTxRetries {
				log.Errorf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
				return err
			}
			log.Warnf("dbatomic(%v): %d retries (last err: %v)", descr, i, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var tx *sql.Tx
		tx, err = conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: db.readOnly})
		if dbretry(err) {
			continue
		} else if err != nil {
			return err
		}

		err = guardedFn(tx)
		if err != nil {
			tx.Rollback()
			if dbretry(err) {
				continue
			}
			return err
		}

		err = tx.Commit()
		if err == nil || !dbretry(err) {
			return err
		}
	}
}

// GetUserVersion returns the schema version recorded in the database header.
func GetUserVersion(ctx context.Context, tx *sql.Tx) (userVersion int32, err error) {
	err = tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&userVersion)
	return
}

// SetUserVersion records the schema version in the database header and
// returns the previous one.
func SetUserVersion(ctx context.Context, tx *sql.Tx, userVersion int32) (previous int32, err error) {
	previous, err = GetUserVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", userVersion))
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// URI returns the sqlite URI given a db filename as an input.
func URI(filename string, readOnly bool, memory bool) string {
	uri := fmt.Sprintf("file:%s?_busy_timeout=%d&_synchronous=full", filename, busy)
	if !readOnly {
		uri += "&_txlock=immediate"
	}
	if memory {
		uri += "&mode=memory&cache=shared"
	}
	return uri
}

// dbretry returns true if the error might be temporary
func dbretry(obj error) bool {
	var err sqlite3.Error
	return errors.As(obj, &err) && (err.Code == sqlite3.ErrLocked || err.Code == sqlite3.ErrBusy)
}
