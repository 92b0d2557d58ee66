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

package kvstore

import (
	"bytes"
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/algorand/go-dpos/logging"
)

func init() {
	kvImpls["badger"] = badgerDBFactory{}
	kvImpls["badgerdb"] = badgerDBFactory{}
}

type badgerDBFactory struct{}

func (badgerDBFactory) New(dbdir string, inMem bool) (KVStore, error) {
	return NewBadgerDB(dbdir, inMem)
}

// badgerLogger routes badger's internal logging into the node log.
type badgerLogger struct {
	logging.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

// Badger reports routine compaction progress at Info; keep that out of node.log.
func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Debugf(format, args...)
}

// BadgerDB implements KVStore
type BadgerDB struct {
	Bdb *badger.DB
}

// NewBadgerDB opens a BadgerDB in the specified directory
func NewBadgerDB(dbdir string, inMem bool) (*BadgerDB, error) {
	var opts badger.Options
	if inMem {
		// disk-less mode refuses a directory
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dbdir + ".badgerdb").WithSyncWrites(true)
	}
	opts = opts.WithLogger(badgerLogger{logging.Base().With("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{Bdb: db}, nil
}

// Close closes the database
func (b *BadgerDB) Close() error {
	return b.Bdb.Close()
}

// Get a key
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := b.Bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return ret, err
}

// Set a key to value
func (b *BadgerDB) Set(key, value []byte) error {
	return b.Bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete a key
func (b *BadgerDB) Delete(key []byte) error {
	return b.Bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// badgerTxn is a batch of reads/writes using the badger.Txn API
type badgerTxn struct {
	txn *badger.Txn
}

// NewBatch creates a batch writer backed by a read-write transaction
func (b *BadgerDB) NewBatch() BatchWriter {
	return &badgerTxn{txn: b.Bdb.NewTransaction(true)}
}

func (t *badgerTxn) Set(key, value []byte) error { return t.txn.Set(key, value) }
func (t *badgerTxn) Delete(key []byte) error     { return t.txn.Delete(key) }
func (t *badgerTxn) Commit() error               { return t.txn.Commit() }
func (t *badgerTxn) Cancel()                     { t.txn.Discard() }

type badgerIterator struct {
	txn  *badger.Txn
	iter *badger.Iterator
	end  []byte
}

// NewIterator scans a range: start and end are optional (set to nil/empty otherwise)
func (b *BadgerDB) NewIterator(start, end []byte) Iterator {
	txn := b.Bdb.NewTransaction(false)
	iter := txn.NewIterator(badger.DefaultIteratorOptions)
	iter.Rewind()
	if len(start) != 0 {
		iter.Seek(start)
	}
	return &badgerIterator{txn: txn, iter: iter, end: end}
}

func (i *badgerIterator) Next()                  { i.iter.Next() }
func (i *badgerIterator) Key() []byte            { return i.iter.Item().KeyCopy(nil) }
func (i *badgerIterator) Value() ([]byte, error) { return i.iter.Item().ValueCopy(nil) }

func (i *badgerIterator) Close() {
	i.iter.Close()
	i.txn.Discard()
}

func (i *badgerIterator) Valid() bool {
	if !i.iter.Valid() {
		return false
	}
	if len(i.end) != 0 {
		if bytes.Compare(i.iter.Item().Key(), i.end) >= 0 {
			return false
		}
	}
	return true
}
