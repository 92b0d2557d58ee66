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

// Package kvdb is the key-value engine of the block store, on any
// util/kvstore backend.
//
// Layout:
//
//	b<height>           encoded block
//	i<id>               height of block id
//	t<txid>             height of transaction id
//	x<height><txid>     transaction ids of a height, for deletion
//	r<round><seq>       encoded RoundDelegate
//	m/tip               height of the latest block
//
// Heights, rounds and sequence numbers are big-endian so that keys sort
// numerically.
package kvdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/protocol"
	"github.com/algorand/go-dpos/util/kvstore"
)

const (
	prefixBlock      = 'b'
	prefixBlockID    = 'i'
	prefixTxID       = 't'
	prefixHeightTxID = 'x'
	prefixRound      = 'r'
)

var tipKey = []byte("m/tip")

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func key(prefix byte, parts ...[]byte) []byte {
	k := []byte{prefix}
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func blockKey(h basics.Height) []byte { return key(prefixBlock, u64(uint64(h))) }
func blockIDKey(id string) []byte     { return key(prefixBlockID, []byte(id)) }
func txIDKey(id string) []byte        { return key(prefixTxID, []byte(id)) }
func heightTxKey(h basics.Height, id string) []byte {
	return key(prefixHeightTxID, u64(uint64(h)), []byte(id))
}
func roundPrefix(round uint64) []byte { return key(prefixRound, u64(round)) }

// Store is a store.BlockStore on a kvstore.KVStore. Writes are not safe
// for concurrent use; reads are.
type Store struct {
	kv  kvstore.KVStore
	log logging.Logger
}

// Open opens the store in dir on the named kvstore backend.
func Open(impl string, dir string, inMem bool, log logging.Logger) (*Store, error) {
	kv, err := kvstore.NewKVStore(impl, dir, inMem)
	if err != nil {
		return nil, err
	}
	return Wrap(kv, log), nil
}

// Wrap uses kv as a block store.
func Wrap(kv kvstore.KVStore, log logging.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Close implements store.BlockStore.
func (s *Store) Close() {
	if err := s.kv.Close(); err != nil {
		s.log.Warnf("kvdb: close: %v", err)
	}
}

func (s *Store) tip() (basics.Height, error) {
	v, err := s.kv.Get(tipKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("kvdb: malformed tip %x", v)
	}
	return basics.Height(binary.BigEndian.Uint64(v)), nil
}

func heightOf(v []byte) (basics.Height, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("kvdb: malformed height %x", v)
	}
	return basics.Height(binary.BigEndian.Uint64(v)), nil
}

// LatestBlock implements store.BlockStore.
func (s *Store) LatestBlock(ctx context.Context) (bookkeeping.Block, error) {
	h, err := s.tip()
	if err != nil {
		return bookkeeping.Block{}, err
	}
	if h == 0 {
		return bookkeeping.Block{}, ledgercore.ErrNoEntry{}
	}
	return s.BlockByHeight(ctx, h)
}

// BlockByHeight implements store.BlockStore.
func (s *Store) BlockByHeight(ctx context.Context, h basics.Height) (blk bookkeeping.Block, err error) {
	v, err := s.kv.Get(blockKey(h))
	if errors.Is(err, kvstore.ErrNotFound) {
		return blk, ledgercore.ErrNoEntry{Height: h}
	}
	if err != nil {
		return blk, err
	}
	if err = protocol.Decode(v, &blk); err != nil {
		return bookkeeping.Block{}, ledgercore.ErrCorruptBlock{Height: h, Err: err}
	}
	return blk, nil
}

// BlockByID implements store.BlockStore.
func (s *Store) BlockByID(ctx context.Context, id string) (bookkeeping.Block, error) {
	v, err := s.kv.Get(blockIDKey(id))
	if errors.Is(err, kvstore.ErrNotFound) {
		return bookkeeping.Block{}, ledgercore.ErrNoEntry{}
	}
	if err != nil {
		return bookkeeping.Block{}, err
	}
	h, err := heightOf(v)
	if err != nil {
		return bookkeeping.Block{}, err
	}
	return s.BlockByHeight(ctx, h)
}

// BlocksByHeightRange implements store.BlockStore.
func (s *Store) BlocksByHeightRange(ctx context.Context, from, to basics.Height) ([]bookkeeping.Block, error) {
	if to < from {
		return nil, nil
	}
	iter := s.kv.NewIterator(blockKey(from), blockKey(to+1))
	defer iter.Close()

	var blks []bookkeeping.Block
	for ; iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := basics.Height(binary.BigEndian.Uint64(iter.Key()[1:]))
		v, err := iter.Value()
		if err != nil {
			return nil, err
		}
		var blk bookkeeping.Block
		if err := protocol.Decode(v, &blk); err != nil {
			return nil, ledgercore.ErrCorruptBlock{Height: h, Err: err}
		}
		blks = append(blks, blk)
	}
	return blks, nil
}

// SaveBlocks implements store.BlockStore.
func (s *Store) SaveBlocks(ctx context.Context, blks []bookkeeping.Block) error {
	if len(blks) == 0 {
		return nil
	}
	if !store.CheckConsecutive(blks) {
		return fmt.Errorf("kvdb.SaveBlocks: blocks are not consecutive")
	}
	tip, err := s.tip()
	if err != nil {
		return err
	}
	if blks[0].Height != tip+1 {
		return fmt.Errorf("kvdb.SaveBlocks: got block %d, but expected %d", blks[0].Height, tip+1)
	}

	batch := s.kv.NewBatch()
	for i := range blks {
		blk := &blks[i]
		h := u64(uint64(blk.Height))
		if err := batch.Set(blockKey(blk.Height), protocol.Encode(blk)); err != nil {
			batch.Cancel()
			return err
		}
		if err := batch.Set(blockIDKey(blk.ID), h); err != nil {
			batch.Cancel()
			return err
		}
		for _, id := range blk.TransactionIDs() {
			if err := batch.Set(txIDKey(id), h); err != nil {
				batch.Cancel()
				return err
			}
			if err := batch.Set(heightTxKey(blk.Height, id), nil); err != nil {
				batch.Cancel()
				return err
			}
		}
	}
	if err := batch.Set(tipKey, u64(uint64(blks[len(blks)-1].Height))); err != nil {
		batch.Cancel()
		return err
	}
	return batch.Commit()
}

// DeleteBlocks implements store.BlockStore. Block ids of corrupt blocks
// cannot be recovered; their id index entries are left behind and are
// overwritten when the height is stored again.
func (s *Store) DeleteBlocks(ctx context.Context, from basics.Height) error {
	tip, err := s.tip()
	if err != nil {
		return err
	}
	if from == 0 {
		from = 1
	}
	if from > tip {
		return nil
	}

	batch := s.kv.NewBatch()
	fail := func(err error) error {
		batch.Cancel()
		return err
	}
	for h := from; h <= tip; h++ {
		if blk, err := s.BlockByHeight(ctx, h); err == nil {
			if err := batch.Delete(blockIDKey(blk.ID)); err != nil {
				return fail(err)
			}
		}
		if err := batch.Delete(blockKey(h)); err != nil {
			return fail(err)
		}

		prefix := key(prefixHeightTxID, u64(uint64(h)))
		iter := s.kv.NewIterator(prefix, kvstore.PrefixEnd(prefix))
		for ; iter.Valid(); iter.Next() {
			k := iter.Key()
			if err := batch.Delete(txIDKey(string(k[len(prefix):]))); err != nil {
				iter.Close()
				return fail(err)
			}
			if err := batch.Delete(k); err != nil {
				iter.Close()
				return fail(err)
			}
		}
		iter.Close()
	}

	if from <= 1 {
		err = batch.Delete(tipKey)
	} else {
		err = batch.Set(tipKey, u64(uint64(from-1)))
	}
	if err != nil {
		return fail(err)
	}
	return batch.Commit()
}

// ForgedTransactionIDs implements store.BlockStore.
func (s *Store) ForgedTransactionIDs(ctx context.Context, ids []string) ([]string, error) {
	var forged []string
	for _, id := range ids {
		_, err := s.kv.Get(txIDKey(id))
		if errors.Is(err, kvstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		forged = append(forged, id)
	}
	return forged, nil
}

// SaveRound implements store.BlockStore.
func (s *Store) SaveRound(ctx context.Context, delegates []store.RoundDelegate) error {
	batch := s.kv.NewBatch()
	for i := range delegates {
		d := &delegates[i]
		k := append(roundPrefix(d.Round), u64(uint64(i))...)
		if err := batch.Set(k, protocol.Encode(d)); err != nil {
			batch.Cancel()
			return err
		}
	}
	return batch.Commit()
}

// GetRound implements store.BlockStore.
func (s *Store) GetRound(ctx context.Context, round uint64) ([]store.RoundDelegate, error) {
	prefix := roundPrefix(round)
	iter := s.kv.NewIterator(prefix, kvstore.PrefixEnd(prefix))
	defer iter.Close()

	var delegates []store.RoundDelegate
	for ; iter.Valid(); iter.Next() {
		v, err := iter.Value()
		if err != nil {
			return nil, err
		}
		var d store.RoundDelegate
		if err := protocol.Decode(v, &d); err != nil {
			return nil, fmt.Errorf("kvdb: round %d: %w", round, err)
		}
		delegates = append(delegates, d)
	}
	return delegates, nil
}

// DeleteRound implements store.BlockStore.
func (s *Store) DeleteRound(ctx context.Context, round uint64) error {
	return s.deletePrefix(roundPrefix(round))
}

// Reset implements store.BlockStore.
func (s *Store) Reset(ctx context.Context) error {
	for _, p := range []byte{prefixBlock, prefixBlockID, prefixTxID, prefixHeightTxID, prefixRound} {
		if err := s.deletePrefix([]byte{p}); err != nil {
			return err
		}
	}
	return s.kv.Delete(tipKey)
}

func (s *Store) deletePrefix(prefix []byte) error {
	iter := s.kv.NewIterator(prefix, kvstore.PrefixEnd(prefix))
	batch := s.kv.NewBatch()
	for ; iter.Valid(); iter.Next() {
		if err := batch.Delete(iter.Key()); err != nil {
			iter.Close()
			batch.Cancel()
			return err
		}
	}
	iter.Close()
	return batch.Commit()
}
