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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/test/partitiontest"
)

var testImpls = []string{"pebble", "badger"}

func openTestStore(t *testing.T, impl string, inMem bool) KVStore {
	kv, err := NewKVStore(impl, filepath.Join(t.TempDir(), "kv"), inMem)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestUnknownImpl(t *testing.T) {
	partitiontest.PartitionTest(t)

	_, err := NewKVStore("nosuchdb", t.TempDir(), true)
	require.Error(t, err)
}

func TestGetSetDelete(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, impl := range testImpls {
		t.Run(impl, func(t *testing.T) {
			kv := openTestStore(t, impl, true)

			_, err := kv.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set([]byte("a"), []byte("1")))
			v, err := kv.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), v)

			require.NoError(t, kv.Delete([]byte("a")))
			_, err = kv.Get([]byte("a"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBatchAndIterator(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, impl := range testImpls {
		t.Run(impl, func(t *testing.T) {
			kv := openTestStore(t, impl, true)

			b := kv.NewBatch()
			for i := 0; i < 10; i++ {
				require.NoError(t, b.Set([]byte(fmt.Sprintf("k%02d", i)), []byte(fmt.Sprintf("v%d", i))))
			}
			require.NoError(t, b.Set([]byte("z"), []byte("outside")))
			require.NoError(t, b.Commit())

			b = kv.NewBatch()
			require.NoError(t, b.Delete([]byte("k03")))
			require.NoError(t, b.Commit())

			cancelled := kv.NewBatch()
			require.NoError(t, cancelled.Set([]byte("k99"), []byte("never")))
			cancelled.Cancel()

			var keys []string
			iter := kv.NewIterator([]byte("k"), PrefixEnd([]byte("k")))
			for ; iter.Valid(); iter.Next() {
				keys = append(keys, string(iter.Key()))
				_, err := iter.Value()
				require.NoError(t, err)
			}
			iter.Close()
			require.Equal(t, []string{"k00", "k01", "k02", "k04", "k05", "k06", "k07", "k08", "k09"}, keys)
		})
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	partitiontest.PartitionTest(t)

	for _, impl := range testImpls {
		t.Run(impl, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "kv")
			kv, err := NewKVStore(impl, dir, false)
			require.NoError(t, err)
			require.NoError(t, kv.Set([]byte("tip"), []byte("7")))
			require.NoError(t, kv.Close())

			kv, err = NewKVStore(impl, dir, false)
			require.NoError(t, err)
			defer kv.Close()
			v, err := kv.Get([]byte("tip"))
			require.NoError(t, err)
			require.Equal(t, []byte("7"), v)
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, []byte("c"), PrefixEnd([]byte("b")))
	require.Equal(t, []byte{0x01}, PrefixEnd([]byte{0x00, 0xff}))
	require.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}
