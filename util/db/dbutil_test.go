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

package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/test/partitiontest"
)

func createService(t *testing.T, acc Accessor) {
	err := acc.Atomic("create", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "create table Service (data blob)")
		return err
	})
	require.NoError(t, err)
}

func countService(acc Accessor) (nrows int, err error) {
	err = acc.Atomic("count", func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "select count(*) from Service").Scan(&nrows)
	})
	return
}

func TestInMemorySharedUntilClosed(t *testing.T) {
	partitiontest.PartitionTest(t)

	fn := t.Name() + ".db"
	acc, err := MakeAccessor(fn, false, true)
	require.NoError(t, err)
	createService(t, acc)

	err = acc.Atomic("insert", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "insert or replace into Service (rowid, data) values (1, ?)", []byte{0, 1, 2})
		return err
	})
	require.NoError(t, err)

	another, err := MakeAccessor(fn, true, true)
	require.NoError(t, err)
	n, err := countService(another)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	another.Close()
	acc.Close()

	acc, err = MakeAccessor(fn, false, true)
	require.NoError(t, err)
	defer acc.Close()
	_, err = countService(acc)
	require.Error(t, err)
}

func TestInMemoryUniqueDB(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor(t.Name()+"1.db", false, true)
	require.NoError(t, err)
	defer acc.Close()
	createService(t, acc)

	other, err := MakeAccessor(t.Name()+"2.db", false, true)
	require.NoError(t, err)
	defer other.Close()
	_, err = countService(other)
	require.Error(t, err)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor(filepath.Join(t.TempDir(), "rollback.sqlite"), false, false)
	require.NoError(t, err)
	defer acc.Close()
	createService(t, acc)

	boom := errors.New("boom")
	err = acc.Atomic("insert", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "insert into Service (data) values (?)", []byte{1})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := countService(acc)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAtomicRecoversPanic(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor(filepath.Join(t.TempDir(), "panic.sqlite"), false, false)
	require.NoError(t, err)
	defer acc.Close()

	err = acc.Atomic("panic", func(ctx context.Context, tx *sql.Tx) error {
		panic("inside tx")
	})
	require.EqualError(t, err, "inside tx")
}

func TestAtomicCanceledContext(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor(filepath.Join(t.TempDir(), "ctx.sqlite"), false, false)
	require.NoError(t, err)
	defer acc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = acc.AtomicContext(ctx, "canceled", func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClosedAccessor(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeAccessor(filepath.Join(t.TempDir(), "closed.sqlite"), false, false)
	require.NoError(t, err)
	acc.Close()
	acc.Close()
	require.ErrorIs(t, acc.Atomic("noop", func(context.Context, *sql.Tx) error { return nil }), ErrNoOpAtomic)
}

func TestConcurrentWriters(t *testing.T) {
	partitiontest.PartitionTest(t)

	p, err := OpenPair(filepath.Join(t.TempDir(), "pair.sqlite"), false)
	require.NoError(t, err)
	defer p.Close()
	createService(t, p.Wdb)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- p.Wdb.Atomic("insert", func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, "insert into Service (data) values (?)", []byte{byte(i)})
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := countService(p.Rdb)
	require.NoError(t, err)
	require.Equal(t, writers, n)
}

func TestUserVersion(t *testing.T) {
	partitiontest.PartitionTest(t)

	acc, err := MakeErasableAccessor(filepath.Join(t.TempDir(), "version.sqlite"))
	require.NoError(t, err)
	defer acc.Close()

	err = acc.Atomic("version", func(ctx context.Context, tx *sql.Tx) error {
		prev, err := SetUserVersion(ctx, tx, 3)
		require.NoError(t, err)
		require.Zero(t, prev)
		v, err := GetUserVersion(ctx, tx)
		require.NoError(t, err)
		require.EqualValues(t, 3, v)
		return nil
	})
	require.NoError(t, err)
}

func TestRetry(t *testing.T) {
	partitiontest.PartitionTest(t)

	calls := 0
	err := Retry(func() error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	other := errors.New("not busy")
	calls = 0
	require.ErrorIs(t, Retry(func() error { calls++; return other }), other)
	require.Equal(t, 1, calls)
}
