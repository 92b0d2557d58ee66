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

package events

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/logging"
	"github.com/algorand/go-dpos/test/partitiontest"
)

func TestDispatcherSync(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := MakeDispatcher(false, logging.TestingLog(t))
	var got []interface{}
	fn := func(payload interface{}) { got = append(got, payload) }
	require.NoError(t, d.Subscribe(BlockApplied, fn))

	d.Dispatch(BlockApplied, 7)
	d.Dispatch(BlockReverted, 8)
	d.Dispatch(BlockApplied, nil)
	require.Equal(t, []interface{}{7, struct{}{}}, got)

	require.NoError(t, d.Unsubscribe(BlockApplied, fn))
	d.Dispatch(BlockApplied, 9)
	require.Len(t, got, 2)
}

func TestDispatcherSurvivesPanickingSubscriber(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := MakeDispatcher(false, logging.TestingLog(t))
	require.NoError(t, d.Subscribe(RoundApplied, func(interface{}) { panic("subscriber bug") }))
	require.NotPanics(t, func() { d.Dispatch(RoundApplied, 1) })
}

func TestDispatcherAsync(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := MakeDispatcher(true, logging.TestingLog(t))
	var n atomic.Int32
	require.NoError(t, d.Subscribe(ForgerMissing, func(interface{}) { n.Add(1) }))
	for i := 0; i < 10; i++ {
		d.Dispatch(ForgerMissing, i)
	}
	d.WaitAsync()
	require.Equal(t, int32(10), n.Load())
}

func TestRecorder(t *testing.T) {
	partitiontest.PartitionTest(t)

	var r Recorder
	var other Recorder
	m := Multi{&r, &other}
	m.Dispatch(TransactionApplied, "a")
	m.Dispatch(BlockApplied, "b")
	m.Dispatch(TransactionApplied, "c")

	require.Equal(t, []Topic{TransactionApplied, BlockApplied, TransactionApplied}, r.Topics())
	require.Equal(t, 2, other.Count(TransactionApplied))
	require.Equal(t, "c", r.Records()[2].Payload)
	r.Reset()
	require.Empty(t, r.Records())
}
