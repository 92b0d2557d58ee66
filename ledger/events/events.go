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

// Package events carries fire-and-forget ledger notifications to
// subscribers.
package events

import (
	"fmt"

	"github.com/algorand/go-deadlock"
	evbus "github.com/asaskevich/EventBus"

	"github.com/algorand/go-dpos/logging"
)

// Topic names a kind of notification.
type Topic string

// Ledger topics.
const (
	BlockApplied        Topic = "block.applied"
	BlockReverted       Topic = "block.reverted"
	BlockDisregarded    Topic = "block.disregarded"
	TransactionApplied  Topic = "transaction.applied"
	TransactionReverted Topic = "transaction.reverted"
	RoundApplied        Topic = "round.applied"
	RoundMissed         Topic = "round.missed"
	ForgerMissing       Topic = "forger.missing"
	ForgerStarted       Topic = "forger.started"
	ForgerFailed        Topic = "forger.failed"
	WalletVote          Topic = "wallet.vote"
	WalletUnvote        Topic = "wallet.unvote"
	DelegateRegistered  Topic = "delegate.registered"
	DelegateResigned    Topic = "delegate.resigned"
)

// Emitter publishes notifications. Dispatch never fails and never blocks on
// subscribers that asked for asynchronous delivery.
type Emitter interface {
	Dispatch(topic Topic, payload interface{})
}

// Dispatcher is an Emitter backed by an event bus.
type Dispatcher struct {
	bus   evbus.Bus
	async bool
	log   logging.Logger
}

// MakeDispatcher creates a Dispatcher. With async set, subscribers run on
// their own goroutines.
func MakeDispatcher(async bool, log logging.Logger) *Dispatcher {
	return &Dispatcher{bus: evbus.New(), async: async, log: log}
}

// Dispatch implements Emitter. A panicking subscriber is logged and does
// not affect the caller.
func (d *Dispatcher) Dispatch(topic Topic, payload interface{}) {
	if !d.bus.HasCallback(string(topic)) {
		return
	}
	if payload == nil {
		payload = struct{}{}
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Warnf("events: subscriber of %s panicked: %v", topic, r)
		}
	}()
	d.bus.Publish(string(topic), payload)
}

// Subscribe registers fn for topic.
func (d *Dispatcher) Subscribe(topic Topic, fn func(payload interface{})) error {
	if d.async {
		return d.bus.SubscribeAsync(string(topic), fn, false)
	}
	return d.bus.Subscribe(string(topic), fn)
}

// Unsubscribe removes fn from topic.
func (d *Dispatcher) Unsubscribe(topic Topic, fn func(payload interface{})) error {
	return d.bus.Unsubscribe(string(topic), fn)
}

// WaitAsync blocks until asynchronous subscribers have finished.
func (d *Dispatcher) WaitAsync() {
	d.bus.WaitAsync()
}

// Record is one captured notification.
type Record struct {
	Topic   Topic
	Payload interface{}
}

func (r Record) String() string {
	return fmt.Sprintf("%s: %v", r.Topic, r.Payload)
}

// Recorder is an Emitter that keeps every notification in order.
type Recorder struct {
	mu      deadlock.Mutex
	records []Record
}

// Dispatch implements Emitter.
func (r *Recorder) Dispatch(topic Topic, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Topic: topic, Payload: payload})
}

// Records returns a copy of the captured notifications.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Topics returns the topics of the captured notifications in order.
func (r *Recorder) Topics() []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]Topic, len(r.records))
	for i, rec := range r.records {
		topics[i] = rec.Topic
	}
	return topics
}

// Count returns how many notifications of topic were captured.
func (r *Recorder) Count(topic Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Topic == topic {
			n++
		}
	}
	return n
}

// Reset drops the captured notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// Multi fans a notification out to several emitters.
type Multi []Emitter

// Dispatch implements Emitter.
func (m Multi) Dispatch(topic Topic, payload interface{}) {
	for _, e := range m {
		e.Dispatch(topic, payload)
	}
}
