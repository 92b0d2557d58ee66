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

// Package roundstate groups blocks into rounds and keeps the forging
// schedule of the current round.
package roundstate

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/algorand/go-dpos/config"
	"github.com/algorand/go-dpos/data/basics"
	"github.com/algorand/go-dpos/data/bookkeeping"
	"github.com/algorand/go-dpos/ledger/blockstate"
	"github.com/algorand/go-dpos/ledger/dpos"
	"github.com/algorand/go-dpos/ledger/events"
	"github.com/algorand/go-dpos/ledger/handlers"
	"github.com/algorand/go-dpos/ledger/ledgercore"
	"github.com/algorand/go-dpos/ledger/slots"
	"github.com/algorand/go-dpos/ledger/store"
	"github.com/algorand/go-dpos/ledger/wallets"
	"github.com/algorand/go-dpos/logging"
)

// Store is what the round state reads and writes. Blocks near the tip may be
// served from memory; the rest come from persistent storage.
type Store interface {
	BlocksByHeightRange(ctx context.Context, from, to basics.Height) ([]bookkeeping.Block, error)
	SaveRound(ctx context.Context, delegates []store.RoundDelegate) error
	GetRound(ctx context.Context, round uint64) ([]store.RoundDelegate, error)
	DeleteRound(ctx context.Context, round uint64) error
}

// Params are the milestone queries round and slot arithmetic need.
type Params interface {
	slots.MilestoneSource
}

// MissedBlock is the payload of events.ForgerMissing.
type MissedBlock struct {
	Delegate *wallets.Wallet
	Slot     int64
	// Height of the block that arrived after the missed slot
	Height basics.Height
}

// MissedRound is the payload of events.RoundMissed.
type MissedRound struct {
	Delegate *wallets.Wallet
	Round    uint64
}

// RoundApplied is the payload of events.RoundApplied.
type RoundApplied struct {
	Round     ledgercore.RoundInfo
	Delegates []*wallets.Wallet
}

// shuffleSeedPrefix separates shuffle seeds from other hashes of a block id.
const shuffleSeedPrefix = "RS"

// State is the round accumulator. Like the wallet repository it has a single
// writer.
type State struct {
	params   Params
	store    Store
	wallets  *wallets.Repository
	dpos     *dpos.State
	registry *handlers.Registry
	tip      blockstate.Tip
	emitter  events.Emitter
	log      logging.Logger

	blocksInCurrentRound []bookkeeping.Block
	forgingDelegates     []*wallets.Wallet
	forgingRound         uint64
}

// MakeState returns a round state over the live wallets of wr. tip is the
// chain tip the block state advances.
func MakeState(params Params, s Store, wr *wallets.Repository, registry *handlers.Registry, tip blockstate.Tip, emitter events.Emitter, log logging.Logger) *State {
	return &State{
		params:   params,
		store:    s,
		wallets:  wr,
		dpos:     dpos.MakeState(wr, log),
		registry: registry,
		tip:      tip,
		emitter:  emitter,
		log:      log,
	}
}

// BlocksInCurrentRound returns the blocks accumulated since the round began.
func (rs *State) BlocksInCurrentRound() []bookkeeping.Block {
	return append([]bookkeeping.Block(nil), rs.blocksInCurrentRound...)
}

// ForgingDelegates returns the shuffled schedule of the cached round.
func (rs *State) ForgingDelegates() []*wallets.Wallet {
	return append([]*wallets.Wallet(nil), rs.forgingDelegates...)
}

// ApplyBlock adds blk to the current round and closes the round when blk is
// its last block. If closing fails, blk is dropped from the round again and
// the error is returned; the caller reverts the block state.
func (rs *State) ApplyBlock(ctx context.Context, blk bookkeeping.Block) error {
	rs.blocksInCurrentRound = append(rs.blocksInCurrentRound, blk)
	return rs.applyRound(ctx, blk.Height)
}

// RevertBlock removes blk, which must be the latest block of the round. When
// blk closed a round, the schedule of that round is rebuilt, delegate.round
// is restored from the stored rankings and the ranking of the following round
// is deleted.
func (rs *State) RevertBlock(ctx context.Context, blk bookkeeping.Block) error {
	ri := ledgercore.CalculateRound(rs.params, blk.Height)
	if len(rs.blocksInCurrentRound) == 0 {
		blks, err := rs.blocksForRound(ctx, ri, blk.Height)
		if err != nil {
			return err
		}
		rs.blocksInCurrentRound = blks
	}

	last := rs.blocksInCurrentRound[len(rs.blocksInCurrentRound)-1]
	if last.ID != blk.ID {
		return ledgercore.WrongBlockError{Expected: last.ID, Got: blk.ID}
	}

	if ledgercore.IsNewRound(rs.params, blk.Height+1) {
		rs.log.Infof("Back to previous round: %d", ri.Round)
		delegates, err := rs.calcPreviousActiveDelegates(ctx, ri, rs.blocksInCurrentRound)
		if err != nil {
			return err
		}
		if err := rs.setForgingDelegatesOfRound(ctx, ri, delegates); err != nil {
			return err
		}
		var closed []*wallets.Wallet
		for _, d := range rs.wallets.AllByUsername() {
			if wallets.AttributeOr(d, wallets.DelegateRound, 0) == ri.Round+1 {
				closed = append(closed, d)
			}
		}
		if err := rs.restoreDelegateRounds(ctx, ri.Round, closed); err != nil {
			return err
		}
		if err := rs.store.DeleteRound(ctx, ri.Round+1); err != nil {
			return fmt.Errorf("round %d: %w", ri.Round+1, err)
		}
	}

	rs.blocksInCurrentRound = rs.blocksInCurrentRound[:len(rs.blocksInCurrentRound)-1]
	return nil
}

// Restore rebuilds the round of the current tip after a restart: its blocks,
// its forging schedule and the delegate.round of every delegate. If the tip
// closes the round, the next round is applied right away.
func (rs *State) Restore(ctx context.Context) error {
	tip := rs.tip.LastBlock()
	ri := ledgercore.CalculateRound(rs.params, tip.Height)

	blks, err := rs.blocksForRound(ctx, ri, tip.Height)
	if err != nil {
		return err
	}
	rs.blocksInCurrentRound = blks

	delegates, err := rs.calcPreviousActiveDelegates(ctx, ri, blks)
	if err != nil {
		return err
	}
	if err := rs.setForgingDelegatesOfRound(ctx, ri, delegates); err != nil {
		return err
	}
	if err := rs.restoreDelegateRounds(ctx, ri.Round, rs.wallets.AllByUsername()); err != nil {
		return err
	}
	return rs.applyRound(ctx, tip.Height)
}

// GetActiveDelegates returns the shuffled delegates of round ri, the round
// of the next block when ri is nil. The cached schedule is returned when it
// is for ri. Otherwise delegates, or the stored ranking of the round when
// delegates is nil, are cloned and shuffled.
func (rs *State) GetActiveDelegates(ctx context.Context, ri *ledgercore.RoundInfo, delegates []*wallets.Wallet) ([]*wallets.Wallet, error) {
	if ri == nil {
		next := ledgercore.CalculateRound(rs.params, rs.tip.LastBlock().Height+1)
		ri = &next
	}
	if delegates == nil && len(rs.forgingDelegates) > 0 && rs.forgingRound == ri.Round {
		return rs.forgingDelegates, nil
	}

	var snapshot []*wallets.Wallet
	if delegates == nil {
		rows, err := rs.store.GetRound(ctx, ri.Round)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", ri.Round, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("no delegates stored for round %d", ri.Round)
		}
		for _, row := range rows {
			d := rs.wallets.FindByPublicKey(row.PublicKey).Clone()
			wallets.SetAttribute(d, wallets.DelegateVoteBalance, row.Balance)
			snapshot = append(snapshot, d)
		}
	} else {
		for _, d := range delegates {
			c := d.Clone()
			wallets.SetAttribute(c, wallets.DelegateVoteBalance, d.VoteBalance())
			snapshot = append(snapshot, c)
		}
	}
	for _, d := range snapshot {
		wallets.SetAttribute(d, wallets.DelegateRound, ri.Round)
	}

	seed, err := rs.shuffleSeed(ctx, *ri)
	if err != nil {
		return nil, err
	}
	return ShuffleDelegates(seed, snapshot), nil
}

// ShuffleDelegates permutes delegates in place from seed and returns them.
// Each seed byte picks a swap partner for the next delegate; the seed is
// re-hashed after every four swaps.
func ShuffleDelegates(seed [32]byte, delegates []*wallets.Wallet) []*wallets.Wallet {
	n := len(delegates)
	for i := 0; i < n; {
		for x := 0; x < 4 && i < n; x++ {
			j := int(seed[x]) % n
			delegates[i], delegates[j] = delegates[j], delegates[i]
			i++
		}
		seed = sha256.Sum256(seed[:])
	}
	return delegates
}

// ShuffleSeed derives the schedule seed of a round from the id of the block
// closing the round before it. Round 1 uses the genesis block.
func ShuffleSeed(closingBlockID string) [32]byte {
	return sha256.Sum256([]byte(shuffleSeedPrefix + closingBlockID))
}

func (rs *State) shuffleSeed(ctx context.Context, ri ledgercore.RoundInfo) ([32]byte, error) {
	h := ri.RoundHeight.SubSaturate(1)
	if h < basics.GenesisHeight {
		h = basics.GenesisHeight
	}
	blks, err := rs.store.BlocksByHeightRange(ctx, h, h)
	if err != nil {
		return [32]byte{}, fmt.Errorf("shuffle seed of round %d: %w", ri.Round, err)
	}
	if len(blks) != 1 {
		return [32]byte{}, fmt.Errorf("shuffle seed of round %d: %w", ri.Round, ledgercore.ErrNoEntry{Height: h})
	}
	return ShuffleSeed(blks[0].ID), nil
}

// DetectMissedBlocks reports the delegates whose slots passed between the
// tip and blk. At most one round of delegates is reported. Nothing is
// reported when the tip is the genesis block.
func (rs *State) DetectMissedBlocks(blk bookkeeping.Block) error {
	last := rs.tip.LastBlock()
	if last.Height <= basics.GenesisHeight || len(rs.forgingDelegates) == 0 {
		return nil
	}

	lookup, err := slots.BuildBlockTimeLookup(rs.params, blk.Height, rs.blockTime)
	if err != nil {
		return err
	}
	lastSlot, err := slots.SlotNumber(rs.params, lookup, last.Timestamp, last.Height)
	if err != nil {
		return err
	}
	currentSlot, err := slots.SlotNumber(rs.params, lookup, blk.Timestamp, blk.Height)
	if err != nil {
		return err
	}

	n := int64(len(rs.forgingDelegates))
	missed := currentSlot - lastSlot - 1
	if missed > n {
		missed = n
	}
	for i := int64(0); i < missed; i++ {
		slot := lastSlot + i + 1
		d := rs.forgingDelegates[slot%n]
		rs.log.Debugf("Delegate %s (%s) just missed a block.", d.Username(), d.PublicKey)
		rs.emitter.Dispatch(events.ForgerMissing, MissedBlock{Delegate: d, Slot: slot, Height: blk.Height})
	}
	return nil
}

func (rs *State) blockTime(h basics.Height) (int64, error) {
	if h == rs.tip.LastBlock().Height {
		return rs.tip.LastBlock().Timestamp, nil
	}
	blks, err := rs.store.BlocksByHeightRange(context.Background(), h, h)
	if err != nil {
		return 0, err
	}
	if len(blks) != 1 {
		return 0, ledgercore.ErrNoEntry{Height: h}
	}
	return blks[0].Timestamp, nil
}

// DetectMissedRound reports the scheduled delegates that produced none of
// the blocks of the closing round.
func (rs *State) DetectMissedRound() {
	produced := make(map[string]bool, len(rs.blocksInCurrentRound))
	for i := range rs.blocksInCurrentRound {
		produced[rs.blocksInCurrentRound[i].GeneratorPublicKey] = true
	}
	for _, d := range rs.forgingDelegates {
		if produced[d.PublicKey] {
			continue
		}
		live := rs.wallets.FindByPublicKey(d.PublicKey)
		rs.log.Debugf("Delegate %s (%s) just missed a round.", live.Username(), live.PublicKey)
		rs.emitter.Dispatch(events.RoundMissed, MissedRound{Delegate: live, Round: rs.forgingRound})
	}
}

func (rs *State) applyRound(ctx context.Context, h basics.Height) (err error) {
	if h != basics.GenesisHeight && !ledgercore.IsNewRound(rs.params, h+1) {
		return nil
	}
	prevForging, prevRound := rs.forgingDelegates, rs.forgingRound
	defer func() {
		if err != nil {
			rs.blocksInCurrentRound = rs.blocksInCurrentRound[:len(rs.blocksInCurrentRound)-1]
			rs.forgingDelegates, rs.forgingRound = prevForging, prevRound
		}
	}()

	ri := ledgercore.CalculateRound(rs.params, h+1)
	rs.log.Infof("Starting Round %d", ri.Round)

	if h > basics.GenesisHeight {
		rs.DetectMissedRound()
	}
	if err = rs.dpos.BuildDelegateRanking(); err != nil {
		return err
	}
	if err = rs.dpos.SetDelegatesRound(ri); err != nil {
		return err
	}
	roundDelegates := rs.dpos.RoundDelegates()
	if err = rs.setForgingDelegatesOfRound(ctx, ri, roundDelegates); err != nil {
		return err
	}

	rows := make([]store.RoundDelegate, len(roundDelegates))
	for i, d := range roundDelegates {
		rows[i] = store.RoundDelegate{Round: ri.Round, PublicKey: d.PublicKey, Balance: d.VoteBalance()}
	}
	if err = rs.store.DeleteRound(ctx, ri.Round); err != nil {
		return fmt.Errorf("round %d: %w", ri.Round, err)
	}
	if err = rs.store.SaveRound(ctx, rows); err != nil {
		return fmt.Errorf("round %d: %w", ri.Round, err)
	}

	rs.blocksInCurrentRound = rs.blocksInCurrentRound[:0]
	rs.emitter.Dispatch(events.RoundApplied, RoundApplied{Round: ri, Delegates: rs.ForgingDelegates()})
	return nil
}

func (rs *State) setForgingDelegatesOfRound(ctx context.Context, ri ledgercore.RoundInfo, delegates []*wallets.Wallet) error {
	forging, err := rs.GetActiveDelegates(ctx, &ri, delegates)
	if err != nil {
		return err
	}
	rs.forgingDelegates = forging
	rs.forgingRound = ri.Round
	return nil
}

// blocksForRound loads the blocks of round ri up to and including height to.
func (rs *State) blocksForRound(ctx context.Context, ri ledgercore.RoundInfo, to basics.Height) ([]bookkeeping.Block, error) {
	blks, err := rs.store.BlocksByHeightRange(ctx, ri.RoundHeight, to)
	if err != nil {
		return nil, fmt.Errorf("blocks of %v: %w", ri, err)
	}
	if want := int(to-ri.RoundHeight) + 1; len(blks) != want {
		return nil, fmt.Errorf("blocks of %v: expected %d blocks, found %d", ri, want, len(blks))
	}
	return blks, nil
}

// restoreDelegateRounds sets delegate.round of each of delegates to the
// latest stored round, up to and including upTo, whose ranking lists it. The
// attribute is forgotten on delegates that no such round lists.
func (rs *State) restoreDelegateRounds(ctx context.Context, upTo uint64, delegates []*wallets.Wallet) error {
	pending := make(map[string]*wallets.Wallet, len(delegates))
	for _, d := range delegates {
		pending[d.PublicKey] = d
	}
	for r := upTo; r >= 1 && len(pending) > 0; r-- {
		rows, err := rs.store.GetRound(ctx, r)
		if err != nil {
			return fmt.Errorf("round %d: %w", r, err)
		}
		for _, row := range rows {
			if d, ok := pending[row.PublicKey]; ok {
				wallets.SetAttribute(d, wallets.DelegateRound, r)
				delete(pending, row.PublicKey)
			}
		}
	}
	for _, d := range pending {
		wallets.ForgetAttribute(d, wallets.DelegateRound)
	}
	return nil
}

// detachedTip is the tip of a block state that only reverts.
type detachedTip struct {
	blk bookkeeping.Block
}

func (t *detachedTip) LastBlock() bookkeeping.Block       { return t.blk }
func (t *detachedTip) SetLastBlock(blk bookkeeping.Block) { t.blk = blk }

// calcPreviousActiveDelegates ranks the delegates as they stood when round
// ri began, by reverting blks on a copy of the wallets. The live wallets get
// the ranks of that state; the returned delegates are the copies.
func (rs *State) calcPreviousActiveDelegates(ctx context.Context, ri ledgercore.RoundInfo, blks []bookkeeping.Block) ([]*wallets.Wallet, error) {
	clone := rs.wallets.Clone()
	bs := blockstate.MakeBlockState(clone, rs.registry, &detachedTip{blk: rs.tip.LastBlock()}, rs.log)

	for i := len(blks) - 1; i >= 0; i-- {
		if blks[i].Height == basics.GenesisHeight {
			continue
		}
		if err := bs.RevertBlock(&blks[i]); err != nil {
			return nil, fmt.Errorf("previous delegates of %v: %w", ri, err)
		}
	}

	prev := dpos.MakeState(clone, rs.log)
	if err := prev.BuildDelegateRanking(); err != nil {
		return nil, err
	}
	if err := prev.SetDelegatesRound(ri); err != nil {
		return nil, err
	}

	for _, d := range clone.AllByUsername() {
		live, ok := rs.wallets.FindByUsername(d.Username())
		if !ok {
			continue
		}
		if rank, ok := wallets.GetAttribute(d, wallets.DelegateRank); ok {
			wallets.SetAttribute(live, wallets.DelegateRank, rank)
		} else {
			wallets.ForgetAttribute(live, wallets.DelegateRank)
		}
	}
	return prev.RoundDelegates(), nil
}

var _ Params = (*config.Manager)(nil)
