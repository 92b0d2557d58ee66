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

package ledgercore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/algorand/go-dpos/data/basics"
)

// TransactionInLedgerError is returned when a block carries transactions that were already forged
type TransactionInLedgerError struct {
	TxIDs []string
}

// Error satisfies builtin interface `error`
func (tile TransactionInLedgerError) Error() string {
	return fmt.Sprintf("transactions already in ledger: %s", strings.Join(tile.TxIDs, ","))
}

// BlockInLedgerError is returned when a block cannot be added because it has already been done
type BlockInLedgerError struct {
	Height basics.Height
	Next   basics.Height
}

// Error satisfies builtin interface `error`
func (bile BlockInLedgerError) Error() string {
	return fmt.Sprintf("block height already in ledger: block %d < next height %d", bile.Height, bile.Next)
}

// ErrNoEntry is used to indicate that a block is not present in the ledger.
type ErrNoEntry struct {
	Height    basics.Height
	Latest    basics.Height
	Committed basics.Height
}

// Error satisfies builtin interface `error`
func (err ErrNoEntry) Error() string {
	return fmt.Sprintf("ledger does not have entry %d (latest %d, committed %d)", err.Height, err.Latest, err.Committed)
}

// ErrCorruptBlock is returned when a persisted block cannot be decoded.
type ErrCorruptBlock struct {
	Height basics.Height
	Err    error
}

// Error satisfies builtin interface `error`
func (err ErrCorruptBlock) Error() string {
	return fmt.Sprintf("block %d is corrupt: %v", err.Height, err.Err)
}

// Unwrap returns the decoding error.
func (err ErrCorruptBlock) Unwrap() error {
	return err.Err
}

// ErrUnrecoverable wraps a fault after which the node must not continue.
type ErrUnrecoverable struct {
	Reason string
	Err    error
}

// Error satisfies builtin interface `error`
func (err ErrUnrecoverable) Error() string {
	if err.Err == nil {
		return "unrecoverable: " + err.Reason
	}
	return fmt.Sprintf("unrecoverable: %s: %v", err.Reason, err.Err)
}

// Unwrap returns the underlying fault.
func (err ErrUnrecoverable) Unwrap() error {
	return err.Err
}

// IsUnrecoverable reports whether err is, or wraps, an ErrUnrecoverable.
func IsUnrecoverable(err error) bool {
	var target ErrUnrecoverable
	return errors.As(err, &target)
}

// WrongBlockError is returned when a revert is asked for a block other
// than the one at the tip.
type WrongBlockError struct {
	Expected string
	Got      string
}

// Error satisfies builtin interface `error`
func (err WrongBlockError) Error() string {
	return fmt.Sprintf("reverted wrong block: tip is %s, asked to revert %s", err.Expected, err.Got)
}
