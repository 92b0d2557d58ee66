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

package transactions

import (
	"fmt"
	"strings"
)

// Vote is a single entry of a vote transaction.
type Vote struct {
	// Unvote is set for "-" entries.
	Unvote            bool
	DelegatePublicKey string
}

// ParseVote splits a "+publicKey" or "-publicKey" entry.
func ParseVote(entry string) (Vote, error) {
	switch {
	case strings.HasPrefix(entry, "+"):
		return Vote{DelegatePublicKey: entry[1:]}, nil
	case strings.HasPrefix(entry, "-"):
		return Vote{Unvote: true, DelegatePublicKey: entry[1:]}, nil
	default:
		return Vote{}, fmt.Errorf("malformed vote entry %q", entry)
	}
}

// String renders the vote in its wire form.
func (v Vote) String() string {
	if v.Unvote {
		return "-" + v.DelegatePublicKey
	}
	return "+" + v.DelegatePublicKey
}
