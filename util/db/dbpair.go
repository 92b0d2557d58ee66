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

// Pair holds a read-only and a writable accessor on the same database.
type Pair struct {
	Rdb Accessor
	Wdb Accessor
}

// Close the read and write accessors.
func (p *Pair) Close() {
	p.Rdb.Close()
	p.Wdb.Close()
}

// OpenPair opens the filename with both reading and writing accessors.
// The writer is opened first so that it creates the file.
func OpenPair(filename string, memory bool) (p Pair, err error) {
	p.Wdb, err = MakeAccessor(filename, false, memory)
	if err != nil {
		return
	}

	p.Rdb, err = MakeAccessor(filename, true, memory)
	if err != nil {
		p.Wdb.Close()
		return
	}
	return
}
