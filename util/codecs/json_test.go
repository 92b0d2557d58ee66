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

package codecs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/algorand/go-dpos/test/partitiontest"
)

type testValue struct {
	Bool   bool
	String string
	Int    int
}

func TestSaveNonDefaultValues(t *testing.T) {
	partitiontest.PartitionTest(t)
	a := require.New(t)

	v := testValue{Bool: true, String: "default", Int: 1}
	def := testValue{Bool: true, String: "default", Int: 2}

	filename := filepath.Join(t.TempDir(), "out.json")
	a.NoError(SaveNonDefaultValuesToFile(filename, v, def, []string{"Bool"}, true))

	content, err := os.ReadFile(filename)
	a.NoError(err)
	a.Contains(string(content), `"Bool": true`)
	a.Contains(string(content), `"Int": 1`)
	a.NotContains(string(content), `"String"`)

	loaded := def
	a.NoError(LoadObjectFromFile(filename, &loaded))
	a.Equal(v, loaded)
}

func TestLoadObjectFromMissingFile(t *testing.T) {
	partitiontest.PartitionTest(t)

	var v testValue
	err := LoadObjectFromFile(filepath.Join(t.TempDir(), "missing.json"), &v)
	require.True(t, os.IsNotExist(err))
}
