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
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// NewFormattedJSONEncoder returns a json encoder configured for
// pretty-printed output (human-readable)
func NewFormattedJSONEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	return enc
}

// LoadObjectFromFile implements the common pattern for loading an instance
// of an object from a json file.
func LoadObjectFromFile(filename string, object interface{}) (err error) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	err = dec.Decode(object)
	return
}

// SaveObjectToFile implements the common pattern for saving an object to a file as json
func SaveObjectToFile(filename string, object interface{}, prettyFormat bool) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	var enc *json.Encoder
	if prettyFormat {
		enc = NewFormattedJSONEncoder(f)
	} else {
		enc = json.NewEncoder(f)
	}
	err = enc.Encode(object)
	return err
}

// SaveNonDefaultValuesToFile saves the top-level fields of object that differ
// from defaultObject, plus the fields named in alwaysInclude.
func SaveNonDefaultValuesToFile(filename string, object, defaultObject interface{}, alwaysInclude []string, prettyFormat bool) error {
	values, err := toValueMap(object)
	if err != nil {
		return err
	}
	defaults, err := toValueMap(defaultObject)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(alwaysInclude))
	for _, name := range alwaysInclude {
		keep[name] = struct{}{}
	}
	for name, raw := range values {
		if _, ok := keep[name]; ok {
			continue
		}
		if isDefaultValue(name, raw, defaults) {
			delete(values, name)
		}
	}
	return SaveObjectToFile(filename, values, prettyFormat)
}

func toValueMap(object interface{}) (map[string]json.RawMessage, error) {
	encoded, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	values := make(map[string]json.RawMessage)
	err = json.Unmarshal(encoded, &values)
	return values, err
}

func isDefaultValue(name string, raw json.RawMessage, defaults map[string]json.RawMessage) bool {
	def, has := defaults[name]
	if !has {
		return false
	}
	return bytes.Equal(raw, def)
}
