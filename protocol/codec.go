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

package protocol

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/algorand/go-codec/codec"
)

// Stored values, block hashes and transaction ids use canonical msgpack.
// Network files and block streams use JSON. Both reject unknown fields, so
// a value written by a newer layout fails to decode instead of losing data.
var (
	msgpackHandle = &codec.MsgpackHandle{}
	jsonHandle    = &codec.JsonHandle{}
)

func init() {
	msgpackHandle.ErrorIfNoField = true
	msgpackHandle.ErrorIfNoArrayExpand = true
	msgpackHandle.Canonical = true
	msgpackHandle.RecursiveEmptyCheck = true
	msgpackHandle.WriteExt = true
	msgpackHandle.PositiveIntUnsigned = true
	msgpackHandle.Raw = true

	jsonHandle.ErrorIfNoField = true
	jsonHandle.ErrorIfNoArrayExpand = true
	jsonHandle.Canonical = true
	jsonHandle.RecursiveEmptyCheck = true
	jsonHandle.Indent = 2
	jsonHandle.HTMLCharsAsIs = true
}

// ErrEmpty is returned when decoding an empty buffer.
var ErrEmpty = errors.New("empty buffer")

// DecodeError reports a value that could not be decoded into Type.
type DecodeError struct {
	Type string
	Err  error
}

func (err DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", err.Type, err.Err)
}

func (err DecodeError) Unwrap() error {
	return err.Err
}

// Decoder decodes a stream of values.
type Decoder interface {
	Decode(objptr interface{}) error
}

const initEncodeBufSize = 256

// Encode returns the canonical msgpack encoding of obj. It panics if obj
// cannot be encoded, which only happens for types that are not serializable.
func Encode(obj interface{}) []byte {
	buf := make([]byte, 0, initEncodeBufSize)
	codec.NewEncoderBytes(&buf, msgpackHandle).MustEncode(obj)
	return buf
}

// Decode decodes msgpack b into objptr.
func Decode(b []byte, objptr interface{}) error {
	return decode(b, objptr, msgpackHandle)
}

// EncodeJSON returns the indented JSON encoding of obj.
func EncodeJSON(obj interface{}) []byte {
	var buf []byte
	codec.NewEncoderBytes(&buf, jsonHandle).MustEncode(obj)
	return buf
}

// DecodeJSON decodes JSON b into objptr.
func DecodeJSON(b []byte, objptr interface{}) error {
	return decode(b, objptr, jsonHandle)
}

func decode(b []byte, objptr interface{}, h codec.Handle) (err error) {
	if len(b) == 0 {
		return DecodeError{Type: typeName(objptr), Err: ErrEmpty}
	}
	defer func() {
		if r := recover(); r != nil {
			err = DecodeError{Type: typeName(objptr), Err: fmt.Errorf("%v", r)}
		}
	}()
	if err := codec.NewDecoderBytes(b, h).Decode(objptr); err != nil {
		return DecodeError{Type: typeName(objptr), Err: err}
	}
	return nil
}

func typeName(objptr interface{}) string {
	t := reflect.TypeOf(objptr)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// NewJSONEncoder returns an encoder writing JSON values to w.
func NewJSONEncoder(w io.Writer) *codec.Encoder {
	return codec.NewEncoder(w, jsonHandle)
}

// NewJSONDecoder returns a decoder reading a stream of JSON values from r.
// It returns io.EOF once the stream is exhausted.
func NewJSONDecoder(r io.Reader) Decoder {
	return codec.NewDecoder(r, jsonHandle)
}
