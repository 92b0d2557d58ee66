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

package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address format is fixed by the network
)

const checksumLength = 4

// errAddressChecksum is returned when the trailing bytes do not match the payload.
var errAddressChecksum = errors.New("address checksum mismatch")

// errAddressLength is returned for payloads that are not a version byte plus a ripemd160 digest.
var errAddressLength = errors.New("address has wrong length")

// AddressFromPublicKey derives the base58check address of a public key for a
// network address version. Public keys are normally hex; any other string is
// hashed as given.
func AddressFromPublicKey(publicKey string, version byte) string {
	raw, err := hex.DecodeString(publicKey)
	if err != nil {
		raw = []byte(publicKey)
	}
	h := ripemd160.New()
	h.Write(raw)
	payload := append([]byte{version}, h.Sum(nil)...)
	return encodeCheck(payload)
}

func checksum(payload []byte) []byte {
	first := Hash(payload)
	second := Hash(first[:])
	return second[:checksumLength]
}

func encodeCheck(payload []byte) string {
	return base58.Encode(append(payload, checksum(payload)...))
}

// DecodeAddress checks an address and returns its version byte.
func DecodeAddress(address string) (version byte, err error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return 0, err
	}
	if len(raw) != 1+ripemd160.Size+checksumLength {
		return 0, errAddressLength
	}
	payload, sum := raw[:len(raw)-checksumLength], raw[len(raw)-checksumLength:]
	if !bytes.Equal(checksum(payload), sum) {
		return 0, errAddressChecksum
	}
	return payload[0], nil
}
