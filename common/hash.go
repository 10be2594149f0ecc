// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	HashSize    = 32
	AddressSize = 20
)

// Hash is a 32-byte block, state or root hash
type Hash [HashSize]byte

// NewHash returns a Hash from the provided bytes. Input shorter than HashSize
// is zero-padded on the right and longer input is truncated
func NewHash(data []byte) Hash {
	h := Hash{}
	copy(h[:], data)
	return h
}

// NewHashFromHex parses a hex string, with or without a 0x prefix
func NewHashFromHex(hexStr string) (Hash, error) {
	var h Hash
	err := decodeFixedHex(hexStr, h[:])
	return h, err
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether the hash is all zero bytes
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixedHex(string(text), h[:])
}

// Blake2b256Hash generates a Blake2b-256 hash from the provided data
func Blake2b256Hash(data []byte) Hash {
	tmpHash, err := blake2b.New(HashSize, nil)
	if err != nil {
		panic(
			fmt.Sprintf(
				"unexpected error generating empty blake2b hash: %s",
				err,
			),
		)
	}
	tmpHash.Write(data)
	return Hash(tmpHash.Sum(nil))
}

// Address is a 20-byte execution-layer account address
type Address [AddressSize]byte

// NewAddressFromHex parses a hex string, with or without a 0x prefix
func NewAddressFromHex(hexStr string) (Address, error) {
	var a Address
	err := decodeFixedHex(hexStr, a[:])
	return a, err
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	return decodeFixedHex(string(text), a[:])
}

func decodeFixedHex(hexStr string, dest []byte) error {
	hexStr = strings.TrimPrefix(strings.TrimPrefix(hexStr, "0x"), "0X")
	if len(hexStr) != len(dest)*2 {
		return fmt.Errorf(
			"invalid hex length: expected %d characters, got %d",
			len(dest)*2,
			len(hexStr),
		)
	}
	if _, err := hex.Decode(dest, []byte(hexStr)); err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	return nil
}
