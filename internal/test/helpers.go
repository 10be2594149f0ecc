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

// Package test contains helpers shared by the package tests
package test

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/gobeacon/common"
)

// DecodeHexString is a helper function for tests that decodes hex strings. It doesn't return
// an error and panics if the input is not valid hex
func DecodeHexString(hexData string) []byte {
	// Strip off any leading/trailing whitespace and 0x prefix in hex string
	hexData = strings.TrimPrefix(strings.TrimSpace(hexData), "0x")
	decoded, err := hex.DecodeString(hexData)
	if err != nil {
		panic(fmt.Sprintf("error decoding hex: %s", err))
	}
	return decoded
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// HashFromByte returns a hash whose first byte is b
func HashFromByte(b byte) common.Hash {
	var h common.Hash
	h[0] = b
	return h
}
