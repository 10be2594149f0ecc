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

// Package cbor provides deterministic CBOR encoding and decoding helpers for
// engine API data structures.
//
// This package wraps github.com/fxamacker/cbor/v2. Encoding always uses core
// deterministic map ordering so that the same value produces the same bytes,
// which makes the output suitable as hash input (payload ids, block hashes).
//
// # Key Types
//
//   - StructAsArray: embed to encode struct fields as a CBOR array instead of a map
//   - RawMessage: deferred decoding (like json.RawMessage)
//
// # Example
//
//	type buildKey struct {
//	    cbor.StructAsArray
//	    Parent    common.Hash
//	    Timestamp uint64
//	}
//
//	data, err := cbor.Encode(&buildKey{Parent: head, Timestamp: ts})
package cbor
