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

	"github.com/blinklabs-io/gobeacon/cbor"
)

const PayloadIdSize = 8

// ForkchoiceState is the consensus layer's view of the chain head
type ForkchoiceState struct {
	HeadBlockHash Hash `json:"headBlockHash"`
	// This value must be either equal to or an ancestor of HeadBlockHash
	SafeBlockHash      Hash `json:"safeBlockHash"`
	FinalizedBlockHash Hash `json:"finalizedBlockHash"`
}

// PayloadId identifies a payload build job
type PayloadId [PayloadIdSize]byte

func (p PayloadId) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

func (p PayloadId) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PayloadId) UnmarshalText(text []byte) error {
	return decodeFixedHex(string(text), p[:])
}

type payloadIdInput struct {
	cbor.StructAsArray
	Parent     Hash
	Attributes *PayloadAttributes
}

// NewPayloadId derives the id of the payload built on parent with the given
// attributes. The same inputs always produce the same id, so repeated
// forkchoice updates requesting the same build resolve to the same job
func NewPayloadId(parent Hash, attrs *PayloadAttributes) (PayloadId, error) {
	var ret PayloadId
	cborData, err := cbor.Encode(
		&payloadIdInput{
			Parent:     parent,
			Attributes: attrs,
		},
	)
	if err != nil {
		return ret, fmt.Errorf("encode payload id input: %w", err)
	}
	hash := Blake2b256Hash(cborData)
	copy(ret[:], hash[:PayloadIdSize])
	return ret, nil
}

// ForkchoiceUpdated is the final result of a forkchoice update: the validity of
// the new state and, when a build was requested, the id of the payload being built
type ForkchoiceUpdated struct {
	PayloadStatus PayloadStatus `json:"payloadStatus"`
	PayloadId     *PayloadId    `json:"payloadId"`
}

// NewForkchoiceUpdated returns a result without a payload id
func NewForkchoiceUpdated(status PayloadStatus) ForkchoiceUpdated {
	return ForkchoiceUpdated{PayloadStatus: status}
}

// WithPayloadId returns a copy of the result carrying the given payload id
func (f ForkchoiceUpdated) WithPayloadId(id PayloadId) ForkchoiceUpdated {
	f.PayloadId = &id
	return f
}

func (f ForkchoiceUpdated) IsValid() bool {
	return f.PayloadStatus.IsValid()
}
