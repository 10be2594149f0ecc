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
	"math/big"

	"github.com/jinzhu/copier"
)

// Withdrawal represents a validator withdrawal processed by the execution layer
type Withdrawal struct {
	Index          uint64  `json:"index"          cbor:"0,keyasint"`
	ValidatorIndex uint64  `json:"validatorIndex" cbor:"1,keyasint"`
	Address        Address `json:"address"        cbor:"2,keyasint"`
	Amount         uint64  `json:"amount"         cbor:"3,keyasint"`
}

// ExecutionPayload is an execution-layer block as exchanged over the engine API
type ExecutionPayload struct {
	ParentHash    Hash         `json:"parentHash"              cbor:"0,keyasint"`
	FeeRecipient  Address      `json:"feeRecipient"            cbor:"1,keyasint"`
	StateRoot     Hash         `json:"stateRoot"               cbor:"2,keyasint"`
	ReceiptsRoot  Hash         `json:"receiptsRoot"            cbor:"3,keyasint"`
	LogsBloom     []byte       `json:"logsBloom"               cbor:"4,keyasint"`
	PrevRandao    Hash         `json:"prevRandao"              cbor:"5,keyasint"`
	BlockNumber   uint64       `json:"blockNumber"             cbor:"6,keyasint"`
	GasLimit      uint64       `json:"gasLimit"                cbor:"7,keyasint"`
	GasUsed       uint64       `json:"gasUsed"                 cbor:"8,keyasint"`
	Timestamp     uint64       `json:"timestamp"               cbor:"9,keyasint"`
	ExtraData     []byte       `json:"extraData"               cbor:"10,keyasint"`
	BaseFeePerGas *big.Int     `json:"baseFeePerGas"           cbor:"11,keyasint"`
	BlockHash     Hash         `json:"blockHash"               cbor:"12,keyasint"`
	Transactions  [][]byte     `json:"transactions"            cbor:"13,keyasint"`
	Withdrawals   []Withdrawal `json:"withdrawals,omitempty"   cbor:"14,keyasint,omitempty"`
	BlobGasUsed   *uint64      `json:"blobGasUsed,omitempty"   cbor:"15,keyasint,omitempty"`
	ExcessBlobGas *uint64      `json:"excessBlobGas,omitempty" cbor:"16,keyasint,omitempty"`
}

// HasBlobFields reports whether the payload carries any post-Cancun blob gas fields
func (p *ExecutionPayload) HasBlobFields() bool {
	return p.BlobGasUsed != nil || p.ExcessBlobGas != nil
}

// Clone returns a deep copy of the payload
func (p *ExecutionPayload) Clone() (*ExecutionPayload, error) {
	ret := &ExecutionPayload{}
	if err := copier.CopyWithOption(ret, p, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	// big.Int keeps its value in unexported fields, which copier cannot reach
	if p.BaseFeePerGas != nil {
		ret.BaseFeePerGas = new(big.Int).Set(p.BaseFeePerGas)
	}
	return ret, nil
}

// CancunPayloadFields contains the fields added to new-payload requests by the
// Cancun fork, which travel alongside the payload rather than inside it
type CancunPayloadFields struct {
	ParentBeaconBlockRoot Hash   `json:"parentBeaconBlockRoot"`
	VersionedHashes       []Hash `json:"versionedHashes"`
}

// PayloadAttributes describe the payload a consensus client wants built on top
// of the new head
type PayloadAttributes struct {
	Timestamp             uint64       `json:"timestamp"                       cbor:"0,keyasint"`
	PrevRandao            Hash         `json:"prevRandao"                      cbor:"1,keyasint"`
	SuggestedFeeRecipient Address      `json:"suggestedFeeRecipient"           cbor:"2,keyasint"`
	Withdrawals           []Withdrawal `json:"withdrawals,omitempty"           cbor:"3,keyasint,omitempty"`
	ParentBeaconBlockRoot *Hash        `json:"parentBeaconBlockRoot,omitempty" cbor:"4,keyasint,omitempty"`
}

// Clone returns a deep copy of the attributes
func (a *PayloadAttributes) Clone() (*PayloadAttributes, error) {
	ret := &PayloadAttributes{}
	if err := copier.CopyWithOption(ret, a, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	return ret, nil
}
