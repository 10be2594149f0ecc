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

package consensus

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blinklabs-io/gobeacon/cbor"
	"github.com/blinklabs-io/gobeacon/common"
)

const (
	DefaultGenesisGasLimit = 30_000_000
	DefaultGenesisBaseFee  = 1_000_000_000
	LogsBloomSize          = 256
)

// ComputeBlockHash returns the hash identifying a payload: Blake2b-256 over the
// deterministic CBOR encoding of the payload with its BlockHash cleared
func ComputeBlockHash(payload *common.ExecutionPayload) (common.Hash, error) {
	tmpPayload := *payload
	tmpPayload.BlockHash = common.Hash{}
	cborData, err := cbor.Encode(&tmpPayload)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode payload: %w", err)
	}
	return common.Blake2b256Hash(cborData), nil
}

// DefaultGenesis returns an empty genesis block
func DefaultGenesis() *common.ExecutionPayload {
	genesis := &common.ExecutionPayload{
		LogsBloom:     make([]byte, LogsBloomSize),
		GasLimit:      DefaultGenesisGasLimit,
		BaseFeePerGas: big.NewInt(DefaultGenesisBaseFee),
		Transactions:  [][]byte{},
	}
	// The genesis payload always encodes
	genesis.BlockHash, _ = ComputeBlockHash(genesis)
	return genesis
}

// DefaultPayloadBuilder builds an empty block on top of parent. Post-Cancun
// attributes (those carrying a parent beacon block root) produce a block with
// zeroed blob gas fields
func DefaultPayloadBuilder(
	ctx context.Context,
	parent *common.ExecutionPayload,
	attrs *common.PayloadAttributes,
) (*common.ExecutionPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload := &common.ExecutionPayload{
		ParentHash:   parent.BlockHash,
		FeeRecipient: attrs.SuggestedFeeRecipient,
		StateRoot:    parent.StateRoot,
		LogsBloom:    make([]byte, LogsBloomSize),
		PrevRandao:   attrs.PrevRandao,
		BlockNumber:  parent.BlockNumber + 1,
		GasLimit:     parent.GasLimit,
		Timestamp:    attrs.Timestamp,
		Transactions: [][]byte{},
	}
	if parent.BaseFeePerGas != nil {
		payload.BaseFeePerGas = new(big.Int).Set(parent.BaseFeePerGas)
	}
	if len(attrs.Withdrawals) > 0 {
		payload.Withdrawals = append(
			[]common.Withdrawal(nil),
			attrs.Withdrawals...,
		)
	}
	if attrs.ParentBeaconBlockRoot != nil {
		var blobGasUsed, excessBlobGas uint64
		payload.BlobGasUsed = &blobGasUsed
		payload.ExcessBlobGas = &excessBlobGas
	}
	blockHash, err := ComputeBlockHash(payload)
	if err != nil {
		return nil, err
	}
	payload.BlockHash = blockHash
	return payload, nil
}
