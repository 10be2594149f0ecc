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

package common_test

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashHex = "0x8f5bab218b6bb34476f51ca588e9f4553a3a7ce5e13a66c660a5283e97e9a85a"

func TestHashFromHex(t *testing.T) {
	h, err := common.NewHashFromHex(testHashHex)
	require.NoError(t, err)
	assert.Equal(t, testHashHex, h.String())
	assert.False(t, h.IsZero())

	// Prefix is optional
	h2, err := common.NewHashFromHex(strings.TrimPrefix(testHashHex, "0x"))
	require.NoError(t, err)
	assert.Equal(t, h, h2)

	_, err = common.NewHashFromHex("0x1234")
	assert.Error(t, err)
	_, err = common.NewHashFromHex("0x" + strings.Repeat("zz", common.HashSize))
	assert.Error(t, err)
}

func TestHashJSON(t *testing.T) {
	h, err := common.NewHashFromHex(testHashHex)
	require.NoError(t, err)
	state := common.ForkchoiceState{HeadBlockHash: h}
	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.Contains(t, string(data), testHashHex)

	var decoded common.ForkchoiceState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, state, decoded)
}

func TestBlake2b256Hash(t *testing.T) {
	// Blake2b-256 of the empty string
	expected := "0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8"
	assert.Equal(t, expected, common.Blake2b256Hash(nil).String())
}

func TestPayloadIdDeterministic(t *testing.T) {
	parent := common.NewHash([]byte{0x01})
	attrs := &common.PayloadAttributes{
		Timestamp:  1700000000,
		PrevRandao: common.NewHash([]byte{0x02}),
	}
	id1, err := common.NewPayloadId(parent, attrs)
	require.NoError(t, err)
	id2, err := common.NewPayloadId(parent, attrs)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// Any change to the inputs changes the id
	attrs2 := *attrs
	attrs2.Timestamp++
	id3, err := common.NewPayloadId(parent, &attrs2)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
	id4, err := common.NewPayloadId(common.NewHash([]byte{0x03}), attrs)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id4)
}

func TestExecutionPayloadClone(t *testing.T) {
	blobGas := uint64(131072)
	orig := &common.ExecutionPayload{
		ParentHash:    common.NewHash([]byte{0xaa}),
		BlockNumber:   10,
		ExtraData:     []byte("extra"),
		BaseFeePerGas: big.NewInt(7),
		Transactions:  [][]byte{{0x01, 0x02}},
		Withdrawals:   []common.Withdrawal{{Index: 1, Amount: 32}},
		BlobGasUsed:   &blobGas,
	}
	clone, err := orig.Clone()
	require.NoError(t, err)
	assert.Equal(t, orig.ParentHash, clone.ParentHash)
	assert.Equal(t, 0, orig.BaseFeePerGas.Cmp(clone.BaseFeePerGas))
	assert.True(t, clone.HasBlobFields())

	// Mutating the clone must not affect the original
	clone.Transactions[0][0] = 0xff
	clone.ExtraData[0] = 'X'
	clone.BaseFeePerGas.SetInt64(100)
	clone.Withdrawals[0].Amount = 0
	assert.Equal(t, byte(0x01), orig.Transactions[0][0])
	assert.Equal(t, byte('e'), orig.ExtraData[0])
	assert.Equal(t, int64(7), orig.BaseFeePerGas.Int64())
	assert.Equal(t, uint64(32), orig.Withdrawals[0].Amount)
}

func TestPayloadStatus(t *testing.T) {
	h := common.NewHash([]byte{0x01})
	valid := common.NewPayloadStatusValid(h)
	assert.True(t, valid.IsValid())
	assert.Equal(t, "VALID", valid.Status.String())
	invalid := common.NewPayloadStatusInvalid(nil, "bad state root")
	assert.True(t, invalid.IsInvalid())
	assert.Equal(t, "INVALID (bad state root)", invalid.String())
	assert.True(t, common.NewPayloadStatusSyncing().IsSyncing())
	assert.Equal(t, "ACCEPTED", common.NewPayloadStatusAccepted().String())
	assert.Equal(t, "UNKNOWN", common.PayloadStatusKind(99).String())
}

func TestPayloadStatusJSON(t *testing.T) {
	var status common.PayloadStatus
	err := json.Unmarshal(
		[]byte(`{"status":"SYNCING","latestValidHash":null}`),
		&status,
	)
	require.NoError(t, err)
	assert.True(t, status.IsSyncing())
	assert.Nil(t, status.LatestValidHash)

	id := common.PayloadId{0xde, 0xad}
	orig := common.NewForkchoiceUpdated(
		common.NewPayloadStatusValid(common.NewHash([]byte{0x01})),
	).WithPayloadId(id)
	data, err := json.Marshal(orig)
	require.NoError(t, err)
	var decoded common.ForkchoiceUpdated
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, orig, decoded)

	err = json.Unmarshal([]byte(`{"status":"UNKNOWN"}`), &status)
	assert.Error(t, err)
}

func TestForkchoiceUpdatedWithPayloadId(t *testing.T) {
	base := common.NewForkchoiceUpdated(common.NewPayloadStatusSyncing())
	assert.Nil(t, base.PayloadId)
	withId := base.WithPayloadId(common.PayloadId{0x01})
	require.NotNil(t, withId.PayloadId)
	assert.Equal(t, "0x0100000000000000", withId.PayloadId.String())
	// The original value is untouched
	assert.Nil(t, base.PayloadId)
}
