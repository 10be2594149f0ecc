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

import "fmt"

// PayloadStatusKind is the validity verdict for a payload or forkchoice state
type PayloadStatusKind uint8

const (
	PayloadStatusUnknown PayloadStatusKind = iota
	PayloadStatusValid
	PayloadStatusInvalid
	PayloadStatusSyncing
	PayloadStatusAccepted
)

var payloadStatusKindNames = map[PayloadStatusKind]string{
	PayloadStatusValid:    "VALID",
	PayloadStatusInvalid:  "INVALID",
	PayloadStatusSyncing:  "SYNCING",
	PayloadStatusAccepted: "ACCEPTED",
}

func (k PayloadStatusKind) String() string {
	ret, ok := payloadStatusKindNames[k]
	if !ok {
		return "UNKNOWN"
	}
	return ret
}

func (k PayloadStatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PayloadStatusKind) UnmarshalText(text []byte) error {
	for kind, name := range payloadStatusKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown payload status: %q", string(text))
}

// PayloadStatus is the engine's answer to a new payload or forkchoice update
type PayloadStatus struct {
	Status          PayloadStatusKind `json:"status"`
	LatestValidHash *Hash             `json:"latestValidHash"`
	ValidationError string            `json:"validationError,omitempty"`
}

// NewPayloadStatusValid returns a VALID status with the given latest valid hash
func NewPayloadStatusValid(latestValidHash Hash) PayloadStatus {
	return PayloadStatus{
		Status:          PayloadStatusValid,
		LatestValidHash: &latestValidHash,
	}
}

// NewPayloadStatusInvalid returns an INVALID status. The latest valid hash may be nil
// when the engine cannot determine the last valid ancestor
func NewPayloadStatusInvalid(latestValidHash *Hash, validationError string) PayloadStatus {
	return PayloadStatus{
		Status:          PayloadStatusInvalid,
		LatestValidHash: latestValidHash,
		ValidationError: validationError,
	}
}

// NewPayloadStatusSyncing returns a SYNCING status
func NewPayloadStatusSyncing() PayloadStatus {
	return PayloadStatus{Status: PayloadStatusSyncing}
}

// NewPayloadStatusAccepted returns an ACCEPTED status
func NewPayloadStatusAccepted() PayloadStatus {
	return PayloadStatus{Status: PayloadStatusAccepted}
}

func (s PayloadStatus) IsValid() bool {
	return s.Status == PayloadStatusValid
}

func (s PayloadStatus) IsInvalid() bool {
	return s.Status == PayloadStatusInvalid
}

func (s PayloadStatus) IsSyncing() bool {
	return s.Status == PayloadStatusSyncing
}

func (s PayloadStatus) String() string {
	switch {
	case s.ValidationError != "":
		return fmt.Sprintf("%s (%s)", s.Status, s.ValidationError)
	case s.LatestValidHash != nil:
		return fmt.Sprintf("%s (latest valid %s)", s.Status, s.LatestValidHash)
	default:
		return s.Status.String()
	}
}
