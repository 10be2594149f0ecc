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
	"fmt"
	"sync"

	"github.com/blinklabs-io/gobeacon/cbor"
	"github.com/blinklabs-io/gobeacon/common"
)

// payloadStore keeps payloads as CBOR, so every lookup returns a private copy
type payloadStore[K comparable] struct {
	mu       sync.RWMutex
	payloads map[K]cbor.RawMessage
}

func newPayloadStore[K comparable]() *payloadStore[K] {
	return &payloadStore[K]{
		payloads: make(map[K]cbor.RawMessage),
	}
}

func (s *payloadStore[K]) Put(key K, payload *common.ExecutionPayload) error {
	cborData, err := cbor.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[key] = cborData
	return nil
}

func (s *payloadStore[K]) Get(key K) (*common.ExecutionPayload, error) {
	s.mu.RLock()
	cborData, ok := s.payloads[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	ret := &common.ExecutionPayload{}
	if _, err := cbor.Decode(cborData, ret); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return ret, nil
}

func (s *payloadStore[K]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.payloads[key]
	return ok
}

func (s *payloadStore[K]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, key)
}

func (s *payloadStore[K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}
