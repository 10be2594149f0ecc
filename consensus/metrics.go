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
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gobeacon/common"
)

// TaskMetrics tracks counters for an engine task.
// Uses atomic counters so Stats can be called from any goroutine.
type TaskMetrics struct {
	// Counters (atomic)
	payloadsReceived  atomic.Uint64
	payloadsValid     atomic.Uint64
	payloadsInvalid   atomic.Uint64
	payloadsSyncing   atomic.Uint64
	payloadErrors     atomic.Uint64
	forkchoiceUpdates atomic.Uint64
	forkchoiceErrors  atomic.Uint64
	buildsQueued      atomic.Uint64
	buildsCompleted   atomic.Uint64
	buildsFailed      atomic.Uint64
	buildsDropped     atomic.Uint64
	eventsSent        atomic.Uint64
	subscribers       atomic.Int64
	subscribersPruned atomic.Uint64

	// Timing (requires mutex)
	mu                           sync.RWMutex
	headHash                     common.Hash
	headNumber                   uint64
	lastTransitionConfigExchange time.Time
	startTime                    time.Time
}

// TaskStats is a point-in-time snapshot of TaskMetrics
type TaskStats struct {
	PayloadsReceived             uint64
	PayloadsValid                uint64
	PayloadsInvalid              uint64
	PayloadsSyncing              uint64
	PayloadErrors                uint64
	ForkchoiceUpdates            uint64
	ForkchoiceErrors             uint64
	BuildsQueued                 uint64
	BuildsCompleted              uint64
	BuildsFailed                 uint64
	BuildsDropped                uint64
	EventsSent                   uint64
	Subscribers                  int64
	SubscribersPruned            uint64
	HeadHash                     common.Hash
	HeadNumber                   uint64
	LastTransitionConfigExchange time.Time
	StartTime                    time.Time
}

// NewTaskMetrics creates a new TaskMetrics.
func NewTaskMetrics() *TaskMetrics {
	return &TaskMetrics{
		startTime: time.Now(),
	}
}

// RecordNewPayload records the outcome of a new payload request.
func (m *TaskMetrics) RecordNewPayload(status common.PayloadStatus, err error) {
	m.payloadsReceived.Add(1)
	switch {
	case err != nil:
		m.payloadErrors.Add(1)
	case status.IsValid():
		m.payloadsValid.Add(1)
	case status.IsInvalid():
		m.payloadsInvalid.Add(1)
	case status.IsSyncing():
		m.payloadsSyncing.Add(1)
	}
}

// RecordForkchoiceUpdate records a processed forkchoice update.
func (m *TaskMetrics) RecordForkchoiceUpdate(err error) {
	m.forkchoiceUpdates.Add(1)
	if err != nil {
		m.forkchoiceErrors.Add(1)
	}
}

// RecordHead records a new canonical head.
func (m *TaskMetrics) RecordHead(hash common.Hash, number uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headHash = hash
	m.headNumber = number
}

// RecordTransitionConfigExchange records the time of a transition
// configuration exchange.
func (m *TaskMetrics) RecordTransitionConfigExchange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTransitionConfigExchange = time.Now()
}

// RecordBuildQueued increments the queued build counter.
func (m *TaskMetrics) RecordBuildQueued() {
	m.buildsQueued.Add(1)
}

// RecordBuild records the result of a build job.
func (m *TaskMetrics) RecordBuild(err error) {
	if err != nil {
		m.buildsFailed.Add(1)
	} else {
		m.buildsCompleted.Add(1)
	}
}

// RecordBuildDropped increments the dropped build counter.
func (m *TaskMetrics) RecordBuildDropped() {
	m.buildsDropped.Add(1)
}

// RecordEventSent increments the sent event counter.
func (m *TaskMetrics) RecordEventSent() {
	m.eventsSent.Add(1)
}

// RecordSubscriberAdded increments the active subscriber gauge.
func (m *TaskMetrics) RecordSubscriberAdded() {
	m.subscribers.Add(1)
}

// RecordSubscriberRemoved decrements the active subscriber gauge. Pruned
// subscribers are also counted separately.
func (m *TaskMetrics) RecordSubscriberRemoved(pruned bool) {
	m.subscribers.Add(-1)
	if pruned {
		m.subscribersPruned.Add(1)
	}
}

// Stats returns a snapshot of the current metrics.
func (m *TaskMetrics) Stats() TaskStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return TaskStats{
		PayloadsReceived:             m.payloadsReceived.Load(),
		PayloadsValid:                m.payloadsValid.Load(),
		PayloadsInvalid:              m.payloadsInvalid.Load(),
		PayloadsSyncing:              m.payloadsSyncing.Load(),
		PayloadErrors:                m.payloadErrors.Load(),
		ForkchoiceUpdates:            m.forkchoiceUpdates.Load(),
		ForkchoiceErrors:             m.forkchoiceErrors.Load(),
		BuildsQueued:                 m.buildsQueued.Load(),
		BuildsCompleted:              m.buildsCompleted.Load(),
		BuildsFailed:                 m.buildsFailed.Load(),
		BuildsDropped:                m.buildsDropped.Load(),
		EventsSent:                   m.eventsSent.Load(),
		Subscribers:                  m.subscribers.Load(),
		SubscribersPruned:            m.subscribersPruned.Load(),
		HeadHash:                     m.headHash,
		HeadNumber:                   m.headNumber,
		LastTransitionConfigExchange: m.lastTransitionConfigExchange,
		StartTime:                    m.startTime,
	}
}
