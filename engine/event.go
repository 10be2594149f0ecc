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

package engine

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/mailbox"
)

// EventType identifies an engine event variant
type EventType uint8

const (
	EventTypeForkchoiceUpdated EventType = iota + 1
	EventTypeForkBlockAdded
	EventTypeCanonicalBlockAdded
	EventTypeCanonicalChainCommitted
)

func (t EventType) String() string {
	switch t {
	case EventTypeForkchoiceUpdated:
		return "ForkchoiceUpdated"
	case EventTypeForkBlockAdded:
		return "ForkBlockAdded"
	case EventTypeCanonicalBlockAdded:
		return "CanonicalBlockAdded"
	case EventTypeCanonicalChainCommitted:
		return "CanonicalChainCommitted"
	default:
		return "Unknown"
	}
}

// Event is emitted by the engine task to every registered listener
type Event interface {
	Type() EventType
	isEvent()
}

// ForkchoiceUpdatedEvent is emitted after a forkchoice state was processed
type ForkchoiceUpdatedEvent struct {
	State  common.ForkchoiceState
	Status common.PayloadStatus
}

func (ForkchoiceUpdatedEvent) isEvent() {}

func (ForkchoiceUpdatedEvent) Type() EventType {
	return EventTypeForkchoiceUpdated
}

// ForkBlockAddedEvent is emitted when a block was inserted that is not (yet)
// part of the canonical chain
type ForkBlockAddedEvent struct {
	Payload *common.ExecutionPayload
}

func (ForkBlockAddedEvent) isEvent() {}

func (ForkBlockAddedEvent) Type() EventType {
	return EventTypeForkBlockAdded
}

// CanonicalBlockAddedEvent is emitted when a block became part of the
// canonical chain
type CanonicalBlockAddedEvent struct {
	Payload *common.ExecutionPayload
	Elapsed time.Duration
}

func (CanonicalBlockAddedEvent) isEvent() {}

func (CanonicalBlockAddedEvent) Type() EventType {
	return EventTypeCanonicalBlockAdded
}

// CanonicalChainCommittedEvent is emitted when the canonical head moved
type CanonicalChainCommittedEvent struct {
	HeadHash   common.Hash
	HeadNumber uint64
	Elapsed    time.Duration
}

func (CanonicalChainCommittedEvent) isEvent() {}

func (CanonicalChainCommittedEvent) Type() EventType {
	return EventTypeCanonicalChainCommitted
}

// EventStream is a single-pass, unbounded sequence of engine events. It ends
// when the engine task closes the subscription or the stream is closed
type EventStream struct {
	rx *mailbox.Receiver[Event]
}

func newEventStream(rx *mailbox.Receiver[Event]) *EventStream {
	return &EventStream{rx: rx}
}

// Next returns the next event, waiting until one is available. It returns
// ErrEventStreamClosed once the stream has ended
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	evt, err := s.rx.Recv(ctx)
	if err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return nil, ErrEventStreamClosed
		}
		return nil, err
	}
	return evt, nil
}

// All returns an iterator over the remaining events. Iteration stops when the
// stream ends or ctx is done. Events consumed by the iterator are gone; a
// second iteration only sees events that arrive afterwards
func (s *EventStream) All(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			evt, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(evt) {
				return
			}
		}
	}
}

// Close unsubscribes. The engine task notices on its next send and prunes
// the subscriber
func (s *EventStream) Close() {
	s.rx.Close()
}
