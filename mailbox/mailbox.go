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

// Package mailbox implements an unbounded multi-producer, single-consumer
// queue.
//
// Sending never blocks. Any number of goroutines may share a Sender, while a
// single consumer drains the Receiver in send order. Values that can never be
// delivered, because the receiver is gone, are dropped: if they implement
// Dropper their Drop method is called so they can release whatever they
// carry.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when sending to a mailbox whose receiver (or sender
// side) has been closed, and by Recv once a closed mailbox has drained
var ErrClosed = errors.New("mailbox: closed")

// Dropper is implemented by values that must release resources when they are
// discarded without being received
type Dropper interface {
	Drop()
}

type queue[T any] struct {
	mu           sync.Mutex
	items        []T
	notifyChan   chan struct{}
	closedChan   chan struct{}
	recvClosed   bool
	senderClosed bool
}

// Sender is the producing half of a mailbox. It is safe for concurrent use
type Sender[T any] struct {
	q *queue[T]
}

// Receiver is the consuming half of a mailbox. It must only be drained by one
// goroutine at a time
type Receiver[T any] struct {
	q *queue[T]
}

// New returns the two halves of a new mailbox
func New[T any]() (*Sender[T], *Receiver[T]) {
	q := &queue[T]{
		notifyChan: make(chan struct{}, 1),
		closedChan: make(chan struct{}),
	}
	return &Sender[T]{q: q}, &Receiver[T]{q: q}
}

// Send appends a value to the mailbox. It fails with ErrClosed, after dropping
// the value, if the mailbox no longer accepts values
func (s *Sender[T]) Send(value T) error {
	q := s.q
	q.mu.Lock()
	if q.recvClosed || q.senderClosed {
		q.mu.Unlock()
		drop(value)
		return ErrClosed
	}
	q.items = append(q.items, value)
	q.mu.Unlock()
	q.notify()
	return nil
}

// Close stops accepting new values. The receiver still gets everything that
// was queued before Close and then observes ErrClosed
func (s *Sender[T]) Close() {
	q := s.q
	q.mu.Lock()
	if q.senderClosed {
		q.mu.Unlock()
		return
	}
	q.senderClosed = true
	q.mu.Unlock()
	q.notify()
}

// IsClosed reports whether the mailbox still accepts values
func (s *Sender[T]) IsClosed() bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.q.recvClosed || s.q.senderClosed
}

// Closed returns a channel that is closed when the receiver closes
func (s *Sender[T]) Closed() <-chan struct{} {
	return s.q.closedChan
}

// Recv returns the next value, waiting until one is available. It returns
// ErrClosed once the mailbox is closed and drained, or the context error if
// ctx ends first
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		value, ok, err := r.TryRecv()
		if ok || err != nil {
			return value, err
		}
		select {
		case <-r.q.notifyChan:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryRecv returns the next value without waiting. The boolean reports whether
// a value was returned
func (r *Receiver[T]) TryRecv() (T, bool, error) {
	var zero T
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		value := q.items[0]
		q.items[0] = zero
		q.items = q.items[1:]
		if len(q.items) == 0 {
			// Release the backing array once drained
			q.items = nil
		}
		return value, true, nil
	}
	if q.recvClosed || q.senderClosed {
		return zero, false, ErrClosed
	}
	return zero, false, nil
}

// Len returns the number of queued values
func (r *Receiver[T]) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}

// Close stops the mailbox. Queued values are dropped and further sends fail
func (r *Receiver[T]) Close() {
	q := r.q
	q.mu.Lock()
	if q.recvClosed {
		q.mu.Unlock()
		return
	}
	q.recvClosed = true
	pending := q.items
	q.items = nil
	close(q.closedChan)
	q.mu.Unlock()
	q.notify()
	for _, value := range pending {
		drop(value)
	}
}

func (q *queue[T]) notify() {
	select {
	case q.notifyChan <- struct{}{}:
	default:
	}
}

func drop[T any](value T) {
	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
}
