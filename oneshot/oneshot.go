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

// Package oneshot implements a single-use, single-value channel that pairs
// one request with exactly one reply.
//
// The Sender half travels with a request to whoever will answer it, while the
// Receiver half stays with the caller. The sender either delivers one value
// with Send or abandons the channel with Close. The receiver either obtains
// the value with Recv or detaches with Close, after which any reply is
// discarded.
package oneshot

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Recv when the sender abandoned the channel
// without delivering a value
var ErrClosed = errors.New("oneshot: sender closed without a value")

// ErrAlreadySent is returned by Send when a value was already delivered or
// the sender was already closed
var ErrAlreadySent = errors.New("oneshot: channel already completed")

// ErrReceiverClosed is returned by Send when the receiver detached before the
// value was delivered
var ErrReceiverClosed = errors.New("oneshot: receiver closed")

type channel[T any] struct {
	valueChan    chan T
	receiverGone chan struct{}
	onceComplete sync.Once
	onceDetach   sync.Once
}

// Sender is the producing half of a oneshot channel
type Sender[T any] struct {
	c *channel[T]
}

// Receiver is the consuming half of a oneshot channel
type Receiver[T any] struct {
	c *channel[T]
}

// New returns the two halves of a fresh oneshot channel
func New[T any]() (*Sender[T], *Receiver[T]) {
	c := &channel[T]{
		// Buffered so that Send never blocks, even when nobody is receiving
		valueChan:    make(chan T, 1),
		receiverGone: make(chan struct{}),
	}
	return &Sender[T]{c: c}, &Receiver[T]{c: c}
}

// Send delivers the value to the receiver. Only the first call to Send or
// Close has any effect. The value is discarded and ErrReceiverClosed returned
// if the receiver has already detached
func (s *Sender[T]) Send(value T) error {
	completed := false
	s.c.onceComplete.Do(func() {
		completed = true
		s.c.valueChan <- value
		close(s.c.valueChan)
	})
	if !completed {
		return ErrAlreadySent
	}
	select {
	case <-s.c.receiverGone:
		return ErrReceiverClosed
	default:
		return nil
	}
}

// Close abandons the channel without a value. The receiver observes ErrClosed
func (s *Sender[T]) Close() {
	s.c.onceComplete.Do(func() {
		close(s.c.valueChan)
	})
}

// ReceiverClosed returns a channel that is closed once the receiver detaches
func (s *Sender[T]) ReceiverClosed() <-chan struct{} {
	return s.c.receiverGone
}

// Recv waits for the value. It returns ErrClosed if the sender abandoned the
// channel, or the context error if ctx ends first. Recv does not detach the
// receiver on context cancellation; callers that give up should call Close
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case value, ok := <-r.c.valueChan:
		if !ok {
			return zero, ErrClosed
		}
		return value, nil
	case <-r.c.receiverGone:
		return zero, ErrReceiverClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryRecv returns the value if one has been delivered. The second return
// value reports whether the channel has completed, either with a value or by
// the sender closing it
func (r *Receiver[T]) TryRecv() (T, bool, error) {
	var zero T
	select {
	case value, ok := <-r.c.valueChan:
		if !ok {
			return zero, true, ErrClosed
		}
		return value, true, nil
	default:
		return zero, false, nil
	}
}

// Close detaches the receiver. Subsequent sends fail with ErrReceiverClosed
func (r *Receiver[T]) Close() {
	r.c.onceDetach.Do(func() {
		close(r.c.receiverGone)
	})
}
