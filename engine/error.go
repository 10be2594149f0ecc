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
	"errors"
)

var (
	// ErrEngineUnavailable is returned when the engine task's mailbox or a
	// reply channel was closed before a reply arrived
	ErrEngineUnavailable = errors.New("beacon consensus engine task stopped")

	// ErrPayloadBuilderUnavailable is returned when the payload build job
	// requested by a forkchoice update was dropped without reporting a result
	ErrPayloadBuilderUnavailable = errors.New("payload builder job dropped")

	// ErrInvalidForkchoiceState is returned when the forkchoice state itself is invalid
	ErrInvalidForkchoiceState = errors.New("invalid forkchoice state")

	// ErrInvalidPayloadAttributes is returned when the forkchoice state was
	// applied but the payload attributes were rejected
	ErrInvalidPayloadAttributes = errors.New("invalid payload attributes")

	// ErrUnknownFinalBlock is returned when the finalized block of a
	// forkchoice state is not known to the engine
	ErrUnknownFinalBlock = errors.New("final block not available in database")

	// ErrPreCancunBlockWithBlobTransactions is returned when a payload carries
	// blob fields but was submitted without the Cancun payload fields
	ErrPreCancunBlockWithBlobTransactions = errors.New(
		"pre-Cancun payload contains blob transactions",
	)

	// ErrInvalidReply is returned when the engine task answers with a reply
	// that carries neither a result nor an error
	ErrInvalidReply = errors.New("engine task sent an empty reply")

	// ErrEventStreamClosed is returned by an EventStream once it will not
	// produce any more events
	ErrEventStreamClosed = errors.New("engine event stream closed")
)

// NewPayloadError is returned by Handle.NewPayload. Err is either
// ErrEngineUnavailable or the error produced by the engine task
type NewPayloadError struct {
	Err error
}

func (e *NewPayloadError) Error() string {
	return "new payload: " + e.Err.Error()
}

func (e *NewPayloadError) Unwrap() error {
	return e.Err
}

// ForkChoiceUpdateError is returned by Handle.ForkChoiceUpdated. Err is
// ErrEngineUnavailable, ErrPayloadBuilderUnavailable or the error produced by
// the engine task
type ForkChoiceUpdateError struct {
	Err error
}

func (e *ForkChoiceUpdateError) Error() string {
	return "forkchoice update: " + e.Err.Error()
}

func (e *ForkChoiceUpdateError) Unwrap() error {
	return e.Err
}

func newPayloadError(err error) error {
	var npErr *NewPayloadError
	if errors.As(err, &npErr) {
		return err
	}
	return &NewPayloadError{Err: err}
}

func forkChoiceUpdateError(err error) error {
	var fcuErr *ForkChoiceUpdateError
	if errors.As(err, &fcuErr) {
		return err
	}
	return &ForkChoiceUpdateError{Err: err}
}
