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

// Package engine is the caller-facing access point to a beacon consensus
// engine task.
//
// The engine task runs in its own goroutine and owns all chain state. Callers
// talk to it through a Handle, which packages every call into a Message,
// pushes it onto the task's mailbox and waits on a private oneshot channel for
// the correlated reply. Forkchoice updates are answered in two phases: the
// task first replies with an OnForkChoiceUpdated token, which the handle then
// waits on for the result of any payload build job.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/blinklabs-io/gobeacon/oneshot"
)

// Handle is a shareable frontend for a running engine task. It is safe for
// concurrent use, and all clones share the same mailbox
type Handle struct {
	toEngine *mailbox.Sender[Message]
	logger   *slog.Logger
}

// HandleOptionFunc is a type that represents functions that modify the Handle config
type HandleOptionFunc func(*Handle)

// WithLogger specifies the logger to use. The default is slog.Default()
func WithLogger(logger *slog.Logger) HandleOptionFunc {
	return func(h *Handle) {
		h.logger = logger
	}
}

// NewHandle returns a Handle sending to the given engine mailbox
func NewHandle(toEngine *mailbox.Sender[Message], options ...HandleOptionFunc) *Handle {
	h := &Handle{
		toEngine: toEngine,
	}
	for _, option := range options {
		option(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Clone returns a new Handle sharing this handle's mailbox
func (h *Handle) Clone() *Handle {
	c := *h
	return &c
}

// NewPayload sends a new payload to the engine task and waits for its verdict.
//
// It fails with a *NewPayloadError wrapping ErrEngineUnavailable if the task
// is gone, or wrapping the task's own error otherwise. If ctx ends first the
// request is abandoned and ctx's error returned
func (h *Handle) NewPayload(
	ctx context.Context,
	payload common.ExecutionPayload,
	cancunFields *common.CancunPayloadFields,
) (common.PayloadStatus, error) {
	tx, rx := oneshot.New[NewPayloadReply]()
	h.send(
		&NewPayloadMessage{
			Payload:      payload,
			CancunFields: cancunFields,
			Reply:        tx,
		},
	)
	reply, err := recvReply(ctx, rx)
	if err != nil {
		if ctx.Err() != nil {
			return common.PayloadStatus{}, err
		}
		return common.PayloadStatus{}, newPayloadError(err)
	}
	if reply.Err != nil {
		return common.PayloadStatus{}, newPayloadError(reply.Err)
	}
	return reply.Status, nil
}

// ForkChoiceUpdated sends a forkchoice update to the engine task and waits for
// the final result, including the payload id of any requested build.
//
// The call has two independent wait steps. A channel closed in the first
// yields ErrEngineUnavailable, while a build job that is dropped in the second
// yields ErrPayloadBuilderUnavailable, both wrapped in *ForkChoiceUpdateError.
// An error reported by the engine task in the first step is returned without
// waiting for the second
func (h *Handle) ForkChoiceUpdated(
	ctx context.Context,
	state common.ForkchoiceState,
	payloadAttrs *common.PayloadAttributes,
) (common.ForkchoiceUpdated, error) {
	rx := h.sendForkChoiceUpdated(state, payloadAttrs)
	reply, err := recvReply(ctx, rx)
	if err != nil {
		if ctx.Err() != nil {
			return common.ForkchoiceUpdated{}, err
		}
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(err)
	}
	if reply.Err != nil {
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(reply.Err)
	}
	if reply.Pending == nil {
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(ErrInvalidReply)
	}
	return reply.Pending.Wait(ctx)
}

// sendForkChoiceUpdated sends a forkchoice update and returns the receiver for
// the first-phase reply
func (h *Handle) sendForkChoiceUpdated(
	state common.ForkchoiceState,
	payloadAttrs *common.PayloadAttributes,
) *oneshot.Receiver[ForkchoiceUpdatedReply] {
	tx, rx := oneshot.New[ForkchoiceUpdatedReply]()
	h.send(
		&ForkchoiceUpdatedMessage{
			State:             state,
			PayloadAttributes: payloadAttrs,
			Reply:             tx,
		},
	)
	return rx
}

// TransitionConfigurationExchanged tells the engine task that the consensus
// layer exchanged transition configuration. Delivery is best effort: nothing
// is reported if the task is gone
func (h *Handle) TransitionConfigurationExchanged() {
	h.send(&TransitionConfigurationExchangedMessage{})
}

// EventListener registers a new listener for engine events. Registration is
// best effort: if the task is gone the returned stream ends without producing
// any events. Close the stream to unsubscribe
func (h *Handle) EventListener() *EventStream {
	tx, rx := mailbox.New[Event]()
	h.send(&EventListenerMessage{Subscriber: tx})
	return newEventStream(rx)
}

// send pushes a message onto the mailbox. A failed send has already dropped the
// message, closing its reply channels, so callers learn about it by waiting
func (h *Handle) send(msg Message) {
	if err := h.toEngine.Send(msg); err != nil {
		h.logger.Debug(
			"engine mailbox closed, message dropped",
			"message_type", msg.Type().String(),
		)
	}
}

// recvReply waits for a correlated reply, mapping an abandoned channel to
// ErrEngineUnavailable. The receiver is detached when ctx ends first
func recvReply[T any](ctx context.Context, rx *oneshot.Receiver[T]) (T, error) {
	reply, err := rx.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			rx.Close()
			return reply, ctx.Err()
		}
		if errors.Is(err, oneshot.ErrClosed) {
			return reply, ErrEngineUnavailable
		}
		return reply, err
	}
	return reply, nil
}
