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

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/oneshot"
)

// PayloadIdReply is delivered by a payload build job once its payload id is
// known, or with the reason the job failed
type PayloadIdReply struct {
	PayloadId common.PayloadId
	Err       error
}

// OnForkChoiceUpdated is the deferred completion token returned by the engine
// task for a forkchoice update.
//
// The token already knows the validity of the forkchoice state. When a payload
// build was requested it also holds the receiving half of the build job's
// channel, and Wait blocks until the job reports. In every other case Wait
// returns immediately.
type OnForkChoiceUpdated struct {
	forkchoiceStatus common.PayloadStatus
	readyErr         error
	pending          *oneshot.Receiver[PayloadIdReply]
}

// NewOnForkChoiceUpdatedValid returns a token that resolves immediately with
// the given status and no payload id
func NewOnForkChoiceUpdatedValid(status common.PayloadStatus) *OnForkChoiceUpdated {
	return &OnForkChoiceUpdated{forkchoiceStatus: status}
}

// NewOnForkChoiceUpdatedSyncing returns a token for a head the engine does not
// know yet
func NewOnForkChoiceUpdatedSyncing() *OnForkChoiceUpdated {
	return &OnForkChoiceUpdated{
		forkchoiceStatus: common.NewPayloadStatusSyncing(),
	}
}

// NewOnForkChoiceUpdatedInvalid returns a token for a forkchoice state whose
// head was found to be invalid
func NewOnForkChoiceUpdatedInvalid(status common.PayloadStatus) *OnForkChoiceUpdated {
	return &OnForkChoiceUpdated{forkchoiceStatus: status}
}

// NewOnForkChoiceUpdatedInvalidPayloadAttributes returns a token for a valid
// forkchoice state whose payload attributes were rejected. Wait fails with
// ErrInvalidPayloadAttributes
func NewOnForkChoiceUpdatedInvalidPayloadAttributes() *OnForkChoiceUpdated {
	return &OnForkChoiceUpdated{
		forkchoiceStatus: common.NewPayloadStatusInvalid(nil, ErrInvalidPayloadAttributes.Error()),
		readyErr:         ErrInvalidPayloadAttributes,
	}
}

// NewOnForkChoiceUpdatedWithPendingPayloadId returns a token for a valid
// forkchoice state with a payload build in progress. Wait resolves once the
// build job answers on pending
func NewOnForkChoiceUpdatedWithPendingPayloadId(
	status common.PayloadStatus,
	pending *oneshot.Receiver[PayloadIdReply],
) *OnForkChoiceUpdated {
	return &OnForkChoiceUpdated{
		forkchoiceStatus: status,
		pending:          pending,
	}
}

// ForkchoiceStatus returns the validity of the forkchoice state, which is known
// before any payload build completes
func (o *OnForkChoiceUpdated) ForkchoiceStatus() common.PayloadStatus {
	return o.forkchoiceStatus
}

// IsPending reports whether Wait has to wait for a payload build job
func (o *OnForkChoiceUpdated) IsPending() bool {
	return o.pending != nil
}

// Wait returns the final forkchoice result. A token is single use: Wait
// consumes the build job's reply, so it must not be called more than once.
//
// If the build job is dropped without an answer, Wait fails with a
// *ForkChoiceUpdateError wrapping ErrPayloadBuilderUnavailable. If ctx ends
// first, the token is detached and ctx's error returned
func (o *OnForkChoiceUpdated) Wait(ctx context.Context) (common.ForkchoiceUpdated, error) {
	if o.readyErr != nil {
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(o.readyErr)
	}
	result := common.NewForkchoiceUpdated(o.forkchoiceStatus)
	if o.pending == nil {
		return result, nil
	}
	reply, err := o.pending.Recv(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.pending.Close()
			return common.ForkchoiceUpdated{}, ctxErr
		}
		if errors.Is(err, oneshot.ErrClosed) {
			err = ErrPayloadBuilderUnavailable
		}
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(err)
	}
	if reply.Err != nil {
		return common.ForkchoiceUpdated{}, forkChoiceUpdateError(reply.Err)
	}
	return result.WithPayloadId(reply.PayloadId), nil
}

// Close detaches the token from its build job without waiting for it
func (o *OnForkChoiceUpdated) Close() {
	if o.pending != nil {
		o.pending.Close()
	}
}
