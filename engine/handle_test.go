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

package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/engine"
	"github.com/blinklabs-io/gobeacon/internal/test"
	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/blinklabs-io/gobeacon/oneshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEngine drains the engine mailbox and hands each message to handleFunc
type fakeEngine struct {
	rx         *mailbox.Receiver[engine.Message]
	handleFunc func(engine.Message)
	doneChan   chan struct{}
}

func startFakeEngine(t *testing.T, handleFunc func(engine.Message)) (*engine.Handle, *fakeEngine) {
	t.Helper()
	tx, rx := engine.NewEngineMailbox()
	e := &fakeEngine{
		rx:         rx,
		handleFunc: handleFunc,
		doneChan:   make(chan struct{}),
	}
	go e.run()
	t.Cleanup(e.stop)
	return engine.NewHandle(tx), e
}

func (e *fakeEngine) run() {
	defer close(e.doneChan)
	for {
		msg, err := e.rx.Recv(context.Background())
		if err != nil {
			return
		}
		e.handleFunc(msg)
	}
}

func (e *fakeEngine) stop() {
	e.rx.Close()
	<-e.doneChan
}

func testForkchoiceState() common.ForkchoiceState {
	return common.ForkchoiceState{
		HeadBlockHash:      test.HashFromByte(3),
		SafeBlockHash:      test.HashFromByte(2),
		FinalizedBlockHash: test.HashFromByte(1),
	}
}

func TestNewPayloadValid(t *testing.T) {
	var gotPayload common.ExecutionPayload
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m, ok := msg.(*engine.NewPayloadMessage)
		if !ok {
			msg.Drop()
			return
		}
		gotPayload = m.Payload
		_ = m.Respond(common.NewPayloadStatusValid(m.Payload.BlockHash), nil)
	})
	payload := common.ExecutionPayload{
		BlockHash:   test.HashFromByte(9),
		BlockNumber: 12,
	}
	status, err := handle.NewPayload(context.Background(), payload, nil)
	require.NoError(t, err)
	assert.True(t, status.IsValid())
	require.NotNil(t, status.LatestValidHash)
	assert.Equal(t, test.HashFromByte(9), *status.LatestValidHash)
	assert.Equal(t, uint64(12), gotPayload.BlockNumber)
}

func TestNewPayloadEngineError(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.NewPayloadMessage)
		_ = m.Respond(
			common.PayloadStatus{},
			engine.ErrPreCancunBlockWithBlobTransactions,
		)
	})
	_, err := handle.NewPayload(context.Background(), common.ExecutionPayload{}, nil)
	require.Error(t, err)
	var npErr *engine.NewPayloadError
	require.ErrorAs(t, err, &npErr)
	assert.ErrorIs(t, err, engine.ErrPreCancunBlockWithBlobTransactions)
	assert.NotErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestNewPayloadReplyDropped(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		msg.Drop()
	})
	_, err := handle.NewPayload(context.Background(), common.ExecutionPayload{}, nil)
	var npErr *engine.NewPayloadError
	require.ErrorAs(t, err, &npErr)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestNewPayloadEngineStopped(t *testing.T) {
	tx, rx := engine.NewEngineMailbox()
	rx.Close()
	handle := engine.NewHandle(tx)
	_, err := handle.NewPayload(context.Background(), common.ExecutionPayload{}, nil)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestNewPayloadQueuedMessageDroppedOnShutdown(t *testing.T) {
	tx, rx := engine.NewEngineMailbox()
	handle := engine.NewHandle(tx)
	errChan := make(chan error, 1)
	go func() {
		_, err := handle.NewPayload(context.Background(), common.ExecutionPayload{}, nil)
		errChan <- err
	}()
	require.Eventually(
		t,
		func() bool { return rx.Len() == 1 },
		time.Second,
		5*time.Millisecond,
	)
	// Closing the receiver drops the queued request
	rx.Close()
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
	case <-time.After(time.Second):
		t.Fatal("did not receive error after engine shutdown")
	}
}

func TestNewPayloadContextCancel(t *testing.T) {
	replyChan := make(chan *engine.NewPayloadMessage, 1)
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		replyChan <- msg.(*engine.NewPayloadMessage)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := handle.NewPayload(ctx, common.ExecutionPayload{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// A late reply finds the caller gone
	m := <-replyChan
	err = m.Respond(common.NewPayloadStatusSyncing(), nil)
	assert.ErrorIs(t, err, oneshot.ErrReceiverClosed)
}

func TestForkChoiceUpdatedNoAttributes(t *testing.T) {
	state := testForkchoiceState()
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.ForkchoiceUpdatedMessage)
		if m.PayloadAttributes != nil {
			_ = m.RespondError(errors.New("unexpected attributes"))
			return
		}
		_ = m.Respond(
			engine.NewOnForkChoiceUpdatedValid(
				common.NewPayloadStatusValid(m.State.HeadBlockHash),
			),
		)
	})
	result, err := handle.ForkChoiceUpdated(context.Background(), state, nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	assert.Nil(t, result.PayloadId)
	assert.Equal(t, state.HeadBlockHash, *result.PayloadStatus.LatestValidHash)
}

func TestForkChoiceUpdatedWithPayloadBuild(t *testing.T) {
	state := testForkchoiceState()
	attrs := &common.PayloadAttributes{Timestamp: 1000}
	expectedId, err := common.NewPayloadId(state.HeadBlockHash, attrs)
	require.NoError(t, err)
	var wg sync.WaitGroup
	t.Cleanup(wg.Wait)
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.ForkchoiceUpdatedMessage)
		jobTx, jobRx := oneshot.New[engine.PayloadIdReply]()
		_ = m.Respond(
			engine.NewOnForkChoiceUpdatedWithPendingPayloadId(
				common.NewPayloadStatusValid(m.State.HeadBlockHash),
				jobRx,
			),
		)
		// Build job reports after the first reply was sent
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			id, _ := common.NewPayloadId(m.State.HeadBlockHash, m.PayloadAttributes)
			_ = jobTx.Send(engine.PayloadIdReply{PayloadId: id})
		}()
	})
	result, err := handle.ForkChoiceUpdated(context.Background(), state, attrs)
	require.NoError(t, err)
	assert.True(t, result.IsValid())
	require.NotNil(t, result.PayloadId)
	assert.Equal(t, expectedId, *result.PayloadId)
}

func TestForkChoiceUpdatedBuilderDropped(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.ForkchoiceUpdatedMessage)
		jobTx, jobRx := oneshot.New[engine.PayloadIdReply]()
		_ = m.Respond(
			engine.NewOnForkChoiceUpdatedWithPendingPayloadId(
				common.NewPayloadStatusValid(m.State.HeadBlockHash),
				jobRx,
			),
		)
		jobTx.Close()
	})
	_, err := handle.ForkChoiceUpdated(
		context.Background(),
		testForkchoiceState(),
		&common.PayloadAttributes{Timestamp: 1},
	)
	var fcuErr *engine.ForkChoiceUpdateError
	require.ErrorAs(t, err, &fcuErr)
	assert.ErrorIs(t, err, engine.ErrPayloadBuilderUnavailable)
	assert.NotErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestForkChoiceUpdatedReplyDropped(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		msg.Drop()
	})
	_, err := handle.ForkChoiceUpdated(context.Background(), testForkchoiceState(), nil)
	var fcuErr *engine.ForkChoiceUpdateError
	require.ErrorAs(t, err, &fcuErr)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)
}

func TestForkChoiceUpdatedInvalidState(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.ForkchoiceUpdatedMessage)
		if m.State.HeadBlockHash.IsZero() {
			_ = m.RespondError(engine.ErrInvalidForkchoiceState)
			return
		}
		_ = m.Respond(engine.NewOnForkChoiceUpdatedSyncing())
	})
	_, err := handle.ForkChoiceUpdated(
		context.Background(),
		common.ForkchoiceState{},
		&common.PayloadAttributes{Timestamp: 1},
	)
	var fcuErr *engine.ForkChoiceUpdateError
	require.ErrorAs(t, err, &fcuErr)
	assert.ErrorIs(t, err, engine.ErrInvalidForkchoiceState)
	assert.Equal(t, "forkchoice update: invalid forkchoice state", err.Error())
}

func TestForkChoiceUpdatedSyncing(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		_ = msg.(*engine.ForkchoiceUpdatedMessage).Respond(
			engine.NewOnForkChoiceUpdatedSyncing(),
		)
	})
	result, err := handle.ForkChoiceUpdated(context.Background(), testForkchoiceState(), nil)
	require.NoError(t, err)
	assert.True(t, result.PayloadStatus.IsSyncing())
	assert.Nil(t, result.PayloadId)
}

func TestForkChoiceUpdatedInvalidPayloadAttributes(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		_ = msg.(*engine.ForkchoiceUpdatedMessage).Respond(
			engine.NewOnForkChoiceUpdatedInvalidPayloadAttributes(),
		)
	})
	_, err := handle.ForkChoiceUpdated(
		context.Background(),
		testForkchoiceState(),
		&common.PayloadAttributes{},
	)
	assert.ErrorIs(t, err, engine.ErrInvalidPayloadAttributes)
}

func TestForkChoiceUpdatedEmptyReply(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		_ = msg.(*engine.ForkchoiceUpdatedMessage).Respond(nil)
	})
	_, err := handle.ForkChoiceUpdated(context.Background(), testForkchoiceState(), nil)
	assert.ErrorIs(t, err, engine.ErrInvalidReply)
}

func TestForkChoiceUpdatedContextCancelDuringBuild(t *testing.T) {
	jobChan := make(chan *oneshot.Sender[engine.PayloadIdReply], 1)
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.ForkchoiceUpdatedMessage)
		jobTx, jobRx := oneshot.New[engine.PayloadIdReply]()
		pending := engine.NewOnForkChoiceUpdatedWithPendingPayloadId(
			common.NewPayloadStatusValid(m.State.HeadBlockHash),
			jobRx,
		)
		if err := m.Respond(pending); err != nil {
			pending.Close()
		}
		jobChan <- jobTx
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := handle.ForkChoiceUpdated(
		ctx,
		testForkchoiceState(),
		&common.PayloadAttributes{Timestamp: 1},
	)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	jobTx := <-jobChan
	select {
	case <-jobTx.ReceiverClosed():
	case <-time.After(time.Second):
		t.Fatal("build job was not detached from its caller")
	}
}

func TestTransitionConfigurationExchanged(t *testing.T) {
	gotChan := make(chan engine.MessageType, 1)
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		gotChan <- msg.Type()
	})
	handle.TransitionConfigurationExchanged()
	select {
	case msgType := <-gotChan:
		assert.Equal(t, engine.MessageTypeTransitionConfigurationExchanged, msgType)
	case <-time.After(time.Second):
		t.Fatal("did not receive message")
	}
}

func TestTransitionConfigurationExchangedEngineStopped(t *testing.T) {
	tx, rx := engine.NewEngineMailbox()
	rx.Close()
	handle := engine.NewHandle(tx)
	// Must neither block nor panic
	handle.TransitionConfigurationExchanged()
}

func TestEventListenerOrdering(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.EventListenerMessage)
		for i := range 3 {
			_ = m.Subscriber.Send(
				engine.CanonicalChainCommittedEvent{HeadNumber: uint64(i)},
			)
		}
		m.Subscriber.Close()
	})
	stream := handle.EventListener()
	defer stream.Close()
	var numbers []uint64
	for evt := range stream.All(context.Background()) {
		committed, ok := evt.(engine.CanonicalChainCommittedEvent)
		require.True(t, ok)
		numbers = append(numbers, committed.HeadNumber)
	}
	assert.Equal(t, []uint64{0, 1, 2}, numbers)
	_, err := stream.Next(context.Background())
	assert.ErrorIs(t, err, engine.ErrEventStreamClosed)
}

func TestEventListenerDroppedStream(t *testing.T) {
	subChan := make(chan *mailbox.Sender[engine.Event], 1)
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		subChan <- msg.(*engine.EventListenerMessage).Subscriber
	})
	stream := handle.EventListener()
	sub := <-subChan
	stream.Close()
	err := sub.Send(engine.ForkchoiceUpdatedEvent{})
	assert.ErrorIs(t, err, mailbox.ErrClosed)
}

func TestEventListenerEngineStopped(t *testing.T) {
	tx, rx := engine.NewEngineMailbox()
	rx.Close()
	handle := engine.NewHandle(tx)
	stream := handle.EventListener()
	_, err := stream.Next(context.Background())
	assert.ErrorIs(t, err, engine.ErrEventStreamClosed)
}

func TestConcurrentCallers(t *testing.T) {
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		m := msg.(*engine.NewPayloadMessage)
		_ = m.Respond(common.NewPayloadStatusValid(m.Payload.BlockHash), nil)
	})
	const numCallers = 32
	var wg sync.WaitGroup
	errs := make([]error, numCallers)
	results := make([]common.PayloadStatus, numCallers)
	for i := range numCallers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			h := handle.Clone()
			results[idx], errs[idx] = h.NewPayload(
				context.Background(),
				common.ExecutionPayload{BlockHash: test.HashFromByte(byte(idx))},
				nil,
			)
		}(i)
	}
	wg.Wait()
	for i := range numCallers {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].LatestValidHash)
		assert.Equal(t, test.HashFromByte(byte(i)), *results[i].LatestValidHash)
	}
}

func TestConcurrentCallersReplyOutOfOrder(t *testing.T) {
	const numCallers = 16
	var queued []*engine.NewPayloadMessage
	handle, _ := startFakeEngine(t, func(msg engine.Message) {
		queued = append(queued, msg.(*engine.NewPayloadMessage))
		if len(queued) < numCallers {
			return
		}
		// Answer the last request first
		for i := len(queued) - 1; i >= 0; i-- {
			m := queued[i]
			_ = m.Respond(common.NewPayloadStatusValid(m.Payload.BlockHash), nil)
		}
	})
	var wg sync.WaitGroup
	errs := make([]error, numCallers)
	results := make([]common.PayloadStatus, numCallers)
	for i := range numCallers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = handle.Clone().NewPayload(
				context.Background(),
				common.ExecutionPayload{BlockHash: test.HashFromByte(byte(idx))},
				nil,
			)
		}(i)
	}
	wg.Wait()
	for i := range numCallers {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].LatestValidHash)
		assert.Equal(t, test.HashFromByte(byte(i)), *results[i].LatestValidHash)
	}
}
