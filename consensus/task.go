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

// Package consensus provides an in-memory beacon consensus engine task.
//
// A Task consumes engine.Message values from its mailbox one at a time and
// owns all chain state: the known blocks, the canonical head and the event
// listeners. It defines no chain validity rules of its own. Payload
// validation and payload building are pluggable, and builds run on a
// separate worker pool so they never hold up the mailbox.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/engine"
	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/blinklabs-io/gobeacon/oneshot"
	"github.com/google/uuid"
)

var (
	ErrTaskAlreadyRunning = errors.New("engine task already running")
	ErrUnknownPayload     = errors.New("unknown payload id")
	ErrInvalidGenesis     = errors.New("invalid genesis block")
)

// Task is a beacon consensus engine task
type Task struct {
	config      TaskConfig
	logger      *slog.Logger
	rx          *mailbox.Receiver[engine.Message]
	metrics     *TaskMetrics
	pool        *BuildWorkerPool
	subscribers *subscriberRegistry
	running     atomic.Bool

	// Chain state, only touched from the task goroutine
	blocks    *payloadStore[common.Hash]
	buffered  *payloadStore[common.Hash]
	orphans   map[common.Hash][]common.Hash
	invalid   map[common.Hash]string
	head      common.Hash
	safe      common.Hash
	finalized common.Hash

	// Built payloads, written by build workers
	built *payloadStore[common.PayloadId]
}

// NewTask returns a Task that serves the given engine mailbox. Call Run to
// start it
func NewTask(rx *mailbox.Receiver[engine.Message], opts ...TaskOptionFunc) (*Task, error) {
	config := DefaultTaskConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Validator == nil {
		config.Validator = AcceptAllPayloads
	}
	if config.Builder == nil {
		config.Builder = DefaultPayloadBuilder
	}
	if config.Genesis == nil {
		config.Genesis = DefaultGenesis()
	}
	t := &Task{
		config:   config,
		logger:   config.Logger,
		rx:       rx,
		metrics:  NewTaskMetrics(),
		blocks:   newPayloadStore[common.Hash](),
		buffered: newPayloadStore[common.Hash](),
		orphans:  make(map[common.Hash][]common.Hash),
		invalid:  make(map[common.Hash]string),
		built:    newPayloadStore[common.PayloadId](),
	}
	t.subscribers = newSubscriberRegistry(t.logger, t.metrics)
	t.pool = NewBuildWorkerPool(
		BuildWorkerPoolConfig{
			Builder:    config.Builder,
			NumWorkers: config.BuildWorkers,
			QueueSize:  config.BuildQueueSize,
			OnResult:   t.onBuildResult,
		},
	)
	if err := t.initGenesis(config.Genesis); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Task) initGenesis(genesis *common.ExecutionPayload) error {
	if genesis.BlockHash.IsZero() {
		return fmt.Errorf("%w: missing block hash", ErrInvalidGenesis)
	}
	if err := t.blocks.Put(genesis.BlockHash, genesis); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGenesis, err)
	}
	t.head = genesis.BlockHash
	t.metrics.RecordHead(genesis.BlockHash, genesis.BlockNumber)
	return nil
}

// Run processes messages until ctx is done or every sender has closed the
// mailbox. Cancelling ctx stops Run even while requests are queued. On return
// the mailbox is closed, which drops any queued requests, running build jobs
// are cancelled and every event listener's stream ends
func (t *Task) Run(ctx context.Context) error {
	if t.running.Swap(true) {
		return ErrTaskAlreadyRunning
	}
	t.pool.Start(ctx)
	defer t.shutdown()
	t.logger.Debug(
		"engine task started",
		"head", t.head.String(),
	)
	for {
		// Queued requests are dropped once ctx is done, not served
		if ctx.Err() != nil {
			return nil
		}
		msg, err := t.rx.Recv(ctx)
		if err != nil {
			if errors.Is(err, mailbox.ErrClosed) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		t.handleMessage(msg)
	}
}

func (t *Task) shutdown() {
	t.rx.Close()
	t.pool.Stop()
	t.subscribers.CloseAll()
	t.logger.Debug("engine task stopped")
}

// Payload returns a payload built by a previous forkchoice update
func (t *Task) Payload(id common.PayloadId) (*common.ExecutionPayload, error) {
	payload, err := t.built.Get(id)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrUnknownPayload
	}
	return payload, nil
}

// Stats returns a snapshot of the task's metrics
func (t *Task) Stats() TaskStats {
	return t.metrics.Stats()
}

func (t *Task) handleMessage(msg engine.Message) {
	switch m := msg.(type) {
	case *engine.NewPayloadMessage:
		status, err := t.onNewPayload(&m.Payload, m.CancunFields)
		t.metrics.RecordNewPayload(status, err)
		if err := m.Respond(status, err); err != nil {
			t.logger.Debug(
				"new payload caller went away",
				"block_hash", m.Payload.BlockHash.String(),
			)
		}
	case *engine.ForkchoiceUpdatedMessage:
		pending, err := t.onForkchoiceUpdated(m.State, m.PayloadAttributes)
		t.metrics.RecordForkchoiceUpdate(err)
		if err != nil {
			if err := m.RespondError(err); err != nil {
				t.logger.Debug("forkchoice update caller went away")
			}
			return
		}
		if err := m.Respond(pending); err != nil {
			t.logger.Debug("forkchoice update caller went away")
			pending.Close()
		}
	case *engine.TransitionConfigurationExchangedMessage:
		t.metrics.RecordTransitionConfigExchange()
		t.logger.Debug("transition configuration exchanged")
	case *engine.EventListenerMessage:
		t.subscribers.Add(m.Subscriber)
	default:
		t.logger.Warn(
			"dropping unsupported engine message",
			"message_type", msg.Type().String(),
		)
		msg.Drop()
	}
}

func (t *Task) onNewPayload(
	payload *common.ExecutionPayload,
	cancunFields *common.CancunPayloadFields,
) (common.PayloadStatus, error) {
	if payload.HasBlobFields() && cancunFields == nil {
		return common.PayloadStatus{}, engine.ErrPreCancunBlockWithBlobTransactions
	}
	if reason, ok := t.invalid[payload.BlockHash]; ok {
		return common.NewPayloadStatusInvalid(nil, reason), nil
	}
	if t.blocks.Has(payload.BlockHash) {
		return common.NewPayloadStatusValid(payload.BlockHash), nil
	}
	if reason, ok := t.invalid[payload.ParentHash]; ok {
		reason = "invalid ancestor: " + reason
		t.invalid[payload.BlockHash] = reason
		return common.NewPayloadStatusInvalid(nil, reason), nil
	}
	if err := t.config.Validator(payload, cancunFields); err != nil {
		t.invalid[payload.BlockHash] = err.Error()
		var latestValidHash *common.Hash
		if t.blocks.Has(payload.ParentHash) {
			parentHash := payload.ParentHash
			latestValidHash = &parentHash
		}
		t.logger.Info(
			"rejected invalid payload",
			"block_hash", payload.BlockHash.String(),
			"block_number", payload.BlockNumber,
			"error", err.Error(),
		)
		return common.NewPayloadStatusInvalid(latestValidHash, err.Error()), nil
	}
	if !t.blocks.Has(payload.ParentHash) {
		if err := t.buffered.Put(payload.BlockHash, payload); err != nil {
			return common.PayloadStatus{}, err
		}
		t.orphans[payload.ParentHash] = append(t.orphans[payload.ParentHash], payload.BlockHash)
		t.logger.Debug(
			"buffered payload with unknown parent",
			"block_hash", payload.BlockHash.String(),
			"parent_hash", payload.ParentHash.String(),
		)
		return common.NewPayloadStatusSyncing(), nil
	}
	if err := t.insertBlock(payload); err != nil {
		return common.PayloadStatus{}, err
	}
	return common.NewPayloadStatusValid(payload.BlockHash), nil
}

// insertBlock adds a block whose parent is known, along with any buffered
// descendants that it connects
func (t *Task) insertBlock(payload *common.ExecutionPayload) error {
	queue := []*common.ExecutionPayload{payload}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if err := t.blocks.Put(next.BlockHash, next); err != nil {
			return err
		}
		t.emitPayloadEvent(next, func(p *common.ExecutionPayload) engine.Event {
			return engine.ForkBlockAddedEvent{Payload: p}
		})
		for _, childHash := range t.orphans[next.BlockHash] {
			child, err := t.buffered.Get(childHash)
			if err != nil {
				return err
			}
			t.buffered.Delete(childHash)
			if child != nil {
				queue = append(queue, child)
			}
		}
		delete(t.orphans, next.BlockHash)
	}
	return nil
}

func (t *Task) onForkchoiceUpdated(
	state common.ForkchoiceState,
	attrs *common.PayloadAttributes,
) (*engine.OnForkChoiceUpdated, error) {
	if state.HeadBlockHash.IsZero() {
		return nil, engine.ErrInvalidForkchoiceState
	}
	if reason, ok := t.invalid[state.HeadBlockHash]; ok {
		status := common.NewPayloadStatusInvalid(nil, reason)
		t.subscribers.Broadcast(engine.ForkchoiceUpdatedEvent{State: state, Status: status})
		return engine.NewOnForkChoiceUpdatedInvalid(status), nil
	}
	head, err := t.blocks.Get(state.HeadBlockHash)
	if err != nil {
		return nil, err
	}
	if head == nil {
		t.logger.Debug(
			"forkchoice head not available, syncing",
			"head", state.HeadBlockHash.String(),
		)
		t.subscribers.Broadcast(
			engine.ForkchoiceUpdatedEvent{
				State:  state,
				Status: common.NewPayloadStatusSyncing(),
			},
		)
		return engine.NewOnForkChoiceUpdatedSyncing(), nil
	}
	if !state.FinalizedBlockHash.IsZero() && !t.blocks.Has(state.FinalizedBlockHash) {
		return nil, engine.ErrUnknownFinalBlock
	}
	if !state.SafeBlockHash.IsZero() && !t.blocks.Has(state.SafeBlockHash) {
		return nil, engine.ErrInvalidForkchoiceState
	}
	if head.BlockHash != t.head {
		t.setCanonicalHead(head)
	}
	t.safe = state.SafeBlockHash
	t.finalized = state.FinalizedBlockHash
	status := common.NewPayloadStatusValid(head.BlockHash)
	t.subscribers.Broadcast(engine.ForkchoiceUpdatedEvent{State: state, Status: status})
	if attrs == nil {
		return engine.NewOnForkChoiceUpdatedValid(status), nil
	}
	if attrs.Timestamp <= head.Timestamp {
		t.logger.Debug(
			"rejected payload attributes",
			"head_timestamp", head.Timestamp,
			"timestamp", attrs.Timestamp,
		)
		return engine.NewOnForkChoiceUpdatedInvalidPayloadAttributes(), nil
	}
	return t.startBuild(head, attrs, status)
}

func (t *Task) setCanonicalHead(head *common.ExecutionPayload) {
	start := time.Now()
	t.head = head.BlockHash
	t.metrics.RecordHead(head.BlockHash, head.BlockNumber)
	t.emitPayloadEvent(head, func(p *common.ExecutionPayload) engine.Event {
		return engine.CanonicalBlockAddedEvent{Payload: p, Elapsed: time.Since(start)}
	})
	t.subscribers.Broadcast(
		engine.CanonicalChainCommittedEvent{
			HeadHash:   head.BlockHash,
			HeadNumber: head.BlockNumber,
			Elapsed:    time.Since(start),
		},
	)
	t.logger.Info(
		"canonical head updated",
		"head", head.BlockHash.String(),
		"block_number", head.BlockNumber,
	)
}

func (t *Task) startBuild(
	head *common.ExecutionPayload,
	attrs *common.PayloadAttributes,
	status common.PayloadStatus,
) (*engine.OnForkChoiceUpdated, error) {
	payloadId, err := common.NewPayloadId(head.BlockHash, attrs)
	if err != nil {
		return nil, err
	}
	jobTx, jobRx := oneshot.New[engine.PayloadIdReply]()
	pending := engine.NewOnForkChoiceUpdatedWithPendingPayloadId(status, jobRx)
	// Repeated requests for the same build resolve to the existing payload
	if t.built.Has(payloadId) {
		_ = jobTx.Send(engine.PayloadIdReply{PayloadId: payloadId})
		return pending, nil
	}
	attrsCopy, err := attrs.Clone()
	if err != nil {
		jobTx.Close()
		return nil, fmt.Errorf("copy payload attributes: %w", err)
	}
	job := &BuildJob{
		Id:        uuid.New(),
		PayloadId: payloadId,
		Parent:    head,
		Attrs:     attrsCopy,
		Reply:     jobTx,
	}
	if !t.pool.Submit(job) {
		t.metrics.RecordBuildDropped()
		t.logger.Warn(
			"payload build queue full, dropping job",
			"job_id", job.Id.String(),
			"payload_id", payloadId.String(),
		)
		return pending, nil
	}
	t.metrics.RecordBuildQueued()
	t.logger.Debug(
		"queued payload build",
		"job_id", job.Id.String(),
		"payload_id", payloadId.String(),
		"parent", head.BlockHash.String(),
	)
	return pending, nil
}

// onBuildResult runs on a build worker
func (t *Task) onBuildResult(job *BuildJob, payload *common.ExecutionPayload, err error) error {
	if err == nil {
		err = t.built.Put(job.PayloadId, payload)
	}
	t.metrics.RecordBuild(err)
	if err != nil {
		t.logger.Error(
			"payload build failed",
			"job_id", job.Id.String(),
			"payload_id", job.PayloadId.String(),
			"error", err.Error(),
		)
		return err
	}
	t.logger.Debug(
		"payload built",
		"job_id", job.Id.String(),
		"payload_id", job.PayloadId.String(),
		"block_hash", payload.BlockHash.String(),
	)
	return nil
}

// emitPayloadEvent broadcasts an event carrying a private copy of payload
func (t *Task) emitPayloadEvent(
	payload *common.ExecutionPayload,
	newEvent func(*common.ExecutionPayload) engine.Event,
) {
	if t.subscribers.Len() == 0 {
		return
	}
	payloadCopy, err := payload.Clone()
	if err != nil {
		t.logger.Error(
			"failed to copy payload for event",
			"block_hash", payload.BlockHash.String(),
			"error", err.Error(),
		)
		return
	}
	t.subscribers.Broadcast(newEvent(payloadCopy))
}
