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
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/engine"
	"github.com/blinklabs-io/gobeacon/oneshot"
	"github.com/google/uuid"
)

var ErrNilBuilder = errors.New("build worker pool requires a payload builder")

// BuildJob is a single payload build request
type BuildJob struct {
	Id        uuid.UUID
	PayloadId common.PayloadId
	Parent    *common.ExecutionPayload
	Attrs     *common.PayloadAttributes
	// Reply receives the payload id once the payload is stored. Closing it
	// without a value tells the caller the builder is unavailable
	Reply *oneshot.Sender[engine.PayloadIdReply]
}

// drop abandons the job without an answer
func (j *BuildJob) drop() {
	if j.Reply != nil {
		j.Reply.Close()
	}
}

// BuildResultFunc is called by a worker with the outcome of a build job,
// before the caller is answered. A returned error fails the job
type BuildResultFunc func(job *BuildJob, payload *common.ExecutionPayload, err error) error

// BuildWorkerPool runs payload build jobs on a fixed number of workers.
type BuildWorkerPool struct {
	builder    PayloadBuilder
	numWorkers int
	input      chan *BuildJob
	onResult   BuildResultFunc
	wg         sync.WaitGroup
	started    atomic.Bool
	stopped    atomic.Bool
	cancel     context.CancelFunc
}

// BuildWorkerPoolConfig holds configuration for creating a BuildWorkerPool.
type BuildWorkerPoolConfig struct {
	// Builder builds the payloads (required, panics if nil).
	Builder PayloadBuilder
	// NumWorkers is the number of parallel workers; defaults to 1 if <= 0.
	NumWorkers int
	// QueueSize is the number of jobs that may wait for a worker; defaults
	// to DefaultBuildQueueSize if <= 0.
	QueueSize int
	// OnResult is called with the outcome of every job. May be nil.
	OnResult BuildResultFunc
}

// NewBuildWorkerPool creates a new worker pool for payload build jobs.
func NewBuildWorkerPool(config BuildWorkerPoolConfig) *BuildWorkerPool {
	if config.Builder == nil {
		panic(ErrNilBuilder)
	}
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultBuildQueueSize
	}
	return &BuildWorkerPool{
		builder:    config.Builder,
		numWorkers: numWorkers,
		input:      make(chan *BuildJob, queueSize),
		onResult:   config.OnResult,
	}
}

// Start starts the worker pool. Call Stop to shut it down.
// This method is idempotent - calling it multiple times has no effect.
func (p *BuildWorkerPool) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for range p.numWorkers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit queues a job without blocking. It reports false if the queue is full
// or the pool is stopped, in which case the job has been dropped.
// Submit must not be called concurrently with Stop
func (p *BuildWorkerPool) Submit(job *BuildJob) bool {
	if p.stopped.Load() {
		job.drop()
		return false
	}
	select {
	case p.input <- job:
		return true
	default:
		job.drop()
		return false
	}
}

// Stop cancels running jobs, waits for all workers to exit and drops any jobs
// still queued
func (p *BuildWorkerPool) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	close(p.input)
	p.wg.Wait()
	for job := range p.input {
		job.drop()
	}
}

func (p *BuildWorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.input:
			if !ok {
				return
			}
			p.process(ctx, job)
		}
	}
}

func (p *BuildWorkerPool) process(ctx context.Context, job *BuildJob) {
	if ctx.Err() != nil {
		job.drop()
		return
	}
	payload, err := p.builder(ctx, job.Parent, job.Attrs)
	if p.onResult != nil {
		err = p.onResult(job, payload, err)
	}
	// A job cut short by shutdown has no result to report
	if err != nil && ctx.Err() != nil {
		job.drop()
		return
	}
	if err != nil {
		_ = job.Reply.Send(engine.PayloadIdReply{Err: err})
		return
	}
	_ = job.Reply.Send(engine.PayloadIdReply{PayloadId: job.PayloadId})
}
