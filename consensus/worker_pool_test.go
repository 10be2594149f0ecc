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
	"sync/atomic"
	"testing"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/engine"
	"github.com/blinklabs-io/gobeacon/oneshot"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(timestamp uint64) (*BuildJob, *oneshot.Receiver[engine.PayloadIdReply]) {
	tx, rx := oneshot.New[engine.PayloadIdReply]()
	return &BuildJob{
		Id:        uuid.New(),
		PayloadId: common.PayloadId{byte(timestamp)},
		Parent:    DefaultGenesis(),
		Attrs:     &common.PayloadAttributes{Timestamp: timestamp},
		Reply:     tx,
	}, rx
}

func TestBuildWorkerPoolNilBuilder(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilBuilder, func() {
		NewBuildWorkerPool(BuildWorkerPoolConfig{})
	})
}

func TestBuildWorkerPoolProcessesJobs(t *testing.T) {
	var results atomic.Int32
	pool := NewBuildWorkerPool(
		BuildWorkerPoolConfig{
			Builder:    DefaultPayloadBuilder,
			NumWorkers: 4,
			OnResult: func(job *BuildJob, payload *common.ExecutionPayload, err error) error {
				results.Add(1)
				if err == nil {
					assert.Equal(t, job.Attrs.Timestamp, payload.Timestamp)
				}
				return err
			},
		},
	)
	pool.Start(context.Background())
	defer pool.Stop()
	var receivers []*oneshot.Receiver[engine.PayloadIdReply]
	for i := range 10 {
		job, rx := newTestJob(uint64(i + 1))
		require.True(t, pool.Submit(job))
		receivers = append(receivers, rx)
	}
	for i, rx := range receivers {
		reply, err := rx.Recv(context.Background())
		require.NoError(t, err)
		require.NoError(t, reply.Err)
		assert.Equal(t, common.PayloadId{byte(i + 1)}, reply.PayloadId)
	}
	assert.Equal(t, int32(10), results.Load())
}

func TestBuildWorkerPoolStopDropsQueued(t *testing.T) {
	// Never started, so every job stays queued
	pool := NewBuildWorkerPool(
		BuildWorkerPoolConfig{
			Builder:   DefaultPayloadBuilder,
			QueueSize: 2,
		},
	)
	job1, rx1 := newTestJob(1)
	job2, rx2 := newTestJob(2)
	job3, rx3 := newTestJob(3)
	assert.True(t, pool.Submit(job1))
	assert.True(t, pool.Submit(job2))
	assert.False(t, pool.Submit(job3))
	_, err := rx3.Recv(context.Background())
	assert.ErrorIs(t, err, oneshot.ErrClosed)
	pool.Stop()
	for _, rx := range []*oneshot.Receiver[engine.PayloadIdReply]{rx1, rx2} {
		_, err := rx.Recv(context.Background())
		assert.ErrorIs(t, err, oneshot.ErrClosed)
	}
	job4, rx4 := newTestJob(4)
	assert.False(t, pool.Submit(job4))
	_, err = rx4.Recv(context.Background())
	assert.ErrorIs(t, err, oneshot.ErrClosed)
}
