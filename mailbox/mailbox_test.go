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

package mailbox_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type droppable struct {
	dropped *atomic.Int32
}

func (d droppable) Drop() {
	d.dropped.Add(1)
}

func TestSendOrderPreserved(t *testing.T) {
	tx, rx := mailbox.New[int]()
	for i := 0; i < 100; i++ {
		require.NoError(t, tx.Send(i))
	}
	assert.Equal(t, 100, rx.Len())
	for i := 0; i < 100; i++ {
		value, err := rx.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, value)
	}
	assert.Equal(t, 0, rx.Len())
}

func TestRecvWaitsForSend(t *testing.T) {
	tx, rx := mailbox.New[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = tx.Send("hello")
	}()
	value, err := rx.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestRecvContextCancelled(t *testing.T) {
	_, rx := mailbox.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentSenders(t *testing.T) {
	tx, rx := mailbox.New[int]()
	const senders = 8
	const perSender = 250
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_ = tx.Send(base*perSender + i)
			}
		}(s)
	}
	wg.Wait()
	received := make([]int, 0, senders*perSender)
	for i := 0; i < senders*perSender; i++ {
		value, err := rx.Recv(context.Background())
		require.NoError(t, err)
		received = append(received, value)
	}
	sort.Ints(received)
	for i, value := range received {
		assert.Equal(t, i, value)
	}
}

func TestReceiverCloseDropsPending(t *testing.T) {
	var dropped atomic.Int32
	tx, rx := mailbox.New[droppable]()
	require.NoError(t, tx.Send(droppable{dropped: &dropped}))
	require.NoError(t, tx.Send(droppable{dropped: &dropped}))
	rx.Close()
	assert.Equal(t, int32(2), dropped.Load())
	// Sending after close drops the rejected value as well
	err := tx.Send(droppable{dropped: &dropped})
	assert.ErrorIs(t, err, mailbox.ErrClosed)
	assert.Equal(t, int32(3), dropped.Load())
	assert.True(t, tx.IsClosed())
	select {
	case <-tx.Closed():
	default:
		t.Fatal("closed channel not signalled")
	}
	_, err = rx.Recv(context.Background())
	assert.ErrorIs(t, err, mailbox.ErrClosed)
}

func TestSenderCloseDrainsFirst(t *testing.T) {
	tx, rx := mailbox.New[int]()
	require.NoError(t, tx.Send(1))
	require.NoError(t, tx.Send(2))
	tx.Close()
	assert.ErrorIs(t, tx.Send(3), mailbox.ErrClosed)
	for _, expected := range []int{1, 2} {
		value, err := rx.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, value)
	}
	_, err := rx.Recv(context.Background())
	assert.ErrorIs(t, err, mailbox.ErrClosed)
}

func TestCloseWakesBlockedRecv(t *testing.T) {
	tx, rx := mailbox.New[int]()
	errChan := make(chan error, 1)
	go func() {
		_, err := rx.Recv(context.Background())
		errChan <- err
	}()
	time.Sleep(10 * time.Millisecond)
	tx.Close()
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, mailbox.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Recv was not woken by Close")
	}
}
