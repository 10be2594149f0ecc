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

// Package gobeacon runs a beacon consensus engine and hands out handles to it.
//
// A Node wires together the engine mailbox, the consensus engine task that
// serves it and an engine.Handle that sends to it. Callers interact with the
// engine only through the handle, which may be cloned freely and shared
// between goroutines.
//
// This package is the main entry point into this library. The engine,
// consensus and common packages can be used on their own to run a custom
// engine task behind a handle.
package gobeacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/consensus"
	"github.com/blinklabs-io/gobeacon/engine"
)

var (
	ErrNodeAlreadyStarted = errors.New("node already started")
	ErrNodeClosed         = errors.New("node closed")
)

// Node runs a beacon consensus engine task
type Node struct {
	config      *NodeConfig
	logger      *slog.Logger
	taskOptions []consensus.TaskOptionFunc
	task        *consensus.Task
	handle      *engine.Handle
	errorChan   chan error
	doneChan    chan struct{}
	cancel      context.CancelFunc
	mu          sync.Mutex
	started     bool
	closed      bool
	waitGroup   sync.WaitGroup
	onceClose   sync.Once
}

// New returns a new Node with the specified options. Call Start to begin
// processing engine requests
func New(options ...NodeOptionFunc) (*Node, error) {
	n := &Node{
		doneChan: make(chan struct{}),
	}
	// Apply provided options functions
	for _, option := range options {
		option(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.errorChan == nil {
		n.errorChan = make(chan error, 10)
	}
	taskOptions := []consensus.TaskOptionFunc{
		consensus.WithLogger(n.logger),
	}
	if n.config != nil {
		configOptions, err := n.config.options()
		if err != nil {
			return nil, fmt.Errorf("node config: %w", err)
		}
		taskOptions = append(taskOptions, configOptions...)
	}
	taskOptions = append(taskOptions, n.taskOptions...)
	toEngine, fromHandles := engine.NewEngineMailbox()
	task, err := consensus.NewTask(fromHandles, taskOptions...)
	if err != nil {
		return nil, err
	}
	n.task = task
	n.handle = engine.NewHandle(toEngine, engine.WithLogger(n.logger))
	return n, nil
}

// Start runs the engine task until ctx is done or Close is called
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrNodeAlreadyStarted
	}
	n.started = true
	ctx, n.cancel = context.WithCancel(ctx)
	n.waitGroup.Add(1)
	go func() {
		defer n.waitGroup.Done()
		if err := n.task.Run(ctx); err != nil {
			select {
			case n.errorChan <- fmt.Errorf("engine task: %w", err):
			case <-n.doneChan:
			}
		}
	}()
	n.logger.Info("beacon consensus engine started")
	return nil
}

// Handle returns a handle to the engine task. Requests sent before Start wait
// in the mailbox, and requests sent after Close fail with
// engine.ErrEngineUnavailable
func (n *Node) Handle() *engine.Handle {
	return n.handle.Clone()
}

// Payload returns a payload built in response to a forkchoice update
func (n *Node) Payload(id common.PayloadId) (*common.ExecutionPayload, error) {
	return n.task.Payload(id)
}

// Stats returns the engine task's counters
func (n *Node) Stats() consensus.TaskStats {
	return n.task.Stats()
}

// ErrorChan returns the channel for asynchronous errors
func (n *Node) ErrorChan() chan error {
	return n.errorChan
}

// Close stops the engine task and waits for it to exit
func (n *Node) Close() error {
	n.onceClose.Do(func() {
		n.mu.Lock()
		n.closed = true
		started := n.started
		n.mu.Unlock()
		// Close doneChan to signify that we're shutting down
		close(n.doneChan)
		if started {
			n.cancel()
			n.waitGroup.Wait()
		} else {
			// Run the task against an already cancelled context, which
			// closes the mailbox and drops whatever is queued
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = n.task.Run(ctx)
		}
		close(n.errorChan)
		n.logger.Info("beacon consensus engine stopped")
	})
	return nil
}
