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
	"log/slog"
	"runtime"

	"github.com/blinklabs-io/gobeacon/common"
)

// DefaultBuildQueueSize is the default number of payload build jobs that may
// wait for a worker. Jobs submitted to a full queue are dropped, and their
// callers observe the payload builder as unavailable
const DefaultBuildQueueSize = 64

// PayloadValidator checks a new payload before it is inserted. A non-nil error
// marks the payload INVALID, with the error text as the validation error
type PayloadValidator func(
	payload *common.ExecutionPayload,
	cancunFields *common.CancunPayloadFields,
) error

// PayloadBuilder builds a payload on top of parent using the given
// attributes. It runs on a build worker, never on the task goroutine
type PayloadBuilder func(
	ctx context.Context,
	parent *common.ExecutionPayload,
	attrs *common.PayloadAttributes,
) (*common.ExecutionPayload, error)

// TaskConfig holds configuration for a Task.
type TaskConfig struct {
	// Logger is the logger to use. Defaults to slog.Default()
	Logger *slog.Logger
	// BuildWorkers is the number of parallel payload build workers.
	BuildWorkers int
	// BuildQueueSize limits the number of build jobs waiting for a worker.
	BuildQueueSize int
	// Genesis is the block the chain starts from. Defaults to DefaultGenesis()
	Genesis *common.ExecutionPayload
	// Validator is called for every new payload. Defaults to accepting everything
	Validator PayloadValidator
	// Builder builds requested payloads. Defaults to DefaultPayloadBuilder
	Builder PayloadBuilder
}

// DefaultTaskConfig returns a TaskConfig with sensible defaults.
func DefaultTaskConfig() TaskConfig {
	buildWorkers := runtime.NumCPU() / 4
	if buildWorkers < 1 {
		buildWorkers = 1
	}
	return TaskConfig{
		BuildWorkers:   buildWorkers,
		BuildQueueSize: DefaultBuildQueueSize,
		Validator:      AcceptAllPayloads,
		Builder:        DefaultPayloadBuilder,
	}
}

// TaskOptionFunc is a functional option for configuring a Task.
type TaskOptionFunc func(*TaskConfig)

// WithConfig applies a complete TaskConfig, replacing all default values.
// Options applied after WithConfig still override the config values.
func WithConfig(config TaskConfig) TaskOptionFunc {
	return func(c *TaskConfig) {
		*c = config
	}
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) TaskOptionFunc {
	return func(c *TaskConfig) {
		c.Logger = logger
	}
}

// WithBuildWorkers sets the number of payload build workers.
func WithBuildWorkers(n int) TaskOptionFunc {
	return func(c *TaskConfig) {
		if n > 0 {
			c.BuildWorkers = n
		}
	}
}

// WithBuildQueueSize sets the number of build jobs that may wait for a worker.
func WithBuildQueueSize(size int) TaskOptionFunc {
	return func(c *TaskConfig) {
		if size > 0 {
			c.BuildQueueSize = size
		}
	}
}

// WithGenesis sets the block the chain starts from.
func WithGenesis(genesis *common.ExecutionPayload) TaskOptionFunc {
	return func(c *TaskConfig) {
		c.Genesis = genesis
	}
}

// WithPayloadValidator sets the new payload validation hook.
// A nil function is ignored.
func WithPayloadValidator(fn PayloadValidator) TaskOptionFunc {
	return func(c *TaskConfig) {
		if fn != nil {
			c.Validator = fn
		}
	}
}

// WithPayloadBuilder sets the payload builder.
// A nil function is ignored.
func WithPayloadBuilder(fn PayloadBuilder) TaskOptionFunc {
	return func(c *TaskConfig) {
		if fn != nil {
			c.Builder = fn
		}
	}
}

// AcceptAllPayloads is a PayloadValidator that accepts every payload
func AcceptAllPayloads(*common.ExecutionPayload, *common.CancunPayloadFields) error {
	return nil
}
