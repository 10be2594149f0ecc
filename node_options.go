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

package gobeacon

import (
	"log/slog"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/consensus"
)

// NodeOptionFunc is a type that represents functions that modify the Node config
type NodeOptionFunc func(*Node)

// WithLogger specifies the logger to use. The default is slog.Default()
func WithLogger(logger *slog.Logger) NodeOptionFunc {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithErrorChan specifies the error channel to use. If none is provided, one will be created
func WithErrorChan(errorChan chan error) NodeOptionFunc {
	return func(n *Node) {
		n.errorChan = errorChan
	}
}

// WithConfig applies the settings from a node config file. Options given
// after WithConfig override them
func WithConfig(config *NodeConfig) NodeOptionFunc {
	return func(n *Node) {
		n.config = config
	}
}

// WithBuildWorkers specifies the number of payload build workers
func WithBuildWorkers(buildWorkers int) NodeOptionFunc {
	return func(n *Node) {
		n.taskOptions = append(n.taskOptions, consensus.WithBuildWorkers(buildWorkers))
	}
}

// WithBuildQueueSize specifies how many payload build jobs may wait for a worker
func WithBuildQueueSize(size int) NodeOptionFunc {
	return func(n *Node) {
		n.taskOptions = append(n.taskOptions, consensus.WithBuildQueueSize(size))
	}
}

// WithGenesis specifies the genesis block
func WithGenesis(genesis *common.ExecutionPayload) NodeOptionFunc {
	return func(n *Node) {
		n.taskOptions = append(n.taskOptions, consensus.WithGenesis(genesis))
	}
}

// WithPayloadValidator specifies the new payload validation hook
func WithPayloadValidator(fn consensus.PayloadValidator) NodeOptionFunc {
	return func(n *Node) {
		n.taskOptions = append(n.taskOptions, consensus.WithPayloadValidator(fn))
	}
}

// WithPayloadBuilder specifies the payload builder
func WithPayloadBuilder(fn consensus.PayloadBuilder) NodeOptionFunc {
	return func(n *Node) {
		n.taskOptions = append(n.taskOptions, consensus.WithPayloadBuilder(fn))
	}
}
