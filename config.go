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
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/consensus"
	"gopkg.in/yaml.v3"
)

// NodeConfig represents a node config file
type NodeConfig struct {
	LogLevel string             `yaml:"logLevel"`
	Engine   NodeConfigEngine   `yaml:"engine"`
	Genesis  *NodeConfigGenesis `yaml:"genesis"`
}

type NodeConfigEngine struct {
	BuildWorkers   int `yaml:"buildWorkers"`
	BuildQueueSize int `yaml:"buildQueueSize"`
}

type NodeConfigGenesis struct {
	GasLimit      uint64 `yaml:"gasLimit"`
	BaseFeePerGas uint64 `yaml:"baseFeePerGas"`
	Timestamp     uint64 `yaml:"timestamp"`
	ExtraData     string `yaml:"extraData"`
}

func NewNodeConfigFromFile(path string) (*NodeConfig, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewNodeConfigFromReader(dataFile)
}

func NewNodeConfigFromReader(r io.Reader) (*NodeConfig, error) {
	c := &NodeConfig{}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Level returns the configured log level. An empty level means info
func (c *NodeConfig) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// GenesisPayload returns the genesis block described by the config, or nil
// if the config has no genesis section
func (c *NodeConfig) GenesisPayload() (*common.ExecutionPayload, error) {
	if c.Genesis == nil {
		return nil, nil
	}
	genesis := consensus.DefaultGenesis()
	if c.Genesis.GasLimit > 0 {
		genesis.GasLimit = c.Genesis.GasLimit
	}
	if c.Genesis.BaseFeePerGas > 0 {
		genesis.BaseFeePerGas = new(big.Int).SetUint64(c.Genesis.BaseFeePerGas)
	}
	genesis.Timestamp = c.Genesis.Timestamp
	if c.Genesis.ExtraData != "" {
		extraData, err := hex.DecodeString(
			strings.TrimPrefix(c.Genesis.ExtraData, "0x"),
		)
		if err != nil {
			return nil, fmt.Errorf("invalid genesis extra data: %w", err)
		}
		genesis.ExtraData = extraData
	}
	blockHash, err := consensus.ComputeBlockHash(genesis)
	if err != nil {
		return nil, err
	}
	genesis.BlockHash = blockHash
	return genesis, nil
}

// options returns the engine task options equivalent to the config
func (c *NodeConfig) options() ([]consensus.TaskOptionFunc, error) {
	ret := []consensus.TaskOptionFunc{
		consensus.WithBuildWorkers(c.Engine.BuildWorkers),
		consensus.WithBuildQueueSize(c.Engine.BuildQueueSize),
	}
	genesis, err := c.GenesisPayload()
	if err != nil {
		return nil, err
	}
	if genesis != nil {
		ret = append(ret, consensus.WithGenesis(genesis))
	}
	return ret, nil
}
