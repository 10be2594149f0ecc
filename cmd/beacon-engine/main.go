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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/blinklabs-io/gobeacon"
	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/engine"
)

type globalFlags struct {
	flagset      *flag.FlagSet
	config       string
	buildWorkers int
	blocks       int
	debug        bool
}

func newGlobalFlags() *globalFlags {
	f := &globalFlags{
		flagset: flag.NewFlagSet(os.Args[0], flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.config,
		"config",
		"",
		"path to node config file (YAML)",
	)
	f.flagset.IntVar(
		&f.buildWorkers,
		"build-workers",
		0,
		"number of payload build workers. this overrides the config file",
	)
	f.flagset.IntVar(
		&f.blocks,
		"blocks",
		5,
		"number of blocks to build and import",
	)
	f.flagset.BoolVar(&f.debug, "debug", false, "enable debug logging")
	return f
}

func main() {
	f := newGlobalFlags()
	err := f.flagset.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}

	var config *gobeacon.NodeConfig
	if f.config != "" {
		config, err = gobeacon.NewNodeConfigFromFile(f.config)
		if err != nil {
			fmt.Printf("failed to load config: %s\n", err)
			os.Exit(1)
		}
	} else {
		config = &gobeacon.NodeConfig{}
	}
	level, err := config.Level()
	if err != nil {
		fmt.Printf("%s\n", err)
		os.Exit(1)
	}
	if f.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	)

	opts := []gobeacon.NodeOptionFunc{
		gobeacon.WithLogger(logger),
		gobeacon.WithConfig(config),
	}
	if f.buildWorkers > 0 {
		opts = append(opts, gobeacon.WithBuildWorkers(f.buildWorkers))
	}
	node, err := gobeacon.New(opts...)
	if err != nil {
		fmt.Printf("failed to create node: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()
	if err := node.Start(ctx); err != nil {
		fmt.Printf("failed to start node: %s\n", err)
		os.Exit(1)
	}
	go func() {
		for {
			err, ok := <-node.ErrorChan()
			if !ok {
				return
			}
			fmt.Printf("ERROR: %s\n", err)
			os.Exit(1)
		}
	}()

	handle := node.Handle()
	stream := handle.EventListener()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range stream.All(ctx) {
			printEvent(evt)
		}
	}()

	handle.TransitionConfigurationExchanged()
	if err := runChain(ctx, node, handle, node.Stats().HeadHash, f.blocks); err != nil {
		fmt.Printf("ERROR: %s\n", err)
	}

	// Closing the node ends the event stream
	_ = node.Close()
	wg.Wait()
	stats := node.Stats()
	fmt.Printf(
		"head: %s (block %d), payloads: %d, builds: %d, events: %d\n",
		stats.HeadHash,
		stats.HeadNumber,
		stats.PayloadsValid,
		stats.BuildsCompleted,
		stats.EventsSent,
	)
}

// runChain extends the chain from head by building a payload on it,
// importing it and making it the new head
func runChain(ctx context.Context, node *gobeacon.Node, handle *engine.Handle, head common.Hash, blocks int) error {
	for i := range blocks {
		state := common.ForkchoiceState{
			HeadBlockHash:      head,
			SafeBlockHash:      head,
			FinalizedBlockHash: head,
		}
		attrs := &common.PayloadAttributes{
			Timestamp:  uint64(i+1) * 12,
			PrevRandao: common.Blake2b256Hash(head.Bytes()),
		}
		result, err := handle.ForkChoiceUpdated(ctx, state, attrs)
		if err != nil {
			return err
		}
		if !result.IsValid() || result.PayloadId == nil {
			return fmt.Errorf(
				"no payload built on %s: %s",
				head,
				result.PayloadStatus,
			)
		}
		fmt.Printf("forkchoice updated: %s, payload id %s\n", result.PayloadStatus, result.PayloadId)
		payload, err := node.Payload(*result.PayloadId)
		if err != nil {
			return err
		}
		status, err := handle.NewPayload(ctx, *payload, nil)
		if err != nil {
			return err
		}
		fmt.Printf("new payload %s: %s\n", payload.BlockHash, status)
		head = payload.BlockHash
	}
	result, err := handle.ForkChoiceUpdated(
		ctx,
		common.ForkchoiceState{HeadBlockHash: head},
		nil,
	)
	if err != nil {
		return err
	}
	fmt.Printf("final forkchoice: %s\n", result.PayloadStatus)
	return nil
}

func printEvent(evt engine.Event) {
	switch e := evt.(type) {
	case engine.ForkchoiceUpdatedEvent:
		fmt.Printf("event: %s head=%s status=%s\n", e.Type(), e.State.HeadBlockHash, e.Status)
	case engine.ForkBlockAddedEvent:
		fmt.Printf("event: %s block=%s number=%d\n", e.Type(), e.Payload.BlockHash, e.Payload.BlockNumber)
	case engine.CanonicalBlockAddedEvent:
		fmt.Printf("event: %s block=%s number=%d elapsed=%s\n", e.Type(), e.Payload.BlockHash, e.Payload.BlockNumber, e.Elapsed)
	case engine.CanonicalChainCommittedEvent:
		fmt.Printf("event: %s head=%s number=%d\n", e.Type(), e.HeadHash, e.HeadNumber)
	default:
		fmt.Printf("event: %s\n", evt.Type())
	}
}
