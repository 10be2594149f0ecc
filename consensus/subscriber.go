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
	"log/slog"

	"github.com/blinklabs-io/gobeacon/engine"
	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/google/uuid"
)

// subscriberRegistry tracks event listeners. It is only used from the task
// goroutine
type subscriberRegistry struct {
	logger      *slog.Logger
	metrics     *TaskMetrics
	subscribers map[uuid.UUID]*mailbox.Sender[engine.Event]
	// Registration order, so every subscriber sees events in the same order
	order []uuid.UUID
}

func newSubscriberRegistry(logger *slog.Logger, metrics *TaskMetrics) *subscriberRegistry {
	return &subscriberRegistry{
		logger:      logger,
		metrics:     metrics,
		subscribers: make(map[uuid.UUID]*mailbox.Sender[engine.Event]),
	}
}

func (r *subscriberRegistry) Add(sub *mailbox.Sender[engine.Event]) uuid.UUID {
	id := uuid.New()
	r.subscribers[id] = sub
	r.order = append(r.order, id)
	r.metrics.RecordSubscriberAdded()
	r.logger.Debug(
		"registered event listener",
		"subscriber_id", id.String(),
	)
	return id
}

// Broadcast sends evt to every subscriber, pruning those that have gone away
func (r *subscriberRegistry) Broadcast(evt engine.Event) {
	pruned := false
	for _, id := range r.order {
		sub := r.subscribers[id]
		if err := sub.Send(evt); err != nil {
			r.logger.Warn(
				"dropping closed event listener",
				"subscriber_id", id.String(),
				"event_type", evt.Type().String(),
			)
			delete(r.subscribers, id)
			r.metrics.RecordSubscriberRemoved(true)
			pruned = true
			continue
		}
		r.metrics.RecordEventSent()
	}
	if pruned {
		r.compact()
	}
}

func (r *subscriberRegistry) Len() int {
	return len(r.subscribers)
}

// CloseAll ends every subscriber's stream
func (r *subscriberRegistry) CloseAll() {
	for _, id := range r.order {
		if sub, ok := r.subscribers[id]; ok {
			sub.Close()
			delete(r.subscribers, id)
			r.metrics.RecordSubscriberRemoved(false)
		}
	}
	r.order = nil
}

func (r *subscriberRegistry) compact() {
	order := r.order[:0]
	for _, id := range r.order {
		if _, ok := r.subscribers[id]; ok {
			order = append(order, id)
		}
	}
	r.order = order
}
