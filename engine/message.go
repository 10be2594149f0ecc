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

package engine

import (
	"github.com/blinklabs-io/gobeacon/common"
	"github.com/blinklabs-io/gobeacon/mailbox"
	"github.com/blinklabs-io/gobeacon/oneshot"
)

// MessageType identifies a request variant sent to the engine task
type MessageType uint8

const (
	MessageTypeNewPayload MessageType = iota + 1
	MessageTypeForkchoiceUpdated
	MessageTypeTransitionConfigurationExchanged
	MessageTypeEventListener
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeNewPayload:
		return "NewPayload"
	case MessageTypeForkchoiceUpdated:
		return "ForkchoiceUpdated"
	case MessageTypeTransitionConfigurationExchanged:
		return "TransitionConfigurationExchanged"
	case MessageTypeEventListener:
		return "EventListener"
	default:
		return "Unknown"
	}
}

// Message is a request to the engine task. The set of variants is closed:
// *NewPayloadMessage, *ForkchoiceUpdatedMessage,
// *TransitionConfigurationExchangedMessage and *EventListenerMessage.
//
// Drop releases the reply channels a message carries. The mailbox calls it for
// messages that can no longer be delivered, and an engine task must call it
// (or reply) for every message it discards
type Message interface {
	mailbox.Dropper
	Type() MessageType
	isMessage()
}

// NewEngineMailbox returns a new mailbox for engine messages. The sender goes to
// NewHandle and the receiver to the engine task
func NewEngineMailbox() (*mailbox.Sender[Message], *mailbox.Receiver[Message]) {
	return mailbox.New[Message]()
}

// NewPayloadReply is the engine task's answer to a NewPayloadMessage
type NewPayloadReply struct {
	Status common.PayloadStatus
	Err    error
}

// NewPayloadMessage submits an execution payload for validation
type NewPayloadMessage struct {
	Payload common.ExecutionPayload
	// CancunFields is nil for payloads from before the Cancun fork
	CancunFields *common.CancunPayloadFields
	Reply        *oneshot.Sender[NewPayloadReply]
}

func (*NewPayloadMessage) isMessage() {}

func (*NewPayloadMessage) Type() MessageType {
	return MessageTypeNewPayload
}

// Respond sends the result to the caller. It returns an error if the caller
// has gone away or a reply was already sent
func (m *NewPayloadMessage) Respond(status common.PayloadStatus, err error) error {
	return m.Reply.Send(NewPayloadReply{Status: status, Err: err})
}

func (m *NewPayloadMessage) Drop() {
	if m.Reply != nil {
		m.Reply.Close()
	}
}

// ForkchoiceUpdatedReply is the first-phase answer to a
// ForkchoiceUpdatedMessage: either an error or a deferred completion token
type ForkchoiceUpdatedReply struct {
	Pending *OnForkChoiceUpdated
	Err     error
}

// ForkchoiceUpdatedMessage informs the engine of a new chain head, optionally
// requesting that a payload be built on top of it
type ForkchoiceUpdatedMessage struct {
	State common.ForkchoiceState
	// PayloadAttributes is nil when no payload build is requested
	PayloadAttributes *common.PayloadAttributes
	Reply             *oneshot.Sender[ForkchoiceUpdatedReply]
}

func (*ForkchoiceUpdatedMessage) isMessage() {}

func (*ForkchoiceUpdatedMessage) Type() MessageType {
	return MessageTypeForkchoiceUpdated
}

// Respond sends the deferred completion token to the caller
func (m *ForkchoiceUpdatedMessage) Respond(pending *OnForkChoiceUpdated) error {
	return m.Reply.Send(ForkchoiceUpdatedReply{Pending: pending})
}

// RespondError rejects the forkchoice update
func (m *ForkchoiceUpdatedMessage) RespondError(err error) error {
	return m.Reply.Send(ForkchoiceUpdatedReply{Err: err})
}

func (m *ForkchoiceUpdatedMessage) Drop() {
	if m.Reply != nil {
		m.Reply.Close()
	}
}

// TransitionConfigurationExchangedMessage notes that the consensus layer
// exchanged transition configuration. It carries no reply
type TransitionConfigurationExchangedMessage struct{}

func (*TransitionConfigurationExchangedMessage) isMessage() {}

func (*TransitionConfigurationExchangedMessage) Type() MessageType {
	return MessageTypeTransitionConfigurationExchanged
}

func (*TransitionConfigurationExchangedMessage) Drop() {}

// EventListenerMessage registers a subscriber for engine events. It carries no
// reply
type EventListenerMessage struct {
	Subscriber *mailbox.Sender[Event]
}

func (*EventListenerMessage) isMessage() {}

func (*EventListenerMessage) Type() MessageType {
	return MessageTypeEventListener
}

// Drop ends the subscriber's stream, since it will never be registered
func (m *EventListenerMessage) Drop() {
	if m.Subscriber != nil {
		m.Subscriber.Close()
	}
}
