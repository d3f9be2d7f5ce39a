package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeRunStarted  EventType = "RUN_STARTED"
	EventTypeRunFinished EventType = "RUN_FINISHED"
	EventTypeRunError    EventType = "RUN_ERROR"

	// A tool call is surfaced to the client as a start/args/end triplet.
	EventTypeToolCallStart EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs  EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd   EventType = "TOOL_CALL_END"

	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
)

// IsTerminal reports whether an event of this type closes a run.
func (t EventType) IsTerminal() bool {
	return t == EventTypeRunFinished || t == EventTypeRunError
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata is attached to every event for logging and the event tap.
// It is never written to the client.
type EventMetadata struct {
	RunID    string `json:"run_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (m EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run_id", m.RunID)
	e.Str("thread_id", m.ThreadID)
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"-"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson)
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// SetMetadata replaces the event metadata, used when a decoded event is
// re-attached to a run.
func (e *EventImpl) SetMetadata(m EventMetadata) {
	e.Metadata_ = m
}

var _ Event = &EventImpl{}

type EventRunStarted struct {
	EventImpl
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

func NewRunStartedEvent(metadata EventMetadata, threadID, runID string) *EventRunStarted {
	return &EventRunStarted{
		EventImpl: EventImpl{Type_: EventTypeRunStarted, Metadata_: metadata},
		ThreadID:  threadID,
		RunID:     runID,
	}
}

var _ Event = &EventRunStarted{}

type EventRunFinished struct {
	EventImpl
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

func NewRunFinishedEvent(metadata EventMetadata, threadID, runID string) *EventRunFinished {
	return &EventRunFinished{
		EventImpl: EventImpl{Type_: EventTypeRunFinished, Metadata_: metadata},
		ThreadID:  threadID,
		RunID:     runID,
	}
}

var _ Event = &EventRunFinished{}

type EventRunError struct {
	EventImpl
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func NewRunErrorEvent(metadata EventMetadata, message string, code string) *EventRunError {
	return &EventRunError{
		EventImpl: EventImpl{Type_: EventTypeRunError, Metadata_: metadata},
		Message:   message,
		Code:      code,
	}
}

var _ Event = &EventRunError{}

type EventToolCallStart struct {
	EventImpl
	ToolCallID      string `json:"toolCallId"`
	ToolCallName    string `json:"toolCallName"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

func NewToolCallStartEvent(metadata EventMetadata, toolCallID, toolCallName string) *EventToolCallStart {
	return &EventToolCallStart{
		EventImpl:    EventImpl{Type_: EventTypeToolCallStart, Metadata_: metadata},
		ToolCallID:   toolCallID,
		ToolCallName: toolCallName,
	}
}

var _ Event = &EventToolCallStart{}

type EventToolCallArgs struct {
	EventImpl
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

func NewToolCallArgsEvent(metadata EventMetadata, toolCallID, delta string) *EventToolCallArgs {
	return &EventToolCallArgs{
		EventImpl:  EventImpl{Type_: EventTypeToolCallArgs, Metadata_: metadata},
		ToolCallID: toolCallID,
		Delta:      delta,
	}
}

var _ Event = &EventToolCallArgs{}

type EventToolCallEnd struct {
	EventImpl
	ToolCallID string `json:"toolCallId"`
}

func NewToolCallEndEvent(metadata EventMetadata, toolCallID string) *EventToolCallEnd {
	return &EventToolCallEnd{
		EventImpl:  EventImpl{Type_: EventTypeToolCallEnd, Metadata_: metadata},
		ToolCallID: toolCallID,
	}
}

var _ Event = &EventToolCallEnd{}

type EventTextMessageStart struct {
	EventImpl
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
}

func NewTextMessageStartEvent(metadata EventMetadata, messageID, role string) *EventTextMessageStart {
	return &EventTextMessageStart{
		EventImpl: EventImpl{Type_: EventTypeTextMessageStart, Metadata_: metadata},
		MessageID: messageID,
		Role:      role,
	}
}

var _ Event = &EventTextMessageStart{}

type EventTextMessageContent struct {
	EventImpl
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

func NewTextMessageContentEvent(metadata EventMetadata, messageID, delta string) *EventTextMessageContent {
	return &EventTextMessageContent{
		EventImpl: EventImpl{Type_: EventTypeTextMessageContent, Metadata_: metadata},
		MessageID: messageID,
		Delta:     delta,
	}
}

var _ Event = &EventTextMessageContent{}

type EventTextMessageEnd struct {
	EventImpl
	MessageID string `json:"messageId"`
}

func NewTextMessageEndEvent(metadata EventMetadata, messageID string) *EventTextMessageEnd {
	return &EventTextMessageEnd{
		EventImpl: EventImpl{Type_: EventTypeTextMessageEnd, Metadata_: metadata},
		MessageID: messageID,
	}
}

var _ Event = &EventTextMessageEnd{}

// NewEventFromJson decodes a single protocol event as written on the wire.
func NewEventFromJson(b []byte) (Event, error) {
	var e EventImpl
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "could not decode event envelope")
	}

	var ret Event
	switch e.Type_ {
	case EventTypeRunStarted:
		ret = &EventRunStarted{}
	case EventTypeRunFinished:
		ret = &EventRunFinished{}
	case EventTypeRunError:
		ret = &EventRunError{}
	case EventTypeToolCallStart:
		ret = &EventToolCallStart{}
	case EventTypeToolCallArgs:
		ret = &EventToolCallArgs{}
	case EventTypeToolCallEnd:
		ret = &EventToolCallEnd{}
	case EventTypeTextMessageStart:
		ret = &EventTextMessageStart{}
	case EventTypeTextMessageContent:
		ret = &EventTextMessageContent{}
	case EventTypeTextMessageEnd:
		ret = &EventTextMessageEnd{}
	default:
		return nil, errors.Errorf("unknown event type: %q", e.Type_)
	}

	if err := json.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrapf(err, "could not decode %s event", e.Type_)
	}
	if p, ok := ret.(interface{ setPayload([]byte) }); ok {
		p.setPayload(b)
	}
	return ret, nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}
