package events

import (
	"github.com/pkg/errors"
)

// SequenceValidator checks protocol ordering incrementally: one RUN_STARTED
// first, nothing after the terminal event, tool call triplets and text
// messages never interleaved with anything else.
type SequenceValidator struct {
	started    bool
	terminated bool

	openToolCall string
	sawToolEnd   map[string]bool

	openMessage string
	sawMessage  map[string]bool
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		sawToolEnd: map[string]bool{},
		sawMessage: map[string]bool{},
	}
}

// Observe returns an error if e would break the sequence. The validator state
// is only advanced for accepted events.
func (v *SequenceValidator) Observe(e Event) error {
	if v.terminated {
		return errors.Errorf("%s after terminal event", e.Type())
	}
	if !v.started {
		if e.Type() != EventTypeRunStarted {
			return errors.Errorf("first event must be %s, got %s", EventTypeRunStarted, e.Type())
		}
		v.started = true
		return nil
	}

	switch ev := e.(type) {
	case *EventRunStarted:
		return errors.New("duplicate RUN_STARTED")

	case *EventToolCallStart:
		if err := v.requireIdle(e); err != nil {
			return err
		}
		if ev.ToolCallID == "" {
			return errors.New("TOOL_CALL_START without toolCallId")
		}
		if v.sawToolEnd[ev.ToolCallID] {
			return errors.Errorf("tool call %s already completed", ev.ToolCallID)
		}
		v.openToolCall = ev.ToolCallID

	case *EventToolCallArgs:
		if err := v.requireToolCall(e, ev.ToolCallID); err != nil {
			return err
		}

	case *EventToolCallEnd:
		if err := v.requireToolCall(e, ev.ToolCallID); err != nil {
			return err
		}
		v.sawToolEnd[ev.ToolCallID] = true
		v.openToolCall = ""

	case *EventTextMessageStart:
		if err := v.requireIdle(e); err != nil {
			return err
		}
		if ev.MessageID == "" {
			return errors.New("TEXT_MESSAGE_START without messageId")
		}
		if v.sawMessage[ev.MessageID] {
			return errors.Errorf("message %s already started", ev.MessageID)
		}
		v.sawMessage[ev.MessageID] = true
		v.openMessage = ev.MessageID

	case *EventTextMessageContent:
		if err := v.requireMessage(e, ev.MessageID); err != nil {
			return err
		}

	case *EventTextMessageEnd:
		if err := v.requireMessage(e, ev.MessageID); err != nil {
			return err
		}
		v.openMessage = ""

	case *EventRunFinished:
		if err := v.requireIdle(e); err != nil {
			return err
		}
		v.terminated = true

	case *EventRunError:
		// a run error may cut an open triplet or message short
		v.openToolCall = ""
		v.openMessage = ""
		v.terminated = true

	default:
		return errors.Errorf("unsupported event %T", e)
	}

	return nil
}

// Terminated reports whether a terminal event was accepted.
func (v *SequenceValidator) Terminated() bool {
	return v.terminated
}

// CloseOpen returns the end events of the open tool call and text message,
// if any, and marks them closed.
func (v *SequenceValidator) CloseOpen(meta EventMetadata) []Event {
	var ret []Event
	if v.openToolCall != "" {
		ret = append(ret, NewToolCallEndEvent(meta, v.openToolCall))
		v.sawToolEnd[v.openToolCall] = true
		v.openToolCall = ""
	}
	if v.openMessage != "" {
		ret = append(ret, NewTextMessageEndEvent(meta, v.openMessage))
		v.openMessage = ""
	}
	return ret
}

func (v *SequenceValidator) requireIdle(e Event) error {
	if v.openToolCall != "" {
		return errors.Errorf("%s while tool call %s is open", e.Type(), v.openToolCall)
	}
	if v.openMessage != "" {
		return errors.Errorf("%s while message %s is open", e.Type(), v.openMessage)
	}
	return nil
}

func (v *SequenceValidator) requireToolCall(e Event, id string) error {
	if v.openMessage != "" {
		return errors.Errorf("%s while message %s is open", e.Type(), v.openMessage)
	}
	if v.openToolCall == "" {
		return errors.Errorf("%s for %s without TOOL_CALL_START", e.Type(), id)
	}
	if v.openToolCall != id {
		return errors.Errorf("%s for %s interleaves open tool call %s", e.Type(), id, v.openToolCall)
	}
	return nil
}

func (v *SequenceValidator) requireMessage(e Event, id string) error {
	if v.openToolCall != "" {
		return errors.Errorf("%s while tool call %s is open", e.Type(), v.openToolCall)
	}
	if v.openMessage == "" {
		return errors.Errorf("%s for %s without TEXT_MESSAGE_START", e.Type(), id)
	}
	if v.openMessage != id {
		return errors.Errorf("%s for %s interleaves open message %s", e.Type(), id, v.openMessage)
	}
	return nil
}

// ValidateSequence checks a complete run, including that it was terminated.
func ValidateSequence(evs []Event) error {
	v := NewSequenceValidator()
	for i, e := range evs {
		if err := v.Observe(e); err != nil {
			return errors.Wrapf(err, "event %d", i)
		}
	}
	if !v.Terminated() {
		return errors.New("run was not terminated")
	}
	return nil
}
