package selector

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

const (
	StrategyModel     = "model"
	StrategyHeuristic = "heuristic"
)

// Request is the input of a selection: the client's conversation as sent.
type Request struct {
	Conversation conversation.Conversation
}

// Utterance is the latest user text, or the default utterance.
func (r *Request) Utterance() string {
	if r == nil {
		return conversation.DefaultUtterance
	}
	return conversation.LatestUserText(r.Conversation, "")
}

// Rejection is a tool call that was dropped before execution because its
// arguments could not be used.
type Rejection struct {
	Call tools.ToolCall
	Err  error
}

// Selection is the outcome of tool selection.
type Selection struct {
	// Calls are committed for execution, in the order they were requested.
	Calls    []tools.ToolCall
	Rejected []Rejection
	// Text is the direct reply when no tool was requested.
	Text string
	// Transcript is the reasoning transcript including the assistant turn
	// that requested Calls. It is nil for selectors that do not reason.
	Transcript []engine.Message
}

// HasTools reports whether any tool was requested, executed or not.
func (s *Selection) HasTools() bool {
	return s != nil && (len(s.Calls) > 0 || len(s.Rejected) > 0)
}

type Selector interface {
	Select(ctx context.Context, req *Request) (*Selection, error)
}

func newCallID() string {
	return "call_" + uuid.NewString()
}

func emptyArguments() json.RawMessage {
	return json.RawMessage("{}")
}
