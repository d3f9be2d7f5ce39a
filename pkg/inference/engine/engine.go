package engine

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// Message is one entry of the transcript sent to the reasoning service.
type Message struct {
	Role    conversation.Role
	Content string
	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []tools.ToolCall
	// ToolCallID is set on tool messages carrying a result.
	ToolCallID string
}

// Completion is the reasoning service's answer: either text, or a list of
// requested tool calls (possibly alongside text).
type Completion struct {
	Text         string
	ToolCalls    []tools.ToolCall
	Model        string
	FinishReason string
}

// Engine is a chat-completion capability. Passing no tool definitions asks
// for a plain text answer.
type Engine interface {
	Complete(ctx context.Context, messages []Message, defs []tools.ToolDefinition) (*Completion, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, messages []Message, defs []tools.ToolDefinition) (*Completion, error)

func (f EngineFunc) Complete(ctx context.Context, messages []Message, defs []tools.ToolDefinition) (*Completion, error) {
	return f(ctx, messages, defs)
}

// BuildTranscript prefixes the replayed turns with the system prompt.
func BuildTranscript(systemPrompt string, turns []conversation.Turn) []Message {
	ret := make([]Message, 0, len(turns)+1)
	if systemPrompt != "" {
		ret = append(ret, Message{Role: conversation.RoleSystem, Content: systemPrompt})
	}
	for _, t := range turns {
		ret = append(ret, Message{Role: t.Role, Content: t.Text})
	}
	return ret
}

// NewToolResultMessage serializes a tool result (or its error) for the
// follow-up reasoning call.
func NewToolResultMessage(callID string, result interface{}, err error) Message {
	content := ""
	if err != nil {
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		content = string(b)
	} else if b, mErr := json.Marshal(result); mErr == nil {
		content = string(b)
	} else {
		content = `{"error":"unserializable result"}`
	}
	return Message{Role: conversation.RoleTool, Content: content, ToolCallID: callID}
}
