package engine

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

func TestBuildTranscript(t *testing.T) {
	msgs := BuildTranscript("system", []conversation.Turn{
		{Role: conversation.RoleUser, Text: "hi"},
		{Role: conversation.RoleAssistant, Text: "hello"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, conversation.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello", msgs[2].Content)

	assert.Len(t, BuildTranscript("", nil), 0)
}

func TestNewToolResultMessage(t *testing.T) {
	m := NewToolResultMessage("call-1", map[string]int{"a": 1}, nil)
	assert.Equal(t, conversation.RoleTool, m.Role)
	assert.Equal(t, "call-1", m.ToolCallID)
	assert.JSONEq(t, `{"a":1}`, m.Content)

	m = NewToolResultMessage("call-2", nil, errors.New("Kraken API error: EGeneral:Invalid arguments"))
	assert.JSONEq(t, `{"error":"Kraken API error: EGeneral:Invalid arguments"}`, m.Content)

	m = NewToolResultMessage("call-3", make(chan int), nil)
	assert.Contains(t, m.Content, "unserializable")
}

func TestEngineFunc(t *testing.T) {
	var e Engine = EngineFunc(func(ctx context.Context, messages []Message, defs []tools.ToolDefinition) (*Completion, error) {
		return &Completion{Text: messages[len(messages)-1].Content}, nil
	})
	c, err := e.Complete(context.Background(), []Message{{Role: conversation.RoleUser, Content: "echo"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo", c.Text)
}
