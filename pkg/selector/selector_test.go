package selector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

func request(msgs ...conversation.Message) *Request {
	return &Request{Conversation: msgs}
}

func testRegistry(t *testing.T) *tools.InMemoryToolRegistry {
	reg := tools.NewInMemoryToolRegistry()
	for _, name := range []string{"getPortfolioSummary", "getTicker", "getOpenOrders"} {
		def, err := tools.NewToolFromFunc(name, name, func() string { return name })
		require.NoError(t, err)
		require.NoError(t, reg.RegisterTool(name, *def))
	}
	return reg
}

func TestHeuristicSelector_DefaultRules(t *testing.T) {
	s := NewHeuristicSelector(DefaultRules(), DefaultTool)
	cases := map[string]string{
		"show my portfolio":            "getPortfolioSummary",
		"What are ETH PRICES today?":   "getTicker",
		"any pending orders?":          "getOpenOrders",
		"list my recent fills":         "getTradeHistory",
		"what's my balance":            "getBalance",
		"tell me a joke":               "getPortfolioSummary",
		"what is my portfolio's price": "getPortfolioSummary",
	}
	for utterance, tool := range cases {
		sel, err := s.Select(context.Background(), request(conversation.NewUserMessage(utterance)))
		require.NoError(t, err)
		require.Len(t, sel.Calls, 1, utterance)
		assert.Equal(t, tool, sel.Calls[0].Name, utterance)
		assert.True(t, strings.HasPrefix(sel.Calls[0].ID, "call_"))
		assert.JSONEq(t, `{}`, string(sel.Calls[0].Arguments))
		assert.Nil(t, sel.Transcript)
	}
}

func TestHeuristicSelector_NoDefault(t *testing.T) {
	s := NewHeuristicSelector(DefaultRules(), "")
	sel, err := s.Select(context.Background(), request(conversation.NewUserMessage("tell me a joke")))
	require.NoError(t, err)
	assert.Empty(t, sel.Calls)
	assert.False(t, sel.HasTools())
	assert.Equal(t, NoMatchText, sel.Text)

	// an unreadable latest message falls back to the default utterance
	sel, err = s.Select(context.Background(), request(conversation.Message{
		Role:    conversation.RoleUser,
		Content: conversation.PartsContent{{Type: "image_url"}},
	}))
	require.NoError(t, err)
	require.Len(t, sel.Calls, 1)
	assert.Equal(t, "getPortfolioSummary", sel.Calls[0].Name)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_tool: ""
rules:
  - keywords: [Moon, lambo]
    tool: getTicker
`), 0o600))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	s := NewHeuristicSelectorFromRuleSet(rs)
	assert.Equal(t, "getTicker", s.Match("when MOON?"))
	assert.Equal(t, "", s.Match("portfolio"))

	_, err = ParseRules([]byte("rules:\n  - keywords: []\n    tool: x\n"))
	assert.Error(t, err)
	_, err = ParseRules([]byte("rules:\n  - keywords: [a]\n"))
	assert.Error(t, err)
	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type scriptedEngine struct {
	completion *engine.Completion
	err        error
	messages   []engine.Message
	defs       []tools.ToolDefinition
}

func (s *scriptedEngine) Complete(ctx context.Context, messages []engine.Message, defs []tools.ToolDefinition) (*engine.Completion, error) {
	s.messages = messages
	s.defs = defs
	return s.completion, s.err
}

func TestModelSelector_ToolCalls(t *testing.T) {
	e := &scriptedEngine{completion: &engine.Completion{
		ToolCalls: []tools.ToolCall{
			{ID: "call_a", Name: "getTicker", Arguments: json.RawMessage(`{"pairs":["ETHUSD"]}`)},
			{Name: "getPortfolioSummary", Arguments: json.RawMessage(``)},
			{ID: "call_c", Name: "getOpenOrders", Arguments: json.RawMessage(`{"broken`)},
		},
	}}
	s := NewModelSelector(e, testRegistry(t),
		WithToolConfig(tools.DefaultToolConfig().WithAllowedTools([]string{"getT*", "getPortfolio*"})))

	sel, err := s.Select(context.Background(), request(
		conversation.NewUserMessage("hi"),
		conversation.NewAssistantMessage("hello"),
		conversation.NewUserMessage("eth price and my portfolio"),
	))
	require.NoError(t, err)

	require.Len(t, sel.Calls, 2)
	assert.Equal(t, "call_a", sel.Calls[0].ID)
	assert.True(t, strings.HasPrefix(sel.Calls[1].ID, "call_"))
	assert.JSONEq(t, `{}`, string(sel.Calls[1].Arguments))

	require.Len(t, sel.Rejected, 1)
	assert.Equal(t, "call_c", sel.Rejected[0].Call.ID)
	var te *tools.ToolError
	require.True(t, errors.As(sel.Rejected[0].Err, &te))
	assert.Equal(t, tools.ToolErrorValidation, te.Type)

	require.Len(t, e.defs, 2)
	assert.Equal(t, "getPortfolioSummary", e.defs[0].Name)
	assert.Equal(t, "getTicker", e.defs[1].Name)

	require.Len(t, e.messages, 4)
	assert.Equal(t, conversation.RoleSystem, e.messages[0].Role)
	assert.Contains(t, e.messages[0].Content, "CRITICAL: When you call a tool")

	// the transcript gets the assistant turn, the engine's view does not
	require.Len(t, sel.Transcript, 5)
	last := sel.Transcript[4]
	assert.Equal(t, conversation.RoleAssistant, last.Role)
	assert.Len(t, last.ToolCalls, 3)
	assert.Len(t, e.messages, 4)
	assert.True(t, sel.HasTools())
}

func TestModelSelector_TextReply(t *testing.T) {
	e := &scriptedEngine{completion: &engine.Completion{Text: "Hi! Ask me about your portfolio."}}
	s := NewModelSelector(e, testRegistry(t), WithSystemPrompt(""))

	sel, err := s.Select(context.Background(), request(conversation.NewAssistantMessage("welcome")))
	require.NoError(t, err)
	assert.False(t, sel.HasTools())
	assert.Equal(t, "Hi! Ask me about your portfolio.", sel.Text)
	assert.Nil(t, sel.Transcript)

	require.Len(t, e.messages, 2)
	assert.Equal(t, conversation.RoleUser, e.messages[1].Role)
	assert.Equal(t, conversation.DefaultUtterance, e.messages[1].Content)
}

func TestModelSelector_ServiceErrorKeepsMessage(t *testing.T) {
	e := &scriptedEngine{err: &engine.ServiceError{Service: "openai", Message: "Rate limit reached"}}
	s := NewModelSelector(e, testRegistry(t))
	_, err := s.Select(context.Background(), request(conversation.NewUserMessage("hi")))
	require.Error(t, err)
	assert.Equal(t, "Rate limit reached", errors.Cause(err).Error())
}

func TestModelSelector_HistoryBudget(t *testing.T) {
	counter, err := conversation.NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	e := &scriptedEngine{completion: &engine.Completion{Text: "ok"}}
	s := NewModelSelector(e, testRegistry(t), WithHistoryBudget(counter, 20))
	long := strings.Repeat("lots of words ", 100)
	_, err = s.Select(context.Background(), request(
		conversation.NewUserMessage(long),
		conversation.NewAssistantMessage(long),
		conversation.NewUserMessage("portfolio"),
	))
	require.NoError(t, err)
	require.Len(t, e.messages, 2)
	assert.Equal(t, "portfolio", e.messages[1].Content)
}
