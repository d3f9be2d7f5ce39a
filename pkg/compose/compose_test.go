package compose

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider"
)

var meta = events.EventMetadata{RunID: "run-1", ThreadID: "thread-1"}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("", 40))
	assert.Equal(t, []string{"abc"}, Chunk("abc", 40))
	assert.Equal(t, []string{"ab", "cd", "e"}, Chunk("abcde", 2))
	assert.Equal(t, []string{"ab", "cd"}, Chunk("abcd", 2))

	// multi-byte runes are never split
	assert.Equal(t, []string{"❌ ", "Er", "ro", "r"}, Chunk("❌ Error", 2))

	text := strings.Repeat("Your portfolio is worth $6,251.26 today. 🚀 ", 7)
	for _, size := range []int{0, 1, 3, 40, 1000} {
		assert.Equal(t, text, strings.Join(Chunk(text, size), ""), "size %d", size)
	}
	for _, c := range Chunk(text, 0) {
		assert.LessOrEqual(t, len([]rune(c)), DefaultChunkSize)
	}
}

func TestTextEvents(t *testing.T) {
	text := strings.Repeat("x", 85)
	evs := TextEvents(meta, "m1", text, 40)
	require.Len(t, evs, 5)
	require.NoError(t, events.ValidateSequence(wrapRun(evs)))

	start := evs[0].(*events.EventTextMessageStart)
	assert.Equal(t, "assistant", start.Role)
	var sb strings.Builder
	for _, e := range evs[1:4] {
		c := e.(*events.EventTextMessageContent)
		assert.Equal(t, "m1", c.MessageID)
		sb.WriteString(c.Delta)
	}
	assert.Equal(t, text, sb.String())

	evs = TextEvents(meta, "m2", "", 40)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventTypeTextMessageEnd, evs[1].Type())
}

func wrapRun(evs []events.Event) []events.Event {
	ret := []events.Event{events.NewRunStartedEvent(meta, "thread-1", "run-1")}
	ret = append(ret, evs...)
	return append(ret, events.NewRunFinishedEvent(meta, "thread-1", "run-1"))
}

func TestWidgetEvents(t *testing.T) {
	evs, err := WidgetEvents(meta, "tc-1", "showPrices", provider.Tickers{"ETHUSD": {Last: "3000"}})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	require.NoError(t, events.ValidateSequence(wrapRun(evs)))

	start := evs[0].(*events.EventToolCallStart)
	assert.Equal(t, "showPrices", start.ToolCallName)
	args := evs[1].(*events.EventToolCallArgs)
	assert.Equal(t, "tc-1", args.ToolCallID)

	var payload map[string]map[string]provider.Ticker
	require.NoError(t, json.Unmarshal([]byte(args.Delta), &payload))
	assert.Equal(t, "3000", payload["data"]["ETHUSD"].Last)

	_, err = WidgetEvents(meta, "tc-2", "bad", make(chan int))
	assert.Error(t, err)
}

func summaryOutcome() Outcome {
	price := 3000.5
	one := 1.0
	return Outcome{
		Call: tools.ToolCall{ID: "c1", Name: "getPortfolioSummary"},
		Result: &tools.ToolResult{Result: &provider.PortfolioSummary{
			TotalUSD: 6151.26,
			Assets: []provider.PortfolioAsset{
				{Asset: "ETH", Quantity: 2, Price: &price, USDValue: 6001},
				{Asset: "USD", Quantity: 150.255, Price: &one, USDValue: 150.26},
				{Asset: "XLM", Quantity: 10, USDValue: 0},
			},
		}},
	}
}

func TestTemplateNarrator(t *testing.T) {
	n, err := NewTemplateNarrator(DefaultTemplates)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := n.Narrate(ctx, NarrationInput{Outcomes: []Outcome{summaryOutcome()}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Portfolio total: $6151.26"), text)
	assert.Contains(t, text, "- ETH: 2 @ $3000.5 = $6001.00 (97.6%)")
	assert.Contains(t, text, "- XLM: 10 = $0.00 (0.0%)")

	text, err = n.Narrate(ctx, NarrationInput{Outcomes: []Outcome{
		{
			Call:   tools.ToolCall{Name: "getOpenOrders"},
			Result: &tools.ToolResult{Result: []provider.Order{{Pair: "ETHUSD", Type: "buy", OrderType: "limit", Price: "1800", Volume: "0.5", Status: "open"}}},
		},
		{
			Call:   tools.ToolCall{Name: "getTicker"},
			Result: &tools.ToolResult{Error: "Kraken API error: EQuery:Unknown asset pair"},
		},
		{
			Call:   tools.ToolCall{Name: "customTool"},
			Result: &tools.ToolResult{Result: map[string]int{"a": 1}},
		},
	}})
	require.NoError(t, err)
	parts := strings.Split(text, "\n\n")
	require.Len(t, parts, 3)
	assert.Equal(t, "Open orders: 1\n- BUY 0.5 ETHUSD @ 1800 (limit, open)", parts[0])
	assert.Equal(t, "Could not run getTicker: Kraken API error: EQuery:Unknown asset pair", parts[1])
	assert.True(t, strings.HasPrefix(parts[2], "Custom Tool:"), parts[2])

	_, err = NewTemplateNarrator(map[string]string{"x": "{{ .broken "})
	assert.Error(t, err)
}

type recordingEngine struct {
	messages []engine.Message
	defs     []tools.ToolDefinition
	reply    *engine.Completion
	err      error
}

func (r *recordingEngine) Complete(ctx context.Context, messages []engine.Message, defs []tools.ToolDefinition) (*engine.Completion, error) {
	r.messages = messages
	r.defs = defs
	return r.reply, r.err
}

func TestModelNarrator(t *testing.T) {
	e := &recordingEngine{reply: &engine.Completion{Text: "You hold mostly ETH."}}
	n := NewModelNarrator(e)

	transcript := []engine.Message{
		{Role: conversation.RoleSystem, Content: "sys"},
		{Role: conversation.RoleUser, Content: "portfolio?"},
		{Role: conversation.RoleAssistant, ToolCalls: []tools.ToolCall{{ID: "c1", Name: "getPortfolioSummary"}, {ID: "c2", Name: "getTicker"}}},
	}
	text, err := n.Narrate(context.Background(), NarrationInput{
		Outcomes: []Outcome{
			summaryOutcome(),
			{Call: tools.ToolCall{ID: "c2", Name: "getTicker"}, Result: &tools.ToolResult{Err: errors.New("malformed")}},
		},
		Transcript: transcript,
	})
	require.NoError(t, err)
	assert.Equal(t, "You hold mostly ETH.", text)
	assert.Nil(t, e.defs)

	require.Len(t, e.messages, 5)
	assert.Len(t, transcript, 3)
	assert.Equal(t, "c1", e.messages[3].ToolCallID)
	assert.Contains(t, e.messages[3].Content, `"totalUsd":6151.26`)
	assert.JSONEq(t, `{"error":"malformed"}`, e.messages[4].Content)

	// without a transcript one is synthesized from the utterance
	_, err = n.Narrate(context.Background(), NarrationInput{Utterance: "show my portfolio", Outcomes: []Outcome{summaryOutcome()}})
	require.NoError(t, err)
	require.Len(t, e.messages, 4)
	assert.Equal(t, DefaultNarratorPrompt, e.messages[0].Content)
	assert.Equal(t, "show my portfolio", e.messages[1].Content)
	assert.Len(t, e.messages[2].ToolCalls, 1)

	e.err = &engine.ServiceError{Message: "quota exceeded"}
	_, err = n.Narrate(context.Background(), NarrationInput{Outcomes: []Outcome{summaryOutcome()}})
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", errors.Cause(err).Error())
}
