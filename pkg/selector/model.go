package selector

import (
	"context"
	"encoding/json"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

const DefaultSystemPrompt = `You are Kraken AI, a crypto portfolio assistant connected to a live Kraken exchange account. You help users check their portfolio, view prices, review orders, and see trade history.

When the user asks about their portfolio/holdings/value, call getPortfolioSummary.
When they ask about prices/market, call getTicker.
When they ask about open/pending orders, call getOpenOrders.
When they ask about trade history/recent trades, call getTradeHistory.

CRITICAL: When you call a tool, DO NOT produce any text response at all. The data is rendered as a rich interactive UI widget automatically. Any text you add will be duplicate and ugly. Your response when using tools must contain ONLY the tool calls, zero text.

Be friendly, concise, and helpful. Use emoji sparingly.`

// ModelSelector asks the reasoning service which tools to call.
type ModelSelector struct {
	engine       engine.Engine
	registry     tools.ToolRegistry
	toolConfig   tools.ToolConfig
	systemPrompt string
	counter      *conversation.TokenCounter
	budget       int
}

type ModelOption func(*ModelSelector)

func WithSystemPrompt(prompt string) ModelOption {
	return func(s *ModelSelector) {
		s.systemPrompt = prompt
	}
}

func WithToolConfig(cfg tools.ToolConfig) ModelOption {
	return func(s *ModelSelector) {
		s.toolConfig = cfg
	}
}

// WithHistoryBudget trims replayed history to budget tokens as counted by
// counter.
func WithHistoryBudget(counter *conversation.TokenCounter, budget int) ModelOption {
	return func(s *ModelSelector) {
		s.counter = counter
		s.budget = budget
	}
}

func NewModelSelector(e engine.Engine, registry tools.ToolRegistry, options ...ModelOption) *ModelSelector {
	ret := &ModelSelector{
		engine:       e,
		registry:     registry,
		toolConfig:   tools.DefaultToolConfig(),
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Transcript builds the reasoning transcript for req: system prompt, then
// the replayable history, ending on a user turn.
func (s *ModelSelector) Transcript(req *Request) []engine.Message {
	turns := conversation.Normalize(req.Conversation)
	turns = conversation.EnsureUserTurn(turns, req.Utterance())
	if s.counter != nil {
		turns = s.counter.TrimToTokenBudget(turns, s.budget)
	}
	return engine.BuildTranscript(s.systemPrompt, turns)
}

func (s *ModelSelector) Select(ctx context.Context, req *Request) (*Selection, error) {
	transcript := s.Transcript(req)
	defs := s.toolConfig.FilterTools(s.registry.ListTools())
	if s.toolConfig.ToolChoice == tools.ToolChoiceNone {
		defs = nil
	}

	completion, err := s.engine.Complete(ctx, transcript, defs)
	if err != nil {
		return nil, errors.Wrap(err, "tool selection failed")
	}

	ret := &Selection{Text: completion.Text}
	if len(completion.ToolCalls) == 0 {
		return ret, nil
	}

	requested := make([]tools.ToolCall, 0, len(completion.ToolCalls))
	for _, c := range completion.ToolCalls {
		if c.ID == "" {
			c.ID = newCallID()
		}
		c.Arguments = tools.NormalizeArguments(c.Arguments)
		requested = append(requested, c)

		if !json.Valid(c.Arguments) {
			log.Warn().
				Str("tool", c.Name).
				Str("tool_call_id", c.ID).
				Str("arguments", string(c.Arguments)).
				Msg("rejecting tool call with malformed arguments")
			ret.Rejected = append(ret.Rejected, Rejection{
				Call: c,
				Err: &tools.ToolError{
					ToolName: c.Name,
					ToolID:   c.ID,
					Type:     tools.ToolErrorValidation,
					Message:  "Invalid arguments for " + c.Name + ": malformed JSON",
				},
			})
			continue
		}
		ret.Calls = append(ret.Calls, c)
	}

	// the caller's transcript stays untouched, the second pass works on a copy
	ret.Transcript = clone.Clone(transcript).([]engine.Message)
	ret.Transcript = append(ret.Transcript, engine.Message{
		Role:      conversation.RoleAssistant,
		Content:   completion.Text,
		ToolCalls: requested,
	})

	log.Debug().
		Int("calls", len(ret.Calls)).
		Int("rejected", len(ret.Rejected)).
		Msg("model selected tools")

	return ret, nil
}

var _ Selector = (*ModelSelector)(nil)
