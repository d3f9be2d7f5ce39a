package compose

import (
	"context"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

const DefaultNarratorPrompt = "You are Kraken AI, a crypto portfolio assistant. Summarize the tool results for the user in a few friendly, concise sentences."

// ModelNarrator asks the reasoning service for a reply, with the tool
// results appended to the reasoning transcript. No tools are offered on
// this call.
type ModelNarrator struct {
	engine engine.Engine
	prompt string
}

type ModelNarratorOption func(*ModelNarrator)

// WithNarratorPrompt sets the system prompt used when the input carries no
// transcript.
func WithNarratorPrompt(p string) ModelNarratorOption {
	return func(n *ModelNarrator) {
		n.prompt = p
	}
}

func NewModelNarrator(e engine.Engine, options ...ModelNarratorOption) *ModelNarrator {
	ret := &ModelNarrator{engine: e, prompt: DefaultNarratorPrompt}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Transcript returns the messages sent for in: a copy of in.Transcript (or
// a synthesized one) followed by one tool message per outcome.
func (n *ModelNarrator) Transcript(in NarrationInput) []engine.Message {
	var ret []engine.Message
	if len(in.Transcript) > 0 {
		ret = clone.Clone(in.Transcript).([]engine.Message)
	} else {
		utterance := in.Utterance
		if utterance == "" {
			utterance = conversation.DefaultUtterance
		}
		calls := make([]tools.ToolCall, 0, len(in.Outcomes))
		for _, o := range in.Outcomes {
			calls = append(calls, o.Call)
		}
		ret = engine.BuildTranscript(n.prompt, []conversation.Turn{{Role: conversation.RoleUser, Text: utterance}})
		ret = append(ret, engine.Message{Role: conversation.RoleAssistant, ToolCalls: calls})
	}

	for _, o := range in.Outcomes {
		var result interface{}
		var err error
		switch {
		case o.Result == nil:
			err = errors.New("not executed")
		case o.Result.Err != nil:
			err = o.Result.Err
		case o.Result.Error != "":
			err = errors.New(o.Result.Error)
		default:
			result = o.Result.Result
		}
		ret = append(ret, engine.NewToolResultMessage(o.Call.ID, result, err))
	}
	return ret
}

func (n *ModelNarrator) Narrate(ctx context.Context, in NarrationInput) (string, error) {
	c, err := n.engine.Complete(ctx, n.Transcript(in), nil)
	if err != nil {
		return "", errors.Wrap(err, "narration failed")
	}
	if len(c.ToolCalls) > 0 {
		return "", nil
	}
	return c.Text, nil
}

var _ Narrator = (*ModelNarrator)(nil)
