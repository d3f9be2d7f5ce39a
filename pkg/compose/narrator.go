package compose

import (
	"context"

	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
)

// Outcome pairs a tool call with its result. Result.Err is set for calls
// that failed or were rejected.
type Outcome struct {
	Call   tools.ToolCall
	Result *tools.ToolResult
}

func (o Outcome) Failed() bool {
	return o.Result == nil || o.Result.Failed()
}

// NarrationInput is what a Narrator turns into text.
type NarrationInput struct {
	Utterance string
	Outcomes  []Outcome
	// Transcript is the reasoning transcript up to and including the
	// assistant turn that requested the tools. May be nil.
	Transcript []engine.Message
}

// Narrator renders tool outcomes as a natural-language reply. An empty
// string means nothing to say.
type Narrator interface {
	Narrate(ctx context.Context, in NarrationInput) (string, error)
}

const (
	NarratorTemplate = "template"
	NarratorModel    = "model"
)
