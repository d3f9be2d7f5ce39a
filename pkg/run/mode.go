package run

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/kraken-agui/pkg/compose"
	"github.com/go-go-golems/kraken-agui/pkg/selector"
)

const (
	OutputWidget = "widget"
	OutputText   = "text"

	ErrorStyleText  = "text"
	ErrorStyleEvent = "event"
)

// FallbackText is sent when a run has nothing else to say.
const FallbackText = "Done!"

// ErrorPrefix starts the text message reporting a failed run.
const ErrorPrefix = "❌ Error: "

// Mode is a deployment mode: how tools are selected and how their results
// reach the client.
type Mode struct {
	Strategy   string `json:"strategy" mapstructure:"strategy"`
	Output     string `json:"output" mapstructure:"output"`
	Narrator   string `json:"narrator" mapstructure:"narrator"`
	SecondPass bool   `json:"secondPass" mapstructure:"second_pass"`
	ErrorStyle string `json:"errorStyle" mapstructure:"error_style"`
	ChunkSize  int    `json:"chunkSize" mapstructure:"chunk_size"`
}

// DefaultMode is model selection, widget output, no second pass, errors
// reported as text.
func DefaultMode() Mode {
	return Mode{
		Strategy:   selector.StrategyModel,
		Output:     OutputWidget,
		Narrator:   compose.NarratorTemplate,
		ErrorStyle: ErrorStyleText,
		ChunkSize:  compose.DefaultChunkSize,
	}
}

func (m Mode) Validate() error {
	switch m.Strategy {
	case selector.StrategyModel, selector.StrategyHeuristic:
	default:
		return errors.Errorf("unknown selector strategy %q", m.Strategy)
	}
	switch m.Output {
	case OutputWidget, OutputText:
	default:
		return errors.Errorf("unknown output mode %q", m.Output)
	}
	switch m.Narrator {
	case compose.NarratorTemplate, compose.NarratorModel:
	default:
		return errors.Errorf("unknown narrator %q", m.Narrator)
	}
	switch m.ErrorStyle {
	case ErrorStyleText, ErrorStyleEvent:
	default:
		return errors.Errorf("unknown error style %q", m.ErrorStyle)
	}
	if m.ChunkSize < 0 {
		return errors.Errorf("chunk size must not be negative, got %d", m.ChunkSize)
	}
	return nil
}
