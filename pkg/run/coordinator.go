package run

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/compose"
	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/inference/engine"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/provider"
	"github.com/go-go-golems/kraken-agui/pkg/selector"
	"github.com/go-go-golems/kraken-agui/pkg/stream"
)

// Emitter is where a run writes its events. *stream.Emitter implements it.
type Emitter interface {
	Emit(ctx context.Context, evs ...events.Event) error
}

var _ Emitter = (*stream.Emitter)(nil)

// Observer is told about every finished run.
type Observer func(r *Run, elapsed time.Duration)

// Coordinator drives one run from request to terminal event.
type Coordinator struct {
	registry   tools.ToolRegistry
	selector   selector.Selector
	executor   *tools.Executor
	narrator   compose.Narrator
	secondPass compose.Narrator
	explainer  compose.Narrator
	mode       Mode
	observers  []Observer
}

type Option func(*Coordinator)

func WithSelector(s selector.Selector) Option {
	return func(c *Coordinator) { c.selector = s }
}

func WithExecutor(e *tools.Executor) Option {
	return func(c *Coordinator) { c.executor = e }
}

// WithNarrator sets the narrator used in text output mode.
func WithNarrator(n compose.Narrator) Option {
	return func(c *Coordinator) { c.narrator = n }
}

// WithSecondPass sets the narrator asked for a summary after widgets were
// emitted. It is only used when the mode enables the second pass.
func WithSecondPass(n compose.Narrator) Option {
	return func(c *Coordinator) { c.secondPass = n }
}

func WithMode(m Mode) Option {
	return func(c *Coordinator) { c.mode = m }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

func NewCoordinator(registry tools.ToolRegistry, options ...Option) (*Coordinator, error) {
	ret := &Coordinator{
		registry: registry,
		mode:     DefaultMode(),
	}
	for _, o := range options {
		if o != nil {
			o(ret)
		}
	}

	if ret.registry == nil {
		return nil, errors.New("coordinator needs a tool registry")
	}
	if ret.selector == nil {
		return nil, errors.New("coordinator needs a selector")
	}
	if err := ret.mode.Validate(); err != nil {
		return nil, err
	}
	if ret.executor == nil {
		ret.executor = tools.NewExecutor(tools.DefaultToolConfig())
	}
	tn, err := compose.NewTemplateNarrator(compose.DefaultTemplates)
	if err != nil {
		return nil, err
	}
	ret.explainer = tn
	if ret.narrator == nil {
		ret.narrator = tn
	}
	if ret.mode.SecondPass && ret.secondPass == nil {
		return nil, errors.New("second pass is enabled but no second-pass narrator is configured")
	}
	return ret, nil
}

func (c *Coordinator) Mode() Mode {
	return c.mode
}

func (c *Coordinator) Registry() tools.ToolRegistry {
	return c.registry
}

// Run executes one run and writes all of its events to em. The returned Run
// is in a final state; the terminal event has been queued as the last event.
func (c *Coordinator) Run(ctx context.Context, in *Input, em Emitter) *Run {
	r, start := c.begin(ctx, in, em)
	if r.Err == nil {
		r.Err = c.execute(ctx, r, in, em)
	}
	c.end(ctx, r, em, start)
	return r
}

// Reject reports a request that could not be decoded. The client still
// gets a well-formed stream: start, error signal, terminal event.
func (c *Coordinator) Reject(ctx context.Context, in *Input, cause error, em Emitter) *Run {
	r, start := c.begin(ctx, in, em)
	if r.Err == nil {
		r.Err = cause
	}
	c.end(ctx, r, em, start)
	return r
}

func (c *Coordinator) begin(ctx context.Context, in *Input, em Emitter) (*Run, time.Time) {
	start := time.Now()
	r := newRun(in)
	log.Info().Str("run_id", r.RunID).Str("thread_id", r.ThreadID).Msg("run started")

	if err := em.Emit(ctx, events.NewRunStartedEvent(r.Metadata(), r.ThreadID, r.RunID)); err != nil {
		r.Err = err
	}
	r.Status = StatusStarted
	return r, start
}

func (c *Coordinator) end(ctx context.Context, r *Run, em Emitter, start time.Time) {
	meta := r.Metadata()

	if r.Err == nil {
		r.Status = StatusFinished
		if err := em.Emit(ctx, events.NewRunFinishedEvent(meta, r.ThreadID, r.RunID)); err != nil {
			r.Err = err
			r.Status = StatusErrored
		}
	} else {
		r.Status = StatusErrored
		msg := ErrorMessage(r.Err)
		log.Error().Err(r.Err).Str("run_id", r.RunID).Str("thread_id", r.ThreadID).Msg("run failed")

		var evs []events.Event
		if c.mode.ErrorStyle == ErrorStyleEvent {
			evs = []events.Event{events.NewRunErrorEvent(meta, msg, ErrorCode(r.Err))}
		} else {
			evs = compose.TextEvents(meta, compose.NewMessageID(), ErrorPrefix+msg, c.mode.ChunkSize)
			evs = append(evs, events.NewRunFinishedEvent(meta, r.ThreadID, r.RunID))
		}
		if err := em.Emit(ctx, evs...); err != nil {
			log.Warn().Err(err).Str("run_id", r.RunID).Msg("could not deliver run error")
		}
	}

	elapsed := time.Since(start)
	log.Info().
		Str("run_id", r.RunID).
		Str("status", string(r.Status)).
		Strs("tools", r.Tools).
		Dur("elapsed", elapsed).
		Msg("run ended")
	for _, o := range c.observers {
		o(r, elapsed)
	}
}

func (c *Coordinator) execute(ctx context.Context, r *Run, in *Input, em Emitter) error {
	meta := r.Metadata()
	req := &selector.Request{}
	if in != nil {
		req.Conversation = in.Messages
	}

	sel, err := c.selector.Select(ctx, req)
	if err != nil {
		return err
	}
	r.Status = StatusRunning

	if !sel.HasTools() {
		return c.emitText(ctx, em, meta, sel.Text)
	}

	outcomes, err := c.executeTools(ctx, r, sel, em)
	if err != nil {
		return err
	}

	input := compose.NarrationInput{
		Utterance:  req.Utterance(),
		Outcomes:   outcomes,
		Transcript: sel.Transcript,
	}

	if c.mode.Output == OutputText {
		text, err := c.narrator.Narrate(ctx, input)
		if err != nil {
			return err
		}
		return c.emitText(ctx, em, meta, text)
	}

	if c.mode.SecondPass {
		text, err := c.secondPass.Narrate(ctx, input)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != "" {
			return em.Emit(ctx, compose.TextEvents(meta, compose.NewMessageID(), text, c.mode.ChunkSize)...)
		}
	}

	// failed and rejected calls have no widget, report them as one message
	failed := failedOutcomes(outcomes)
	if len(failed) == 0 {
		return nil
	}
	text, err := c.explainer.Narrate(ctx, compose.NarrationInput{
		Utterance: input.Utterance,
		Outcomes:  failed,
	})
	if err != nil {
		return err
	}
	return c.emitText(ctx, em, meta, text)
}

func failedOutcomes(outcomes []compose.Outcome) []compose.Outcome {
	var ret []compose.Outcome
	for _, o := range outcomes {
		if o.Failed() {
			ret = append(ret, o)
		}
	}
	return ret
}

// executeTools runs the selected calls. In widget mode each successful
// result is emitted as one triplet as soon as it is available.
func (c *Coordinator) executeTools(ctx context.Context, r *Run, sel *selector.Selection, em Emitter) ([]compose.Outcome, error) {
	meta := r.Metadata()

	var mu sync.Mutex
	var emitErr error

	onResult := func(call tools.ToolCall, res *tools.ToolResult) {
		if res.Failed() {
			return
		}
		mu.Lock()
		r.Tools = append(r.Tools, call.Name)
		failed := emitErr != nil
		mu.Unlock()

		if failed || c.mode.Output != OutputWidget {
			return
		}

		widget := call.Name
		if def, err := c.registry.GetTool(call.Name); err == nil {
			widget = def.DisplayName()
		}
		evs, err := compose.WidgetEvents(meta, compose.NewToolCallID(), widget, res.Result)
		if err == nil {
			err = em.Emit(ctx, evs...)
		}
		if err != nil {
			mu.Lock()
			if emitErr == nil {
				emitErr = err
			}
			mu.Unlock()
		}
	}

	results, err := c.executor.ExecuteToolCalls(ctx, sel.Calls, c.registry, onResult)
	if err != nil {
		return nil, err
	}
	if emitErr != nil {
		return nil, emitErr
	}

	outcomes := make([]compose.Outcome, 0, len(sel.Calls)+len(sel.Rejected))
	for i, call := range sel.Calls {
		outcomes = append(outcomes, compose.Outcome{Call: call, Result: results[i]})
	}
	for _, rej := range sel.Rejected {
		outcomes = append(outcomes, compose.Outcome{
			Call: rej.Call,
			Result: &tools.ToolResult{
				ID:    rej.Call.ID,
				Name:  rej.Call.Name,
				Err:   rej.Err,
				Error: rej.Err.Error(),
			},
		})
	}
	return outcomes, nil
}

func (c *Coordinator) emitText(ctx context.Context, em Emitter, meta events.EventMetadata, text string) error {
	if strings.TrimSpace(text) == "" {
		text = FallbackText
	}
	return em.Emit(ctx, compose.TextEvents(meta, compose.NewMessageID(), text, c.mode.ChunkSize)...)
}

// ErrorMessage is the client-facing message of err: the innermost message,
// without the context added while unwinding.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return errors.Cause(err).Error()
}

// ErrorCode classifies err for RUN_ERROR events.
func ErrorCode(err error) string {
	var te *tools.ToolError
	var se *engine.ServiceError
	switch {
	case errors.As(err, &te):
		switch te.Type {
		case tools.ToolErrorNotFound:
			return "unknown_tool"
		case tools.ToolErrorValidation:
			return "invalid_arguments"
		case tools.ToolErrorTimeout:
			return "tool_timeout"
		case tools.ToolErrorNotAllowed:
			return "tool_not_allowed"
		}
		return "tool_error"
	case provider.IsProviderError(err):
		return "provider_error"
	case errors.As(err, &se):
		return "reasoning_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal_error"
}
