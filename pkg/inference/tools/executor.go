package tools

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ResultCallback is invoked once per call as soon as its result is known.
// With parallel execution it is called from several goroutines.
type ResultCallback func(call ToolCall, result *ToolResult)

// Executor runs tool calls against a registry. It never retries.
type Executor struct {
	config    ToolConfig
	observers []ResultCallback
}

type ExecutorOption func(*Executor)

// WithObserver registers a callback that sees every finished invocation,
// used for metrics.
func WithObserver(cb ResultCallback) ExecutorOption {
	return func(e *Executor) {
		e.observers = append(e.observers, cb)
	}
}

func NewExecutor(cfg ToolConfig, options ...ExecutorOption) *Executor {
	ret := &Executor{config: cfg}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (e *Executor) Config() ToolConfig {
	return e.config
}

// ExecuteToolCall runs a single call. Tool failures are reported on the
// result; the returned error is only set when ctx is done before the call
// could start.
func (e *Executor) ExecuteToolCall(ctx context.Context, call ToolCall, registry ToolRegistry) (*ToolResult, error) {
	start := time.Now()
	res := e.executeOnce(ctx, call, registry)
	res.ID = call.ID
	res.Name = call.Name
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	l := log.Debug()
	if res.Err != nil {
		l = log.Warn().Err(res.Err)
	}
	l.Str("tool", call.Name).
		Str("tool_call_id", call.ID).
		Dur("duration", res.Duration).
		Msg("tool call finished")

	for _, o := range e.observers {
		o(call, res)
	}

	if ctxErr := ctx.Err(); ctxErr != nil && res.Err != nil && errors.Is(res.Err, ctxErr) {
		return res, ctxErr
	}
	return res, nil
}

func (e *Executor) executeOnce(ctx context.Context, call ToolCall, registry ToolRegistry) *ToolResult {
	def, err := registry.GetTool(call.Name)
	if err != nil {
		return &ToolResult{Err: err}
	}
	if !e.config.IsToolAllowed(call.Name) {
		return &ToolResult{Err: &ToolError{
			ToolName: call.Name,
			ToolID:   call.ID,
			Type:     ToolErrorNotAllowed,
			Message:  "Tool not allowed: " + call.Name,
		}}
	}
	if err := def.ValidateArguments(call.Arguments); err != nil {
		return &ToolResult{Err: &ToolError{
			ToolName: call.Name,
			ToolID:   call.ID,
			Type:     ToolErrorValidation,
			Message:  "Invalid arguments for " + call.Name + ": " + err.Error(),
			Cause:    err,
		}}
	}

	if err := ctx.Err(); err != nil {
		return &ToolResult{Err: err}
	}

	callCtx := ctx
	if e.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.ExecutionTimeout)
		defer cancel()
	}

	out, err := def.Function.Execute(callCtx, call.Arguments)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &ToolResult{Err: &ToolError{
				ToolName: call.Name,
				ToolID:   call.ID,
				Type:     ToolErrorTimeout,
				Message:  call.Name + " timed out after " + e.config.ExecutionTimeout.String(),
				Cause:    err,
			}}
		}
		return &ToolResult{Err: err}
	}
	return &ToolResult{Result: out}
}

// ExecuteToolCalls runs calls sequentially, or concurrently when
// MaxParallelTools > 1. onResult (may be nil) is invoked as each call
// finishes, so fast calls are reported before slow ones. Results are
// returned in call order; calls skipped after an abort have a nil result.
// The returned error is the first failure under ToolErrorAbort.
func (e *Executor) ExecuteToolCalls(ctx context.Context, calls []ToolCall, registry ToolRegistry, onResult ResultCallback) ([]*ToolResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if e.config.MaxParallelTools <= 1 || len(calls) == 1 {
		return e.executeSequential(ctx, calls, registry, onResult)
	}
	return e.executeParallel(ctx, calls, registry, onResult)
}

func (e *Executor) executeSequential(ctx context.Context, calls []ToolCall, registry ToolRegistry, onResult ResultCallback) ([]*ToolResult, error) {
	results := make([]*ToolResult, len(calls))
	for i, c := range calls {
		r, err := e.ExecuteToolCall(ctx, c, registry)
		results[i] = r
		if err != nil {
			return results, err
		}
		if onResult != nil {
			onResult(c, r)
		}
		if r.Failed() && e.config.ToolErrorHandling == ToolErrorAbort {
			return results, r.Err
		}
	}
	return results, nil
}

func (e *Executor) executeParallel(ctx context.Context, calls []ToolCall, registry ToolRegistry, onResult ResultCallback) ([]*ToolResult, error) {
	results := make([]*ToolResult, len(calls))
	abort := e.config.ToolErrorHandling == ToolErrorAbort

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxParallelTools)

	var mu sync.Mutex
	aborted := false

	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := e.ExecuteToolCall(gctx, c, registry)

			mu.Lock()
			results[i] = r
			if err != nil || aborted {
				mu.Unlock()
				return err
			}
			failed := r.Failed() && abort
			if failed {
				aborted = true
			}
			mu.Unlock()

			if onResult != nil {
				onResult(c, r)
			}
			if failed {
				return r.Err
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}
