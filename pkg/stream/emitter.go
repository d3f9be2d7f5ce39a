package stream

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/kraken-agui/pkg/events"
)

// ErrClosed is returned when emitting on a closed emitter.
var ErrClosed = errors.New("emitter closed")

type flusher interface {
	Flush()
}

// Emitter serializes events onto one response. A single writer goroutine
// drains a channel of batches; a batch is written contiguously, so the
// events of one batch are never interleaved with another's.
//
// The first write error is recorded and all later frames are dropped.
type Emitter struct {
	w        io.Writer
	tagged   bool
	validate bool
	observe  func(events.Event)

	batches chan []events.Event
	done    chan struct{}
	// sendMu guards sends on batches against Close
	sendMu sync.RWMutex

	mu        sync.Mutex
	err       error
	violation error
	closed    bool
	written   int

	validator *events.SequenceValidator
}

type Option func(*Emitter)

func WithTagged(tagged bool) Option {
	return func(e *Emitter) {
		e.tagged = tagged
	}
}

// WithValidation makes the emitter drop events that would break the
// protocol ordering.
func WithValidation(validate bool) Option {
	return func(e *Emitter) {
		e.validate = validate
	}
}

// WithFrameObserver is called from the writer goroutine after each frame
// was written.
func WithFrameObserver(f func(events.Event)) Option {
	return func(e *Emitter) {
		e.observe = f
	}
}

func WithBuffer(n int) Option {
	return func(e *Emitter) {
		if n < 0 {
			n = 0
		}
		e.batches = make(chan []events.Event, n)
	}
}

// NewEmitter starts the writer goroutine. Close must be called to stop it.
func NewEmitter(w io.Writer, options ...Option) *Emitter {
	ret := &Emitter{
		w:         w,
		validate:  true,
		batches:   make(chan []events.Event, 64),
		done:      make(chan struct{}),
		validator: events.NewSequenceValidator(),
	}
	for _, o := range options {
		o(ret)
	}
	go ret.run()
	return ret
}

// Emit queues evs as one batch. It returns the recorded write error, if
// any, so callers can stop early on a disconnected client.
func (e *Emitter) Emit(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return e.Err()
	}

	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.isClosed() {
		return ErrClosed
	}

	for _, ev := range evs {
		events.PublishEventToContext(ctx, ev)
	}

	select {
	case e.batches <- evs:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.Err()
}

// Close flushes all queued batches and stops the writer. It returns the
// first write error.
func (e *Emitter) Close() error {
	e.sendMu.Lock()
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.batches)
	}
	e.mu.Unlock()
	e.sendMu.Unlock()
	<-e.done
	return e.Err()
}

func (e *Emitter) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Err is the first write error, or nil.
func (e *Emitter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Violation is the first ordering violation that caused a frame to be
// dropped, or nil.
func (e *Emitter) Violation() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violation
}

// Written is the number of frames written so far.
func (e *Emitter) Written() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

func (e *Emitter) run() {
	defer close(e.done)
	for batch := range e.batches {
		e.writeBatch(batch)
	}
}

func (e *Emitter) writeBatch(batch []events.Event) {
	if e.Err() != nil {
		return
	}

	for _, ev := range batch {
		if e.validate {
			if err := e.validator.Observe(ev); err != nil {
				log.Error().Err(err).Object("event", ev.Metadata()).Str("event_type", string(ev.Type())).Msg("dropping out-of-order event")
				e.mu.Lock()
				if e.violation == nil {
					e.violation = err
				}
				e.mu.Unlock()

				// a terminal event is never dropped for something left open
				if !ev.Type().IsTerminal() {
					continue
				}
				closing := e.validator.CloseOpen(ev.Metadata())
				if len(closing) == 0 || e.validator.Observe(ev) != nil {
					continue
				}
				for _, c := range closing {
					if !e.write(c) {
						return
					}
				}
			}
		}

		if !e.write(ev) {
			return
		}
	}

	if f, ok := e.w.(flusher); ok {
		f.Flush()
	}
}

func (e *Emitter) write(ev events.Event) bool {
	if err := WriteFrame(e.w, ev, e.tagged); err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("could not write event, dropping further frames")
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		return false
	}

	e.mu.Lock()
	e.written++
	e.mu.Unlock()

	if e.observe != nil {
		e.observe(ev)
	}
	return true
}
