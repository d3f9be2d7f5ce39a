package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kraken-agui/pkg/events"
)

var meta = events.EventMetadata{RunID: "r1", ThreadID: "t1"}

// parseFrames decodes an SSE body back into events.
func parseFrames(t *testing.T, body string) ([]events.Event, []string) {
	var evs []events.Event
	var names []string
	for _, frame := range strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n") {
		var data string
		sc := bufio.NewScanner(strings.NewReader(frame))
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				names = append(names, strings.TrimPrefix(line, "event: "))
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		e, err := events.NewEventFromJson([]byte(data))
		require.NoError(t, err)
		evs = append(evs, e)
	}
	return evs, names
}

func TestEncodeFrame(t *testing.T) {
	b, err := EncodeFrame(events.NewRunStartedEvent(meta, "t1", "r1"), false)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"RUN_STARTED\",\"threadId\":\"t1\",\"runId\":\"r1\"}\n\n", string(b))

	b, err = EncodeFrame(events.NewToolCallEndEvent(meta, "tc"), true)
	require.NoError(t, err)
	assert.Equal(t, "event: TOOL_CALL_END\ndata: {\"type\":\"TOOL_CALL_END\",\"toolCallId\":\"tc\"}\n\n", string(b))
}

func TestSetHeadersAndAccept(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	assert.True(t, WantsTagged("application/json, Text/Event-Stream"))
	assert.False(t, WantsTagged("*/*"))
	assert.False(t, WantsTagged(""))
}

func triplet(id string) []events.Event {
	return []events.Event{
		events.NewToolCallStartEvent(meta, id, "show"),
		events.NewToolCallArgsEvent(meta, id, `{"data":1}`),
		events.NewToolCallEndEvent(meta, id),
	}
}

func TestEmitter_ConcurrentBatchesNeverInterleave(t *testing.T) {
	rec := httptest.NewRecorder()
	var observed []events.EventType
	em := NewEmitter(rec, WithTagged(true), WithBuffer(2), WithFrameObserver(func(e events.Event) {
		observed = append(observed, e.Type())
	}))
	ctx := context.Background()

	require.NoError(t, em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1")))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, em.Emit(ctx, triplet(fmt.Sprintf("tc-%d", i))...))
		}(i)
	}
	wg.Wait()
	require.NoError(t, em.Emit(ctx, events.NewRunFinishedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Close())

	assert.True(t, rec.Flushed)
	evs, names := parseFrames(t, rec.Body.String())
	require.Len(t, evs, 62)
	assert.Len(t, names, 62)
	assert.NoError(t, events.ValidateSequence(evs))
	assert.NoError(t, em.Violation())
	assert.Equal(t, 62, em.Written())
	assert.Len(t, observed, 62)

	assert.Equal(t, ErrClosed, em.Emit(ctx, events.NewRunFinishedEvent(meta, "t1", "r1")))
	assert.NoError(t, em.Close())
}

func TestEmitter_DropsOutOfOrderEvents(t *testing.T) {
	var buf bytes.Buffer
	em := NewEmitter(&buf)
	ctx := context.Background()

	require.NoError(t, em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Emit(ctx, events.NewToolCallArgsEvent(meta, "nope", "{}")))
	require.NoError(t, em.Emit(ctx, events.NewRunFinishedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Close())

	evs, _ := parseFrames(t, buf.String())
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventTypeRunFinished, evs[1].Type())
	assert.Error(t, em.Violation())

	// without validation everything is written as-is
	buf.Reset()
	em = NewEmitter(&buf, WithValidation(false))
	require.NoError(t, em.Emit(ctx, events.NewToolCallEndEvent(meta, "x")))
	require.NoError(t, em.Close())
	assert.Equal(t, 1, em.Written())
}

func TestEmitter_TerminalEventClosesWhatWasLeftOpen(t *testing.T) {
	var buf bytes.Buffer
	em := NewEmitter(&buf)
	ctx := context.Background()

	require.NoError(t, em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Emit(ctx,
		events.NewTextMessageStartEvent(meta, "m", "assistant"),
		events.NewTextMessageContentEvent(meta, "m", "hello"),
		events.NewTextMessageContentEvent(meta, "x", "stray"),
		events.NewTextMessageEndEvent(meta, "x"),
	))
	require.NoError(t, em.Emit(ctx, events.NewRunFinishedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Close())
	assert.Error(t, em.Violation())

	evs, _ := parseFrames(t, buf.String())
	require.NoError(t, events.ValidateSequence(evs))
	require.Len(t, evs, 5)
	assert.Equal(t, "m", evs[3].(*events.EventTextMessageEnd).MessageID)
	assert.Equal(t, events.EventTypeRunFinished, evs[4].Type())
}

type failingWriter struct {
	n int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("broken pipe")
	}
	f.n--
	return len(p), nil
}

func TestEmitter_RecordsFirstWriteError(t *testing.T) {
	w := &failingWriter{n: 1}
	em := NewEmitter(w)
	ctx := context.Background()

	_ = em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1"))
	_ = em.Emit(ctx, events.NewTextMessageStartEvent(meta, "m", "assistant"))
	_ = em.Emit(ctx, events.NewTextMessageEndEvent(meta, "m"))
	err := em.Close()
	require.EqualError(t, err, "broken pipe")
	assert.Equal(t, 1, em.Written())
	assert.EqualError(t, em.Err(), "broken pipe")
}

func TestEmitter_TapsContextSinks(t *testing.T) {
	sink := &events.CollectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)
	em := NewEmitter(&bytes.Buffer{})
	require.NoError(t, em.Emit(ctx, events.NewRunStartedEvent(meta, "t1", "r1"), events.NewRunFinishedEvent(meta, "t1", "r1")))
	require.NoError(t, em.Close())
	assert.Len(t, sink.Events, 2)
}
