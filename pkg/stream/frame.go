package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/kraken-agui/pkg/events"
)

const ContentType = "text/event-stream"

// SetHeaders prepares an HTTP response for streaming events.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WantsTagged reports whether the client asked for named SSE events.
func WantsTagged(accept string) bool {
	return strings.Contains(strings.ToLower(accept), ContentType)
}

// EncodeFrame renders one event as an SSE frame. Bare frames carry only
// the data line; tagged frames also name the event type.
func EncodeFrame(e events.Event, tagged bool) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "could not serialize %s event", e.Type())
	}
	var sb strings.Builder
	if tagged {
		sb.WriteString("event: ")
		sb.WriteString(string(e.Type()))
		sb.WriteString("\n")
	}
	sb.WriteString("data: ")
	sb.Write(b)
	sb.WriteString("\n\n")
	return []byte(sb.String()), nil
}

func WriteFrame(w io.Writer, e events.Event, tagged bool) error {
	b, err := EncodeFrame(e, tagged)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
