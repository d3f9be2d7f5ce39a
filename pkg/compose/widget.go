package compose

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/kraken-agui/pkg/events"
)

// widgetPayload is the argument object handed to client widgets.
type widgetPayload struct {
	Data interface{} `json:"data"`
}

// NewToolCallID returns a fresh protocol id for a tool-call triplet.
func NewToolCallID() string {
	return uuid.NewString()
}

// WidgetEvents renders a tool result as a start/args/end triplet addressed
// to widget. The args delta is the JSON object {"data": result}.
func WidgetEvents(meta events.EventMetadata, toolCallID string, widget string, result interface{}) ([]events.Event, error) {
	b, err := json.Marshal(widgetPayload{Data: result})
	if err != nil {
		return nil, errors.Wrapf(err, "could not serialize result for %s", widget)
	}
	return []events.Event{
		events.NewToolCallStartEvent(meta, toolCallID, widget),
		events.NewToolCallArgsEvent(meta, toolCallID, string(b)),
		events.NewToolCallEndEvent(meta, toolCallID),
	}, nil
}
