package compose

import (
	"github.com/google/uuid"

	"github.com/go-go-golems/kraken-agui/pkg/conversation"
	"github.com/go-go-golems/kraken-agui/pkg/events"
)

const DefaultChunkSize = 40

// Chunk splits text into pieces of at most size runes. Concatenating the
// pieces gives back text. Empty text yields no pieces.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	ret := []string{}
	start, n := 0, 0
	for i := range text {
		if n == size {
			ret = append(ret, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(ret, text[start:])
}

// NewMessageID returns a fresh id for a text message.
func NewMessageID() string {
	return uuid.NewString()
}

// TextEvents renders text as one assistant text message: a start event, one
// content event per chunk, an end event.
func TextEvents(meta events.EventMetadata, messageID string, text string, size int) []events.Event {
	chunks := Chunk(text, size)
	ret := make([]events.Event, 0, len(chunks)+2)
	ret = append(ret, events.NewTextMessageStartEvent(meta, messageID, string(conversation.RoleAssistant)))
	for _, c := range chunks {
		ret = append(ret, events.NewTextMessageContentEvent(meta, messageID, c))
	}
	return append(ret, events.NewTextMessageEndEvent(meta, messageID))
}
