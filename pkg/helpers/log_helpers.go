package helpers

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lithammer/shortuuid/v3"
	"github.com/rs/zerolog"
)

// WatermillZerologAdapter routes watermill's internal logging to zerolog.
type WatermillZerologAdapter struct {
	logger zerolog.Logger
}

func (w *WatermillZerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Fields(map[string]interface{}(fields)).Err(err).Msg(msg)
}

// Info is logged at debug level, the router's info output is per message.
func (w *WatermillZerologAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *WatermillZerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.logger.With().Fields(map[string]interface{}(fields)).Logger()
	return &WatermillZerologAdapter{logger: l}
}

func NewWatermillLogger(logger zerolog.Logger) *WatermillZerologAdapter {
	return &WatermillZerologAdapter{logger: logger.With().Str("component", "watermill").Logger()}
}

var _ watermill.LoggerAdapter = &WatermillZerologAdapter{}

// CorrelationIDMetadataKey is the message metadata entry that carries the
// run id of a tapped event.
const CorrelationIDMetadataKey = "correlation_id"

// CorrelationPublisher gives messages published without a run id a generated
// one, prefixed with "untagged_", so they stay distinguishable in the tap log.
type CorrelationPublisher struct {
	message.Publisher
}

func (c CorrelationPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, m := range messages {
		if m.Metadata.Get(CorrelationIDMetadataKey) == "" {
			m.Metadata.Set(CorrelationIDMetadataKey, "untagged_"+shortuuid.New())
		}
	}
	return c.Publisher.Publish(topic, messages...)
}
