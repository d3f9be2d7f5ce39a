package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRouter_TapCarriesCorrelationID(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	received := make(chan *message.Message, 1)
	router.AddHandler("test", TopicProtocolEvents, func(msg *message.Message) error {
		received <- msg
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	defer func() { _ = router.Close() }()

	require.NoError(t, router.Sink().PublishEvent(NewRunStartedEvent(meta, "thread-1", "run-1")))

	select {
	case msg := <-received:
		assert.Equal(t, "run-1", msg.Metadata.Get("correlation_id"))
		assert.Equal(t, string(EventTypeRunStarted), msg.Metadata.Get("event_type"))
		ev, err := NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, EventTypeRunStarted, ev.Type())
		assert.NoError(t, router.LogEvents(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("tapped event was not delivered")
	}
}

func TestEventRouter_UntaggedEventsGetGeneratedID(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	received := make(chan *message.Message, 1)
	router.AddHandler("test", TopicProtocolEvents, func(msg *message.Message) error {
		received <- msg
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	defer func() { _ = router.Close() }()

	require.NoError(t, router.Sink().PublishEvent(NewRunFinishedEvent(EventMetadata{}, "", "")))

	select {
	case msg := <-received:
		assert.True(t, strings.HasPrefix(msg.Metadata.Get("correlation_id"), "untagged_"))
	case <-time.After(5 * time.Second):
		t.Fatal("tapped event was not delivered")
	}
}

func TestPublishEventToContext(t *testing.T) {
	sink := &CollectingSink{}
	ctx := WithEventSinks(context.Background(), sink)
	PublishEventToContext(ctx, NewRunFinishedEvent(meta, "t", "r"))
	PublishEventToContext(context.Background(), NewRunFinishedEvent(meta, "t", "r"))
	require.Len(t, sink.Events, 1)
	assert.Equal(t, EventTypeRunFinished, sink.Events[0].Type())
}
