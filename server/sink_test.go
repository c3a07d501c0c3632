package server

import (
	"context"
	"testing"

	"feed-lab/domain/event"

	"github.com/stretchr/testify/require"
)

func TestSink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	sink := NewSink(2)

	req.NoError(sink.Consume(context.Background(), event.MessageReceived{ID: 1}))
	req.NoError(sink.Consume(context.Background(), event.MessageReceived{ID: 2}))
	req.Len(sink.Events, 2)
}

func TestSink_Drops_When_Full_Instead_Of_Blocking(t *testing.T) {
	req := require.New(t)
	sink := NewSink(1)

	req.NoError(sink.Consume(context.Background(), event.MessageReceived{ID: 1}))

	// The buffer is full; the call must return immediately without error
	req.NoError(sink.Consume(context.Background(), event.MessageReceived{ID: 2}))
	req.Len(sink.Events, 1)

	first := <-sink.Events
	req.Equal(event.MessageReceived{ID: 1}, first)
}
