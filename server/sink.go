package server

import (
	"context"

	"feed-lab/domain/event"
)

// Sink buffers fanned-out events for one live connection.
// The write pump of the owning session drains it.
type Sink struct {
	Events chan event.DomainEvent
}

func NewSink(bufferSize int) *Sink {
	return &Sink{Events: make(chan event.DomainEvent, bufferSize)}
}

// Consume is called by the registry during fan-out. It never blocks: a stuck
// or slow connection must not stall delivery to others, so when the buffer is
// full the event is dropped for this connection only. The client will see the
// message again on its next conversation fetch; the durable copy is the
// source of truth.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
