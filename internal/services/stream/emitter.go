package stream

import (
	"context"
	"fmt"
	"time"
)

// Emitter stamps events with run metadata and delivers them to a channel.
type Emitter struct {
	out         chan<- Event
	run         string
	accumulator string
}

func NewEmitter(out chan<- Event, run, accumulator string) *Emitter {
	return &Emitter{out: out, run: run, accumulator: accumulator}
}

// Send delivers the event unless ctx is done first.
func (e *Emitter) Send(ctx context.Context, event Event) error {
	if e.out == nil {
		return fmt.Errorf("stream: event channel is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.stamp(&event)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case e.out <- event:
		return nil
	}
}

// Deliver blocks until the consumer takes the event. Used for the final flush,
// which must reach the renderer even after cancellation.
func (e *Emitter) Deliver(event Event) error {
	if e.out == nil {
		return fmt.Errorf("stream: event channel is nil")
	}
	e.stamp(&event)
	e.out <- event
	return nil
}

func (e *Emitter) stamp(event *Event) {
	event.Version = SchemaVersion
	if event.Run == "" {
		event.Run = e.run
	}
	if event.Accumulator == "" {
		event.Accumulator = e.accumulator
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
}
