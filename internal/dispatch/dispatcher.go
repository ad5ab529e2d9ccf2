// Package dispatch fans one traversal out to several independent accumulators.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

const DefaultBufferLimit = 4096

type Options struct {
	// BufferLimit bounds the queued entries per subtree in each mailbox.
	BufferLimit int
	RunID       string
	Logger      *zap.Logger
}

// Outcome summarizes a finished run per accumulator.
type Outcome struct {
	Complete     bool
	Accumulators map[string]bool
}

type registration struct {
	name        string
	accumulator accumulator.Accumulator
	mailbox     *Mailbox
	out         chan<- stream.Event
	complete    bool
}

type Dispatcher struct {
	options       Options
	registrations []*registration
	group         errgroup.Group
	startOnce     sync.Once
	closeOnce     sync.Once
}

func New(options Options) *Dispatcher {
	if options.BufferLimit == 0 {
		options.BufferLimit = DefaultBufferLimit
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Dispatcher{options: options}
}

// Register adds an accumulator whose events are written to out. out is closed
// once the accumulator has emitted its final event. Register must be called
// before Start.
func (dispatcher *Dispatcher) Register(name string, accumulatorInstance accumulator.Accumulator, out chan<- stream.Event) {
	dispatcher.registrations = append(dispatcher.registrations, &registration{
		name:        name,
		accumulator: accumulatorInstance,
		mailbox:     NewMailbox(dispatcher.options.BufferLimit),
		out:         out,
	})
}

// Start launches one runner per registered accumulator.
func (dispatcher *Dispatcher) Start(ctx context.Context) {
	dispatcher.startOnce.Do(func() {
		for _, registered := range dispatcher.registrations {
			dispatcher.group.Go(func() error {
				defer close(registered.out)
				emitter := stream.NewEmitter(registered.out, dispatcher.options.RunID, registered.name)
				complete, runError := accumulator.Run(ctx, registered.accumulator, registered.mailbox, emitter)
				registered.mailbox.Abandon()
				registered.complete = complete
				if runError != nil {
					return fmt.Errorf("%s accumulator: %w", registered.name, runError)
				}
				return nil
			})
		}
	})
}

// Publish hands batch to every accumulator. Mailboxes with room take the
// batch first; Publish then blocks only on the accumulators whose partition
// for the batch's subtree is full, so a stalled accumulator never withholds an
// already produced batch from the others. Accumulators that have already
// stopped are skipped.
func (dispatcher *Dispatcher) Publish(ctx context.Context, batch types.Batch) error {
	var full []*registration
	for _, registered := range dispatcher.registrations {
		admitted, putError := registered.mailbox.TryPut(batch)
		switch {
		case errors.Is(putError, ErrMailboxClosed):
			dispatcher.skipStopped(registered)
		case putError != nil:
			return putError
		case !admitted:
			full = append(full, registered)
		}
	}
	if len(full) == 0 {
		return nil
	}

	waiters, waitContext := errgroup.WithContext(ctx)
	for _, registered := range full {
		waiters.Go(func() error {
			putError := registered.mailbox.Put(waitContext, batch)
			if errors.Is(putError, ErrMailboxClosed) {
				dispatcher.skipStopped(registered)
				return nil
			}
			return putError
		})
	}
	return waiters.Wait()
}

func (dispatcher *Dispatcher) skipStopped(registered *registration) {
	dispatcher.options.Logger.Debug("accumulator stopped accepting batches", zap.String("accumulator", registered.name))
}

// Close broadcasts end of traversal. Safe to call more than once.
func (dispatcher *Dispatcher) Close() {
	dispatcher.closeOnce.Do(func() {
		for _, registered := range dispatcher.registrations {
			registered.mailbox.Close()
		}
	})
}

// Wait blocks until every accumulator has drained and emitted its final event.
func (dispatcher *Dispatcher) Wait() (Outcome, error) {
	waitError := dispatcher.group.Wait()
	outcome := Outcome{Complete: true, Accumulators: make(map[string]bool, len(dispatcher.registrations))}
	for _, registered := range dispatcher.registrations {
		outcome.Accumulators[registered.name] = registered.complete
		if !registered.complete {
			outcome.Complete = false
		}
	}
	return outcome, waitError
}
