// Package accumulator turns enriched batches into ordered output events.
//
// Two variants exist: the tree accumulator rebuilds the hierarchy and emits a
// node once its whole subtree is known, and the flat accumulator emits one
// listing per directory (or one for the whole run).
package accumulator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

const (
	warningUnreadableDirectoryFormat = "unable to read directory: %v"
	warningSymlinkCycle              = "symlink cycle not followed"
)

// ErrPathTableCorrupt reports nodes left unresolved after a complete traversal.
var ErrPathTableCorrupt = errors.New("path table corrupt")

type Kind string

const (
	KindTree Kind = "tree"
	KindFlat Kind = "flat"
)

type Action int

const (
	// ActionBuffer retains the entry until a later completion signal.
	ActionBuffer Action = iota
	// ActionEmit means Result.Events were produced immediately.
	ActionEmit
	// ActionDrop discards the entry without affecting completion.
	ActionDrop
)

type Result struct {
	Action Action
	Events []stream.Event
}

type Options struct {
	Sort            SortOptions
	DirectoriesOnly bool
	// RetainSubtrees keeps nested descendants in every emitted tree node.
	RetainSubtrees bool
	// Recursive selects per-directory flat listings instead of one listing per run.
	Recursive bool
	Logger    *zap.Logger
}

// Accumulator is the capability shared by the tree and flat variants.
type Accumulator interface {
	Accumulate(entry types.Entry) Result
	// CompleteBatch signals that every entry of batch has been accumulated.
	CompleteBatch(batch types.Batch) []stream.Event
	// Finish flushes remaining state and always ends with a StreamComplete event.
	Finish(interrupted bool) ([]stream.Event, error)
}

// New constructs the accumulator variant for kind.
func New(kind Kind, options Options) (Accumulator, error) {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Sort.Key == "" {
		options.Sort.Key = SortByName
	}
	if options.Sort.Group == "" {
		options.Sort.Group = GroupNone
	}
	switch kind {
	case KindTree:
		return newTreeAccumulator(options), nil
	case KindFlat:
		return newFlatAccumulator(options), nil
	default:
		return nil, fmt.Errorf("unsupported accumulator kind '%s'", kind)
	}
}

// Source yields batches in publication order. ok is false once the source is
// closed and drained.
type Source interface {
	Take(ctx context.Context) (batch types.Batch, ok bool, err error)
}

// Apply feeds one batch through the accumulator and returns its events.
// Unreadable directories and symlink cycles are reported as warnings ahead
// of the batch's own events.
func Apply(accumulator Accumulator, batch types.Batch) []stream.Event {
	var events []stream.Event
	if batch.Err != nil {
		events = append(events, stream.NewWarningEvent(batch.Directory, fmt.Sprintf(warningUnreadableDirectoryFormat, batch.Err)))
	}
	for _, entry := range batch.Entries {
		if entry.Cycle {
			events = append(events, stream.NewWarningEvent(entry.Path, warningSymlinkCycle))
		}
	}
	for _, entry := range batch.Entries {
		result := accumulator.Accumulate(entry)
		if result.Action == ActionEmit {
			events = append(events, result.Events...)
		}
	}
	return append(events, accumulator.CompleteBatch(batch)...)
}

// Run drives accumulator from source until the source closes or ctx is
// cancelled. Cancellation is checked before each batch is resolved. The final
// flush is delivered even after cancellation, so the consumer of emitter must
// keep draining until the channel is closed by the caller.
func Run(ctx context.Context, accumulator Accumulator, source Source, emitter *stream.Emitter) (bool, error) {
	interrupted := false
	var undelivered []stream.Event
consume:
	for {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		batch, ok, takeError := source.Take(ctx)
		if takeError != nil {
			interrupted = true
			break
		}
		if !ok {
			break
		}
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		events := Apply(accumulator, batch)
		for eventIndex, event := range events {
			if sendError := emitter.Send(ctx, event); sendError != nil {
				interrupted = true
				undelivered = events[eventIndex:]
				break consume
			}
		}
	}

	flushEvents, finishError := accumulator.Finish(interrupted)
	for _, event := range append(undelivered, flushEvents...) {
		if deliverError := emitter.Deliver(event); deliverError != nil {
			return false, deliverError
		}
	}
	return !interrupted && finishError == nil, finishError
}
