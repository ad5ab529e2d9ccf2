// Package commands wires traversal, enrichment and accumulation into one listing run.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/dispatch"
	"github.com/temirov/ltree/internal/enrich"
	"github.com/temirov/ltree/internal/ignore"
	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/traverse"
	"github.com/temirov/ltree/internal/types"
)

const (
	// errorConsumerFormat wraps a failure reported by an event consumer.
	errorConsumerFormat = "%s consumer: %w"
	// errorTraversalFormat wraps a fatal traversal failure.
	errorTraversalFormat = "listing %s: %w"
	// errorDegradedEntriesFormat describes a run that produced degraded reads.
	errorDegradedEntriesFormat = "%w: %d unreadable entries under %s"
	// errorInterruptedFormat describes a run cut short by cancellation.
	errorInterruptedFormat = "%w: %s interrupted: %v"
)

// ErrDegraded marks a run that produced output but could not list everything.
var ErrDegraded = errors.New("listing degraded")

var walkTree = traverse.Walk

// Consumer receives the events of one accumulator. Handle is called from a
// single goroutine per consumer, in emission order.
type Consumer struct {
	Name        string
	Kind        accumulator.Kind
	Accumulator accumulator.Options
	Handle      func(event stream.Event) error
}

// ListOptions configures a single listing run over one root.
type ListOptions struct {
	Root           string
	Matcher        *ignore.Matcher
	MaxDepth       int
	IncludeHidden  bool
	FollowSymlinks bool
	Workers        int
	EnrichWorkers  int
	Enrichers      []enrich.Enricher
	BufferLimit    int
	ErrorThreshold int
	// RunID is stamped on every event; a random one is generated when empty.
	RunID  string
	Logger *zap.Logger
}

// ListResult summarizes a finished run.
type ListResult struct {
	RunID    string
	Outcome  dispatch.Outcome
	Degraded int64
}

// List traverses options.Root once and feeds every consumer's accumulator.
// Every consumer receives a final StreamComplete event even when the run
// fails. A run that was interrupted or met unreadable entries returns an
// error wrapping ErrDegraded; any other error is fatal.
func List(ctx context.Context, options ListOptions, consumers []Consumer) (ListResult, error) {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.RunID == "" {
		options.RunID = uuid.NewString()
	}
	result := ListResult{RunID: options.RunID}
	if len(consumers) == 0 {
		return result, errors.New("no consumers registered")
	}

	runContext, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	dispatcher := dispatch.New(dispatch.Options{
		BufferLimit: options.BufferLimit,
		RunID:       options.RunID,
		Logger:      options.Logger,
	})

	consumerErrors := make([]error, len(consumers))
	var consumerGroup sync.WaitGroup
	for consumerIndex, consumer := range consumers {
		accumulatorInstance, constructionError := accumulator.New(consumer.Kind, consumer.Accumulator)
		if constructionError != nil {
			return result, constructionError
		}
		events := make(chan stream.Event)
		dispatcher.Register(consumer.Name, accumulatorInstance, events)
		consumerGroup.Add(1)
		go func() {
			defer consumerGroup.Done()
			// The channel is drained to the end so the final flush never blocks.
			for event := range events {
				if consumerErrors[consumerIndex] != nil {
					continue
				}
				if handleError := consumer.Handle(event); handleError != nil {
					consumerErrors[consumerIndex] = fmt.Errorf(errorConsumerFormat, consumer.Name, handleError)
					cancelRun()
				}
			}
		}()
	}

	stage := enrich.NewStage(options.EnrichWorkers, options.Logger, options.Enrichers...)
	var degraded atomic.Int64

	options.Logger.Debug("listing started", zap.String("root", options.Root), zap.String("run", options.RunID))
	dispatcher.Start(runContext)
	walkError := walkTree(runContext, traverse.Options{
		Root:           options.Root,
		MaxDepth:       options.MaxDepth,
		Matcher:        options.Matcher,
		IncludeHidden:  options.IncludeHidden,
		FollowSymlinks: options.FollowSymlinks,
		Workers:        options.Workers,
		ErrorThreshold: options.ErrorThreshold,
		Logger:         options.Logger,
	}, func(handlerContext context.Context, batch types.Batch) error {
		degraded.Add(countDegraded(batch))
		if stage.Enabled() {
			enrichedBatch, enrichError := stage.EnrichBatch(handlerContext, batch)
			if enrichError != nil {
				return enrichError
			}
			batch = enrichedBatch
		}
		return dispatcher.Publish(handlerContext, batch)
	})
	if walkError != nil {
		cancelRun()
	}
	dispatcher.Close()
	outcome, dispatchError := dispatcher.Wait()
	consumerGroup.Wait()

	result.Outcome = outcome
	result.Degraded = degraded.Load()
	options.Logger.Debug("listing finished",
		zap.String("root", options.Root),
		zap.Bool("complete", outcome.Complete),
		zap.Int64("degraded", result.Degraded))

	for _, consumerError := range consumerErrors {
		if consumerError != nil {
			return result, consumerError
		}
	}
	if dispatchError != nil {
		return result, dispatchError
	}
	if walkError != nil {
		if ctx.Err() != nil && isCancellation(walkError) {
			return result, fmt.Errorf(errorInterruptedFormat, ErrDegraded, options.Root, walkError)
		}
		return result, fmt.Errorf(errorTraversalFormat, options.Root, walkError)
	}
	if !outcome.Complete {
		return result, fmt.Errorf(errorInterruptedFormat, ErrDegraded, options.Root, context.Cause(runContext))
	}
	if result.Degraded > 0 {
		return result, fmt.Errorf(errorDegradedEntriesFormat, ErrDegraded, result.Degraded, options.Root)
	}
	return result, nil
}

func countDegraded(batch types.Batch) int64 {
	var count int64
	if batch.Err != nil {
		count++
	}
	for _, entry := range batch.Entries {
		if entry.Degraded() {
			count++
		}
	}
	return count
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
