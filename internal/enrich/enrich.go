// Package enrich augments traversal entries with optional derived fields.
package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/ltree/internal/types"
)

const (
	FieldPermissions = "permissions"
	FieldGitStatus   = "git_status"
)

// Enricher derives one optional field of an entry.
type Enricher interface {
	Field() string
	Enrich(ctx context.Context, entry types.Entry) (types.Entry, error)
}

// Stage runs a fixed set of enrichers over whole batches, bounded by a
// semaphore shared across all concurrently enriched batches.
type Stage struct {
	enrichers []Enricher
	limiter   *semaphore.Weighted
	logger    *zap.Logger
}

// NewStage returns a stage allowing at most limit entries in flight.
func NewStage(limit int, logger *zap.Logger, enrichers ...Enricher) *Stage {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		enrichers: enrichers,
		limiter:   semaphore.NewWeighted(int64(limit)),
		logger:    logger,
	}
}

// Enabled reports whether the stage has any work to do.
func (stage *Stage) Enabled() bool {
	return stage != nil && len(stage.enrichers) > 0
}

// EnrichBatch returns a copy of the batch whose entries carry every enriched
// field. Entry order is preserved. Only cancellation is reported as an error.
func (stage *Stage) EnrichBatch(ctx context.Context, batch types.Batch) (types.Batch, error) {
	if !stage.Enabled() || len(batch.Entries) == 0 {
		return batch, nil
	}

	enrichedEntries := make([]types.Entry, len(batch.Entries))
	var waitGroup sync.WaitGroup
	for entryIndex, entry := range batch.Entries {
		if acquireError := stage.limiter.Acquire(ctx, 1); acquireError != nil {
			waitGroup.Wait()
			return batch, acquireError
		}
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			defer stage.limiter.Release(1)
			enrichedEntries[entryIndex] = stage.enrichEntry(ctx, entry)
		}()
	}
	waitGroup.Wait()

	enrichedBatch := batch
	enrichedBatch.Entries = enrichedEntries
	return enrichedBatch, nil
}

func (stage *Stage) enrichEntry(ctx context.Context, entry types.Entry) types.Entry {
	for _, enricher := range stage.enrichers {
		enrichedEntry, enrichError := enricher.Enrich(ctx, entry)
		if enrichError != nil {
			stage.logger.Debug("enrichment failed",
				zap.String("field", enricher.Field()),
				zap.String("path", entry.Path),
				zap.Error(enrichError))
			entry = withUnknown(enricher.Field(), entry)
			continue
		}
		entry = enrichedEntry
	}
	return entry
}

func withUnknown(field string, entry types.Entry) types.Entry {
	switch field {
	case FieldPermissions:
		entry.Permissions = types.PermissionsUnknown
	case FieldGitStatus:
		entry.GitStatus = types.GitStatusUnknown
	}
	return entry
}
