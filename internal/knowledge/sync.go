package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/compass/pkg/core"
)

// Store is the catalog surface the harvester needs.
type Store interface {
	Sync(ctx context.Context, candidates []core.ColumnDescriptor) (*core.DeltaResult, error)
}

const defaultSyncWorkers = 4

// SyncOptions configures a harvest run.
type SyncOptions struct {
	// Relations to scan.
	Relations []*core.PhysicalRelation

	// Workers bounds concurrent metadata fetches. Defaults to 4.
	Workers int

	// Describer, when set, annotates each relation's columns with
	// prose descriptions before they reach the store.
	Describer Describer
}

// SyncError is a non-fatal per-relation failure.
type SyncError struct {
	Relation string
	Message  string
}

// SyncResult contains statistics about a harvest run.
type SyncResult struct {
	RelationsScanned int
	RelationsSkipped int
	ColumnsNew       int
	ColumnsKnown     int
	Duration         time.Duration

	// Errors (non-fatal)
	Errors []SyncError
}

// HasErrors returns true if any relation failed.
func (r *SyncResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary returns a human-readable summary.
func (r *SyncResult) Summary() string {
	return fmt.Sprintf(
		"Relations: %d scanned, %d skipped | Columns: %d new, %d already known | Duration: %s",
		r.RelationsScanned, r.RelationsSkipped,
		r.ColumnsNew, r.ColumnsKnown,
		r.Duration.Round(time.Millisecond),
	)
}

// SyncRelations fetches column metadata for each relation through the
// adapter, optionally describes the columns, and reconciles everything
// against the knowledge store. Per-relation failures are recorded and
// skipped; only store-level failures abort the run.
func SyncRelations(ctx context.Context, adp core.Adapter, store Store, opts SyncOptions, logger *slog.Logger) (*SyncResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultSyncWorkers
	}

	start := time.Now()
	result := &SyncResult{}

	var (
		mu         sync.Mutex
		candidates []core.ColumnDescriptor
	)

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, rel := range opts.Relations {
		eg.Go(func() error {
			name := rel.QualifiedName()

			meta, err := adp.GetTableMetadata(egctx, name)
			if err != nil {
				logger.Warn("skipping relation, metadata unavailable",
					slog.String("relation", name),
					slog.Any("error", err))
				mu.Lock()
				result.RelationsSkipped++
				result.Errors = append(result.Errors, SyncError{Relation: name, Message: err.Error()})
				mu.Unlock()
				return nil
			}

			descriptors := DescriptorsFromMetadata(name, meta)
			if opts.Describer != nil {
				if err := opts.Describer.Describe(egctx, name, descriptors); err != nil {
					// Descriptions are best-effort; keep the typed rows.
					logger.Warn("column description failed",
						slog.String("relation", name),
						slog.Any("error", err))
					mu.Lock()
					result.Errors = append(result.Errors, SyncError{Relation: name, Message: err.Error()})
					mu.Unlock()
				}
			}

			mu.Lock()
			result.RelationsScanned++
			candidates = append(candidates, descriptors...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].QualifiedName < candidates[j].QualifiedName
	})

	deltaResult, err := store.Sync(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to sync knowledge store: %w", err)
	}
	result.ColumnsNew = len(deltaResult.Missing)
	result.ColumnsKnown = len(deltaResult.AlreadyKnown)
	result.Duration = time.Since(start)

	logger.Info("knowledge sync finished",
		slog.Int("scanned", result.RelationsScanned),
		slog.Int("skipped", result.RelationsSkipped),
		slog.Int("new", result.ColumnsNew),
		slog.Int("known", result.ColumnsKnown))
	return result, nil
}

// DescriptorsFromMetadata turns table metadata into bare descriptors,
// one per column, in column order. Descriptions start empty.
func DescriptorsFromMetadata(relation string, meta *core.TableMetadata) []core.ColumnDescriptor {
	out := make([]core.ColumnDescriptor, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		out = append(out, core.ColumnDescriptor{
			QualifiedName: relation + "." + col.Name,
			DataType:      col.Type,
			SchemaName:    meta.Schema,
		})
	}
	return out
}
