package storage

import "context"

// Checkpoint names used by the service.
const (
	// CheckpointSupplyTimeseries tracks the last receipt projected into supply_timeseries.
	CheckpointSupplyTimeseries = "supply_timeseries"
)

// CheckpointStore persists how far a named projection has consumed the journal.
// This lets a restarted server backfill projections without reprocessing everything.
type CheckpointStore interface {
	// Get returns the last recorded seq for name.
	// Returns ErrNotFound if nothing has been recorded yet.
	Get(ctx context.Context, name string) (uint64, error)

	// Advance records seq for name unless a higher seq is already recorded.
	Advance(ctx context.Context, name string, seq uint64) error
}
