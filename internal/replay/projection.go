package replay

import (
	"context"
	"errors"
	"fmt"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

// SupplyProjection writes a supply point for every supply-changing receipt and
// advances the supply_timeseries checkpoint.
type SupplyProjection struct {
	Points      storage.SupplyTimeseriesStore
	Checkpoints storage.CheckpointStore
}

// OnReceipt projects r. Points already present are skipped.
func (p *SupplyProjection) OnReceipt(ctx context.Context, r *domain.Receipt) error {
	if point := domain.SupplyPointFromReceipt(r); point != nil {
		err := p.Points.InsertBulk(ctx, []*domain.SupplyPoint{point})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("insert supply point seq %d: %w", r.Seq, err)
		}
	}
	if p.Checkpoints == nil {
		return nil
	}
	return p.Checkpoints.Advance(ctx, storage.CheckpointSupplyTimeseries, r.Seq)
}

// Backfill projects every journal receipt after the stored checkpoint.
func Backfill(ctx context.Context, store storage.ReceiptStore, p *SupplyProjection) (*Stats, error) {
	from := uint64(1)
	if p.Checkpoints != nil {
		seq, err := p.Checkpoints.Get(ctx, storage.CheckpointSupplyTimeseries)
		switch {
		case err == nil:
			from = seq + 1
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("read supply checkpoint: %w", err)
		}
	}
	return NewRunner(store, DefaultBatchSize).Run(ctx, from, p)
}
