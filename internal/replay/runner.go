package replay

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/storage"
)

// DefaultBatchSize is the number of receipts read per journal page.
const DefaultBatchSize = 500

// Stats summarizes one replay run.
type Stats struct {
	Applied  int
	FirstSeq uint64
	LastSeq  uint64
}

// Runner loads receipts from the journal and feeds them to an engine in order.
type Runner struct {
	store     storage.ReceiptStore
	batchSize int
}

// NewRunner creates a new replay runner. batchSize <= 0 uses DefaultBatchSize.
func NewRunner(store storage.ReceiptStore, batchSize int) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Runner{
		store:     store,
		batchSize: batchSize,
	}
}

// Run replays every receipt with seq >= fromSeq through engine.
// The journal is read page by page; ordering is validated across pages.
func (r *Runner) Run(ctx context.Context, fromSeq uint64, engine Engine) (*Stats, error) {
	stats := &Stats{}
	prev := uint64(0)
	if fromSeq > 0 {
		prev = fromSeq - 1
	}

	next := fromSeq
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := r.store.GetRange(ctx, next, r.batchSize)
		if err != nil {
			return stats, fmt.Errorf("read journal from seq %d: %w", next, err)
		}
		if len(page) == 0 {
			return stats, nil
		}
		if err := ValidateOrdering(page, prev); err != nil {
			return stats, err
		}

		for _, receipt := range page {
			if err := engine.OnReceipt(ctx, receipt); err != nil {
				return stats, err
			}
			if stats.Applied == 0 {
				stats.FirstSeq = receipt.Seq
			}
			stats.Applied++
			stats.LastSeq = receipt.Seq
		}

		prev = page[len(page)-1].Seq
		next = prev + 1
		if len(page) < r.batchSize {
			return stats, nil
		}
	}
}
