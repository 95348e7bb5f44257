package replay

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/storage"
)

// Result is the outcome of Rebuild.
type Result struct {
	Stats  *Stats
	Audits []*ledger.SupplyAudit
}

// Rebuild replays the whole journal into l, which must be empty, then audits
// the supply invariant of every mint.
func Rebuild(ctx context.Context, store storage.ReceiptStore, l *ledger.Ledger) (*Result, error) {
	return RebuildBatched(ctx, store, l, DefaultBatchSize)
}

// RebuildBatched is Rebuild reading batchSize receipts per journal page.
func RebuildBatched(ctx context.Context, store storage.ReceiptStore, l *ledger.Ledger, batchSize int) (*Result, error) {
	if l.Sequence() != 0 {
		return nil, fmt.Errorf("%w: ledger is not empty (seq %d)", ledger.ErrInvalidState, l.Sequence())
	}

	stats, err := NewRunner(store, batchSize).Run(ctx, 1, &LedgerEngine{Ledger: l})
	if err != nil {
		return &Result{Stats: stats}, fmt.Errorf("replay journal: %w", err)
	}

	audits, err := l.AuditAll()
	res := &Result{Stats: stats, Audits: audits}
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrAuditFailed, err)
	}
	return res, nil
}
