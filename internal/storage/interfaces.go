package storage

import (
	"context"

	"solana-token-ledger/internal/domain"
)

// ReceiptStore is the append-only journal of committed ledger receipts.
type ReceiptStore interface {
	// Insert appends a receipt. Returns ErrDuplicateKey if seq, id or nonce exists.
	Insert(ctx context.Context, r *domain.Receipt) error

	// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Receipt, error)

	// GetByNonce retrieves a receipt by its client nonce. Returns ErrNotFound if not exists.
	GetByNonce(ctx context.Context, nonce string) (*domain.Receipt, error)

	// GetRange retrieves up to limit receipts with seq >= fromSeq, ordered by seq ASC.
	// limit <= 0 means no limit.
	GetRange(ctx context.Context, fromSeq uint64, limit int) ([]*domain.Receipt, error)

	// GetByMint retrieves all receipts for a mint, ordered by seq ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Receipt, error)

	// LastSequence returns the highest stored seq, or 0 for an empty journal.
	LastSequence(ctx context.Context) (uint64, error)
}

// SupplyTimeseriesStore provides access to supply_timeseries storage.
type SupplyTimeseriesStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (mint, seq).
	InsertBulk(ctx context.Context, points []*domain.SupplyPoint) error

	// GetByMint retrieves all points for a mint, ordered by seq ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.SupplyPoint, error)

	// GetByTimeRange retrieves points for a mint within [start, end] (inclusive), ordered by seq ASC.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.SupplyPoint, error)
}
