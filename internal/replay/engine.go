package replay

import (
	"context"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
)

// Engine processes journal receipts in sequence order.
type Engine interface {
	// OnReceipt is called for each receipt in order.
	// Receipts are guaranteed to be strictly increasing by seq.
	OnReceipt(ctx context.Context, r *domain.Receipt) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, r *domain.Receipt) error

// OnReceipt calls f.
func (f EngineFunc) OnReceipt(ctx context.Context, r *domain.Receipt) error {
	return f(ctx, r)
}

// LedgerEngine re-executes receipts against a ledger.
type LedgerEngine struct {
	Ledger *ledger.Ledger
}

// OnReceipt applies r to the ledger.
func (e *LedgerEngine) OnReceipt(_ context.Context, r *domain.Receipt) error {
	_, err := e.Ledger.Apply(r)
	return err
}
