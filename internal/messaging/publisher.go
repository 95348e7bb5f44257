// Package messaging fans committed receipts out to subscribers.
package messaging

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/domain"
)

// Publisher delivers committed receipts to a sink.
type Publisher interface {
	Publish(ctx context.Context, r *domain.Receipt) error
	Close()
}

// Subject returns the subject a receipt is published on.
// Format: {prefix}.{mint}.{kind}, e.g. ledger.9xQe...7Hk.transfer
func Subject(prefix string, r *domain.Receipt) string {
	return fmt.Sprintf("%s.%s.%s", prefix, r.Mint, r.Kind)
}
