package replay

import (
	"fmt"
	"sort"

	"solana-token-ledger/internal/domain"
)

// SortReceipts orders receipts by seq ASC.
func SortReceipts(receipts []*domain.Receipt) {
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Seq < receipts[j].Seq
	})
}

// ValidateOrdering checks that receipts are strictly increasing by seq and
// all come after prev. Gaps are allowed; a journal write that failed after
// commit leaves one.
func ValidateOrdering(receipts []*domain.Receipt, prev uint64) error {
	for i, r := range receipts {
		if r == nil {
			return fmt.Errorf("%w: nil receipt at position %d", ErrInvalidOrdering, i)
		}
		if r.Seq <= prev {
			return fmt.Errorf("%w: seq %d after %d", ErrInvalidOrdering, r.Seq, prev)
		}
		prev = r.Seq
	}
	return nil
}
