package replay

import "errors"

var (
	// ErrInvalidOrdering is returned when journal receipts are not strictly increasing by seq.
	ErrInvalidOrdering = errors.New("receipts are not in strictly increasing sequence order")

	// ErrAuditFailed is returned when a rebuilt ledger violates the supply invariant.
	ErrAuditFailed = errors.New("supply audit failed after replay")
)
