package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UIAmount renders a raw token amount scaled by decimals, e.g. 1000 @ 2 -> "10".
func UIAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromUint64(amount).Shift(-int32(decimals)).String()
}

// ParseUIAmount converts a human amount back into raw units.
// Fails when the value has more fractional digits than decimals allow.
func ParseUIAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	raw := d.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return 0, fmt.Errorf("amount %q exceeds %d decimals", s, decimals)
	}
	if raw.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return raw.BigInt().Uint64(), nil
}
