package domain

// SupplyPoint is a mint's supply after one supply-changing receipt.
// Corresponds to supply_timeseries table in ClickHouse.
type SupplyPoint struct {
	Mint        string // base58 mint address
	Seq         uint64 // receipt sequence
	TimestampMs int64
	Supply      uint64
	Delta       int64 // positive for mint_to, negative for burn
	Kind        OpKind
}

// SupplyPointFromReceipt builds the point for r, or nil when r does not move supply.
func SupplyPointFromReceipt(r *Receipt) *SupplyPoint {
	if r == nil || !r.Kind.ChangesSupply() {
		return nil
	}
	delta := int64(r.Amount)
	if r.Kind == OpBurn {
		delta = -delta
	}
	return &SupplyPoint{
		Mint:        r.Mint.String(),
		Seq:         r.Seq,
		TimestampMs: r.CreatedAt,
		Supply:      r.SupplyAfter,
		Delta:       delta,
		Kind:        r.Kind,
	}
}
