package clickhouse

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

// SupplyTimeseriesStore implements storage.SupplyTimeseriesStore using ClickHouse.
type SupplyTimeseriesStore struct {
	conn *Conn
}

// NewSupplyTimeseriesStore creates a new SupplyTimeseriesStore.
func NewSupplyTimeseriesStore(conn *Conn) *SupplyTimeseriesStore {
	return &SupplyTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SupplyTimeseriesStore = (*SupplyTimeseriesStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (mint, seq).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *SupplyTimeseriesStore) InsertBulk(ctx context.Context, points []*domain.SupplyPoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		mint string
		seq  uint64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Mint == "" || p.Seq == 0 {
			return storage.ErrInvalidInput
		}
		k := key{p.Mint, p.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.Mint, p.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO supply_timeseries (
			mint, seq, timestamp_ms, supply, delta, kind
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(p.Mint, p.Seq, p.TimestampMs, p.Supply, p.Delta, string(p.Kind))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all points for a mint, ordered by seq ASC.
func (s *SupplyTimeseriesStore) GetByMint(ctx context.Context, mint string) ([]*domain.SupplyPoint, error) {
	query := `
		SELECT mint, seq, timestamp_ms, supply, delta, kind
		FROM supply_timeseries FINAL
		WHERE mint = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanSupplyTimeseries(rows)
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *SupplyTimeseriesStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.SupplyPoint, error) {
	query := `
		SELECT mint, seq, timestamp_ms, supply, delta, kind
		FROM supply_timeseries FINAL
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSupplyTimeseries(rows)
}

func (s *SupplyTimeseriesStore) exists(ctx context.Context, mint string, seq uint64) (bool, error) {
	query := `
		SELECT count(*) FROM supply_timeseries
		WHERE mint = ? AND seq = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, mint, seq).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSupplyTimeseries(rows chRows) ([]*domain.SupplyPoint, error) {
	var points []*domain.SupplyPoint

	for rows.Next() {
		var p domain.SupplyPoint
		var kind string

		if err := rows.Scan(&p.Mint, &p.Seq, &p.TimestampMs, &p.Supply, &p.Delta, &kind); err != nil {
			return nil, fmt.Errorf("scan supply timeseries row: %w", err)
		}

		p.Kind = domain.OpKind(kind)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supply timeseries rows: %w", err)
	}

	return points, nil
}
