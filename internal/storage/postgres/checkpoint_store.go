package postgres

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// One row per projection name in the checkpoints table.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Get returns the last recorded seq for name.
func (s *CheckpointStore) Get(ctx context.Context, name string) (uint64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}

	var seq int64
	err := s.pool.QueryRow(ctx, `
		SELECT seq FROM checkpoints WHERE name = $1
	`, name).Scan(&seq)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get checkpoint %s: %w", name, err)
	}
	return uint64(seq), nil
}

// Advance records seq for name unless a higher seq is already recorded.
func (s *CheckpointStore) Advance(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (name, seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET seq = GREATEST(checkpoints.seq, EXCLUDED.seq),
		    updated_at = NOW()
	`, name, int64(seq))
	if err != nil {
		return fmt.Errorf("advance checkpoint %s: %w", name, err)
	}
	return nil
}
