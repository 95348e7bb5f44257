package memory

import (
	"context"
	"sync"

	"solana-token-ledger/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]uint64
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]uint64),
	}
}

// Get returns the last recorded seq for name.
func (s *CheckpointStore) Get(_ context.Context, name string) (uint64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.data[name]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return seq, nil
}

// Advance records seq for name unless a higher seq is already recorded.
func (s *CheckpointStore) Advance(_ context.Context, name string, seq uint64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[name]; !ok || seq > cur {
		s.data[name] = seq
	}
	return nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
