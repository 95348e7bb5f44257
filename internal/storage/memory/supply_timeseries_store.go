package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

// SupplyTimeseriesStore is an in-memory implementation of storage.SupplyTimeseriesStore.
type SupplyTimeseriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SupplyPoint // keyed by (mint, seq)
}

// NewSupplyTimeseriesStore creates a new in-memory supply timeseries store.
func NewSupplyTimeseriesStore() *SupplyTimeseriesStore {
	return &SupplyTimeseriesStore{
		data: make(map[string]*domain.SupplyPoint),
	}
}

func supplyKey(mint string, seq uint64) string {
	return fmt.Sprintf("%s|%d", mint, seq)
}

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *SupplyTimeseriesStore) InsertBulk(_ context.Context, points []*domain.SupplyPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	for _, p := range points {
		if p == nil || p.Mint == "" || p.Seq == 0 {
			return storage.ErrInvalidInput
		}
		key := supplyKey(p.Mint, p.Seq)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[supplyKey(p.Mint, p.Seq)] = &pointCopy
	}

	return nil
}

// GetByMint retrieves all points for a mint, ordered by seq ASC.
func (s *SupplyTimeseriesStore) GetByMint(_ context.Context, mint string) ([]*domain.SupplyPoint, error) {
	return s.collect(func(p *domain.SupplyPoint) bool {
		return p.Mint == mint
	}), nil
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *SupplyTimeseriesStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.SupplyPoint, error) {
	return s.collect(func(p *domain.SupplyPoint) bool {
		return p.Mint == mint && p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

func (s *SupplyTimeseriesStore) collect(match func(*domain.SupplyPoint) bool) []*domain.SupplyPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SupplyPoint
	for _, p := range s.data {
		if match(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

var _ storage.SupplyTimeseriesStore = (*SupplyTimeseriesStore)(nil)
