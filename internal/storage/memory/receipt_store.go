package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu      sync.RWMutex
	bySeq   map[uint64]*domain.Receipt
	byID    map[string]uint64
	byNonce map[string]uint64
	lastSeq uint64
}

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		bySeq:   make(map[uint64]*domain.Receipt),
		byID:    make(map[string]uint64),
		byNonce: make(map[string]uint64),
	}
}

// Insert appends a receipt. Returns ErrDuplicateKey if seq, id or nonce exists.
func (s *ReceiptStore) Insert(_ context.Context, r *domain.Receipt) error {
	if r == nil || r.Seq == 0 || r.ID == "" || r.Nonce == "" || r.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySeq[r.Seq]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byID[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.byNonce[r.Nonce]; exists {
		return storage.ErrDuplicateKey
	}

	s.bySeq[r.Seq] = copyReceipt(r)
	s.byID[r.ID] = r.Seq
	s.byNonce[r.Nonce] = r.Seq
	if r.Seq > s.lastSeq {
		s.lastSeq = r.Seq
	}
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByID(_ context.Context, id string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReceipt(s.bySeq[seq]), nil
}

// GetByNonce retrieves a receipt by its client nonce. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByNonce(_ context.Context, nonce string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, exists := s.byNonce[nonce]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReceipt(s.bySeq[seq]), nil
}

// GetRange retrieves up to limit receipts with seq >= fromSeq, ordered by seq ASC.
func (s *ReceiptStore) GetRange(_ context.Context, fromSeq uint64, limit int) ([]*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Receipt
	for seq, r := range s.bySeq {
		if seq >= fromSeq {
			result = append(result, copyReceipt(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByMint retrieves all receipts for a mint, ordered by seq ASC.
func (s *ReceiptStore) GetByMint(_ context.Context, mint string) ([]*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Receipt
	for _, r := range s.bySeq {
		if r.Mint.String() == mint {
			result = append(result, copyReceipt(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// LastSequence returns the highest stored seq, or 0 for an empty journal.
func (s *ReceiptStore) LastSequence(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq, nil
}

func copyReceipt(r *domain.Receipt) *domain.Receipt {
	c := *r
	if r.Metadata != nil {
		md := *r.Metadata
		c.Metadata = &md
	}
	return &c
}

var _ storage.ReceiptStore = (*ReceiptStore)(nil)
