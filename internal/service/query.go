package service

import (
	"context"
	"errors"
	"fmt"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/storage"
)

// GetBalance returns an account balance.
func (s *Service) GetBalance(account domain.Address) (uint64, error) {
	return s.ledger.GetBalance(account)
}

// GetAccount returns an account.
func (s *Service) GetAccount(account domain.Address) (*domain.AccountInfo, error) {
	return s.ledger.GetAccount(account)
}

// GetMintInfo returns a mint.
func (s *Service) GetMintInfo(mint domain.Address) (*domain.MintInfo, error) {
	return s.ledger.GetMintInfo(mint)
}

// AccountsByOwner returns every account held by owner.
func (s *Service) AccountsByOwner(owner domain.Address) []*domain.AccountInfo {
	return s.ledger.AccountsByOwner(owner)
}

// Audit checks the supply invariant of mint.
func (s *Service) Audit(mint domain.Address) (*ledger.SupplyAudit, error) {
	return s.ledger.Audit(mint)
}

// Receipt looks a receipt up in the journal by id.
func (s *Service) Receipt(ctx context.Context, id string) (*domain.Receipt, error) {
	r, err := s.journal.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: receipt %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read receipt %s: %w", id, err)
	}
	return r, nil
}
