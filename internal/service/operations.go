package service

import (
	"context"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
)

// CreateMint creates a mint.
func (s *Service) CreateMint(ctx context.Context, p ledger.CreateMintParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpCreateMint, func() (*domain.Receipt, error) {
		return s.ledger.CreateMint(p)
	})
}

// CreateAccount creates an explicit or associated token account.
func (s *Service) CreateAccount(ctx context.Context, p ledger.CreateAccountParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpCreateAccount, func() (*domain.Receipt, error) {
		return s.ledger.CreateAccount(p)
	})
}

// CloseAccount closes an empty token account.
func (s *Service) CloseAccount(ctx context.Context, p ledger.CloseAccountParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpCloseAccount, func() (*domain.Receipt, error) {
		return s.ledger.CloseAccount(p)
	})
}

// MintTo mints new tokens into an account.
func (s *Service) MintTo(ctx context.Context, p ledger.MintToParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpMintTo, func() (*domain.Receipt, error) {
		return s.ledger.MintTo(p)
	})
}

// Transfer moves tokens between accounts of one mint.
func (s *Service) Transfer(ctx context.Context, p ledger.TransferParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpTransfer, func() (*domain.Receipt, error) {
		return s.ledger.Transfer(p)
	})
}

// Burn destroys tokens held by an account.
func (s *Service) Burn(ctx context.Context, p ledger.BurnParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpBurn, func() (*domain.Receipt, error) {
		return s.ledger.Burn(p)
	})
}

// Approve sets an account delegate.
func (s *Service) Approve(ctx context.Context, p ledger.ApproveParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpApprove, func() (*domain.Receipt, error) {
		return s.ledger.Approve(p)
	})
}

// Revoke clears an account delegate.
func (s *Service) Revoke(ctx context.Context, p ledger.RevokeParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpRevoke, func() (*domain.Receipt, error) {
		return s.ledger.Revoke(p)
	})
}

// SetAuthority reassigns a mint or account authority.
func (s *Service) SetAuthority(ctx context.Context, p ledger.SetAuthorityParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpSetAuthority, func() (*domain.Receipt, error) {
		return s.ledger.SetAuthority(p)
	})
}

// FreezeAccount freezes an account.
func (s *Service) FreezeAccount(ctx context.Context, p ledger.FreezeParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpFreezeAccount, func() (*domain.Receipt, error) {
		return s.ledger.FreezeAccount(p)
	})
}

// ThawAccount thaws a frozen account.
func (s *Service) ThawAccount(ctx context.Context, p ledger.FreezeParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpThawAccount, func() (*domain.Receipt, error) {
		return s.ledger.ThawAccount(p)
	})
}

// AttachMetadata sets mint metadata.
func (s *Service) AttachMetadata(ctx context.Context, p ledger.AttachMetadataParams) (*domain.Receipt, error) {
	return s.run(ctx, domain.OpAttachMetadata, func() (*domain.Receipt, error) {
		return s.ledger.AttachMetadata(p)
	})
}
