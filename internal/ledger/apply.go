package ledger

import (
	"errors"
	"fmt"

	"solana-token-ledger/internal/domain"
)

// ErrReplayDivergence is returned by Apply when re-executing a receipt yields a
// different supply than the one recorded.
var ErrReplayDivergence = errors.New("replay diverged from journal")

// Apply re-executes a journaled receipt, keeping its sequence, id, nonce and
// timestamp. Receipts must be applied in sequence order to a ledger that has
// seen exactly the preceding history.
func (l *Ledger) Apply(r *domain.Receipt) (*domain.Receipt, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil receipt", ErrInvalidArgument)
	}
	if r.Seq == 0 {
		return nil, fmt.Errorf("%w: receipt %s has no sequence", ErrInvalidArgument, r.ID)
	}

	got, err := l.dispatch(r)
	if err != nil {
		return nil, fmt.Errorf("apply seq %d (%s): %w", r.Seq, r.Kind, err)
	}
	if r.Kind.ChangesSupply() && got.SupplyAfter != r.SupplyAfter {
		return nil, fmt.Errorf("%w: seq %d supply %d, journal %d", ErrReplayDivergence, r.Seq, got.SupplyAfter, r.SupplyAfter)
	}

	if got.Nonce != "" {
		l.noncesMu.Lock()
		l.nonces[got.Nonce] = got
		l.noncesMu.Unlock()
	}
	return cloneReceipt(got), nil
}

func (l *Ledger) dispatch(r *domain.Receipt) (*domain.Receipt, error) {
	deref := func(a *domain.Address) domain.Address {
		if a == nil {
			return domain.Address{}
		}
		return *a
	}

	switch r.Kind {
	case domain.OpCreateMint:
		auth, _ := r.NewAuthority.Get()
		return l.createMint(CreateMintParams{
			Payer:           r.Caller,
			Mint:            r.Mint,
			MintAuthority:   auth,
			FreezeAuthority: r.FreezeAuthority,
			Decimals:        int(r.Decimals),
		}, r)
	case domain.OpCreateAccount:
		return l.createAccount(CreateAccountParams{
			Payer:      r.Caller,
			Mint:       r.Mint,
			Owner:      deref(r.Owner),
			Account:    deref(r.Account),
			Associated: r.Associated,
		}, r)
	case domain.OpMintTo:
		return l.mintTo(MintToParams{
			Mint:    r.Mint,
			Account: deref(r.Account),
			Caller:  r.Caller,
			Amount:  r.Amount,
		}, r)
	case domain.OpTransfer:
		return l.transfer(TransferParams{
			Source:      deref(r.Account),
			Destination: deref(r.Destination),
			Caller:      r.Caller,
			Amount:      r.Amount,
		}, r)
	case domain.OpBurn:
		return l.burn(BurnParams{
			Account: deref(r.Account),
			Mint:    r.Mint,
			Caller:  r.Caller,
			Amount:  r.Amount,
		}, r)
	case domain.OpApprove:
		return l.approve(ApproveParams{
			Account:  deref(r.Account),
			Caller:   r.Caller,
			Delegate: deref(r.Delegate),
			Amount:   r.Amount,
		}, r)
	case domain.OpRevoke:
		return l.revoke(RevokeParams{
			Account: deref(r.Account),
			Caller:  r.Caller,
		}, r)
	case domain.OpSetAuthority:
		target := r.Mint
		if r.AuthorityType == domain.AuthorityAccountOwner {
			target = deref(r.Account)
		}
		return l.setAuthority(SetAuthorityParams{
			Target:       target,
			Caller:       r.Caller,
			Type:         r.AuthorityType,
			NewAuthority: r.NewAuthority,
		}, r)
	case domain.OpFreezeAccount, domain.OpThawAccount:
		return l.setFrozen(FreezeParams{
			Account: deref(r.Account),
			Mint:    r.Mint,
			Caller:  r.Caller,
		}, r.Kind == domain.OpFreezeAccount, r)
	case domain.OpCloseAccount:
		return l.closeAccount(CloseAccountParams{
			Account:     deref(r.Account),
			Caller:      r.Caller,
			Destination: deref(r.Destination),
		}, r)
	case domain.OpAttachMetadata:
		if r.Metadata == nil {
			return nil, fmt.Errorf("%w: attach_metadata receipt without metadata", ErrInvalidArgument)
		}
		return l.attachMetadata(AttachMetadataParams{
			Mint:   r.Mint,
			Caller: r.Caller,
			Name:   r.Metadata.Name,
			Symbol: r.Metadata.Symbol,
			URI:    r.Metadata.URI,
		}, r)
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", ErrInvalidArgument, r.Kind)
	}
}
