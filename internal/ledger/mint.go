package ledger

import (
	"fmt"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/idhash"
)

// CreateMintParams describes a new mint.
type CreateMintParams struct {
	Nonce           string
	Payer           domain.Address // informational; defaults to MintAuthority
	Mint            domain.Address // zero: generate a fresh address
	MintAuthority   domain.Address
	FreezeAuthority domain.OptionalAddress
	Decimals        int
}

// CreateMint registers a mint with zero supply.
func (l *Ledger) CreateMint(p CreateMintParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpCreateMint, func() (*domain.Receipt, error) {
		return l.createMint(p, nil)
	})
}

func (l *Ledger) createMint(p CreateMintParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Decimals < 0 || p.Decimals > 255 {
		return nil, fmt.Errorf("%w: decimals %d out of range 0..255", ErrInvalidArgument, p.Decimals)
	}
	if p.MintAuthority.IsZero() {
		return nil, fmt.Errorf("%w: mint authority is required", ErrInvalidArgument)
	}
	if fa, ok := p.FreezeAuthority.Get(); ok && fa.IsZero() {
		return nil, fmt.Errorf("%w: freeze authority is the zero address", ErrInvalidArgument)
	}

	addr := p.Mint
	if addr.IsZero() {
		generated, err := l.newAddress()
		if err != nil {
			return nil, fmt.Errorf("generate mint address: %w", err)
		}
		addr = generated
	} else if !idhash.IsOnCurve(addr) {
		return nil, fmt.Errorf("%w: mint address %s is not a public key", ErrInvalidArgument, addr)
	}

	payer := p.Payer
	if payer.IsZero() {
		payer = p.MintAuthority
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.mints[addr]; exists {
		return nil, fmt.Errorf("%w: mint %s", ErrAlreadyExists, addr)
	}
	if _, exists := l.accounts[addr]; exists {
		return nil, fmt.Errorf("%w: address %s is a token account", ErrAlreadyExists, addr)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:            domain.OpCreateMint,
		Caller:          payer,
		Mint:            addr,
		NewAuthority:    domain.Some(p.MintAuthority),
		FreezeAuthority: p.FreezeAuthority,
		Decimals:        uint8(p.Decimals),
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	l.mints[addr] = &mintRecord{
		decimals: uint8(p.Decimals),
		mint: domain.Mint{
			Address:         addr,
			Decimals:        uint8(p.Decimals),
			MintAuthority:   domain.Some(p.MintAuthority),
			FreezeAuthority: p.FreezeAuthority,
			CreatedSeq:      r.Seq,
		},
	}
	return r, nil
}

// SetAuthorityParams reassigns one authority of a mint or account.
// For AuthorityMintTokens and AuthorityFreezeAccount, Target is the mint and
// NewAuthority may be None (irreversible). For AuthorityAccountOwner, Target
// is the token account and NewAuthority must be Some.
type SetAuthorityParams struct {
	Nonce        string
	Target       domain.Address
	Caller       domain.Address
	Type         domain.AuthorityType
	NewAuthority domain.OptionalAddress
}

// SetAuthority changes the authority selected by p.Type.
func (l *Ledger) SetAuthority(p SetAuthorityParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpSetAuthority, func() (*domain.Receipt, error) {
		return l.setAuthority(p, nil)
	})
}

// SetMintAuthority replaces or (with None) permanently removes the mint authority.
func (l *Ledger) SetMintAuthority(nonce string, mint, caller domain.Address, newAuthority domain.OptionalAddress) (*domain.Receipt, error) {
	return l.SetAuthority(SetAuthorityParams{
		Nonce:        nonce,
		Target:       mint,
		Caller:       caller,
		Type:         domain.AuthorityMintTokens,
		NewAuthority: newAuthority,
	})
}

// SetFreezeAuthority replaces or removes the freeze authority.
func (l *Ledger) SetFreezeAuthority(nonce string, mint, caller domain.Address, newAuthority domain.OptionalAddress) (*domain.Receipt, error) {
	return l.SetAuthority(SetAuthorityParams{
		Nonce:        nonce,
		Target:       mint,
		Caller:       caller,
		Type:         domain.AuthorityFreezeAccount,
		NewAuthority: newAuthority,
	})
}

// SetAccountOwner transfers ownership of a token account.
func (l *Ledger) SetAccountOwner(nonce string, account, caller, newOwner domain.Address) (*domain.Receipt, error) {
	return l.SetAuthority(SetAuthorityParams{
		Nonce:        nonce,
		Target:       account,
		Caller:       caller,
		Type:         domain.AuthorityAccountOwner,
		NewAuthority: domain.Some(newOwner),
	})
}

func (l *Ledger) setAuthority(p SetAuthorityParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if na, ok := p.NewAuthority.Get(); ok && na.IsZero() {
		return nil, fmt.Errorf("%w: new authority is the zero address", ErrInvalidArgument)
	}
	switch p.Type {
	case domain.AuthorityMintTokens, domain.AuthorityFreezeAccount:
		return l.setMintSideAuthority(p, preset)
	case domain.AuthorityAccountOwner:
		return l.setAccountOwner(p, preset)
	default:
		return nil, fmt.Errorf("%w: authority type %q", ErrInvalidArgument, p.Type)
	}
}

func (l *Ledger) setMintSideAuthority(p SetAuthorityParams, preset *domain.Receipt) (*domain.Receipt, error) {
	rec, err := l.lookupMint(p.Target)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := &rec.mint.MintAuthority
	revoked := ErrMintAuthorityRevoked
	if p.Type == domain.AuthorityFreezeAccount {
		current = &rec.mint.FreezeAuthority
		revoked = ErrNoFreezeAuthority
	}

	if !current.IsSome() {
		return nil, fmt.Errorf("%w: mint %s", revoked, p.Target)
	}
	if !current.Is(p.Caller) {
		return nil, fmt.Errorf("%w: %s is not the %s authority of %s", ErrUnauthorized, p.Caller, p.Type, p.Target)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:          domain.OpSetAuthority,
		Caller:        p.Caller,
		Mint:          p.Target,
		AuthorityType: p.Type,
		NewAuthority:  p.NewAuthority,
		Decimals:      rec.decimals,
		SupplyAfter:   rec.mint.Supply,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	*current = p.NewAuthority
	return r, nil
}

// AttachMetadataParams describes token metadata for a mint.
type AttachMetadataParams struct {
	Nonce  string
	Mint   domain.Address
	Caller domain.Address
	Name   string
	Symbol string
	URI    string
}

// AttachMetadata sets or replaces a mint's metadata. The first attach must be
// signed by the mint authority, who becomes the update authority; later
// updates must come from the update authority.
func (l *Ledger) AttachMetadata(p AttachMetadataParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpAttachMetadata, func() (*domain.Receipt, error) {
		return l.attachMetadata(p, nil)
	})
}

func (l *Ledger) attachMetadata(p AttachMetadataParams, preset *domain.Receipt) (*domain.Receipt, error) {
	switch {
	case p.Name == "":
		return nil, fmt.Errorf("%w: metadata name is required", ErrInvalidArgument)
	case len(p.Name) > domain.MaxNameLength:
		return nil, fmt.Errorf("%w: name longer than %d bytes", ErrInvalidArgument, domain.MaxNameLength)
	case len(p.Symbol) > domain.MaxSymbolLength:
		return nil, fmt.Errorf("%w: symbol longer than %d bytes", ErrInvalidArgument, domain.MaxSymbolLength)
	case len(p.URI) > domain.MaxURILength:
		return nil, fmt.Errorf("%w: uri longer than %d bytes", ErrInvalidArgument, domain.MaxURILength)
	}

	rec, err := l.lookupMint(p.Mint)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if md := rec.mint.Metadata; md != nil {
		if md.UpdateAuthority != p.Caller {
			return nil, fmt.Errorf("%w: %s is not the metadata update authority", ErrUnauthorized, p.Caller)
		}
	} else {
		if !rec.mint.MintAuthority.IsSome() {
			return nil, fmt.Errorf("%w: mint %s", ErrMintAuthorityRevoked, p.Mint)
		}
		if !rec.mint.MintAuthority.Is(p.Caller) {
			return nil, fmt.Errorf("%w: %s is not the mint authority", ErrUnauthorized, p.Caller)
		}
	}

	md := domain.TokenMetadata{
		Name:            p.Name,
		Symbol:          p.Symbol,
		URI:             p.URI,
		UpdateAuthority: p.Caller,
	}
	recorded := md

	r, err := l.commit(&domain.Receipt{
		Kind:        domain.OpAttachMetadata,
		Caller:      p.Caller,
		Mint:        p.Mint,
		Metadata:    &recorded,
		Decimals:    rec.decimals,
		SupplyAfter: rec.mint.Supply,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	rec.mint.Metadata = &md
	return r, nil
}
