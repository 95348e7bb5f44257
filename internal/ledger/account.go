package ledger

import (
	"fmt"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/idhash"
)

// CreateAccountParams describes a new token account.
// With Associated set, the address is derived from (Owner, Mint) and creation
// is idempotent. Otherwise Account is used as given, or generated when zero.
type CreateAccountParams struct {
	Nonce      string
	Payer      domain.Address // informational; defaults to Owner
	Mint       domain.Address
	Owner      domain.Address
	Account    domain.Address
	Associated bool
}

// CreateAccount registers a zero-balance token account.
//
// For an associated account that already exists nothing is committed and the
// returned receipt has Seq 0 and the existing address.
func (l *Ledger) CreateAccount(p CreateAccountParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpCreateAccount, func() (*domain.Receipt, error) {
		return l.createAccount(p, nil)
	})
}

// CreateAssociatedAccount is CreateAccount for the associated variant.
func (l *Ledger) CreateAssociatedAccount(nonce string, mint, owner domain.Address) (*domain.Receipt, error) {
	return l.CreateAccount(CreateAccountParams{
		Nonce:      nonce,
		Mint:       mint,
		Owner:      owner,
		Associated: true,
	})
}

func (l *Ledger) createAccount(p CreateAccountParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Mint.IsZero() {
		return nil, fmt.Errorf("%w: mint is required", ErrInvalidArgument)
	}
	if p.Owner.IsZero() {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}

	addr := p.Account
	if p.Associated {
		derived, err := l.deriver.AssociatedAccount(p.Owner, p.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive associated account: %w", err)
		}
		if !addr.IsZero() && addr != derived {
			return nil, fmt.Errorf("%w: %s is not the associated account of owner %s", ErrInvalidArgument, addr, p.Owner)
		}
		addr = derived
	} else if addr.IsZero() {
		generated, err := l.newAddress()
		if err != nil {
			return nil, fmt.Errorf("generate account address: %w", err)
		}
		addr = generated
	} else if !idhash.IsOnCurve(addr) {
		// off-curve addresses are reserved for derived accounts
		return nil, fmt.Errorf("%w: account address %s is not a public key", ErrInvalidArgument, addr)
	}

	payer := p.Payer
	if payer.IsZero() {
		payer = p.Owner
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	mintRec, ok := l.mints[p.Mint]
	if !ok {
		return nil, fmt.Errorf("%w: mint %s", ErrNotFound, p.Mint)
	}

	if _, exists := l.accounts[addr]; exists {
		if p.Associated && preset == nil {
			// the derived address survives an owner change
			if _, owned := l.byOwner[p.Owner][addr]; !owned {
				return nil, fmt.Errorf("%w: associated account %s is no longer owned by %s", ErrInvalidState, addr, p.Owner)
			}
			return &domain.Receipt{
				Kind:       domain.OpCreateAccount,
				Nonce:      p.Nonce,
				Caller:     payer,
				Mint:       p.Mint,
				Account:    domain.AddrPtr(addr),
				Owner:      domain.AddrPtr(p.Owner),
				Associated: true,
				Decimals:   mintRec.decimals,
			}, nil
		}
		return nil, fmt.Errorf("%w: account %s", ErrAlreadyExists, addr)
	}
	if _, exists := l.mints[addr]; exists {
		return nil, fmt.Errorf("%w: address %s is a mint", ErrAlreadyExists, addr)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:       domain.OpCreateAccount,
		Caller:     payer,
		Mint:       p.Mint,
		Account:    domain.AddrPtr(addr),
		Owner:      domain.AddrPtr(p.Owner),
		Associated: p.Associated,
		Decimals:   mintRec.decimals,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	l.accounts[addr] = &accountRecord{
		addr: addr,
		mint: p.Mint,
		account: domain.TokenAccount{
			Address:    addr,
			Mint:       p.Mint,
			Owner:      p.Owner,
			Associated: p.Associated,
			CreatedSeq: r.Seq,
		},
	}
	addIndex(l.byOwner, p.Owner, addr)
	addIndex(l.byMint, p.Mint, addr)
	return r, nil
}

// CloseAccountParams closes a zero-balance account.
// Destination receives the account's reclaimed rent; it is recorded only.
type CloseAccountParams struct {
	Nonce       string
	Account     domain.Address
	Caller      domain.Address
	Destination domain.Address
}

// CloseAccount removes an empty account from the registry.
func (l *Ledger) CloseAccount(p CloseAccountParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpCloseAccount, func() (*domain.Receipt, error) {
		return l.closeAccount(p, nil)
	})
}

func (l *Ledger) closeAccount(p CloseAccountParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Destination.IsZero() {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidArgument)
	}

	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}

	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	acct := &rec.account
	if acct.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Account)
	}
	if acct.Amount != 0 {
		return nil, fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, p.Account, acct.Amount)
	}
	if acct.Owner != p.Caller {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, p.Caller, p.Account)
	}

	mintRec, err := l.lookupMint(rec.mint)
	if err != nil {
		return nil, err
	}

	r, err := l.commit(&domain.Receipt{
		Kind:        domain.OpCloseAccount,
		Caller:      p.Caller,
		Mint:        rec.mint,
		Account:     domain.AddrPtr(p.Account),
		Destination: domain.AddrPtr(p.Destination),
		Decimals:    mintRec.decimals,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	rec.closed = true

	l.mu.Lock()
	delete(l.accounts, p.Account)
	removeIndex(l.byOwner, acct.Owner, p.Account)
	removeIndex(l.byMint, rec.mint, p.Account)
	l.mu.Unlock()

	return r, nil
}

func (l *Ledger) setAccountOwner(p SetAuthorityParams, preset *domain.Receipt) (*domain.Receipt, error) {
	newOwner, ok := p.NewAuthority.Get()
	if !ok {
		return nil, fmt.Errorf("%w: account owner cannot be removed", ErrInvalidArgument)
	}

	rec, err := l.lookupAccount(p.Target)
	if err != nil {
		return nil, err
	}

	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	acct := &rec.account
	if acct.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Target)
	}
	if acct.Owner != p.Caller {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, p.Caller, p.Target)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:          domain.OpSetAuthority,
		Caller:        p.Caller,
		Mint:          rec.mint,
		Account:       domain.AddrPtr(p.Target),
		AuthorityType: domain.AuthorityAccountOwner,
		NewAuthority:  p.NewAuthority,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	oldOwner := acct.Owner
	acct.Owner = newOwner
	acct.Delegate = domain.None()
	acct.DelegatedAmount = 0

	l.mu.Lock()
	removeIndex(l.byOwner, oldOwner, p.Target)
	addIndex(l.byOwner, newOwner, p.Target)
	l.mu.Unlock()

	return r, nil
}

// ApproveParams grants Delegate an allowance of Amount over Account.
type ApproveParams struct {
	Nonce    string
	Account  domain.Address
	Caller   domain.Address
	Delegate domain.Address
	Amount   uint64
}

// Approve sets the account's delegate, replacing any previous one.
func (l *Ledger) Approve(p ApproveParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpApprove, func() (*domain.Receipt, error) {
		return l.approve(p, nil)
	})
}

func (l *Ledger) approve(p ApproveParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: approve amount must be positive", ErrInvalidAmount)
	}
	if p.Delegate.IsZero() {
		return nil, fmt.Errorf("%w: delegate is required", ErrInvalidArgument)
	}

	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}

	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	acct := &rec.account
	if acct.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Account)
	}
	if acct.Owner != p.Caller {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, p.Caller, p.Account)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:     domain.OpApprove,
		Caller:   p.Caller,
		Mint:     rec.mint,
		Account:  domain.AddrPtr(p.Account),
		Delegate: domain.AddrPtr(p.Delegate),
		Amount:   p.Amount,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	acct.Delegate = domain.Some(p.Delegate)
	acct.DelegatedAmount = p.Amount
	return r, nil
}

// RevokeParams clears an account's delegate.
type RevokeParams struct {
	Nonce   string
	Account domain.Address
	Caller  domain.Address
}

// Revoke clears the delegate and its allowance.
func (l *Ledger) Revoke(p RevokeParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpRevoke, func() (*domain.Receipt, error) {
		return l.revoke(p, nil)
	})
}

func (l *Ledger) revoke(p RevokeParams, preset *domain.Receipt) (*domain.Receipt, error) {
	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}

	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	acct := &rec.account
	if acct.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Account)
	}
	if acct.Owner != p.Caller {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrUnauthorized, p.Caller, p.Account)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:    domain.OpRevoke,
		Caller:  p.Caller,
		Mint:    rec.mint,
		Account: domain.AddrPtr(p.Account),
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	acct.Delegate = domain.None()
	acct.DelegatedAmount = 0
	return r, nil
}

// FreezeParams identifies an account to freeze or thaw. Mint must be the
// account's mint and Caller its freeze authority.
type FreezeParams struct {
	Nonce   string
	Account domain.Address
	Mint    domain.Address
	Caller  domain.Address
}

// FreezeAccount blocks every balance and authority change on the account.
func (l *Ledger) FreezeAccount(p FreezeParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpFreezeAccount, func() (*domain.Receipt, error) {
		return l.setFrozen(p, true, nil)
	})
}

// ThawAccount lifts a freeze.
func (l *Ledger) ThawAccount(p FreezeParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpThawAccount, func() (*domain.Receipt, error) {
		return l.setFrozen(p, false, nil)
	})
}

func (l *Ledger) setFrozen(p FreezeParams, frozen bool, preset *domain.Receipt) (*domain.Receipt, error) {
	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}
	if rec.mint != p.Mint {
		return nil, fmt.Errorf("%w: account %s belongs to mint %s", ErrMintMismatch, p.Account, rec.mint)
	}
	mintRec, err := l.lookupMint(p.Mint)
	if err != nil {
		return nil, err
	}

	mintRec.mu.Lock()
	defer mintRec.mu.Unlock()
	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	fa := mintRec.mint.FreezeAuthority
	if !fa.IsSome() {
		return nil, fmt.Errorf("%w: mint %s", ErrNoFreezeAuthority, p.Mint)
	}
	if !fa.Is(p.Caller) {
		return nil, fmt.Errorf("%w: %s is not the freeze authority of %s", ErrUnauthorized, p.Caller, p.Mint)
	}
	if rec.account.Frozen == frozen {
		return nil, fmt.Errorf("%w: account %s frozen=%t", ErrInvalidState, p.Account, frozen)
	}

	kind := domain.OpThawAccount
	if frozen {
		kind = domain.OpFreezeAccount
	}
	r, err := l.commit(&domain.Receipt{
		Kind:     kind,
		Caller:   p.Caller,
		Mint:     p.Mint,
		Account:  domain.AddrPtr(p.Account),
		Decimals: mintRec.decimals,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	rec.account.Frozen = frozen
	return r, nil
}
