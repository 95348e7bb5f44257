package ledger

import (
	"fmt"
	"math"

	"solana-token-ledger/internal/domain"
)

// MintToParams mints Amount new tokens into Account.
type MintToParams struct {
	Nonce   string
	Mint    domain.Address
	Account domain.Address
	Caller  domain.Address
	Amount  uint64
}

// MintTo increases the account balance and mint supply together.
func (l *Ledger) MintTo(p MintToParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpMintTo, func() (*domain.Receipt, error) {
		return l.mintTo(p, nil)
	})
}

func (l *Ledger) mintTo(p MintToParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: mint amount must be positive", ErrInvalidAmount)
	}

	mintRec, err := l.lookupMint(p.Mint)
	if err != nil {
		return nil, err
	}
	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}
	if rec.mint != p.Mint {
		return nil, fmt.Errorf("%w: account %s belongs to mint %s", ErrMintMismatch, p.Account, rec.mint)
	}

	mintRec.mu.Lock()
	defer mintRec.mu.Unlock()
	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	mint := &mintRec.mint
	if !mint.MintAuthority.IsSome() {
		return nil, fmt.Errorf("%w: mint %s", ErrMintAuthorityRevoked, p.Mint)
	}
	if !mint.MintAuthority.Is(p.Caller) {
		return nil, fmt.Errorf("%w: %s is not the mint authority of %s", ErrUnauthorized, p.Caller, p.Mint)
	}
	if rec.account.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Account)
	}
	if mint.Supply > math.MaxUint64-p.Amount {
		return nil, fmt.Errorf("%w: supply %d + %d", ErrOverflow, mint.Supply, p.Amount)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:        domain.OpMintTo,
		Caller:      p.Caller,
		Mint:        p.Mint,
		Account:     domain.AddrPtr(p.Account),
		Amount:      p.Amount,
		Decimals:    mintRec.decimals,
		SupplyAfter: mint.Supply + p.Amount,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	mint.Supply += p.Amount
	rec.account.Amount += p.Amount
	return r, nil
}

// TransferParams moves Amount from Source to Destination. Caller must be the
// source owner or its delegate.
type TransferParams struct {
	Nonce       string
	Source      domain.Address
	Destination domain.Address
	Caller      domain.Address
	Amount      uint64
}

// Transfer debits the source and credits the destination together.
func (l *Ledger) Transfer(p TransferParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpTransfer, func() (*domain.Receipt, error) {
		return l.transfer(p, nil)
	})
}

func (l *Ledger) transfer(p TransferParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}

	src, err := l.lookupAccount(p.Source)
	if err != nil {
		return nil, err
	}
	dst, err := l.lookupAccount(p.Destination)
	if err != nil {
		return nil, err
	}
	if src.mint != dst.mint {
		return nil, fmt.Errorf("%w: %s is %s, %s is %s", ErrMintMismatch, p.Source, src.mint, p.Destination, dst.mint)
	}
	mintRec, err := l.lookupMint(src.mint)
	if err != nil {
		return nil, err
	}

	mintRec.mu.Lock()
	defer mintRec.mu.Unlock()
	unlock := lockAccounts(src, dst)
	defer unlock()

	if err := checkOpen(src, dst); err != nil {
		return nil, err
	}
	if src.account.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Source)
	}
	if dst.account.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Destination)
	}

	viaDelegate, err := authorizeSpend(&src.account, p.Caller, p.Amount)
	if err != nil {
		return nil, err
	}
	if src.account.Amount < p.Amount {
		return nil, fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, p.Source, src.account.Amount, p.Amount)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:        domain.OpTransfer,
		Caller:      p.Caller,
		Mint:        src.mint,
		Account:     domain.AddrPtr(p.Source),
		Destination: domain.AddrPtr(p.Destination),
		Amount:      p.Amount,
		Decimals:    mintRec.decimals,
		SupplyAfter: mintRec.mint.Supply,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	if src == dst {
		return r, nil
	}
	if viaDelegate {
		spendAllowance(&src.account, p.Amount)
	}
	src.account.Amount -= p.Amount
	dst.account.Amount += p.Amount
	return r, nil
}

// BurnParams destroys Amount tokens held by Account.
type BurnParams struct {
	Nonce   string
	Account domain.Address
	Mint    domain.Address
	Caller  domain.Address
	Amount  uint64
}

// Burn decreases the account balance and mint supply together.
func (l *Ledger) Burn(p BurnParams) (*domain.Receipt, error) {
	return l.execute(p.Nonce, domain.OpBurn, func() (*domain.Receipt, error) {
		return l.burn(p, nil)
	})
}

func (l *Ledger) burn(p BurnParams, preset *domain.Receipt) (*domain.Receipt, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("%w: burn amount must be positive", ErrInvalidAmount)
	}

	rec, err := l.lookupAccount(p.Account)
	if err != nil {
		return nil, err
	}
	mintRec, err := l.lookupMint(p.Mint)
	if err != nil {
		return nil, err
	}
	if rec.mint != p.Mint {
		return nil, fmt.Errorf("%w: account %s belongs to mint %s", ErrMintMismatch, p.Account, rec.mint)
	}

	mintRec.mu.Lock()
	defer mintRec.mu.Unlock()
	unlock := lockAccounts(rec)
	defer unlock()

	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	if rec.account.Frozen {
		return nil, fmt.Errorf("%w: %s", ErrFrozenAccount, p.Account)
	}
	viaDelegate, err := authorizeSpend(&rec.account, p.Caller, p.Amount)
	if err != nil {
		return nil, err
	}
	if rec.account.Amount < p.Amount {
		return nil, fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, p.Account, rec.account.Amount, p.Amount)
	}

	r, err := l.commit(&domain.Receipt{
		Kind:        domain.OpBurn,
		Caller:      p.Caller,
		Mint:        p.Mint,
		Account:     domain.AddrPtr(p.Account),
		Amount:      p.Amount,
		Decimals:    mintRec.decimals,
		SupplyAfter: mintRec.mint.Supply - p.Amount,
	}, p.Nonce, preset)
	if err != nil {
		return nil, err
	}

	if viaDelegate {
		spendAllowance(&rec.account, p.Amount)
	}
	rec.account.Amount -= p.Amount
	mintRec.mint.Supply -= p.Amount
	return r, nil
}

// authorizeSpend checks that caller may move amount out of acct. The owner
// always may; otherwise caller must be the delegate with enough allowance.
func authorizeSpend(acct *domain.TokenAccount, caller domain.Address, amount uint64) (viaDelegate bool, err error) {
	if acct.Owner == caller {
		return false, nil
	}
	if !acct.Delegate.Is(caller) {
		return false, fmt.Errorf("%w: %s is neither owner nor delegate of %s", ErrUnauthorized, caller, acct.Address)
	}
	if acct.DelegatedAmount < amount {
		return false, fmt.Errorf("%w: delegated %d, need %d", ErrInsufficientFunds, acct.DelegatedAmount, amount)
	}
	return true, nil
}

func spendAllowance(acct *domain.TokenAccount, amount uint64) {
	acct.DelegatedAmount -= amount
	if acct.DelegatedAmount == 0 {
		acct.Delegate = domain.None()
	}
}
