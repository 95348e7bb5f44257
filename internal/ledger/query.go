package ledger

import (
	"sort"

	"solana-token-ledger/internal/domain"
)

// GetBalance returns the account's raw balance.
func (l *Ledger) GetBalance(account domain.Address) (uint64, error) {
	info, err := l.GetAccount(account)
	if err != nil {
		return 0, err
	}
	return info.Amount, nil
}

// GetAccount returns a snapshot of the account.
func (l *Ledger) GetAccount(account domain.Address) (*domain.AccountInfo, error) {
	rec, err := l.lookupAccount(account)
	if err != nil {
		return nil, err
	}
	mintRec, err := l.lookupMint(rec.mint)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err := checkOpen(rec); err != nil {
		return nil, err
	}
	return rec.account.Info(mintRec.decimals), nil
}

// GetMintInfo returns a snapshot of the mint.
func (l *Ledger) GetMintInfo(mint domain.Address) (*domain.MintInfo, error) {
	rec, err := l.lookupMint(mint)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.mint.Info(), nil
}

// AccountsByOwner returns the owner's open accounts ordered by address.
func (l *Ledger) AccountsByOwner(owner domain.Address) []*domain.AccountInfo {
	l.mu.RLock()
	addrs := make([]domain.Address, 0, len(l.byOwner[owner]))
	for a := range l.byOwner[owner] {
		addrs = append(addrs, a)
	}
	l.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Compare(addrs[j]) < 0
	})

	out := make([]*domain.AccountInfo, 0, len(addrs))
	for _, a := range addrs {
		info, err := l.GetAccount(a)
		if err != nil {
			continue // closed meanwhile
		}
		if info.Owner != owner {
			continue // owner changed meanwhile
		}
		out = append(out, info)
	}
	return out
}

// Mints returns all mint addresses ordered by address.
func (l *Ledger) Mints() []domain.Address {
	l.mu.RLock()
	out := make([]domain.Address, 0, len(l.mints))
	for a := range l.mints {
		out = append(out, a)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Compare(out[j]) < 0
	})
	return out
}
