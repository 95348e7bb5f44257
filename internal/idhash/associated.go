package idhash

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"solana-token-ledger/internal/domain"
)

// Program ids used as derivation namespaces for associated accounts.
var (
	TokenProgramID           = domain.MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = domain.MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// AssociatedAccount derives the associated token account address for (owner, mint).
// Seeds: [owner, token program, mint] under the associated token program.
func AssociatedAccount(owner, mint domain.Address) (domain.Address, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	return addr, err
}

type pairKey struct {
	owner domain.Address
	mint  domain.Address
}

// Deriver memoizes associated account derivations.
// The bump search hashes up to 256 times, and callers derive the same pair repeatedly.
type Deriver struct {
	cache *lru.Cache[pairKey, domain.Address]
}

// DefaultDeriverSize is the number of (owner, mint) pairs kept by NewDeriver(0).
const DefaultDeriverSize = 4096

// NewDeriver creates a Deriver caching up to size pairs.
func NewDeriver(size int) *Deriver {
	if size <= 0 {
		size = DefaultDeriverSize
	}
	cache, err := lru.New[pairKey, domain.Address](size)
	if err != nil {
		// lru.New only fails on non-positive size
		panic(err)
	}
	return &Deriver{cache: cache}
}

// AssociatedAccount returns the cached or freshly derived address.
func (d *Deriver) AssociatedAccount(owner, mint domain.Address) (domain.Address, error) {
	key := pairKey{owner: owner, mint: mint}
	if addr, ok := d.cache.Get(key); ok {
		return addr, nil
	}
	addr, err := AssociatedAccount(owner, mint)
	if err != nil {
		return domain.Address{}, err
	}
	d.cache.Add(key, addr)
	return addr, nil
}
