// Package ledger implements an in-process SPL-style token ledger: mints,
// token accounts, balances, authorities and delegation.
//
// Every mutating operation locks the records it touches (mint first, then
// accounts in address order), validates all preconditions, and only then
// applies its effect, so balance and supply changes commit together or not
// at all. Each committed operation yields a Receipt carrying a strictly
// increasing sequence number; replaying receipts in that order through Apply
// rebuilds an identical ledger. An installed CommitHook sees every new receipt
// before its effect is applied and can veto it.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/idhash"
	"solana-token-ledger/internal/identity"
)

// mintRecord guards one mint. Mints are never removed.
type mintRecord struct {
	mu       sync.Mutex
	decimals uint8 // immutable copy, readable without mu
	mint     domain.Mint
}

// accountRecord guards one token account.
// closed is set under mu before the record leaves the registry.
type accountRecord struct {
	mu      sync.Mutex
	addr    domain.Address // immutable copy, readable without mu
	mint    domain.Address // immutable copy, readable without mu
	account domain.TokenAccount
	closed  bool
}

// Ledger is the token ledger state. The zero value is not usable; call New.
type Ledger struct {
	// mu guards the registry maps only. It is never held while waiting for a
	// record lock; record locks may be held while taking mu. Mint and account
	// creation run the commit hook with mu held.
	mu       sync.RWMutex
	mints    map[domain.Address]*mintRecord
	accounts map[domain.Address]*accountRecord
	byOwner  map[domain.Address]map[domain.Address]struct{}
	byMint   map[domain.Address]map[domain.Address]struct{}

	seq atomic.Uint64

	noncesMu sync.Mutex
	nonces   map[string]*domain.Receipt
	inflight singleflight.Group

	deriver    *idhash.Deriver
	newAddress func() (domain.Address, error)
	now        func() time.Time
	onCommit   CommitHook
}

// CommitHook is called with each new receipt while the records it touches
// are locked and before its effect is applied. An error aborts the operation
// with no state change; the receipt's sequence number stays unused.
// Receipts re-executed through Apply do not reach the hook.
type CommitHook func(r *domain.Receipt) error

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithAddressGenerator overrides how mint and explicit account addresses are
// generated when the caller does not supply one.
func WithAddressGenerator(gen func() (domain.Address, error)) Option {
	return func(l *Ledger) {
		l.newAddress = gen
	}
}

// WithDeriver shares an associated-address cache.
func WithDeriver(d *idhash.Deriver) Option {
	return func(l *Ledger) {
		l.deriver = d
	}
}

// WithCommitHook installs a hook run before every new receipt takes effect.
func WithCommitHook(h CommitHook) Option {
	return func(l *Ledger) {
		l.onCommit = h
	}
}

// SetCommitHook replaces the commit hook. It must be called before the
// ledger is shared between goroutines.
func (l *Ledger) SetCommitHook(h CommitHook) {
	l.onCommit = h
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		mints:      make(map[domain.Address]*mintRecord),
		accounts:   make(map[domain.Address]*accountRecord),
		byOwner:    make(map[domain.Address]map[domain.Address]struct{}),
		byMint:     make(map[domain.Address]map[domain.Address]struct{}),
		nonces:     make(map[string]*domain.Receipt),
		newAddress: identity.NewAddress,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.deriver == nil {
		l.deriver = idhash.NewDeriver(0)
	}
	return l
}

// Sequence returns the last assigned receipt sequence.
func (l *Ledger) Sequence() uint64 {
	return l.seq.Load()
}

// AssociatedAddress derives the associated account address for (owner, mint).
func (l *Ledger) AssociatedAddress(owner, mint domain.Address) (domain.Address, error) {
	return l.deriver.AssociatedAccount(owner, mint)
}

// lookupMint returns the mint record or ErrNotFound.
func (l *Ledger) lookupMint(addr domain.Address) (*mintRecord, error) {
	l.mu.RLock()
	rec, ok := l.mints[addr]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: mint %s", ErrNotFound, addr)
	}
	return rec, nil
}

// lookupAccount returns the account record or ErrNotFound.
// The record may be closed by the time the caller locks it; check closed.
func (l *Ledger) lookupAccount(addr domain.Address) (*accountRecord, error) {
	l.mu.RLock()
	rec, ok := l.accounts[addr]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, addr)
	}
	return rec, nil
}

// lockAccounts locks distinct records in address order and returns the unlock func.
func lockAccounts(recs ...*accountRecord) func() {
	uniq := make([]*accountRecord, 0, len(recs))
	for _, r := range recs {
		dup := false
		for _, u := range uniq {
			if u == r {
				dup = true
				break
			}
		}
		if !dup {
			uniq = append(uniq, r)
		}
	}
	sort.Slice(uniq, func(i, j int) bool {
		return uniq[i].addr.Compare(uniq[j].addr) < 0
	})
	for _, r := range uniq {
		r.mu.Lock()
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			uniq[i].mu.Unlock()
		}
	}
}

// checkOpen reports ErrNotFound for records closed while we waited for the lock.
func checkOpen(recs ...*accountRecord) error {
	for _, r := range recs {
		if r.closed {
			return fmt.Errorf("%w: account %s", ErrNotFound, r.addr)
		}
	}
	return nil
}

// commit stamps r with sequence, id and time and passes it to the commit
// hook. preset carries the values of a journaled receipt during replay. Must
// be called with all involved record locks held, after every precondition
// has been checked, so that sequence order matches the order of dependent
// effects. The caller applies the effect only when commit succeeds.
func (l *Ledger) commit(r *domain.Receipt, nonce string, preset *domain.Receipt) (*domain.Receipt, error) {
	if preset != nil {
		r.Seq = preset.Seq
		r.ID = preset.ID
		r.CreatedAt = preset.CreatedAt
		r.Nonce = preset.Nonce
		for {
			cur := l.seq.Load()
			if cur >= preset.Seq || l.seq.CompareAndSwap(cur, preset.Seq) {
				break
			}
		}
		return r, nil
	}

	now := l.now()
	r.Seq = l.seq.Add(1)
	r.ID = ulid.MustNewDefault(now).String()
	r.CreatedAt = now.UnixMilli()
	r.Nonce = nonce
	if r.Nonce == "" {
		r.Nonce = r.ID
	}

	if l.onCommit != nil {
		if err := l.onCommit(cloneReceipt(r)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// execute runs op at most once per nonce. A repeated nonce returns the first
// receipt; concurrent duplicates wait for the in-flight attempt. Failed
// attempts are not remembered and may be retried with the same nonce.
func (l *Ledger) execute(nonce string, kind domain.OpKind, op func() (*domain.Receipt, error)) (*domain.Receipt, error) {
	if nonce == "" {
		return op()
	}

	if r, err := l.recall(nonce, kind); r != nil || err != nil {
		return r, err
	}

	v, err, _ := l.inflight.Do(nonce, func() (interface{}, error) {
		if r, err := l.recall(nonce, kind); r != nil || err != nil {
			return r, err
		}
		r, err := op()
		if err != nil {
			return nil, err
		}
		l.noncesMu.Lock()
		l.nonces[nonce] = r
		l.noncesMu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r := v.(*domain.Receipt)
	if r.Kind != kind {
		return nil, fmt.Errorf("%w: %s was %s", ErrNonceReused, nonce, r.Kind)
	}
	return cloneReceipt(r), nil
}

// recall returns a copy of the receipt remembered for nonce.
func (l *Ledger) recall(nonce string, kind domain.OpKind) (*domain.Receipt, error) {
	l.noncesMu.Lock()
	r, ok := l.nonces[nonce]
	l.noncesMu.Unlock()
	if !ok {
		return nil, nil
	}
	if r.Kind != kind {
		return nil, fmt.Errorf("%w: %s was %s", ErrNonceReused, nonce, r.Kind)
	}
	return cloneReceipt(r), nil
}

func cloneReceipt(r *domain.Receipt) *domain.Receipt {
	c := *r
	if r.Metadata != nil {
		md := *r.Metadata
		c.Metadata = &md
	}
	return &c
}

func addIndex(idx map[domain.Address]map[domain.Address]struct{}, key, val domain.Address) {
	set, ok := idx[key]
	if !ok {
		set = make(map[domain.Address]struct{})
		idx[key] = set
	}
	set[val] = struct{}{}
}

func removeIndex(idx map[domain.Address]map[domain.Address]struct{}, key, val domain.Address) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, val)
	if len(set) == 0 {
		delete(idx, key)
	}
}
