package ledger

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/identity"
)

func newAddr(t *testing.T) domain.Address {
	t.Helper()
	a, err := identity.NewAddress()
	require.NoError(t, err)
	return a
}

type fixture struct {
	l         *Ledger
	authority domain.Address
	freezer   domain.Address
	mint      domain.Address
}

func newFixture(t *testing.T, decimals int) *fixture {
	t.Helper()
	f := &fixture{
		l:         New(),
		authority: newAddr(t),
		freezer:   newAddr(t),
	}
	r, err := f.l.CreateMint(CreateMintParams{
		MintAuthority:   f.authority,
		FreezeAuthority: domain.Some(f.freezer),
		Decimals:        decimals,
	})
	require.NoError(t, err)
	f.mint = r.Mint
	return f
}

func (f *fixture) account(t *testing.T, owner domain.Address) domain.Address {
	t.Helper()
	r, err := f.l.CreateAssociatedAccount("", f.mint, owner)
	require.NoError(t, err)
	return *r.Account
}

func (f *fixture) mintTo(t *testing.T, account domain.Address, amount uint64) {
	t.Helper()
	_, err := f.l.MintTo(MintToParams{Mint: f.mint, Account: account, Caller: f.authority, Amount: amount})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, account domain.Address) uint64 {
	t.Helper()
	b, err := f.l.GetBalance(account)
	require.NoError(t, err)
	return b
}

func (f *fixture) assertSupplyInvariant(t *testing.T) {
	t.Helper()
	a, err := f.l.Audit(f.mint)
	require.NoError(t, err)
	assert.True(t, a.OK, "supply %d != balances %d", a.Supply, a.BalanceSum)
}

func TestCreateMint(t *testing.T) {
	f := newFixture(t, 2)

	info, err := f.l.GetMintInfo(f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), info.Decimals)
	assert.Equal(t, uint64(0), info.Supply)
	assert.True(t, info.MintAuthority.Is(f.authority))
	assert.True(t, info.FreezeAuthority.Is(f.freezer))
	assert.Nil(t, info.Metadata)
}

func TestCreateMint_Validation(t *testing.T) {
	l := New()
	auth := newAddr(t)

	_, err := l.CreateMint(CreateMintParams{MintAuthority: auth, Decimals: 256})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = l.CreateMint(CreateMintParams{MintAuthority: auth, Decimals: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = l.CreateMint(CreateMintParams{Decimals: 9})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	mint := newAddr(t)
	_, err = l.CreateMint(CreateMintParams{Mint: mint, MintAuthority: auth, Decimals: 9})
	require.NoError(t, err)
	_, err = l.CreateMint(CreateMintParams{Mint: mint, MintAuthority: auth, Decimals: 9})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateAccount_AssociatedIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)

	first, err := f.l.CreateAssociatedAccount("", f.mint, owner)
	require.NoError(t, err)
	assert.NotZero(t, first.Seq)

	second, err := f.l.CreateAssociatedAccount("", f.mint, owner)
	require.NoError(t, err)
	assert.Zero(t, second.Seq, "existing associated account must not be journaled")
	assert.Equal(t, *first.Account, *second.Account)

	want, err := f.l.AssociatedAddress(owner, f.mint)
	require.NoError(t, err)
	assert.Equal(t, want, *first.Account)
	assert.Len(t, f.l.AccountsByOwner(owner), 1)
}

func TestCreateAccount_AssociatedAfterOwnerChange(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	bob := newAddr(t)
	a := f.account(t, alice)

	_, err := f.l.SetAccountOwner("", a, alice, bob)
	require.NoError(t, err)

	_, err = f.l.CreateAssociatedAccount("", f.mint, alice)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, f.l.AccountsByOwner(alice))

	acct, err := f.l.GetAccount(a)
	require.NoError(t, err)
	assert.Equal(t, bob, acct.Owner)
}

func TestCreateAccount_Explicit(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	addr := newAddr(t)

	r, err := f.l.CreateAccount(CreateAccountParams{Mint: f.mint, Owner: owner, Account: addr})
	require.NoError(t, err)
	assert.Equal(t, addr, *r.Account)
	assert.False(t, r.Associated)

	_, err = f.l.CreateAccount(CreateAccountParams{Mint: f.mint, Owner: owner, Account: addr})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	generated, err := f.l.CreateAccount(CreateAccountParams{Mint: f.mint, Owner: owner})
	require.NoError(t, err)
	assert.NotEqual(t, addr, *generated.Account)

	_, err = f.l.CreateAccount(CreateAccountParams{Mint: newAddr(t), Owner: owner})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, f.l.AccountsByOwner(owner), 2)
}

func TestScenario_MintTransferBurn(t *testing.T) {
	f := newFixture(t, 2)
	alice := newAddr(t)
	bob := newAddr(t)
	a := f.account(t, alice)
	b := f.account(t, bob)

	f.mintTo(t, a, 1000)
	_, err := f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: alice, Amount: 500})
	require.NoError(t, err)
	r, err := f.l.Burn(BurnParams{Account: a, Mint: f.mint, Caller: alice, Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(900), r.SupplyAfter)

	assert.Equal(t, uint64(400), f.balance(t, a))
	assert.Equal(t, uint64(500), f.balance(t, b))

	info, err := f.l.GetMintInfo(f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), info.Supply)
	assert.Equal(t, "9", info.UISupply)

	acct, err := f.l.GetAccount(a)
	require.NoError(t, err)
	assert.Equal(t, "4", acct.UIAmount)
	f.assertSupplyInvariant(t)
}

func TestSupplyInvariant_RandomSequences(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, seed*31))
			f := newFixture(t, 2)

			owners := make([]domain.Address, 4)
			accounts := make([]domain.Address, 4)
			for i := range owners {
				owners[i] = newAddr(t)
				accounts[i] = f.account(t, owners[i])
			}
			want := make([]uint64, len(accounts))
			var supply uint64

			for step := 0; step < 300; step++ {
				i := rng.IntN(len(accounts))
				amount := rng.Uint64N(1_000)

				var err error
				switch rng.IntN(3) {
				case 0:
					_, err = f.l.MintTo(MintToParams{Mint: f.mint, Account: accounts[i], Caller: f.authority, Amount: amount})
					if err == nil {
						want[i] += amount
						supply += amount
					}
				case 1:
					j := rng.IntN(len(accounts))
					_, err = f.l.Transfer(TransferParams{Source: accounts[i], Destination: accounts[j], Caller: owners[i], Amount: amount})
					if err == nil {
						want[i] -= amount
						want[j] += amount
					}
				case 2:
					_, err = f.l.Burn(BurnParams{Account: accounts[i], Mint: f.mint, Caller: owners[i], Amount: amount})
					if err == nil {
						want[i] -= amount
						supply -= amount
					}
				}
				if err != nil {
					require.True(t, errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInvalidAmount),
						"step %d: unexpected error %v", step, err)
				}

				f.assertSupplyInvariant(t)
			}

			for i, acct := range accounts {
				assert.Equal(t, want[i], f.balance(t, acct), "account %d", i)
			}
			info, err := f.l.GetMintInfo(f.mint)
			require.NoError(t, err)
			assert.Equal(t, supply, info.Supply)
		})
	}
}

func TestTransfer_RoundTrip(t *testing.T) {
	f := newFixture(t, 6)
	owner := newAddr(t)
	a := f.account(t, owner)
	b, err := f.l.CreateAccount(CreateAccountParams{Mint: f.mint, Owner: owner})
	require.NoError(t, err)

	f.mintTo(t, a, 77)
	_, err = f.l.Transfer(TransferParams{Source: a, Destination: *b.Account, Caller: owner, Amount: 30})
	require.NoError(t, err)
	_, err = f.l.Transfer(TransferParams{Source: *b.Account, Destination: a, Caller: owner, Amount: 30})
	require.NoError(t, err)

	assert.Equal(t, uint64(77), f.balance(t, a))
	assert.Equal(t, uint64(0), f.balance(t, *b.Account))
}

func TestTransfer_Failures(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	bob := newAddr(t)
	a := f.account(t, alice)
	b := f.account(t, bob)
	f.mintTo(t, a, 10)

	other := newFixture(t, 0)
	c := other.account(t, alice)

	tests := []struct {
		name string
		p    TransferParams
		want error
	}{
		{"zero amount", TransferParams{Source: a, Destination: b, Caller: alice, Amount: 0}, ErrInvalidAmount},
		{"over balance", TransferParams{Source: a, Destination: b, Caller: alice, Amount: 11}, ErrInsufficientFunds},
		{"not owner", TransferParams{Source: a, Destination: b, Caller: bob, Amount: 1}, ErrUnauthorized},
		{"unknown source", TransferParams{Source: newAddr(t), Destination: b, Caller: alice, Amount: 1}, ErrNotFound},
		{"other mint", TransferParams{Source: a, Destination: c, Caller: alice, Amount: 1}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.l.Transfer(tt.p)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, uint64(10), f.balance(t, a))
			assert.Equal(t, uint64(0), f.balance(t, b))
		})
	}
}

func TestTransfer_MintMismatch(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	a := f.account(t, alice)
	f.mintTo(t, a, 10)

	r, err := f.l.CreateMint(CreateMintParams{MintAuthority: f.authority, Decimals: 0})
	require.NoError(t, err)
	c, err := f.l.CreateAssociatedAccount("", r.Mint, alice)
	require.NoError(t, err)

	_, err = f.l.Transfer(TransferParams{Source: a, Destination: *c.Account, Caller: alice, Amount: 1})
	assert.ErrorIs(t, err, ErrMintMismatch)

	_, err = f.l.MintTo(MintToParams{Mint: r.Mint, Account: a, Caller: f.authority, Amount: 1})
	assert.ErrorIs(t, err, ErrMintMismatch)

	_, err = f.l.Burn(BurnParams{Account: a, Mint: r.Mint, Caller: alice, Amount: 1})
	assert.ErrorIs(t, err, ErrMintMismatch)
}

func TestMintTo_Failures(t *testing.T) {
	f := newFixture(t, 0)
	a := f.account(t, newAddr(t))

	_, err := f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: newAddr(t), Amount: 1})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: f.authority, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	f.mintTo(t, a, ^uint64(0))
	_, err = f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: f.authority, Amount: 1})
	assert.ErrorIs(t, err, ErrOverflow)
	f.assertSupplyInvariant(t)
}

func TestMintTo_AfterAuthorityRevoked(t *testing.T) {
	f := newFixture(t, 9)
	a := f.account(t, newAddr(t))
	f.mintTo(t, a, 1)

	_, err := f.l.SetMintAuthority("", f.mint, f.authority, domain.None())
	require.NoError(t, err)

	for _, caller := range []domain.Address{f.authority, newAddr(t)} {
		_, err = f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: caller, Amount: 1})
		assert.ErrorIs(t, err, ErrMintAuthorityRevoked)
	}

	_, err = f.l.SetMintAuthority("", f.mint, f.authority, domain.Some(f.authority))
	assert.ErrorIs(t, err, ErrMintAuthorityRevoked)
}

func TestSetAuthority(t *testing.T) {
	f := newFixture(t, 0)
	next := newAddr(t)

	_, err := f.l.SetMintAuthority("", f.mint, next, domain.Some(next))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.SetMintAuthority("", f.mint, f.authority, domain.Some(next))
	require.NoError(t, err)
	info, err := f.l.GetMintInfo(f.mint)
	require.NoError(t, err)
	assert.True(t, info.MintAuthority.Is(next))

	_, err = f.l.SetFreezeAuthority("", f.mint, f.freezer, domain.None())
	require.NoError(t, err)
	_, err = f.l.SetFreezeAuthority("", f.mint, f.freezer, domain.Some(f.freezer))
	assert.ErrorIs(t, err, ErrNoFreezeAuthority)

	_, err = f.l.SetAuthority(SetAuthorityParams{Target: f.mint, Caller: next, Type: "bogus", NewAuthority: domain.Some(next)})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSetAccountOwner_ClearsDelegate(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	bob := newAddr(t)
	delegate := newAddr(t)
	a := f.account(t, alice)

	_, err := f.l.Approve(ApproveParams{Account: a, Caller: alice, Delegate: delegate, Amount: 5})
	require.NoError(t, err)

	_, err = f.l.SetAccountOwner("", a, bob, bob)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.SetAccountOwner("", a, alice, bob)
	require.NoError(t, err)

	acct, err := f.l.GetAccount(a)
	require.NoError(t, err)
	assert.Equal(t, bob, acct.Owner)
	assert.False(t, acct.Delegate.IsSome())
	assert.Zero(t, acct.DelegatedAmount)
	assert.Empty(t, f.l.AccountsByOwner(alice))
	assert.Len(t, f.l.AccountsByOwner(bob), 1)

	_, err = f.l.SetAuthority(SetAuthorityParams{Target: a, Caller: bob, Type: domain.AuthorityAccountOwner, NewAuthority: domain.None()})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDelegate_Allowance(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	delegate := newAddr(t)
	a := f.account(t, owner)
	b := f.account(t, newAddr(t))
	f.mintTo(t, a, 1000)

	_, err := f.l.Approve(ApproveParams{Account: a, Caller: owner, Delegate: delegate, Amount: 100})
	require.NoError(t, err)

	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: delegate, Amount: 150})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: delegate, Amount: 100})
	require.NoError(t, err)

	acct, err := f.l.GetAccount(a)
	require.NoError(t, err)
	assert.Zero(t, acct.DelegatedAmount)
	assert.False(t, acct.Delegate.IsSome())

	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: delegate, Amount: 1})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, uint64(900), f.balance(t, a))
	assert.Equal(t, uint64(100), f.balance(t, b))
}

func TestDelegate_BurnAndRevoke(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	delegate := newAddr(t)
	a := f.account(t, owner)
	f.mintTo(t, a, 50)

	_, err := f.l.Approve(ApproveParams{Account: a, Caller: delegate, Delegate: delegate, Amount: 10})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.l.Approve(ApproveParams{Account: a, Caller: owner, Delegate: delegate, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.l.Approve(ApproveParams{Account: a, Caller: owner, Delegate: delegate, Amount: 10})
	require.NoError(t, err)
	_, err = f.l.Burn(BurnParams{Account: a, Mint: f.mint, Caller: delegate, Amount: 4})
	require.NoError(t, err)

	acct, err := f.l.GetAccount(a)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), acct.DelegatedAmount)
	assert.True(t, acct.Delegate.Is(delegate))

	_, err = f.l.Revoke(RevokeParams{Account: a, Caller: owner})
	require.NoError(t, err)
	_, err = f.l.Burn(BurnParams{Account: a, Mint: f.mint, Caller: delegate, Amount: 1})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, uint64(46), f.balance(t, a))
	f.assertSupplyInvariant(t)
}

func TestFreezeAndThaw(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	a := f.account(t, owner)
	b := f.account(t, newAddr(t))
	f.mintTo(t, a, 10)

	_, err := f.l.FreezeAccount(FreezeParams{Account: a, Mint: f.mint, Caller: owner})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.FreezeAccount(FreezeParams{Account: a, Mint: f.mint, Caller: f.freezer})
	require.NoError(t, err)
	_, err = f.l.FreezeAccount(FreezeParams{Account: a, Mint: f.mint, Caller: f.freezer})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: owner, Amount: 1})
	assert.ErrorIs(t, err, ErrFrozenAccount)
	_, err = f.l.Transfer(TransferParams{Source: b, Destination: a, Caller: owner, Amount: 1})
	assert.Error(t, err)
	_, err = f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: f.authority, Amount: 1})
	assert.ErrorIs(t, err, ErrFrozenAccount)
	_, err = f.l.Burn(BurnParams{Account: a, Mint: f.mint, Caller: owner, Amount: 1})
	assert.ErrorIs(t, err, ErrFrozenAccount)
	_, err = f.l.Approve(ApproveParams{Account: a, Caller: owner, Delegate: owner, Amount: 1})
	assert.ErrorIs(t, err, ErrFrozenAccount)
	_, err = f.l.CloseAccount(CloseAccountParams{Account: a, Caller: owner, Destination: owner})
	assert.ErrorIs(t, err, ErrFrozenAccount)

	_, err = f.l.ThawAccount(FreezeParams{Account: a, Mint: f.mint, Caller: f.freezer})
	require.NoError(t, err)
	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: owner, Amount: 1})
	require.NoError(t, err)
}

func TestFreeze_NoFreezeAuthority(t *testing.T) {
	l := New()
	auth := newAddr(t)
	r, err := l.CreateMint(CreateMintParams{MintAuthority: auth, FreezeAuthority: domain.None(), Decimals: 0})
	require.NoError(t, err)
	acct, err := l.CreateAssociatedAccount("", r.Mint, auth)
	require.NoError(t, err)

	_, err = l.FreezeAccount(FreezeParams{Account: *acct.Account, Mint: r.Mint, Caller: auth})
	assert.ErrorIs(t, err, ErrNoFreezeAuthority)
}

func TestCloseAccount(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	a := f.account(t, owner)
	f.mintTo(t, a, 5)

	_, err := f.l.CloseAccount(CloseAccountParams{Account: a, Caller: owner, Destination: owner})
	assert.ErrorIs(t, err, ErrNonZeroBalance)

	_, err = f.l.Burn(BurnParams{Account: a, Mint: f.mint, Caller: owner, Amount: 5})
	require.NoError(t, err)

	_, err = f.l.CloseAccount(CloseAccountParams{Account: a, Caller: newAddr(t), Destination: owner})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.CloseAccount(CloseAccountParams{Account: a, Caller: owner, Destination: owner})
	require.NoError(t, err)

	_, err = f.l.GetBalance(a)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.l.AccountsByOwner(owner))

	// the associated address can be recreated
	again, err := f.l.CreateAssociatedAccount("", f.mint, owner)
	require.NoError(t, err)
	assert.NotZero(t, again.Seq)
	assert.Equal(t, a, *again.Account)
}

func TestAttachMetadata(t *testing.T) {
	f := newFixture(t, 9)

	_, err := f.l.AttachMetadata(AttachMetadataParams{Mint: f.mint, Caller: newAddr(t), Name: "Token"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.l.AttachMetadata(AttachMetadataParams{Mint: f.mint, Caller: f.authority, Name: "Token", Symbol: "TOOLONGSYMBOL"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.l.AttachMetadata(AttachMetadataParams{Mint: f.mint, Caller: f.authority, Name: "Token", Symbol: "TKN", URI: "https://example.com/t.json"})
	require.NoError(t, err)

	// revoking minting does not take away metadata updates
	_, err = f.l.SetMintAuthority("", f.mint, f.authority, domain.None())
	require.NoError(t, err)
	_, err = f.l.AttachMetadata(AttachMetadataParams{Mint: f.mint, Caller: f.authority, Name: "Token v2", Symbol: "TKN"})
	require.NoError(t, err)

	info, err := f.l.GetMintInfo(f.mint)
	require.NoError(t, err)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, "Token v2", info.Metadata.Name)
	assert.Equal(t, f.authority, info.Metadata.UpdateAuthority)
}

func TestNonce_Idempotent(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	a := f.account(t, owner)

	p := MintToParams{Nonce: "op-1", Mint: f.mint, Account: a, Caller: f.authority, Amount: 10}
	first, err := f.l.MintTo(p)
	require.NoError(t, err)
	second, err := f.l.MintTo(p)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "op-1", first.Nonce)
	assert.Equal(t, uint64(10), f.balance(t, a))

	_, err = f.l.Burn(BurnParams{Nonce: "op-1", Account: a, Mint: f.mint, Caller: owner, Amount: 1})
	assert.ErrorIs(t, err, ErrNonceReused)
}

func TestNonce_FailedAttemptNotRemembered(t *testing.T) {
	f := newFixture(t, 0)
	owner := newAddr(t)
	a := f.account(t, owner)

	_, err := f.l.Burn(BurnParams{Nonce: "burn-1", Account: a, Mint: f.mint, Caller: owner, Amount: 1})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	f.mintTo(t, a, 1)
	_, err = f.l.Burn(BurnParams{Nonce: "burn-1", Account: a, Mint: f.mint, Caller: owner, Amount: 1})
	require.NoError(t, err)
}

func TestNonce_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, 0)
	a := f.account(t, newAddr(t))

	const n = 32
	receipts := make([]*domain.Receipt, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.l.MintTo(MintToParams{Nonce: "same", Mint: f.mint, Account: a, Caller: f.authority, Amount: 3})
			assert.NoError(t, err)
			receipts[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(3), f.balance(t, a))
	for _, r := range receipts {
		require.NotNil(t, r)
		assert.Equal(t, receipts[0].Seq, r.Seq)
	}
}

func TestConcurrentTransfers_NoDeadlock(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	bob := newAddr(t)
	a := f.account(t, alice)
	b := f.account(t, bob)
	f.mintTo(t, a, 10_000)
	f.mintTo(t, b, 10_000)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: alice, Amount: 7})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = f.l.Transfer(TransferParams{Source: b, Destination: a, Caller: bob, Amount: 5})
			}
		}()
	}

	stop := make(chan struct{})
	var auditErr error
	var auditWG sync.WaitGroup
	auditWG.Add(1)
	go func() {
		defer auditWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			audit, err := f.l.Audit(f.mint)
			if err != nil || !audit.OK {
				auditErr = fmt.Errorf("audit failed: %v %+v", err, audit)
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	auditWG.Wait()

	require.NoError(t, auditErr)
	assert.Equal(t, uint64(20_000), f.balance(t, a)+f.balance(t, b))
	f.assertSupplyInvariant(t)
}

func TestSequence_StrictlyIncreasing(t *testing.T) {
	f := newFixture(t, 0)
	a := f.account(t, newAddr(t))

	var last uint64
	for i := 0; i < 5; i++ {
		r, err := f.l.MintTo(MintToParams{Mint: f.mint, Account: a, Caller: f.authority, Amount: 1})
		require.NoError(t, err)
		assert.Greater(t, r.Seq, last)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, r.ID, r.Nonce)
		last = r.Seq
	}
	assert.Equal(t, last, f.l.Sequence())
}

func TestCode_RoundTrip(t *testing.T) {
	for _, c := range codes {
		wrapped := fmt.Errorf("%w: context", c.err)
		assert.Equal(t, c.code, Code(wrapped))
		assert.True(t, errors.Is(FromCode(c.code), c.err))
	}
	assert.Empty(t, Code(errors.New("other")))
	assert.Nil(t, FromCode("nope"))
}

func TestCommitHook_RejectionLeavesNoState(t *testing.T) {
	f := newFixture(t, 0)
	alice := newAddr(t)
	bob := newAddr(t)
	a := f.account(t, alice)
	b := f.account(t, bob)
	f.mintTo(t, a, 100)

	down := errors.New("journal down")
	var seen []*domain.Receipt
	var fail bool
	f.l.SetCommitHook(func(r *domain.Receipt) error {
		if fail {
			return down
		}
		seen = append(seen, r)
		return nil
	})

	fail = true
	before := f.l.Sequence()

	_, err := f.l.MintTo(MintToParams{Nonce: "mint-1", Mint: f.mint, Account: a, Caller: f.authority, Amount: 50})
	assert.ErrorIs(t, err, down)
	_, err = f.l.Transfer(TransferParams{Source: a, Destination: b, Caller: alice, Amount: 100})
	assert.ErrorIs(t, err, down)
	_, err = f.l.CreateMint(CreateMintParams{MintAuthority: f.authority})
	assert.ErrorIs(t, err, down)
	carol := newAddr(t)
	_, err = f.l.CreateAssociatedAccount("", f.mint, carol)
	assert.ErrorIs(t, err, down)
	_, err = f.l.CloseAccount(CloseAccountParams{Account: b, Caller: bob, Destination: bob})
	assert.ErrorIs(t, err, down)

	assert.Equal(t, uint64(100), f.balance(t, a))
	assert.Zero(t, f.balance(t, b))
	assert.Empty(t, f.l.AccountsByOwner(carol))
	assert.Len(t, f.l.Mints(), 1)
	f.assertSupplyInvariant(t)
	assert.Greater(t, f.l.Sequence(), before, "rejected receipts still consume their sequence")

	// the nonce of a rejected attempt is free for a retry
	fail = false
	r, err := f.l.MintTo(MintToParams{Nonce: "mint-1", Mint: f.mint, Account: a, Caller: f.authority, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, uint64(150), f.balance(t, a))
	require.Len(t, seen, 1)
	assert.Equal(t, r.Seq, seen[0].Seq)
	assert.Equal(t, uint64(150), seen[0].SupplyAfter)
}

func TestCommitHook_NotCalledOnApply(t *testing.T) {
	src := New()
	auth := newAddr(t)
	m, err := src.CreateMint(CreateMintParams{MintAuthority: auth})
	require.NoError(t, err)

	calls := 0
	dst := New(WithCommitHook(func(*domain.Receipt) error {
		calls++
		return nil
	}))
	_, err = dst.Apply(m)
	require.NoError(t, err)
	assert.Zero(t, calls)

	_, err = dst.CreateAssociatedAccount("", m.Mint, auth)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
