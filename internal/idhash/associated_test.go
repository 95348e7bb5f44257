package idhash

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-ledger/internal/domain"
)

func TestProgramIDsMatchSolanaGo(t *testing.T) {
	assert.Equal(t, solana.TokenProgramID.String(), TokenProgramID.String())
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID.String(), AssociatedTokenProgramID.String())
}

func TestAssociatedAccount_MatchesSolanaGo(t *testing.T) {
	for i := 0; i < 8; i++ {
		ownerKey, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		mintKey, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)

		owner := domain.Address(ownerKey.PublicKey())
		mint := domain.Address(mintKey.PublicKey())

		want, wantBump, err := solana.FindAssociatedTokenAddress(ownerKey.PublicKey(), mintKey.PublicKey())
		require.NoError(t, err)

		got, bump, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
		require.NoError(t, err)

		assert.Equal(t, want.String(), got.String())
		assert.Equal(t, wantBump, bump)
	}
}

func TestAssociatedAccount_Deterministic(t *testing.T) {
	owner := domain.MustParseAddress("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	mint := domain.MustParseAddress("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	a1, err := AssociatedAccount(owner, mint)
	require.NoError(t, err)
	a2, err := AssociatedAccount(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.False(t, IsOnCurve(a1), "associated address must be off curve")

	other, err := AssociatedAccount(mint, owner)
	require.NoError(t, err)
	assert.NotEqual(t, a1, other)
}

func TestDeriver_Cache(t *testing.T) {
	d := NewDeriver(2)
	owner := domain.MustParseAddress("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	mint := domain.MustParseAddress("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	want, err := AssociatedAccount(owner, mint)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := d.AssociatedAccount(owner, mint)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 1, d.cache.Len())
}

func TestCreateProgramAddress_Limits(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)
	_, err := CreateProgramAddress([][]byte{long}, TokenProgramID)
	assert.Error(t, err)

	seeds := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(seeds, TokenProgramID)
	assert.Error(t, err)
}

func TestIsOnCurve_PublicKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	assert.True(t, IsOnCurve(domain.Address(key.PublicKey())))
}
