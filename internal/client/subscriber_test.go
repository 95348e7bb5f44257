package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-ledger/internal/api/rest"
	"solana-token-ledger/internal/domain"
)

func nextReceipt(t *testing.T, s *Subscriber) *domain.Receipt {
	t.Helper()
	select {
	case r, ok := <-s.Receipts():
		require.True(t, ok, "receipts channel closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for receipt")
		return nil
	}
}

func TestSubscriber_StreamsCommittedReceipts(t *testing.T) {
	tl := newTestLedger(t)
	c := tl.client
	ctx := context.Background()
	auth := newAddr(t)

	sub, err := c.Subscribe(ctx, domain.None(), nil)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return tl.stream.Len() == 1 }, time.Second, 10*time.Millisecond)

	m, err := c.CreateMint(ctx, rest.CreateMintRequest{MintAuthority: auth})
	require.NoError(t, err)
	a, err := c.CreateAccount(ctx, rest.CreateAccountRequest{Mint: m.Mint, Owner: auth, Associated: true})
	require.NoError(t, err)

	got := nextReceipt(t, sub)
	assert.Equal(t, domain.OpCreateMint, got.Kind)
	assert.Equal(t, m.ID, got.ID)

	got = nextReceipt(t, sub)
	assert.Equal(t, domain.OpCreateAccount, got.Kind)
	assert.Equal(t, a.Seq, got.Seq)
}

func TestSubscriber_OutOfOrderReceipts(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	mint := newAddr(t)

	sub, err := tl.client.Subscribe(ctx, domain.None(), nil)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return tl.stream.Len() == 1 }, time.Second, 10*time.Millisecond)

	for _, seq := range []uint64{6, 5, 6, 7} {
		require.NoError(t, tl.stream.Publish(ctx, &domain.Receipt{Seq: seq, Kind: domain.OpMintTo, Mint: mint, Amount: seq}))
	}

	var got []uint64
	for i := 0; i < 3; i++ {
		got = append(got, nextReceipt(t, sub).Seq)
	}
	assert.Equal(t, []uint64{6, 5, 7}, got)
}

func TestSubscriber_FiltersByMint(t *testing.T) {
	tl := newTestLedger(t)
	c := tl.client
	ctx := context.Background()
	auth := newAddr(t)

	first, err := c.CreateMint(ctx, rest.CreateMintRequest{MintAuthority: auth})
	require.NoError(t, err)

	sub, err := c.Subscribe(ctx, domain.Some(first.Mint), nil)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return tl.stream.Len() == 1 }, time.Second, 10*time.Millisecond)

	_, err = c.CreateMint(ctx, rest.CreateMintRequest{MintAuthority: auth})
	require.NoError(t, err)
	a, err := c.CreateAccount(ctx, rest.CreateAccountRequest{Mint: first.Mint, Owner: auth, Associated: true})
	require.NoError(t, err)

	got := nextReceipt(t, sub)
	assert.Equal(t, a.Seq, got.Seq)
	assert.Equal(t, first.Mint, got.Mint)
}

func TestSubscriber_CloseClosesChannel(t *testing.T) {
	tl := newTestLedger(t)

	sub, err := tl.client.Subscribe(context.Background(), domain.None(), nil)
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Receipts()
	assert.False(t, ok)
}

func TestStreamURL(t *testing.T) {
	mint := newAddr(t)

	got, err := streamURL("http://localhost:8080", domain.None())
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/receipts", got)

	got, err = streamURL("https://ledger.example.com/base/", domain.Some(mint))
	require.NoError(t, err)
	assert.Equal(t, "wss://ledger.example.com/base/ws/receipts?mint="+mint.String(), got)
}
