package memory

import (
	"context"
	"errors"
	"testing"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

var (
	testMintA = domain.MustParseAddress("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testMintB = domain.MustParseAddress("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	testOwner = domain.MustParseAddress("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func receipt(seq uint64, id, nonce string, mint domain.Address, kind domain.OpKind) *domain.Receipt {
	return &domain.Receipt{
		Seq:       seq,
		ID:        id,
		Nonce:     nonce,
		Kind:      kind,
		Caller:    testOwner,
		Mint:      mint,
		Amount:    seq * 10,
		CreatedAt: int64(seq) * 1000,
	}
}

func TestReceiptStore_InsertAndGet(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	r := receipt(1, "id1", "nonce1", testMintA, domain.OpAttachMetadata)
	r.Metadata = &domain.TokenMetadata{Name: "Token", Symbol: "TKN", UpdateAuthority: testOwner}

	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "id1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Metadata == nil || got.Metadata.Name != "Token" {
		t.Errorf("Metadata mismatch: got %+v", got.Metadata)
	}

	// stored copy is independent of the caller's value
	r.Metadata.Name = "changed"
	got, err = store.GetByNonce(ctx, "nonce1")
	if err != nil {
		t.Fatalf("GetByNonce failed: %v", err)
	}
	if got.Metadata.Name != "Token" {
		t.Errorf("stored receipt was mutated: %q", got.Metadata.Name)
	}
}

func TestReceiptStore_DuplicateKey(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, receipt(1, "id1", "nonce1", testMintA, domain.OpMintTo)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dups := []*domain.Receipt{
		receipt(1, "id2", "nonce2", testMintA, domain.OpMintTo),
		receipt(2, "id1", "nonce2", testMintA, domain.OpMintTo),
		receipt(2, "id2", "nonce1", testMintA, domain.OpMintTo),
	}
	for _, r := range dups {
		if err := store.Insert(ctx, r); !errors.Is(err, storage.ErrDuplicateKey) {
			t.Errorf("Expected ErrDuplicateKey for %+v, got %v", r, err)
		}
	}
}

func TestReceiptStore_InvalidInput(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, receipt(0, "id", "n", testMintA, domain.OpMintTo)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for seq 0, got %v", err)
	}
}

func TestReceiptStore_NotFound(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByNonce(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReceiptStore_RangeAndMint(t *testing.T) {
	store := NewReceiptStore()
	ctx := context.Background()

	// inserted out of order
	for _, r := range []*domain.Receipt{
		receipt(3, "id3", "n3", testMintA, domain.OpBurn),
		receipt(1, "id1", "n1", testMintA, domain.OpCreateMint),
		receipt(2, "id2", "n2", testMintB, domain.OpCreateMint),
		receipt(4, "id4", "n4", testMintA, domain.OpMintTo),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	last, err := store.LastSequence(ctx)
	if err != nil {
		t.Fatalf("LastSequence failed: %v", err)
	}
	if last != 4 {
		t.Errorf("LastSequence: got %d, want 4", last)
	}

	all, err := store.GetRange(ctx, 0, 0)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 receipts, got %d", len(all))
	}
	for i, r := range all {
		if r.Seq != uint64(i+1) {
			t.Errorf("Position %d: got seq %d", i, r.Seq)
		}
	}

	page, err := store.GetRange(ctx, 2, 2)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 2 || page[1].Seq != 3 {
		t.Errorf("Unexpected page: %+v", page)
	}

	byMint, err := store.GetByMint(ctx, testMintA.String())
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(byMint) != 3 || byMint[0].Seq != 1 || byMint[2].Seq != 4 {
		t.Errorf("Unexpected mint receipts: %+v", byMint)
	}
}

func TestReceiptStore_EmptyLastSequence(t *testing.T) {
	store := NewReceiptStore()

	last, err := store.LastSequence(context.Background())
	if err != nil {
		t.Fatalf("LastSequence failed: %v", err)
	}
	if last != 0 {
		t.Errorf("Expected 0, got %d", last)
	}
}
