package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
// uint64 amounts are stored as NUMERIC(20,0) and exchanged as text.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

const receiptColumns = `
	seq, id, nonce, kind, caller, mint,
	account, destination, owner, delegate, associated,
	authority_type, new_authority, freeze_authority,
	amount::text, decimals, metadata, supply_after::text, created_at
`

// Insert appends a receipt. Returns ErrDuplicateKey if seq, id or nonce exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.Receipt) error {
	if r == nil || r.Seq == 0 || r.ID == "" || r.Nonce == "" || r.Kind == "" {
		return storage.ErrInvalidInput
	}

	var metadata any
	if r.Metadata != nil {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode receipt metadata: %w", err)
		}
		metadata = b
	}

	query := `
		INSERT INTO receipts (
			seq, id, nonce, kind, caller, mint,
			account, destination, owner, delegate, associated,
			authority_type, new_authority, freeze_authority,
			amount, decimals, metadata, supply_after, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			CAST($15::text AS NUMERIC), $16, $17, CAST($18::text AS NUMERIC), $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		int64(r.Seq), r.ID, r.Nonce, string(r.Kind), r.Caller.String(), r.Mint.String(),
		addrText(r.Account), addrText(r.Destination), addrText(r.Owner), addrText(r.Delegate), r.Associated,
		nullableText(string(r.AuthorityType)), addrText(r.NewAuthority.Ptr()), addrText(r.FreezeAuthority.Ptr()),
		strconv.FormatUint(r.Amount, 10), int16(r.Decimals), metadata, strconv.FormatUint(r.SupplyAfter, 10), r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByID(ctx context.Context, id string) (*domain.Receipt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id)
	r, err := scanReceipt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt by id: %w", err)
	}
	return r, nil
}

// GetByNonce retrieves a receipt by its client nonce. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByNonce(ctx context.Context, nonce string) (*domain.Receipt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE nonce = $1`, nonce)
	r, err := scanReceipt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt by nonce: %w", err)
	}
	return r, nil
}

// GetRange retrieves up to limit receipts with seq >= fromSeq, ordered by seq ASC.
func (s *ReceiptStore) GetRange(ctx context.Context, fromSeq uint64, limit int) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE seq >= $1 ORDER BY seq ASC`
	args := []any{int64(fromSeq)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get receipt range: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// GetByMint retrieves all receipts for a mint, ordered by seq ASC.
func (s *ReceiptStore) GetByMint(ctx context.Context, mint string) ([]*domain.Receipt, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE mint = $1 ORDER BY seq ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("get receipts by mint: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// LastSequence returns the highest stored seq, or 0 for an empty journal.
func (s *ReceiptStore) LastSequence(ctx context.Context) (uint64, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM receipts`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last sequence: %w", err)
	}
	return uint64(seq), nil
}

// scanReceipt scans a single row into a Receipt.
func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var (
		r                                     domain.Receipt
		seq                                   int64
		kind, caller, mint                    string
		account, destination, owner, delegate *string
		authorityType                         *string
		newAuthority, freezeAuthority         *string
		amount, supplyAfter                   string
		decimals                              int16
		metadata                              []byte
	)

	err := row.Scan(
		&seq, &r.ID, &r.Nonce, &kind, &caller, &mint,
		&account, &destination, &owner, &delegate, &r.Associated,
		&authorityType, &newAuthority, &freezeAuthority,
		&amount, &decimals, &metadata, &supplyAfter, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Seq = uint64(seq)
	r.Kind = domain.OpKind(kind)
	r.Decimals = uint8(decimals)
	if authorityType != nil {
		r.AuthorityType = domain.AuthorityType(*authorityType)
	}

	if r.Caller, err = domain.ParseAddress(caller); err != nil {
		return nil, fmt.Errorf("receipt %s caller: %w", r.ID, err)
	}
	if r.Mint, err = domain.ParseAddress(mint); err != nil {
		return nil, fmt.Errorf("receipt %s mint: %w", r.ID, err)
	}
	for _, f := range []struct {
		src *string
		dst **domain.Address
	}{
		{account, &r.Account},
		{destination, &r.Destination},
		{owner, &r.Owner},
		{delegate, &r.Delegate},
	} {
		if *f.dst, err = parseAddrText(f.src); err != nil {
			return nil, fmt.Errorf("receipt %s: %w", r.ID, err)
		}
	}

	na, err := parseAddrText(newAuthority)
	if err != nil {
		return nil, fmt.Errorf("receipt %s new authority: %w", r.ID, err)
	}
	r.NewAuthority = domain.OptionalFromPtr(na)
	fa, err := parseAddrText(freezeAuthority)
	if err != nil {
		return nil, fmt.Errorf("receipt %s freeze authority: %w", r.ID, err)
	}
	r.FreezeAuthority = domain.OptionalFromPtr(fa)

	if r.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
		return nil, fmt.Errorf("receipt %s amount: %w", r.ID, err)
	}
	if r.SupplyAfter, err = strconv.ParseUint(supplyAfter, 10, 64); err != nil {
		return nil, fmt.Errorf("receipt %s supply: %w", r.ID, err)
	}

	if len(metadata) > 0 {
		var md domain.TokenMetadata
		if err := json.Unmarshal(metadata, &md); err != nil {
			return nil, fmt.Errorf("receipt %s metadata: %w", r.ID, err)
		}
		r.Metadata = &md
	}

	return &r, nil
}

// scanReceipts scans multiple rows into a slice of Receipt.
func scanReceipts(rows pgx.Rows) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt

	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipt rows: %w", err)
	}

	return receipts, nil
}

func addrText(a *domain.Address) *string {
	if a == nil {
		return nil
	}
	s := a.String()
	return &s
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseAddrText(s *string) (*domain.Address, error) {
	if s == nil {
		return nil, nil
	}
	a, err := domain.ParseAddress(*s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
