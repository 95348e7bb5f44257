package domain

// OpKind names a ledger operation.
type OpKind string

// Operation kinds recorded in receipts.
const (
	OpCreateMint     OpKind = "create_mint"
	OpCreateAccount  OpKind = "create_account"
	OpMintTo         OpKind = "mint_to"
	OpTransfer       OpKind = "transfer"
	OpBurn           OpKind = "burn"
	OpApprove        OpKind = "approve"
	OpRevoke         OpKind = "revoke"
	OpSetAuthority   OpKind = "set_authority"
	OpFreezeAccount  OpKind = "freeze_account"
	OpThawAccount    OpKind = "thaw_account"
	OpCloseAccount   OpKind = "close_account"
	OpAttachMetadata OpKind = "attach_metadata"
)

// ChangesSupply reports whether receipts of this kind move a mint's supply.
func (k OpKind) ChangesSupply() bool {
	return k == OpMintTo || k == OpBurn || k == OpCreateMint
}

// AuthorityType selects which authority SetAuthority reassigns.
type AuthorityType string

// Authority types.
const (
	AuthorityMintTokens    AuthorityType = "mint_tokens"
	AuthorityFreezeAccount AuthorityType = "freeze_account"
	AuthorityAccountOwner  AuthorityType = "account_owner"
)

// Valid reports whether t is a known authority type.
func (t AuthorityType) Valid() bool {
	switch t {
	case AuthorityMintTokens, AuthorityFreezeAccount, AuthorityAccountOwner:
		return true
	}
	return false
}

// Receipt records one committed ledger operation.
// It carries every parameter needed to re-execute the operation during replay.
// Corresponds to the receipts table in PostgreSQL.
type Receipt struct {
	Seq    uint64  `json:"seq"`   // commit order, strictly increasing
	ID     string  `json:"id"`    // ULID
	Nonce  string  `json:"nonce"` // client idempotency key (may be generated)
	Kind   OpKind  `json:"kind"`
	Caller Address `json:"caller"`
	Mint   Address `json:"mint"`

	Account     *Address `json:"account,omitempty"`
	Destination *Address `json:"destination,omitempty"`
	Owner       *Address `json:"owner,omitempty"`
	Delegate    *Address `json:"delegate,omitempty"`
	Associated  bool     `json:"associated,omitempty"`

	AuthorityType   AuthorityType   `json:"authority_type,omitempty"`
	NewAuthority    OptionalAddress `json:"new_authority"`    // set_authority target, create_mint mint authority
	FreezeAuthority OptionalAddress `json:"freeze_authority"` // create_mint only

	Amount      uint64         `json:"amount,omitempty"`
	Decimals    uint8          `json:"decimals"`
	Metadata    *TokenMetadata `json:"metadata,omitempty"`
	SupplyAfter uint64         `json:"supply_after"` // mint supply after the operation
	CreatedAt   int64          `json:"created_at"`   // unix ms
}

// AddrPtr returns a pointer to a copy of a.
func AddrPtr(a Address) *Address {
	return &a
}
