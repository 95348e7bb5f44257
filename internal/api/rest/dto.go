package rest

import (
	"encoding/json"
	"fmt"

	"solana-token-ledger/internal/domain"
)

// CreateMintRequest is the body of POST /api/v1/mints.
type CreateMintRequest struct {
	Mint            *domain.Address        `json:"mint,omitempty"` // omitted: generated
	Payer           *domain.Address        `json:"payer,omitempty"`
	MintAuthority   domain.Address         `json:"mint_authority"`
	FreezeAuthority domain.OptionalAddress `json:"freeze_authority"`
	Decimals        int                    `json:"decimals"`
}

// Validate checks required fields
func (r *CreateMintRequest) Validate() error {
	return required("mint_authority", r.MintAuthority)
}

// SetAuthorityRequest is the body of the authority endpoints.
// NewAuthority must be present; JSON null revokes a mint-side authority.
type SetAuthorityRequest struct {
	Caller        domain.Address       `json:"caller"`
	AuthorityType domain.AuthorityType `json:"authority_type"`
	NewAuthority  json.RawMessage      `json:"new_authority"`
}

// Validate checks required fields
func (r *SetAuthorityRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	if len(r.NewAuthority) == 0 {
		return fmt.Errorf("new_authority is required (null to revoke)")
	}
	return nil
}

// Authority decodes NewAuthority.
func (r *SetAuthorityRequest) Authority() (domain.OptionalAddress, error) {
	var o domain.OptionalAddress
	if err := json.Unmarshal(r.NewAuthority, &o); err != nil {
		return domain.None(), fmt.Errorf("new_authority: %w", err)
	}
	return o, nil
}

// AttachMetadataRequest is the body of POST /api/v1/mints/:mint/metadata.
type AttachMetadataRequest struct {
	Caller domain.Address `json:"caller"`
	Name   string         `json:"name"`
	Symbol string         `json:"symbol"`
	URI    string         `json:"uri"`
}

// Validate checks required fields
func (r *AttachMetadataRequest) Validate() error {
	return required("caller", r.Caller)
}

// AmountRequest carries an amount either in base units or as a UI amount
// scaled by the mint's decimals. Exactly one may be set.
type AmountRequest struct {
	Amount   uint64 `json:"amount,omitempty"`
	UIAmount string `json:"ui_amount,omitempty"`
}

// Resolve returns the amount in base units.
func (r *AmountRequest) Resolve(decimals uint8) (uint64, error) {
	if r.UIAmount == "" {
		return r.Amount, nil
	}
	if r.Amount != 0 {
		return 0, fmt.Errorf("set either amount or ui_amount, not both")
	}
	return domain.ParseUIAmount(r.UIAmount, decimals)
}

// MintToRequest is the body of POST /api/v1/mints/:mint/mint-to.
type MintToRequest struct {
	AmountRequest
	Caller  domain.Address `json:"caller"`
	Account domain.Address `json:"account"`
}

// Validate checks required fields
func (r *MintToRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	return required("account", r.Account)
}

// CreateAccountRequest is the body of POST /api/v1/accounts.
type CreateAccountRequest struct {
	Mint       domain.Address  `json:"mint"`
	Owner      domain.Address  `json:"owner"`
	Payer      *domain.Address `json:"payer,omitempty"`
	Account    *domain.Address `json:"account,omitempty"` // explicit variant only
	Associated bool            `json:"associated"`
}

// Validate checks required fields
func (r *CreateAccountRequest) Validate() error {
	if err := required("mint", r.Mint); err != nil {
		return err
	}
	if err := required("owner", r.Owner); err != nil {
		return err
	}
	if r.Associated && r.Account != nil {
		return fmt.Errorf("account cannot be chosen for an associated account")
	}
	return nil
}

// TransferRequest is the body of POST /api/v1/accounts/:account/transfer.
type TransferRequest struct {
	AmountRequest
	Caller      domain.Address `json:"caller"`
	Destination domain.Address `json:"destination"`
}

// Validate checks required fields
func (r *TransferRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	return required("destination", r.Destination)
}

// BurnRequest is the body of POST /api/v1/accounts/:account/burn.
type BurnRequest struct {
	AmountRequest
	Caller domain.Address  `json:"caller"`
	Mint   *domain.Address `json:"mint,omitempty"` // omitted: the account's mint
}

// Validate checks required fields
func (r *BurnRequest) Validate() error {
	return required("caller", r.Caller)
}

// ApproveRequest is the body of POST /api/v1/accounts/:account/approve.
type ApproveRequest struct {
	AmountRequest
	Caller   domain.Address `json:"caller"`
	Delegate domain.Address `json:"delegate"`
}

// Validate checks required fields
func (r *ApproveRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	return required("delegate", r.Delegate)
}

// CallerRequest is the body of endpoints that only need a caller (revoke).
type CallerRequest struct {
	Caller domain.Address `json:"caller"`
}

// Validate checks required fields
func (r *CallerRequest) Validate() error {
	return required("caller", r.Caller)
}

// SetOwnerRequest is the body of POST /api/v1/accounts/:account/authority.
type SetOwnerRequest struct {
	Caller   domain.Address `json:"caller"`
	NewOwner domain.Address `json:"new_owner"`
}

// Validate checks required fields
func (r *SetOwnerRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	return required("new_owner", r.NewOwner)
}

// FreezeRequest is the body of the freeze and thaw endpoints.
type FreezeRequest struct {
	Caller domain.Address  `json:"caller"`
	Mint   *domain.Address `json:"mint,omitempty"` // omitted: the account's mint
}

// Validate checks required fields
func (r *FreezeRequest) Validate() error {
	return required("caller", r.Caller)
}

// CloseAccountRequest is the body of POST /api/v1/accounts/:account/close.
type CloseAccountRequest struct {
	Caller      domain.Address `json:"caller"`
	Destination domain.Address `json:"destination"`
}

// Validate checks required fields
func (r *CloseAccountRequest) Validate() error {
	if err := required("caller", r.Caller); err != nil {
		return err
	}
	return required("destination", r.Destination)
}

// BalanceResponse is the body of GET /api/v1/accounts/:account/balance.
type BalanceResponse struct {
	Account  domain.Address `json:"account"`
	Amount   uint64         `json:"amount"`
	UIAmount string         `json:"ui_amount"`
	Decimals uint8          `json:"decimals"`
}

// AccountsResponse is the body of GET /api/v1/owners/:owner/accounts.
type AccountsResponse struct {
	Owner    domain.Address        `json:"owner"`
	Accounts []*domain.AccountInfo `json:"accounts"`
}

func required(name string, a domain.Address) error {
	if a.IsZero() {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func derefOr(p *domain.Address, def domain.Address) domain.Address {
	if p == nil {
		return def
	}
	return *p
}
