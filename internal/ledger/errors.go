package ledger

import "errors"

// Ledger errors. Every operation fails with exactly one of these (possibly
// wrapped with context) and leaves no partial state behind.
var (
	// ErrUnauthorized is returned when the caller is not the required authority.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientFunds is returned when a balance or delegated allowance is too small.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrFrozenAccount is returned when an involved account is frozen.
	ErrFrozenAccount = errors.New("account is frozen")

	// ErrMintMismatch is returned when accounts or mint belong to different mints.
	ErrMintMismatch = errors.New("mint mismatch")

	// ErrNonZeroBalance is returned when closing an account that still holds tokens.
	ErrNonZeroBalance = errors.New("account has non-zero balance")

	// ErrMintAuthorityRevoked is returned when the mint authority has been set to none.
	ErrMintAuthorityRevoked = errors.New("mint authority revoked")

	// ErrNoFreezeAuthority is returned when the mint has no freeze authority.
	ErrNoFreezeAuthority = errors.New("mint has no freeze authority")

	// ErrNotFound is returned for unknown mint or account ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned for zero amounts where a positive amount is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidArgument is returned for malformed parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an account is already in the requested state.
	ErrInvalidState = errors.New("invalid account state")

	// ErrAlreadyExists is returned when a chosen mint or account address is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrOverflow is returned when a supply would exceed the uint64 range.
	ErrOverflow = errors.New("amount overflow")

	// ErrNonceReused is returned when a nonce is replayed for a different operation.
	ErrNonceReused = errors.New("nonce reused for a different operation")
)

// Wire codes for each error kind.
const (
	CodeUnauthorized         = "unauthorized"
	CodeInsufficientFunds    = "insufficient_funds"
	CodeFrozenAccount        = "frozen_account"
	CodeMintMismatch         = "mint_mismatch"
	CodeNonZeroBalance       = "non_zero_balance"
	CodeMintAuthorityRevoked = "mint_authority_revoked"
	CodeNoFreezeAuthority    = "no_freeze_authority"
	CodeNotFound             = "not_found"
	CodeInvalidAmount        = "invalid_amount"
	CodeInvalidArgument      = "invalid_argument"
	CodeInvalidState         = "invalid_state"
	CodeAlreadyExists        = "already_exists"
	CodeOverflow             = "overflow"
	CodeNonceReused          = "nonce_reused"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrFrozenAccount, CodeFrozenAccount},
	{ErrMintMismatch, CodeMintMismatch},
	{ErrNonZeroBalance, CodeNonZeroBalance},
	{ErrMintAuthorityRevoked, CodeMintAuthorityRevoked},
	{ErrNoFreezeAuthority, CodeNoFreezeAuthority},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrInvalidState, CodeInvalidState},
	{ErrAlreadyExists, CodeAlreadyExists},
	{ErrOverflow, CodeOverflow},
	{ErrNonceReused, CodeNonceReused},
}

// Code returns the wire code for a ledger error, or "" if err is not one.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// FromCode returns the sentinel error for a wire code, or nil if unknown.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
