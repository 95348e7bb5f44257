package domain

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Address         Address
	Mint            Address // immutable
	Owner           Address
	Amount          uint64
	Delegate        OptionalAddress
	DelegatedAmount uint64
	Frozen          bool
	Associated      bool // address derived from (owner, mint)
	CreatedSeq      uint64
}

// AccountInfo is the read model returned by account queries.
type AccountInfo struct {
	Address         Address         `json:"address"`
	Mint            Address         `json:"mint"`
	Owner           Address         `json:"owner"`
	Amount          uint64          `json:"amount"`
	UIAmount        string          `json:"ui_amount"`
	Decimals        uint8           `json:"decimals"`
	Delegate        OptionalAddress `json:"delegate"`
	DelegatedAmount uint64          `json:"delegated_amount"`
	Frozen          bool            `json:"frozen"`
	Associated      bool            `json:"associated"`
}

// Info builds the read model for a, scaled by the mint's decimals.
func (a *TokenAccount) Info(decimals uint8) *AccountInfo {
	return &AccountInfo{
		Address:         a.Address,
		Mint:            a.Mint,
		Owner:           a.Owner,
		Amount:          a.Amount,
		UIAmount:        UIAmount(a.Amount, decimals),
		Decimals:        decimals,
		Delegate:        a.Delegate,
		DelegatedAmount: a.DelegatedAmount,
		Frozen:          a.Frozen,
		Associated:      a.Associated,
	}
}
