package domain

// Mint is the issuer record of a fungible token.
type Mint struct {
	Address         Address         // mint address (unique)
	Decimals        uint8           // fixed at creation
	MintAuthority   OptionalAddress // None: minting permanently disabled
	FreezeAuthority OptionalAddress // None: accounts cannot be frozen
	Supply          uint64          // sum of all account balances under this mint
	Metadata        *TokenMetadata  // attached metadata (nullable)
	CreatedSeq      uint64          // receipt sequence that created the mint
}

// TokenMetadata is on-ledger descriptive data attached to a mint.
type TokenMetadata struct {
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	URI             string  `json:"uri"`
	UpdateAuthority Address `json:"update_authority"`
}

// Metadata field limits, matching the token metadata program.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// MintInfo is the read model returned by mint queries.
type MintInfo struct {
	Address         Address         `json:"address"`
	Decimals        uint8           `json:"decimals"`
	Supply          uint64          `json:"supply"`
	UISupply        string          `json:"ui_supply"`
	MintAuthority   OptionalAddress `json:"mint_authority"`
	FreezeAuthority OptionalAddress `json:"freeze_authority"`
	Metadata        *TokenMetadata  `json:"metadata,omitempty"`
}

// Info builds the read model for m.
func (m *Mint) Info() *MintInfo {
	info := &MintInfo{
		Address:         m.Address,
		Decimals:        m.Decimals,
		Supply:          m.Supply,
		UISupply:        UIAmount(m.Supply, m.Decimals),
		MintAuthority:   m.MintAuthority,
		FreezeAuthority: m.FreezeAuthority,
	}
	if m.Metadata != nil {
		md := *m.Metadata
		info.Metadata = &md
	}
	return info
}
