package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"solana-token-ledger/internal/api/rest"
	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
)

// CreateMint registers a new mint.
func (c *Client) CreateMint(ctx context.Context, req rest.CreateMintRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/mints", req)
}

// CreateAccount registers a token account. For an associated account that
// already exists the returned receipt has Seq 0.
func (c *Client) CreateAccount(ctx context.Context, req rest.CreateAccountRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts", req)
}

// MintTo mints into req.Account.
func (c *Client) MintTo(ctx context.Context, mint domain.Address, req rest.MintToRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/mints/"+escape(mint)+"/mint-to", req)
}

// Transfer moves tokens out of source.
func (c *Client) Transfer(ctx context.Context, source domain.Address, req rest.TransferRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(source)+"/transfer", req)
}

// Burn destroys tokens held by account.
func (c *Client) Burn(ctx context.Context, account domain.Address, req rest.BurnRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/burn", req)
}

// Approve sets the delegate of account.
func (c *Client) Approve(ctx context.Context, account domain.Address, req rest.ApproveRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/approve", req)
}

// Revoke clears the delegate of account.
func (c *Client) Revoke(ctx context.Context, account domain.Address, caller domain.Address) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/revoke", rest.CallerRequest{Caller: caller})
}

// SetAccountOwner transfers ownership of account.
func (c *Client) SetAccountOwner(ctx context.Context, account domain.Address, req rest.SetOwnerRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/authority", req)
}

// SetMintAuthority changes or (with None) revokes a mint-side authority.
func (c *Client) SetMintAuthority(ctx context.Context, mint, caller domain.Address, typ domain.AuthorityType, newAuthority domain.OptionalAddress) (*domain.Receipt, error) {
	raw, err := json.Marshal(newAuthority)
	if err != nil {
		return nil, fmt.Errorf("marshal new authority: %w", err)
	}
	return c.mutate(ctx, "/api/v1/mints/"+escape(mint)+"/authority", rest.SetAuthorityRequest{
		Caller:        caller,
		AuthorityType: typ,
		NewAuthority:  raw,
	})
}

// AttachMetadata sets or replaces the metadata of mint.
func (c *Client) AttachMetadata(ctx context.Context, mint domain.Address, req rest.AttachMetadataRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/mints/"+escape(mint)+"/metadata", req)
}

// FreezeAccount freezes account.
func (c *Client) FreezeAccount(ctx context.Context, account domain.Address, req rest.FreezeRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/freeze", req)
}

// ThawAccount thaws account.
func (c *Client) ThawAccount(ctx context.Context, account domain.Address, req rest.FreezeRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/thaw", req)
}

// CloseAccount closes an empty account.
func (c *Client) CloseAccount(ctx context.Context, account domain.Address, req rest.CloseAccountRequest) (*domain.Receipt, error) {
	return c.mutate(ctx, "/api/v1/accounts/"+escape(account)+"/close", req)
}

// GetMint returns mint info.
func (c *Client) GetMint(ctx context.Context, mint domain.Address) (*domain.MintInfo, error) {
	var info domain.MintInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/mints/"+escape(mint), "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Audit runs the supply audit of mint.
func (c *Client) Audit(ctx context.Context, mint domain.Address) (*ledger.SupplyAudit, error) {
	var audit ledger.SupplyAudit
	if err := c.do(ctx, http.MethodGet, "/api/v1/mints/"+escape(mint)+"/audit", "", nil, &audit); err != nil {
		return nil, err
	}
	return &audit, nil
}

// GetAccount returns account info.
func (c *Client) GetAccount(ctx context.Context, account domain.Address) (*domain.AccountInfo, error) {
	var info domain.AccountInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+escape(account), "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetBalance returns the balance of account.
func (c *Client) GetBalance(ctx context.Context, account domain.Address) (*rest.BalanceResponse, error) {
	var bal rest.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+escape(account)+"/balance", "", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// AccountsByOwner lists the accounts held by owner.
func (c *Client) AccountsByOwner(ctx context.Context, owner domain.Address) ([]*domain.AccountInfo, error) {
	var resp rest.AccountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/owners/"+escape(owner)+"/accounts", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// Receipt fetches a journaled receipt by id.
func (c *Client) Receipt(ctx context.Context, id string) (*domain.Receipt, error) {
	var r domain.Receipt
	if err := c.do(ctx, http.MethodGet, "/api/v1/receipts/"+url.PathEscape(id), "", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Health returns the server's current ledger sequence.
func (c *Client) Health(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &raw); err != nil {
		return 0, err
	}
	if status := gjson.GetBytes(raw, "status").String(); status != "ok" {
		return 0, fmt.Errorf("server status %q", status)
	}
	return gjson.GetBytes(raw, "sequence").Uint(), nil
}
