package main

import (
	"context"
	"fmt"

	"solana-token-ledger/internal/api/rest"
	"solana-token-ledger/internal/client"
	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/identity"
)

const (
	transferAmount = 500
	burnAmount     = 100
	approveAmount  = 100
)

type demo struct {
	client *client.Client
	payer  domain.Address
}

func show(label string, r *domain.Receipt) {
	fmt.Printf("%-28s seq=%-6d id=%s nonce=%s\n", label, r.Seq, r.ID, r.Nonce)
}

func (d *demo) walkthrough(ctx context.Context, decimals int, mintAmount uint64) error {
	mintAuthority, err := identity.NewKeypair()
	if err != nil {
		return err
	}

	m, err := d.client.CreateMint(ctx, rest.CreateMintRequest{
		Payer:         &d.payer,
		MintAuthority: mintAuthority.Address(),
		Decimals:      decimals,
	})
	if err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	mint := m.Mint
	fmt.Println(mint)

	tokenKeypair, err := identity.NewKeypair()
	if err != nil {
		return err
	}
	fmt.Println(tokenKeypair.Address())

	explicit, err := d.client.CreateAccount(ctx, rest.CreateAccountRequest{
		Mint:    mint,
		Owner:   d.payer,
		Payer:   &d.payer,
		Account: domain.AddrPtr(tokenKeypair.Address()),
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	tokenAccount := *explicit.Account
	fmt.Println(tokenAccount)

	ata, err := d.client.CreateAccount(ctx, rest.CreateAccountRequest{
		Mint:       mint,
		Owner:      d.payer,
		Payer:      &d.payer,
		Associated: true,
	})
	if err != nil {
		return fmt.Errorf("create associated account: %w", err)
	}
	associated := *ata.Account
	fmt.Println(associated)

	// get-or-create returns the same address without a new receipt
	again, err := d.client.CreateAccount(ctx, rest.CreateAccountRequest{
		Mint:       mint,
		Owner:      d.payer,
		Payer:      &d.payer,
		Associated: true,
	})
	if err != nil {
		return fmt.Errorf("get or create associated account: %w", err)
	}
	fmt.Println(*again.Account)

	r, err := d.client.MintTo(ctx, mint, rest.MintToRequest{
		AmountRequest: rest.AmountRequest{Amount: mintAmount},
		Caller:        mintAuthority.Address(),
		Account:       associated,
	})
	if err != nil {
		return fmt.Errorf("mint to: %w", err)
	}
	show("mint_to", r)

	bal, err := d.client.GetBalance(ctx, associated)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	fmt.Println(bal.Amount)

	receiver, err := identity.NewAddress()
	if err != nil {
		return err
	}
	recv, err := d.client.CreateAccount(ctx, rest.CreateAccountRequest{
		Mint:       mint,
		Owner:      receiver,
		Payer:      &d.payer,
		Associated: true,
	})
	if err != nil {
		return fmt.Errorf("create receiver account: %w", err)
	}

	r, err = d.client.Transfer(ctx, associated, rest.TransferRequest{
		AmountRequest: rest.AmountRequest{Amount: transferAmount},
		Caller:        d.payer,
		Destination:   *recv.Account,
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	show("transfer", r)

	r, err = d.client.Burn(ctx, associated, rest.BurnRequest{
		AmountRequest: rest.AmountRequest{Amount: burnAmount},
		Caller:        d.payer,
		Mint:          &mint,
	})
	if err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	show("burn", r)

	delegate, err := identity.NewAddress()
	if err != nil {
		return err
	}
	r, err = d.client.Approve(ctx, associated, rest.ApproveRequest{
		AmountRequest: rest.AmountRequest{Amount: approveAmount},
		Caller:        d.payer,
		Delegate:      delegate,
	})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	show("approve", r)

	newOwner, err := identity.NewAddress()
	if err != nil {
		return err
	}
	r, err = d.client.SetAccountOwner(ctx, tokenAccount, rest.SetOwnerRequest{
		Caller:   d.payer,
		NewOwner: newOwner,
	})
	if err != nil {
		return fmt.Errorf("set account owner: %w", err)
	}
	show("set_authority", r)

	audit, err := d.client.Audit(ctx, mint)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	fmt.Printf("supply=%d balances=%d accounts=%d ok=%t\n", audit.Supply, audit.BalanceSum, audit.Accounts, audit.OK)
	return nil
}

// createFixedSupplyToken mints totalSupply to the payer's associated account
// and revokes the mint authority, so the supply can never grow.
func (d *demo) createFixedSupplyToken(ctx context.Context, totalSupply uint64) error {
	mintAuthority, err := identity.NewKeypair()
	if err != nil {
		return err
	}

	m, err := d.client.CreateMint(ctx, rest.CreateMintRequest{
		Payer:         &d.payer,
		MintAuthority: mintAuthority.Address(),
		Decimals:      9,
	})
	if err != nil {
		return fmt.Errorf("create mint: %w", err)
	}
	mint := m.Mint
	fmt.Println("Our token address is:", mint)

	info, err := d.client.GetMint(ctx, mint)
	if err != nil {
		return fmt.Errorf("get mint: %w", err)
	}
	fmt.Println("The initial supply of tokens is:", info.Supply)

	ata, err := d.client.CreateAccount(ctx, rest.CreateAccountRequest{
		Mint:       mint,
		Owner:      d.payer,
		Payer:      &d.payer,
		Associated: true,
	})
	if err != nil {
		return fmt.Errorf("get or create associated account: %w", err)
	}
	account := *ata.Account
	fmt.Println("Our new associated token account is:", account)

	_, err = d.client.MintTo(ctx, mint, rest.MintToRequest{
		AmountRequest: rest.AmountRequest{Amount: totalSupply},
		Caller:        mintAuthority.Address(),
		Account:       account,
	})
	if err != nil {
		return fmt.Errorf("mint total supply: %w", err)
	}

	acct, err := d.client.GetAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	info, err = d.client.GetMint(ctx, mint)
	if err != nil {
		return fmt.Errorf("get mint: %w", err)
	}
	fmt.Printf("The associated account %s now has %s tokens\n", account, acct.UIAmount)
	fmt.Printf("The total supply of %s is now %s\n", mint, info.UISupply)

	_, err = d.client.SetMintAuthority(ctx, mint, mintAuthority.Address(), domain.AuthorityMintTokens, domain.None())
	if err != nil {
		return fmt.Errorf("revoke mint authority: %w", err)
	}
	fmt.Println("Mint authority revoked; supply is fixed")
	return nil
}
