package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/service"
)

// IdempotencyHeader carries the client operation nonce.
const IdempotencyHeader = "Idempotency-Key"

// Handler defines the REST API handlers
type Handler interface {
	// POST /api/v1/mints
	CreateMint(c *gin.Context)
	// GET /api/v1/mints/:mint
	GetMint(c *gin.Context)
	// GET /api/v1/mints/:mint/audit
	AuditMint(c *gin.Context)
	// POST /api/v1/mints/:mint/authority
	SetMintAuthority(c *gin.Context)
	// POST /api/v1/mints/:mint/metadata
	AttachMetadata(c *gin.Context)
	// POST /api/v1/mints/:mint/mint-to
	MintTo(c *gin.Context)

	// POST /api/v1/accounts
	CreateAccount(c *gin.Context)
	// GET /api/v1/accounts/:account
	GetAccount(c *gin.Context)
	// GET /api/v1/accounts/:account/balance
	GetBalance(c *gin.Context)
	// POST /api/v1/accounts/:account/transfer
	Transfer(c *gin.Context)
	// POST /api/v1/accounts/:account/burn
	Burn(c *gin.Context)
	// POST /api/v1/accounts/:account/approve
	Approve(c *gin.Context)
	// POST /api/v1/accounts/:account/revoke
	Revoke(c *gin.Context)
	// POST /api/v1/accounts/:account/authority
	SetAccountOwner(c *gin.Context)
	// POST /api/v1/accounts/:account/freeze
	FreezeAccount(c *gin.Context)
	// POST /api/v1/accounts/:account/thaw
	ThawAccount(c *gin.Context)
	// POST /api/v1/accounts/:account/close
	CloseAccount(c *gin.Context)

	// GET /api/v1/owners/:owner/accounts
	AccountsByOwner(c *gin.Context)
	// GET /api/v1/receipts/:id
	GetReceipt(c *gin.Context)

	// GET /health
	HealthCheck(c *gin.Context)
}

type handler struct {
	svc *service.Service
}

// NewHandler creates the REST handler over svc.
func NewHandler(svc *service.Service) Handler {
	return &handler{svc: svc}
}

// validator is implemented by every request DTO.
type validator interface {
	Validate() error
}

// bind decodes and validates the JSON body. It writes the error response
// and returns false on failure.
func bind(c *gin.Context, req validator) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondInvalid(c, err.Error())
		return false
	}
	if err := req.Validate(); err != nil {
		respondInvalid(c, err.Error())
		return false
	}
	return true
}

// pathAddress parses the named path parameter.
func pathAddress(c *gin.Context, name string) (domain.Address, bool) {
	a, err := domain.ParseAddress(c.Param(name))
	if err != nil {
		respondInvalid(c, name+": "+err.Error())
		return a, false
	}
	return a, true
}

func nonce(c *gin.Context) string {
	return c.GetHeader(IdempotencyHeader)
}

// respondReceipt writes a mutation result.
func respondReceipt(c *gin.Context, status int, r *domain.Receipt, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, r)
}

func (h *handler) CreateMint(c *gin.Context) {
	var req CreateMintRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.CreateMint(c.Request.Context(), ledger.CreateMintParams{
		Nonce:           nonce(c),
		Payer:           derefOr(req.Payer, domain.Address{}),
		Mint:            derefOr(req.Mint, domain.Address{}),
		MintAuthority:   req.MintAuthority,
		FreezeAuthority: req.FreezeAuthority,
		Decimals:        req.Decimals,
	})
	respondReceipt(c, http.StatusCreated, r, err)
}

func (h *handler) GetMint(c *gin.Context) {
	mint, ok := pathAddress(c, "mint")
	if !ok {
		return
	}
	info, err := h.svc.GetMintInfo(mint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) AuditMint(c *gin.Context) {
	mint, ok := pathAddress(c, "mint")
	if !ok {
		return
	}
	audit, err := h.svc.Audit(mint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (h *handler) SetMintAuthority(c *gin.Context) {
	mint, ok := pathAddress(c, "mint")
	if !ok {
		return
	}
	var req SetAuthorityRequest
	if !bind(c, &req) {
		return
	}
	switch req.AuthorityType {
	case domain.AuthorityMintTokens, domain.AuthorityFreezeAccount:
	default:
		respondInvalid(c, "authority_type must be mint_tokens or freeze_account")
		return
	}
	newAuthority, err := req.Authority()
	if err != nil {
		respondInvalid(c, err.Error())
		return
	}

	r, err := h.svc.SetAuthority(c.Request.Context(), ledger.SetAuthorityParams{
		Nonce:        nonce(c),
		Target:       mint,
		Caller:       req.Caller,
		Type:         req.AuthorityType,
		NewAuthority: newAuthority,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) AttachMetadata(c *gin.Context) {
	mint, ok := pathAddress(c, "mint")
	if !ok {
		return
	}
	var req AttachMetadataRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.AttachMetadata(c.Request.Context(), ledger.AttachMetadataParams{
		Nonce:  nonce(c),
		Mint:   mint,
		Caller: req.Caller,
		Name:   req.Name,
		Symbol: req.Symbol,
		URI:    req.URI,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) MintTo(c *gin.Context) {
	mint, ok := pathAddress(c, "mint")
	if !ok {
		return
	}
	var req MintToRequest
	if !bind(c, &req) {
		return
	}
	amount, ok := h.resolveMintAmount(c, &req.AmountRequest, mint)
	if !ok {
		return
	}

	r, err := h.svc.MintTo(c.Request.Context(), ledger.MintToParams{
		Nonce:   nonce(c),
		Mint:    mint,
		Account: req.Account,
		Caller:  req.Caller,
		Amount:  amount,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.CreateAccount(c.Request.Context(), ledger.CreateAccountParams{
		Nonce:      nonce(c),
		Payer:      derefOr(req.Payer, domain.Address{}),
		Mint:       req.Mint,
		Owner:      req.Owner,
		Account:    derefOr(req.Account, domain.Address{}),
		Associated: req.Associated,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if r.Seq == 0 {
		status = http.StatusOK // associated account already existed
	}
	c.JSON(status, r)
}

func (h *handler) GetAccount(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	info, err := h.svc.GetAccount(account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) GetBalance(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	info, err := h.svc.GetAccount(account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Account:  info.Address,
		Amount:   info.Amount,
		UIAmount: info.UIAmount,
		Decimals: info.Decimals,
	})
}

func (h *handler) Transfer(c *gin.Context) {
	source, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req TransferRequest
	if !bind(c, &req) {
		return
	}
	amount, ok := h.resolveAccountAmount(c, &req.AmountRequest, source)
	if !ok {
		return
	}

	r, err := h.svc.Transfer(c.Request.Context(), ledger.TransferParams{
		Nonce:       nonce(c),
		Source:      source,
		Destination: req.Destination,
		Caller:      req.Caller,
		Amount:      amount,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) Burn(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req BurnRequest
	if !bind(c, &req) {
		return
	}
	info, err := h.svc.GetAccount(account)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := req.Resolve(info.Decimals)
	if err != nil {
		respondInvalid(c, err.Error())
		return
	}

	r, err := h.svc.Burn(c.Request.Context(), ledger.BurnParams{
		Nonce:   nonce(c),
		Account: account,
		Mint:    derefOr(req.Mint, info.Mint),
		Caller:  req.Caller,
		Amount:  amount,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) Approve(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req ApproveRequest
	if !bind(c, &req) {
		return
	}
	amount, ok := h.resolveAccountAmount(c, &req.AmountRequest, account)
	if !ok {
		return
	}

	r, err := h.svc.Approve(c.Request.Context(), ledger.ApproveParams{
		Nonce:    nonce(c),
		Account:  account,
		Caller:   req.Caller,
		Delegate: req.Delegate,
		Amount:   amount,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) Revoke(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req CallerRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.Revoke(c.Request.Context(), ledger.RevokeParams{
		Nonce:   nonce(c),
		Account: account,
		Caller:  req.Caller,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) SetAccountOwner(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req SetOwnerRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.SetAuthority(c.Request.Context(), ledger.SetAuthorityParams{
		Nonce:        nonce(c),
		Target:       account,
		Caller:       req.Caller,
		Type:         domain.AuthorityAccountOwner,
		NewAuthority: domain.Some(req.NewOwner),
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) FreezeAccount(c *gin.Context) {
	h.setFrozen(c, true)
}

func (h *handler) ThawAccount(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *handler) setFrozen(c *gin.Context, frozen bool) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req FreezeRequest
	if !bind(c, &req) {
		return
	}

	var mint domain.Address
	if req.Mint != nil {
		mint = *req.Mint
	} else {
		info, err := h.svc.GetAccount(account)
		if err != nil {
			respondError(c, err)
			return
		}
		mint = info.Mint
	}

	p := ledger.FreezeParams{
		Nonce:   nonce(c),
		Account: account,
		Mint:    mint,
		Caller:  req.Caller,
	}
	var (
		r   *domain.Receipt
		err error
	)
	if frozen {
		r, err = h.svc.FreezeAccount(c.Request.Context(), p)
	} else {
		r, err = h.svc.ThawAccount(c.Request.Context(), p)
	}
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) CloseAccount(c *gin.Context) {
	account, ok := pathAddress(c, "account")
	if !ok {
		return
	}
	var req CloseAccountRequest
	if !bind(c, &req) {
		return
	}

	r, err := h.svc.CloseAccount(c.Request.Context(), ledger.CloseAccountParams{
		Nonce:       nonce(c),
		Account:     account,
		Caller:      req.Caller,
		Destination: req.Destination,
	})
	respondReceipt(c, http.StatusOK, r, err)
}

func (h *handler) AccountsByOwner(c *gin.Context) {
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}
	accounts := h.svc.AccountsByOwner(owner)
	if accounts == nil {
		accounts = []*domain.AccountInfo{}
	}
	c.JSON(http.StatusOK, AccountsResponse{
		Owner:    owner,
		Accounts: accounts,
	})
}

func (h *handler) GetReceipt(c *gin.Context) {
	r, err := h.svc.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sequence": h.svc.Ledger().Sequence(),
	})
}

// resolveMintAmount resolves a UI amount with the decimals of mint.
func (h *handler) resolveMintAmount(c *gin.Context, req *AmountRequest, mint domain.Address) (uint64, bool) {
	if req.UIAmount == "" {
		return req.Amount, true
	}
	info, err := h.svc.GetMintInfo(mint)
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	amount, err := req.Resolve(info.Decimals)
	if err != nil {
		respondInvalid(c, err.Error())
		return 0, false
	}
	return amount, true
}

// resolveAccountAmount resolves a UI amount with the decimals of account's mint.
func (h *handler) resolveAccountAmount(c *gin.Context, req *AmountRequest, account domain.Address) (uint64, bool) {
	if req.UIAmount == "" {
		return req.Amount, true
	}
	info, err := h.svc.GetAccount(account)
	if err != nil {
		respondError(c, err)
		return 0, false
	}
	amount, err := req.Resolve(info.Decimals)
	if err != nil {
		respondInvalid(c, err.Error())
		return 0, false
	}
	return amount, true
}
