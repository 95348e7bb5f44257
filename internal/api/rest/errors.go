package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/service"
)

// Error codes that are not ledger error kinds.
const (
	ErrCodeInternalError      = "internal_error"
	ErrCodeJournalUnavailable = "journal_unavailable"
)

// APIError is the body of every error response, under the "error" key.
// Code is a ledger error code (see ledger.Code) or one of the ErrCode constants.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Details
	}
	return e.Code + ": " + e.Message
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// statusByCode maps ledger error codes to HTTP statuses.
var statusByCode = map[string]int{
	ledger.CodeNotFound:             http.StatusNotFound,
	ledger.CodeUnauthorized:         http.StatusForbidden,
	ledger.CodeInvalidAmount:        http.StatusBadRequest,
	ledger.CodeInvalidArgument:      http.StatusBadRequest,
	ledger.CodeNonceReused:          http.StatusUnprocessableEntity,
	ledger.CodeInsufficientFunds:    http.StatusConflict,
	ledger.CodeFrozenAccount:        http.StatusConflict,
	ledger.CodeMintMismatch:         http.StatusConflict,
	ledger.CodeNonZeroBalance:       http.StatusConflict,
	ledger.CodeMintAuthorityRevoked: http.StatusConflict,
	ledger.CodeNoFreezeAuthority:    http.StatusConflict,
	ledger.CodeInvalidState:         http.StatusConflict,
	ledger.CodeAlreadyExists:        http.StatusConflict,
	ledger.CodeOverflow:             http.StatusConflict,
}

// StatusForCode returns the HTTP status used for a ledger error code.
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respondWithError(c *gin.Context, status int, code, message string, details ...string) {
	c.JSON(status, ErrorResponse{Error: &APIError{
		Code:    code,
		Message: message,
		Details: strings.Join(details, ", "),
	}})
}

// respondInvalid sends a 400 for a malformed request.
func respondInvalid(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, ledger.CodeInvalidArgument, "Invalid request", details)
}

// respondError maps err to its status and code.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrJournal) {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, ErrCodeJournalUnavailable, "Operation committed but not journaled; retry with the same Idempotency-Key", err.Error())
		return
	}

	code := ledger.Code(err)
	if code == "" {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
		return
	}

	respondWithError(c, StatusForCode(code), code, ledger.FromCode(code).Error(), err.Error())
}
