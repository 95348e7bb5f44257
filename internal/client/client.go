// Package client is the HTTP client for the ledger REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"solana-token-ledger/internal/api/rest"
	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/logger"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Error is a non-2xx response from the server. It unwraps to the matching
// ledger sentinel, so errors.Is(err, ledger.ErrInsufficientFunds) works
// across the wire.
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = e.Details
	}
	return fmt.Sprintf("ledger api %d %s: %s", e.Status, e.Code, msg)
}

// Unwrap returns the ledger error for Code, or nil.
func (e *Error) Unwrap() error {
	return ledger.FromCode(e.Code)
}

// Client talks to a ledger server.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type nonceKey struct{}

// WithNonce makes the next mutation sent with ctx use nonce as its
// Idempotency-Key. Without it every mutation gets a fresh UUID.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

func nonceFrom(ctx context.Context) string {
	if n, ok := ctx.Value(nonceKey{}).(string); ok && n != "" {
		return n
	}
	return uuid.NewString()
}

// mutate sends a POST with an Idempotency-Key. The key is fixed before the
// first attempt, so a retried request cannot apply twice.
func (c *Client) mutate(ctx context.Context, path string, body any) (*domain.Receipt, error) {
	var r domain.Receipt
	if err := c.do(ctx, http.MethodPost, path, nonceFrom(ctx), body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// do performs one API call, retrying transport errors, 429 and 5xx with
// exponential backoff. 4xx responses are returned as *Error immediately.
func (c *Client) do(ctx context.Context, method, path, nonce string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if nonce != "" {
			req.Header.Set(rest.IdempotencyHeader, nonce)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		apiErr := decodeError(resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxDelay
	b.MaxElapsedTime = 0

	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Ledger API call failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("nonce", nonce),
			zap.Error(err),
			zap.Duration("next_retry_in", next))
	}

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(policy, uint64(c.maxRetries))
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// decodeError reads the {"error":{code,message,details}} envelope. Bodies
// that are not JSON (proxies, panics) keep their raw text as the message.
func decodeError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if gjson.ValidBytes(body) {
		env := gjson.GetBytes(body, "error")
		e.Code = env.Get("code").String()
		e.Message = env.Get("message").String()
		e.Details = env.Get("details").String()
	}
	if e.Code == "" {
		e.Code = rest.ErrCodeInternalError
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func escape(a domain.Address) string {
	return url.PathEscape(a.String())
}
