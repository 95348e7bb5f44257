package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/logger"
)

// SubscriberConfig configures the receipt stream client.
type SubscriberConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the Receipts channel.
	Buffer int
	// DedupWindow is how many recent sequence numbers are remembered to
	// drop repeats. Receipts may arrive out of sequence order.
	DedupWindow int
}

// DefaultSubscriberConfig returns default stream client configuration.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
		DedupWindow:       4096,
	}
}

// Subscriber follows the server's receipt stream, reconnecting on failure.
// Receipts are delivered in arrival order, which may differ from sequence
// order. A receipt seen within the last DedupWindow deliveries is not
// delivered again; receipts committed while disconnected are not recovered.
type Subscriber struct {
	endpoint string
	config   SubscriberConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	receipts chan *domain.Receipt
	seen     *lru.Cache[uint64, struct{}]

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// Subscribe connects to /ws/receipts. With mint set only that mint's
// receipts are streamed.
func (c *Client) Subscribe(ctx context.Context, mint domain.OptionalAddress, config *SubscriberConfig) (*Subscriber, error) {
	endpoint, err := streamURL(c.baseURL, mint)
	if err != nil {
		return nil, err
	}
	return NewSubscriber(ctx, endpoint, config)
}

// NewSubscriber connects to a receipt stream endpoint (ws:// or wss://).
func NewSubscriber(ctx context.Context, endpoint string, config *SubscriberConfig) (*Subscriber, error) {
	cfg := DefaultSubscriberConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultSubscriberConfig().DedupWindow
	}

	seen, err := lru.New[uint64, struct{}](cfg.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("create dedup window: %w", err)
	}

	s := &Subscriber{
		endpoint: endpoint,
		config:   cfg,
		receipts: make(chan *domain.Receipt, cfg.Buffer),
		seen:     seen,
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

func streamURL(baseURL string, mint domain.OptionalAddress) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/receipts"
	if m, ok := mint.Get(); ok {
		u.RawQuery = url.Values{"mint": {m.String()}}.Encode()
	}
	return u.String(), nil
}

// Receipts returns the channel receipts are delivered on. It is closed by Close.
func (s *Subscriber) Receipts() <-chan *domain.Receipt {
	return s.receipts
}

// connect establishes WebSocket connection.
func (s *Subscriber) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, s.endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed.Load() {
		conn.Close()
		return backoff.Permanent(fmt.Errorf("subscriber closed"))
	}
	s.conn = conn
	return nil
}

// Close closes the connection and the Receipts channel.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.receipts)
	return nil
}

// readLoop reads receipts and reconnects when the connection fails.
func (s *Subscriber) readLoop() {
	defer s.wg.Done()

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		var r domain.Receipt
		if err := conn.ReadJSON(&r); err != nil {
			if s.closed.Load() {
				return
			}
			logger.Warn("Receipt stream read failed, reconnecting", zap.String("endpoint", s.endpoint), zap.Error(err))
			if !s.reconnect() {
				return
			}
			continue
		}

		if r.Seq != 0 {
			if found, _ := s.seen.ContainsOrAdd(r.Seq, struct{}{}); found {
				continue
			}
		}

		// Block until we can send - never drop receipts
		select {
		case s.receipts <- &r:
		case <-s.done:
			return
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// subscriber is closed.
func (s *Subscriber) reconnect() bool {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.ReconnectDelay
	b.MaxInterval = s.config.MaxReconnectDelay
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return s.connect(ctx)
	}, backoff.WithContext(b, ctx))
	return err == nil && !s.closed.Load()
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *Subscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				// a dead connection surfaces in readLoop
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}
