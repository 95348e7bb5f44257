// Package ws streams committed receipts to websocket clients.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/messaging"
)

// StreamConfig configures the receipt stream.
type StreamConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a connection may stay silent (pongs included).
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the per-connection receipt queue.
	Buffer int
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		Buffer:       messaging.DefaultSubscriptionBuffer,
	}
}

// StreamHandler upgrades GET /ws/receipts and forwards receipts from a broadcaster.
type StreamHandler struct {
	broadcaster *messaging.Broadcaster
	config      StreamConfig
	upgrader    websocket.Upgrader
}

// NewStreamHandler creates a stream handler. A nil config uses DefaultStreamConfig.
func NewStreamHandler(b *messaging.Broadcaster, config *StreamConfig) *StreamHandler {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	return &StreamHandler{
		broadcaster: b,
		config:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle serves one websocket connection. The optional mint query parameter
// restricts the stream to one mint.
func (h *StreamHandler) Handle(c *gin.Context) {
	filter := domain.None()
	if m := c.Query("mint"); m != "" {
		mint, err := domain.ParseAddress(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
				"code":    "invalid_argument",
				"message": "Invalid request",
				"details": "mint: " + err.Error(),
			}})
			return
		}
		filter = domain.Some(mint)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.broadcaster.Subscribe(filter, h.config.Buffer)
	defer sub.Close()

	logger.Debug("Receipt stream opened",
		zap.String("remote", c.Request.RemoteAddr),
		zap.String("mint", filter.String()))

	done := make(chan struct{})
	go h.readLoop(conn, done)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-sub.C:
			if !ok {
				// broadcaster closed: server shutting down
				_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(r); err != nil {
				logger.Debug("Receipt stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop discards client messages and closes done when the peer goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	}
}
