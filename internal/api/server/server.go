package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-token-ledger/internal/api/middleware"
	"solana-token-ledger/internal/api/rest"
	"solana-token-ledger/internal/api/ws"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/messaging"
	"solana-token-ledger/internal/observability"
	"solana-token-ledger/internal/service"
)

// Config holds the server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Stream tunes the websocket receipt stream. Nil uses ws.DefaultStreamConfig.
	Stream *ws.StreamConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	svc        *service.Service
	stream     *messaging.Broadcaster
	metrics    *observability.Metrics
	httpServer *http.Server
}

// New creates a new API server. stream may be nil, in which case
// /ws/receipts is not mounted. metrics may be nil.
func New(cfg Config, svc *service.Service, stream *messaging.Broadcaster, metrics *observability.Metrics) *Server {
	if stream != nil && metrics != nil {
		stream.OnDrop = metrics.WSDroppedEvents.Inc
		stream.OnSubscribers = func(n int) { metrics.WSSubscribers.Set(float64(n)) }
	}
	return &Server{
		config:  cfg,
		svc:     svc,
		stream:  stream,
		metrics: metrics,
	}
}

// Handler builds the gin router with every route mounted.
func (s *Server) Handler() http.Handler {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	rest.SetupRoutes(router, rest.NewHandler(s.svc))

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(observability.Handler()))
	}
	if s.stream != nil {
		router.GET("/ws/receipts", ws.NewStreamHandler(s.stream, s.config.Stream).Handle)
	}

	return router
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting API server",
		zap.String("address", addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server. Open receipt streams are closed
// by closing the broadcaster first.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server")

	if s.stream != nil {
		s.stream.Close()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
