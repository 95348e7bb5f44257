// Command server runs the token ledger behind its REST and websocket API.
//
// On start it rebuilds the in-memory ledger from the receipt journal, brings
// the supply projection up to date and then serves requests until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-token-ledger/internal/api/server"
	"solana-token-ledger/internal/config"
	"solana-token-ledger/internal/idhash"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/messaging"
	"solana-token-ledger/internal/observability"
	"solana-token-ledger/internal/replay"
	"solana-token-ledger/internal/service"
	"solana-token-ledger/internal/storage"
	chstore "solana-token-ledger/internal/storage/clickhouse"
	"solana-token-ledger/internal/storage/memory"
	"solana-token-ledger/internal/storage/migrations"
	pgstore "solana-token-ledger/internal/storage/postgres"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

// stores holds the storage backends selected by configuration.
type stores struct {
	journal     storage.ReceiptStore
	points      storage.SupplyTimeseriesStore
	checkpoints storage.CheckpointStore
	cleanup     func()
}

func main() {
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "token-ledger",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting token ledger", zap.String("storage", cfg.Storage.Backend))

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open stores", zap.Error(err))
	}
	defer st.cleanup()

	metrics := observability.Default()

	l := ledger.New(ledger.WithDeriver(idhash.NewDeriver(cfg.Ledger.DeriveCacheSize)))
	if err := restore(ctx, cfg, st, l, metrics); err != nil {
		logger.Fatal("Failed to restore ledger from journal", zap.Error(err))
	}

	if st.points != nil {
		stats, err := replay.Backfill(ctx, st.journal, &replay.SupplyProjection{
			Points:      st.points,
			Checkpoints: st.checkpoints,
		})
		if err != nil {
			logger.Fatal("Failed to backfill supply projection", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Supply projection up to date",
			zap.Int("applied", stats.Applied),
			zap.Uint64("last_seq", stats.LastSeq))
	}

	publishers := map[string]messaging.Publisher{}
	if cfg.NATS.URL != "" {
		pub, err := messaging.NewNATSPublisher(ctx, messaging.NATSConfig{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		publishers["nats"] = pub
		logger.InfoCtx(ctx, "Publishing receipts to NATS",
			zap.String("stream", cfg.NATS.StreamName),
			zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, receipts are only streamed over websocket")
	}

	stream := messaging.NewBroadcaster()
	svc := service.New(l, service.Options{
		Journal:      st.journal,
		Points:       st.points,
		Stream:       stream,
		Publishers:   publishers,
		Metrics:      metrics,
		PoolSize:     cfg.Worker.PoolSize,
		QueueSize:    cfg.Worker.QueueSize,
		JournalRetry: cfg.Ledger.JournalRetry,
	})

	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, svc, stream, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// the serving context is gone; shutdown gets its own deadline
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}
	svc.Close()

	logger.Info("Token ledger stopped", zap.Uint64("sequence", l.Sequence()))
}

// openStores connects the configured backends and applies migrations.
func openStores(ctx context.Context, cfg *config.LedgerServerConfig) (*stores, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		logger.WarnCtx(ctx, "Using in-memory journal, receipts are lost on restart")
		return &stores{
			journal:     memory.NewReceiptStore(),
			points:      memory.NewSupplyTimeseriesStore(),
			checkpoints: memory.NewCheckpointStore(),
			cleanup:     func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN(),
		pgstore.WithMaxConns(cfg.Database.MaxConns),
		pgstore.WithConnectTimeout(cfg.Database.ConnectTimeout))
	if err != nil {
		return nil, err
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.InfoCtx(ctx, "Connected to postgres",
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName),
		zap.Strings("migrations_applied", applied))

	st := &stores{
		journal:     pgstore.NewReceiptStore(pool),
		checkpoints: pgstore.NewCheckpointStore(pool),
		cleanup:     pool.Close,
	}

	if cfg.ClickHouse.DSN == "" {
		logger.WarnCtx(ctx, "ClickHouse DSN not configured, supply timeseries disabled")
		return st, nil
	}

	var chConn *chstore.Conn
	chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	st.points = chstore.NewSupplyTimeseriesStore(chConn)
	st.cleanup = func() {
		chConn.Close()
		pool.Close()
	}
	logger.InfoCtx(ctx, "Connected to clickhouse")

	return st, nil
}

// restore replays the journal into l. A non-empty journal that is not
// replayed would make new receipts collide with journaled sequences.
func restore(ctx context.Context, cfg *config.LedgerServerConfig, st *stores, l *ledger.Ledger, metrics *observability.Metrics) error {
	last, err := st.journal.LastSequence(ctx)
	if err != nil {
		return fmt.Errorf("read journal head: %w", err)
	}
	if last == 0 {
		return nil
	}
	if !cfg.Ledger.RebuildOnStart {
		return fmt.Errorf("journal holds %d receipts but ledger.rebuild_on_start is disabled", last)
	}

	start := time.Now()
	res, err := replay.Rebuild(ctx, st.journal, l)
	if res != nil && res.Stats != nil {
		metrics.ReceiptsReplayed.Add(float64(res.Stats.Applied))
	}
	if errors.Is(err, replay.ErrAuditFailed) {
		for _, a := range res.Audits {
			if !a.OK {
				metrics.AuditFailures.Inc()
				logger.Warn("Supply audit failed",
					zap.String("mint", a.Mint.String()),
					zap.Uint64("supply", a.Supply),
					zap.Uint64("balance_sum", a.BalanceSum))
			}
		}
	}
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Ledger rebuilt from journal",
		zap.Int("receipts", res.Stats.Applied),
		zap.Uint64("sequence", l.Sequence()),
		zap.Int("mints", len(res.Audits)),
		zap.Duration("took", time.Since(start)))
	return nil
}
