// Command replay rebuilds the ledger from the PostgreSQL receipt journal and
// reports the supply audit of every mint. It exits non-zero when replay
// diverges or any mint fails the audit.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-token-ledger/internal/config"
	"solana-token-ledger/internal/ledger"
	"solana-token-ledger/internal/logger"
	"solana-token-ledger/internal/replay"
	pgstore "solana-token-ledger/internal/storage/postgres"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	outputJSON = flag.Bool("json", false, "Output as JSON")
)

// report is the JSON output of a replay run.
type report struct {
	Receipts int                   `json:"receipts"`
	FirstSeq uint64                `json:"first_seq"`
	LastSeq  uint64                `json:"last_seq"`
	Took     string                `json:"took"`
	OK       bool                  `json:"ok"`
	Error    string                `json:"error,omitempty"`
	Audits   []*ledger.SupplyAudit `json:"audits"`
}

func main() {
	flag.Parse()

	cfg, err := config.LoadReplayConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "token-ledger-replay",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, cfg.Database.DSN(),
		pgstore.WithMaxConns(cfg.Database.MaxConns),
		pgstore.WithConnectTimeout(cfg.Database.ConnectTimeout))
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	start := time.Now()
	l := ledger.New()
	res, err := replay.RebuildBatched(ctx, pgstore.NewReceiptStore(pool), l, cfg.BatchSize)

	rep := report{Took: time.Since(start).Round(time.Millisecond).String(), OK: err == nil}
	if res != nil {
		rep.Audits = res.Audits
		if res.Stats != nil {
			rep.Receipts = res.Stats.Applied
			rep.FirstSeq = res.Stats.FirstSeq
			rep.LastSeq = res.Stats.LastSeq
		}
	}
	if err != nil {
		rep.Error = err.Error()
		if !errors.Is(err, replay.ErrAuditFailed) {
			logger.Error(err, zap.Uint64("last_seq", rep.LastSeq))
		}
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			logger.Fatal("Failed to encode report", zap.Error(err))
		}
	} else {
		printReport(rep)
	}

	if !rep.OK {
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func printReport(rep report) {
	fmt.Printf("Replayed %d receipts (seq %d..%d) in %s\n", rep.Receipts, rep.FirstSeq, rep.LastSeq, rep.Took)
	for _, a := range rep.Audits {
		status := "ok"
		if !a.OK {
			status = "MISMATCH"
		}
		fmt.Printf("  %-44s supply=%-20d balances=%-20d accounts=%-6d %s\n",
			a.Mint, a.Supply, a.BalanceSum, a.Accounts, status)
	}
	if rep.Error != "" {
		fmt.Printf("FAILED: %s\n", rep.Error)
	}
}
