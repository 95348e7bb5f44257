// Command demo drives a running ledger server through the classic token
// walkthrough: create a mint, open explicit and associated accounts, mint,
// transfer, burn, delegate and hand an account to a new owner.
//
// With -fixed-supply it instead creates a 9-decimal token, mints the whole
// supply to the payer and revokes the mint authority for good.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-token-ledger/internal/client"
	"solana-token-ledger/internal/config"
	"solana-token-ledger/internal/domain"
	"solana-token-ledger/internal/identity"
	"solana-token-ledger/internal/logger"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	envPath     = flag.String("env", "config/", "Path to environment files")
	fixedSupply = flag.Bool("fixed-supply", false, "Create a fixed-supply token instead of running the walkthrough")
	totalSupply = flag.Uint64("total-supply", 1_000_000_000, "Raw supply minted by -fixed-supply")
	watch       = flag.Bool("watch", false, "Print receipts from the server's websocket stream")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadDemoConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "token-ledger-demo",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	payer, err := loadPayer(cfg)
	if err != nil {
		logger.Fatal("Failed to load payer keypair", zap.Error(err))
	}

	c := client.New(cfg.Client.BaseURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithMaxRetries(cfg.Client.MaxRetries))

	seq, err := c.Health(ctx)
	if err != nil {
		logger.Fatal("Ledger server unreachable", zap.Error(err), zap.String("base_url", cfg.Client.BaseURL))
	}
	logger.Info("Connected to ledger",
		zap.String("base_url", cfg.Client.BaseURL),
		zap.Uint64("sequence", seq),
		zap.String("payer", payer.String()))

	if *watch {
		sub, err := c.Subscribe(ctx, domain.None(), nil)
		if err != nil {
			logger.Fatal("Failed to subscribe to receipts", zap.Error(err))
		}
		defer sub.Close()
		go func() {
			for r := range sub.Receipts() {
				fmt.Printf("  [stream] seq=%d kind=%s mint=%s amount=%d\n", r.Seq, r.Kind, r.Mint, r.Amount)
			}
		}()
	}

	d := &demo{client: c, payer: payer.Address()}
	if *fixedSupply {
		err = d.createFixedSupplyToken(ctx, *totalSupply)
	} else {
		err = d.walkthrough(ctx, cfg.Decimals, cfg.MintAmount)
	}
	if err != nil {
		logger.Error(err, zap.Bool("fixed_supply", *fixedSupply))
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}

	// let the stream catch up before exiting
	if *watch {
		time.Sleep(500 * time.Millisecond)
	}
}

// loadPayer resolves the signing identity: PRIVATE_KEY, then a keygen file,
// then a throwaway keypair.
func loadPayer(cfg *config.DemoConfig) (*identity.Keypair, error) {
	switch {
	case cfg.PrivateKey != "":
		return identity.Parse(cfg.PrivateKey)
	case cfg.KeypairPath != "":
		return identity.LoadFile(cfg.KeypairPath)
	default:
		logger.Warn("No PRIVATE_KEY or keypair_path configured, using a fresh keypair")
		return identity.NewKeypair()
	}
}
