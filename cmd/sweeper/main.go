// Package main provides the market sweeper entry point for the token pulse
// service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/token-pulse/internal/circuitbreaker"
	"github.com/token-pulse/internal/config"
	"github.com/token-pulse/internal/feed"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/market"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/sweep"
)

func main() {
	fmt.Println("Token Pulse Market Sweeper")
	log.Println("Sweeper starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateSweep(); err != nil {
		log.Fatalf("Invalid sweep configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

	// Connect to Postgres
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	store := storage.NewPostgresStore(postgres)

	// History snapshots are optional; sweeping works without them
	var updaterOpts []market.Option
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to ClickHouse, history snapshots disabled")
		} else {
			defer clickhouse.Close()
			updaterOpts = append(updaterOpts, market.WithHistorySink(storage.NewTokenSnapshotRepository(clickhouse)))
		}
	}

	// Wire the market feeds. The primary source sits behind a circuit
	// breaker so a dead upstream fails sweeps fast instead of timing out
	// token by token.
	dexscreener := feed.NewDexScreenerClient(&feed.DexScreenerConfig{
		BaseURL:           cfg.Feeds.DexScreenerBaseURL,
		RequestsPerMinute: cfg.Feeds.DexScreenerRPM,
		Timeout:           cfg.Feeds.RequestTimeout,
	})
	primary := feed.NewGuardedSource(dexscreener, circuitbreaker.New(circuitbreaker.DefaultConfig(dexscreener.Name())))

	var secondary feed.MarketDataSource
	if cfg.Feeds.GeckoTerminalBaseURL != "" {
		secondary = feed.NewGeckoTerminalClient(cfg.Feeds.GeckoTerminalBaseURL, cfg.Feeds.RequestTimeout)
	}

	var holders feed.HolderDataSource
	if cfg.Feeds.HeliusRPCURL != "" {
		holders = feed.NewHeliusHolderClient(&feed.HeliusConfig{
			RPCURL:   cfg.Feeds.HeliusRPCURL,
			APIKey:   cfg.Feeds.HeliusAPIKey,
			PageSize: cfg.Feeds.HolderPageSize,
			MaxPages: cfg.Feeds.HolderMaxPages,
			Timeout:  cfg.Feeds.RequestTimeout,
		})
	}

	updater := market.NewUpdater(store, primary, secondary, holders, updaterOpts...)
	controller := sweep.NewController(store, updater, cfg.Sweep)

	ctx, cancel := context.WithCancel(logging.WithLogger(context.Background(), logger))
	defer cancel()

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		controller.RunForever(ctx)
	}()

	logger.WithFields(map[string]interface{}{
		"interval":    cfg.Sweep.Interval.String(),
		"concurrency": cfg.Sweep.Concurrency,
	}).Info("Sweeper started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	cancel()
	<-doneCh

	logger.Info("Sweeper stopped")
}
