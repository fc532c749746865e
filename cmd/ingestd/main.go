// Package main provides the ingestion API server entry point for the token
// pulse service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/token-pulse/internal/api"
	"github.com/token-pulse/internal/batch"
	"github.com/token-pulse/internal/circuitbreaker"
	"github.com/token-pulse/internal/config"
	"github.com/token-pulse/internal/directory"
	"github.com/token-pulse/internal/extract"
	"github.com/token-pulse/internal/feed"
	"github.com/token-pulse/internal/ingest"
	"github.com/token-pulse/internal/ledger"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/market"
	"github.com/token-pulse/internal/sentiment"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/sweep"
)

func main() {
	fmt.Println("Token Pulse Ingestion Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	store := storage.NewPostgresStore(postgres)

	// The analytics event stream is optional; ingestion works without it
	ledgerOpts := []ledger.Option{
		ledger.WithReachCache(redis, cfg.Cache.ReachTTL),
	}
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err = storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to ClickHouse, mention events disabled")
			clickhouse = nil
		} else {
			defer clickhouse.Close()
			ledgerOpts = append(ledgerOpts, ledger.WithEventSink(storage.NewMentionEventRepository(clickhouse)))
		}
	}

	logger.Info("Database connections established")

	// Wire the ingestion pipeline
	dir := directory.NewCachedDirectory(store, redis, cfg.Cache.MemberCountTTL)
	ledg := ledger.NewLedger(store, dir, ledgerOpts...)
	extractor := extract.NewExtractor(sentiment.NewScorer(nil))

	batcher := batch.NewBatcher(batch.Config{
		BatchSize:     cfg.Ingest.BatchSize,
		FlushInterval: cfg.Ingest.FlushInterval,
		BufferSize:    cfg.Ingest.BufferSize,
		DropOldest:    cfg.Ingest.DropOldest,
		RetryAttempts: cfg.Ingest.RetryAttempts,
	}, store, ledg, logger)

	ingestService := ingest.NewService(store, extractor, ledg, batcher)

	ctx := logging.WithLogger(context.Background(), logger)
	batcher.Start(ctx)
	defer batcher.Stop()

	// Start the HTTP server
	serverConfig := api.DefaultServerConfig(cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(serverConfig, ingestService, store, logger)

	// Manual sweep trigger, available when a primary market feed is configured
	if cfg.Feeds.DexScreenerBaseURL != "" {
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
		var updaterOpts []market.Option
		if clickhouse != nil {
			updaterOpts = append(updaterOpts, market.WithHistorySink(storage.NewTokenSnapshotRepository(clickhouse)))
		}
		updater := market.NewUpdater(store, primary, secondary, holders, updaterOpts...)
		server.SetSweepRunner(sweep.NewController(store, updater, cfg.Sweep))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Ingestion server started")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	if err := server.Stop(); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Ingestion server stopped")
}
