package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oddsline/platform/internal/cache"
	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/guard"
	"github.com/oddsline/platform/internal/infra"
	"github.com/oddsline/platform/internal/provider"
	"github.com/oddsline/platform/internal/repository"
	"github.com/oddsline/platform/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("reconciler failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("reconciler connected to postgres")

	var matchCache cache.MatchCache = cache.NewMemoryMatchCache()
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		} else {
			defer rdb.Close()
			matchCache = cache.NewRedisMatchCache(rdb)
			logger.Info("redis match cache enabled")
		}
	}

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()

	metrics := infra.NewMetrics(prometheus.DefaultRegisterer)
	metricsSrv := infra.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return infra.HealthCheck(ctx, pool)
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics server listening", "port", cfg.MetricsPort)

	bridge := chain.NewGatewayClient(cfg.ChainGatewayURL, cfg.ChainSignerKey, logger)
	feed := provider.NewSportsFeedClient(cfg.SportsAPIBaseURL, cfg.SportsAPIKey, logger)

	engine := settlement.NewEngine(settlement.Deps{
		DB:        pool,
		Wagers:    repository.NewWagerRepository(),
		Journal:   repository.NewSettledEventRepository(),
		Provider:  feed,
		Cache:     matchCache,
		Bridge:    bridge,
		Publisher: producer,
		Metrics:   metrics,
		Blocklist: guard.NewWalletBlocklist(cfg.BlockedWallets()),
		Logger:    logger,
	}, settlement.Options{
		Interval:        cfg.ReconcileInterval,
		ResultsTTL:      cfg.ResultsCacheTTL,
		SubmissionDelay: cfg.SubmissionDelay,
		SettledLookback: cfg.SettledLookback,
		FeeBps:          cfg.PlatformFeeBps,
		RetryCeiling:    cfg.PayoutRetryCeiling,
		SignerFloor:     cfg.SignerBalanceFloor,
		PrimarySport:    cfg.PrimarySport,
	})

	return engine.Run(ctx)
}
