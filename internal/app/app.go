package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/api"
	"github.com/ayo6706/parimutuel-markets/internal/api/middleware"
	"github.com/ayo6706/parimutuel-markets/internal/config"
	"github.com/ayo6706/parimutuel-markets/internal/db"
	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/idempotency"
	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/ayo6706/parimutuel-markets/internal/realtime"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"github.com/ayo6706/parimutuel-markets/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server, event fan-out and reconciliation worker,
// blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ranks, err := domain.NewRankPolicy(cfg.RankWagerWeight, cfg.RankWinWeight)
	if err != nil {
		return fmt.Errorf("rank policy: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	store := repository.NewStore(pool)
	hub := realtime.NewHub(realtime.OriginChecker(cfg.WSAllowedOrigins))

	// A nil *redis.Client must stay a nil interface for the router and the
	// idempotency store.
	var redisCmd redis.Cmdable
	var publishers events.Fanout
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		redisCmd = redisClient

		// Every instance relays the shared channel to its own websocket
		// clients, so publishing goes to Redis only.
		publishers = append(publishers, events.NewRedisPublisher(redisClient, events.Channel))
		events.Subscribe(ctx, redisClient, events.Channel, hub.Broadcast)
		logger.Info("redis event relay enabled", zap.String("channel", events.Channel))
	} else {
		publishers = append(publishers, hub)
	}

	if cfg.KafkaBrokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kafkaPublisher.Close()
		publishers = append(publishers, kafkaPublisher)
		logger.Info("kafka event stream enabled", zap.String("topic", cfg.KafkaTopic))
	}

	svc := api.Services{
		Markets:    service.NewMarketService(store),
		Betting:    service.NewBettingService(store, publishers, ranks),
		Settlement: service.NewSettlementService(store, publishers, ranks, cfg.SettlementTxTimeout),
		Wallets:    service.NewWalletService(store),
		Users:      service.NewUserService(store, ranks),
	}

	reconciler := worker.NewReconciliationWorker(service.NewReconciliationService(store)).
		WithInterval(cfg.ReconciliationInterval)
	stopWorker := reconciler.Run(ctx)

	idemStore := idempotency.NewStore(redisCmd, store, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, logger, store, idemStore, redisCmd, hub, svc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SettlementTxTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping reconciliation worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// Migrate applies pending schema migrations and exits.
func Migrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("migrations complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
