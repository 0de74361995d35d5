package api

import (
	"net/http"

	"github.com/ayo6706/parimutuel-markets/internal/api/handler"
	"github.com/ayo6706/parimutuel-markets/internal/api/middleware"
	"github.com/ayo6706/parimutuel-markets/internal/api/spec"
	"github.com/ayo6706/parimutuel-markets/internal/config"
	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/idempotency"
	"github.com/ayo6706/parimutuel-markets/internal/realtime"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services groups the application services the HTTP layer calls into.
type Services struct {
	Markets    *service.MarketService
	Betting    *service.BettingService
	Settlement *service.SettlementService
	Wallets    *service.WalletService
	Users      *service.UserService
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	idemStore *idempotency.Store
	redis     redis.Cmdable
	hub       *realtime.Hub
	svc       Services
}

// NewRouter wires handlers to services. redisClient and hub may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, idemStore *idempotency.Store, redisClient redis.Cmdable, hub *realtime.Hub, svc Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		idemStore: idemStore,
		redis:     redisClient,
		hub:       hub,
		svc:       svc,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	authHandler := handler.NewAuthHandler(api.svc.Users)
	userHandler := handler.NewUserHandler(api.svc.Users)
	marketHandler := handler.NewMarketHandler(api.svc.Markets, api.svc.Settlement)
	betHandler := handler.NewBetHandler(api.svc.Betting)
	walletHandler := handler.NewWalletHandler(api.svc.Wallets)
	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Operational
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	if api.hub != nil {
		r.Get("/v1/ws", api.hub.HandleWS)
	}

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/auth/login", authHandler.Login)
		r.Post("/v1/users", userHandler.CreateUser)
		r.Get("/v1/leaderboard", userHandler.Leaderboard)
		r.Get("/v1/markets", marketHandler.ListMarkets)
		r.Get("/v1/markets/{id}", marketHandler.GetMarket)
		r.Get("/v1/markets/{id}/bets", marketHandler.ListBets)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Get("/v1/me", userHandler.Me)
		r.Get("/v1/me/wallet", walletHandler.MyWallet)
		r.Get("/v1/me/transactions", walletHandler.MyTransactions)
		r.Get("/v1/me/bets", betHandler.MyBets)
		r.With(idem).Post("/v1/markets/{id}/bets", betHandler.PlaceBet)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Post("/v1/admin/users", userHandler.CreateUserAsAdmin)
			r.Post("/v1/markets", marketHandler.CreateMarket)
			r.Patch("/v1/markets/{id}/status", marketHandler.UpdateStatus)
			r.Get("/v1/markets/{id}/history", marketHandler.History)
			r.With(idem).Post("/v1/markets/{id}/settle", marketHandler.Settle)
			r.With(idem).Post("/v1/wallets/{userID}/deposits", walletHandler.Deposit)
		})
	})

	return r
}
