package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reportlens/securelink-server-go/internal/config"
	"github.com/reportlens/securelink-server-go/internal/database"
	"github.com/reportlens/securelink-server-go/internal/handler"
	"github.com/reportlens/securelink-server-go/internal/jobs"
	"github.com/reportlens/securelink-server-go/internal/metrics"
	"github.com/reportlens/securelink-server-go/internal/middleware"
	"github.com/reportlens/securelink-server-go/internal/notify"
	"github.com/reportlens/securelink-server-go/internal/redis"
	"github.com/reportlens/securelink-server-go/internal/repository"
	"github.com/reportlens/securelink-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	credRepo := repository.NewCredentialRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	fulfillmentRepo := repository.NewFulfillmentRepository(db)

	m := metrics.New(prometheus.DefaultRegisterer)

	expiryPolicy := service.NewExpiryPolicy(cfg.PartnerLinkTTL(), cfg.StarterLinkTTL())
	allocator := service.NewInventoryAllocator(db, credRepo, m)
	redemptionGate := service.NewRedemptionGate(credRepo, m)
	partnerService := service.NewPartnerService(partnerRepo)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.ResendAPIKey != "" {
		notifier = notify.NewResendNotifier(cfg.ResendAPIKey, cfg.NotifyFromEmail)
	}

	orchestrator := service.NewPurchaseOrchestrator(
		db, credRepo, fulfillmentRepo, partnerRepo,
		allocator, expiryPolicy, notifier, m, cfg.AccessBaseURL,
	)

	rateLimiter := service.NewRateLimiter(redisClient.Client)
	redeemLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, service.SurfaceRedeem, config.RedeemLimitPerIP, config.RedeemLimitWindow,
	)
	inventoryLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, service.SurfaceInventory, config.InventoryLimitPerIP, config.InventoryLimitWindow,
	)
	signatureMiddleware := middleware.NewPaymentSignatureMiddleware(cfg.PaymentWebhookSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webhookHandler := handler.NewWebhookHandler(orchestrator)
	redeemHandler := handler.NewRedeemHandler(redemptionGate)
	partnerHandler := handler.NewPartnerHandler(partnerService, allocator)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Mount("/", webhookHandler.Routes())
	})

	r.Route("/r", func(r chi.Router) {
		r.Use(redeemLimitMiddleware.Handler)
		r.Mount("/", redeemHandler.Routes())
	})

	r.Route("/v1/partners", func(r chi.Router) {
		r.Use(inventoryLimitMiddleware.Handler)
		r.Mount("/", partnerHandler.Routes())
	})

	expiryJob := jobs.NewExpiryJob(credRepo, fulfillmentRepo, config.ExpiryJobInterval)
	expiryJob.Start()
	defer expiryJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
