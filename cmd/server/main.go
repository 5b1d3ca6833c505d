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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/config"
	"github.com/chatstealth/server-go/internal/database"
	"github.com/chatstealth/server-go/internal/handler"
	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/jobs"
	"github.com/chatstealth/server-go/internal/middleware"
	"github.com/chatstealth/server-go/internal/payments"
	"github.com/chatstealth/server-go/internal/redis"
	"github.com/chatstealth/server-go/internal/repository"
	"github.com/chatstealth/server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
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

	sessionRepo := repository.NewSessionRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)

	liveHub := hub.New(hub.NewRedisBus(redisClient), sessionRepo)
	defer liveHub.Close()

	checkoutClient := payments.NewHTTPCheckoutClient(cfg.CheckoutBaseURL, cfg.CheckoutAPIKey)

	sessionService := service.NewSessionService(db, sessionRepo, messageRepo, liveHub)
	messageService := service.NewMessageService(sessionRepo, messageRepo, liveHub)
	upgradeService := service.NewUpgradeService(sessionRepo, liveHub, checkoutClient, cfg.AppURL)

	redisLimiter := service.NewRateLimiter(redisClient.Client)

	corsMiddleware := middleware.NewCORSMiddleware()
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	signatureMiddleware := middleware.NewCheckoutSignatureMiddleware(cfg.CheckoutWebhookSecret)
	createLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		redisLimiter, config.DefaultRateLimitPerMin, time.Minute, "create",
	)
	messageLimitMiddleware := middleware.NewRateLimitMiddleware(config.DefaultRateLimitPerMin)

	sessionHandler := handler.NewSessionHandler(sessionService, messageService, upgradeService)
	messageHandler := handler.NewMessageHandler(messageService)
	configHandler := handler.NewConfigHandler(cfg.CheckoutPublishableKey)
	webhookHandler := handler.NewWebhookHandler(upgradeService)
	wsHandler := handler.NewWSHandler(liveHub)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(securityHeadersMiddleware.Handler)

		r.Get("/config", configHandler.GetConfig)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(createLimitMiddleware.Handler)
			r.Mount("/", sessionHandler.Routes())
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(messageLimitMiddleware.Handler)
			r.Mount("/", messageHandler.Routes())
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(signatureMiddleware.Handler).Post("/webhook", webhookHandler.HandleWebhook)
		})
	})

	// Websockets live outside the request timeout; a connection is expected
	// to outlast it.
	r.Get("/ws/{sessionID}", wsHandler.Serve)

	sweeper := jobs.NewSweeper(messageRepo, sessionRepo, liveHub, sessionService, cfg.SweepInterval())
	sweeper.Start()
	defer sweeper.Stop()

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
