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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/config"
	"github.com/clinicdesk/whatsapp-server-go/internal/database"
	"github.com/clinicdesk/whatsapp-server-go/internal/debug"
	"github.com/clinicdesk/whatsapp-server-go/internal/handler"
	"github.com/clinicdesk/whatsapp-server-go/internal/jobs"
	"github.com/clinicdesk/whatsapp-server-go/internal/middleware"
	"github.com/clinicdesk/whatsapp-server-go/internal/observability"
	"github.com/clinicdesk/whatsapp-server-go/internal/redis"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
	"github.com/clinicdesk/whatsapp-server-go/internal/service"
	"github.com/clinicdesk/whatsapp-server-go/internal/sse"
	"github.com/clinicdesk/whatsapp-server-go/internal/storage"
	"github.com/clinicdesk/whatsapp-server-go/internal/whatsapp"
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

	var store storage.ObjectStore
	if cfg.MediaBucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.MediaBucket,
			PublicBaseURL:   cfg.MediaPublicBaseURL,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init media store")
		}
		store = s3Store
		log.Info().Str("bucket", cfg.MediaBucket).Msg("media store ready")
	} else {
		log.Warn().Msg("MEDIA_BUCKET not set: inbound media degrades to placeholders")
	}

	registry := prometheus.NewRegistry()
	observability.Register(registry)

	credRepo := repository.NewCredentialRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	msgRepo := repository.NewMessageRepository(db.DB)
	routingRepo := repository.NewRoutingRepository(db.DB)
	directoryRepo := repository.NewDirectoryRepository(db.DB)
	patientRepo := repository.NewPatientRepository(db.DB)
	watermarkRepo := repository.NewWatermarkRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	graphClient := whatsapp.NewClient(cfg.GraphBaseURL, cfg.SendTimeout())
	guard := service.NewWindowGuard(config.MessagingWindow)

	convService := service.NewConversationService(
		convRepo, routingRepo, msgRepo, directoryRepo, store, cfg.MediaPublicBaseURL, broker,
	)
	dispatchService := service.NewDispatchService(credRepo, msgRepo, convRepo, routingRepo, graphClient, guard, broker)
	mediaService := service.NewMediaService(graphClient, store)
	chatbotService := service.NewChatbotService(convRepo, routingRepo, directoryRepo, patientRepo, dispatchService)
	visibilityService := service.NewVisibilityService(convRepo, msgRepo, routingRepo, watermarkRepo)
	ingestService := service.NewIngestService(
		credRepo, msgRepo, routingRepo, directoryRepo,
		convService, chatbotService, mediaService, broker,
		cfg.SingleTenantFallback,
	)

	authMiddleware := middleware.NewAuthMiddleware(directoryRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	signatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.AppSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	webhookRing := debug.NewRing(config.DebugRingSize)
	webhookHandler := handler.NewWebhookHandler(ingestService, cfg.WebhookVerifyToken, webhookRing)
	conversationsHandler := handler.NewConversationsHandler(convService, visibilityService, dispatchService, authMiddleware)
	eventsHandler := handler.NewEventsHandler(broker)
	debugHandler := handler.NewDebugHandler(webhookRing)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/whatsapp", func(r chi.Router) {
		r.Use(bodyLimitMiddleware.WebhookHandler)

		r.Get("/webhook", webhookHandler.Verify)
		r.With(signatureMiddleware.Handler).Post("/webhook", webhookHandler.Receive)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Get("/events", eventsHandler.ServeHTTP)
		r.Mount("/conversations", conversationsHandler.Routes())
		r.With(authMiddleware.RequireAdmin).Get("/debug/webhooks", debugHandler.ListWebhooks)
	})

	sweepJob := jobs.NewIdleSweepJob(convService, cfg.IdleCloseAfter(), config.IdleSweepInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

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
