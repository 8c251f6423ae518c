// Package main is the entry point for the team inbox API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hafizrazali90/team-inbox/internal/ai"
	"github.com/hafizrazali90/team-inbox/internal/config"
	"github.com/hafizrazali90/team-inbox/internal/handler"
	"github.com/hafizrazali90/team-inbox/internal/middleware"
	natsclient "github.com/hafizrazali90/team-inbox/internal/nats"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/service"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/internal/store/postgres"
	"github.com/hafizrazali90/team-inbox/internal/whatsapp"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Infow("starting team inbox API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "team-inbox", cfg.TracingEndpoint)
		if err != nil {
			log.Warnw("failed to initialize tracing", "error", err)
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Errorw("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Errorw("failed to ensure stream", "error", err)
		os.Exit(1)
	}

	// Storage backend
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
		log.Warnw("using in-memory store, data will not survive restarts")
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Errorw("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = postgres.New(pool)
	}

	// WhatsApp provider client
	provider := whatsapp.NewClient(whatsapp.Config{
		APIBase:     cfg.WhatsAppAPIBase,
		PhoneID:     cfg.WhatsAppPhoneID,
		Token:       cfg.WhatsAppToken,
		VerifyToken: cfg.WhatsAppVerifyToken,
	}, &http.Client{Timeout: cfg.ProviderTimeout}, log)

	// Realtime fan-out
	publisher := realtime.NewNATSPublisher(streamManager)
	router := realtime.NewRouter(publisher, log)
	authorizer := realtime.NewAuthorizer(st)

	// AI agent hook; Noop until an automated responder is wired in. A nil
	// responder disables the hook entirely.
	var responder ai.Responder
	if cfg.AIEnabled {
		responder = ai.Noop{}
	}

	// Services
	inboxSvc := service.NewInbox(st, router, responder, cfg.DefaultDepartmentSlug, log)
	conversationSvc := service.NewConversations(st, log)
	dispatcher := service.NewDispatcher(st, provider, inboxSvc, router, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	webhookHandler := handler.NewWebhookHandler(provider, inboxSvc, log)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(dispatcher, conversationSvc, st, log)
	realtimeHandler := handler.NewRealtimeHandler(authorizer, streamManager, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Provider webhook (authenticated by verify token, not JWT)
	r.Route("/api/webhook/whatsapp", func(r chi.Router) {
		r.Get("/", webhookHandler.Verify)
		r.Post("/", webhookHandler.Receive)
	})

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, st))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/messages/send", messageHandler.Send)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
				r.Post("/assign", conversationHandler.Assign)
				r.Patch("/status", conversationHandler.UpdateStatus)
				r.Post("/follow-up", conversationHandler.FollowUp)

				r.Get("/messages", messageHandler.List)
			})
		})

		r.Post("/broadcasting/auth", realtimeHandler.Authorize)
		r.Get("/realtime/{channel}", realtimeHandler.Stream)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infow("server listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Infow("server stopped")
}
