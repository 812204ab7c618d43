// PawCare - pet health triage chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pawcare-labs/pawcare/internal/agent"
	"github.com/pawcare-labs/pawcare/internal/api"
	"github.com/pawcare-labs/pawcare/internal/chat"
	"github.com/pawcare-labs/pawcare/internal/config"
	"github.com/pawcare-labs/pawcare/internal/health"
	"github.com/pawcare-labs/pawcare/internal/identity"
	"github.com/pawcare-labs/pawcare/internal/middleware"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/pawcare-labs/pawcare/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	gateway, err := agent.NewGatewayClient(agent.GatewayConfig{
		URL:         cfg.Generation.URL,
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize generation client", "error", err)
		os.Exit(1)
	}
	if !gateway.Enabled() {
		slog.Warn("GENERATION_API_KEY not set, on-topic messages will get the fallback reply")
	}

	// Initialize services.
	svc := agent.NewService(gateway, repo, agent.ServiceOptions{
		Classifier:   triage.DefaultClassifier(),
		HistoryLimit: cfg.Triage.HistoryLimit,
		Logger:       logger,
	})
	sm := chat.NewSessionManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, gateway.Enabled())
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)
	triageHandler := agent.NewHandler(svc, repo, cfg.MaxRequestBodySize)
	wsHandler := chat.NewWebSocketHandler(svc, repo, sm, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Identity-scoped routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		baseHandler.RegisterRoutes(r)
		triageHandler.RegisterRoutes(r)
		r.Get("/ws/triage", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WriteTimeout stays 0 so long-lived websocket connections are not cut.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start session sweeper.
	agent.StartSweeper(ctx, svc, repo, agent.SweeperConfig{
		SessionTTL:     cfg.SessionTTL,
		EventRetention: cfg.EventRetention,
	}, sm.Close)

	// Start gRPC health server (optional).
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err, "addr", cfg.GRPCHealthAddr)
			os.Exit(1)
		}
		hs := health.NewServer(map[string]health.Check{
			"database": repo.Ping,
		})
		go func() {
			if err := hs.Serve(ctx, lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	sm.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
