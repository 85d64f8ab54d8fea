// Challenge Lab - interactive web challenge server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/challenge-lab/content"
	"github.com/ashureev/challenge-lab/internal/api"
	"github.com/ashureev/challenge-lab/internal/catalog"
	"github.com/ashureev/challenge-lab/internal/config"
	"github.com/ashureev/challenge-lab/internal/identity"
	"github.com/ashureev/challenge-lab/internal/live"
	"github.com/ashureev/challenge-lab/internal/middleware"
	"github.com/ashureev/challenge-lab/internal/preview"
	"github.com/ashureev/challenge-lab/internal/session"
	"github.com/ashureev/challenge-lab/internal/store"
	"github.com/ashureev/challenge-lab/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, store.RetryConfig{
		MaxRetries: cfg.Retry.DatabaseMaxRetries,
		BaseDelay:  cfg.Retry.DatabaseRetryBaseDelay,
	})
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

	challenges := catalog.New(repo)
	packFS := content.Challenges()
	if cfg.ContentDir != "" {
		packFS = os.DirFS(cfg.ContentDir)
	}
	seeded, err := challenges.Seed(context.Background(), packFS)
	if err != nil {
		slog.Error("Failed to seed challenge catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Challenge catalog ready", "challenges", seeded, "content_dir", cfg.ContentDir)

	registry := preview.NewRegistry()
	sessions := session.NewManager(registry, session.Options{SubmitDelay: cfg.SubmitDelay})
	hub := live.NewHub()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, challenges, sessions, registry, hub, cfg.PreviewURL)
	healthHandler := api.NewHealthHandler(repo)
	challengeHandler := api.NewChallengeHandler(baseHandler, middleware.RateLimit(cfg.SubmitRatePerMinute))
	adminHandler := api.NewAdminHandler(baseHandler)
	previewHandler := api.NewPreviewHandler(registry, preview.Policy{FrameAncestors: cfg.FrameAncestors()})
	wsHandler := live.NewHandler(challenges, sessions, hub, cfg.PreviewURL, cfg.FrontendURL, cfg.IsDevelopment())

	allowedOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		allowedOrigins = []string{cfg.FrontendURL}
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))

	// Preview documents carry no identity and no cookies.
	previewHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(allowedOrigins))
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

		healthHandler.RegisterHealth(r)
		challengeHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r, middleware.RequireAdmin(cfg.AdminUserIDs))

		// WebSocket endpoint.
		r.Get("/ws/challenges/{id}", wsHandler.ServeHTTP)

		spa := web.SPAHandler()
		r.Get("/challenges/{id}", challengeHandler.PageHandler(spa))

		// Serve embedded frontend (SPA catch-all).
		r.Handle("/*", spa)
	})

	// Create server.
	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartTTLWorker(ctx, sessions, cfg.SessionTTL, cfg.SweepInterval, hub.Close)
	slog.Info("TTL worker started", "session_ttl", cfg.SessionTTL)

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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
