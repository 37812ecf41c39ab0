// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/svcportal/internal/cache"
	"github.com/olegiv/svcportal/internal/config"
	"github.com/olegiv/svcportal/internal/directory"
	"github.com/olegiv/svcportal/internal/handler/api"
	"github.com/olegiv/svcportal/internal/lifecycle"
	"github.com/olegiv/svcportal/internal/logging"
	"github.com/olegiv/svcportal/internal/markdown"
	"github.com/olegiv/svcportal/internal/middleware"
	"github.com/olegiv/svcportal/internal/scheduler"
	"github.com/olegiv/svcportal/internal/service"
	"github.com/olegiv/svcportal/internal/session"
	"github.com/olegiv/svcportal/internal/store"
	"github.com/olegiv/svcportal/internal/version"
	"github.com/olegiv/svcportal/internal/webhook"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Global per-IP limits applied before session loading.
const (
	globalRateLimit = 50
	globalBurst     = 100
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "svcportal - service access request portal\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_SESSION_SECRET    Session key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_DB_PATH           SQLite database path (default: ./data/svcportal.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_REDIS_URL         Redis URL for the shared entitlement cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_WEBHOOK_URLS      Comma-separated lifecycle webhook endpoints (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SVCP_WEBHOOK_SECRET    HMAC secret for webhook signatures\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(version.New(appVersion, appGitCommit, appBuildTime).String())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	versionInfo := version.New(appVersion, appGitCommit, appBuildTime)

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// From here on WARN and ERROR records also land in the audit log.
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DoSeed {
		if err := store.Seed(ctx, db, store.SeedOptions{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			Demo:          cfg.IsDevelopment(),
		}); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		slog.Info("database seeded", "demo", cfg.IsDevelopment())
	}

	entitlementCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.EntitlementTTL,
	}, logger)
	defer func() { _ = entitlementCache.Close() }()

	hub := lifecycle.NewHub(logger)
	defer hub.Close()

	if cfg.WebhooksEnabled() {
		for _, u := range cfg.WebhookURLs {
			if err := webhook.ValidateEndpoint(u, cfg.IsDevelopment()); err != nil {
				return fmt.Errorf("webhook endpoint %q: %w", u, err)
			}
		}
		dispatcher := webhook.NewDispatcher(logger, webhook.Config{
			Endpoints: cfg.WebhookURLs,
			Secret:    cfg.WebhookSecret,
			Workers:   cfg.WebhookWorkers,
		})
		dispatcher.Start(ctx, hub.Subscribe(256))
		defer dispatcher.Stop()
	}

	sessionManager := session.New(db, cfg.IsDevelopment())

	dir := directory.New(db)
	resolver := service.NewEntitlementResolver(db, entitlementCache, cfg.EntitlementTTL, logger)
	accessService := service.NewAccessService(db, dir, resolver, hub, logger)
	contentService := service.NewContentService(db, dir, resolver, logger)
	userService := service.NewUserService(db, logger)
	catalogService := service.NewCatalogService(db, dir, logger)
	eventService := service.NewEventService(db)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Stop()
	globalLimiter := middleware.NewGlobalRateLimiter(globalRateLimit, globalBurst)

	sched := scheduler.New(logger, eventService, globalLimiter, scheduler.Config{
		EventRetention: cfg.EventRetention(),
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerPort)))
	r.Use(globalLimiter.Middleware())
	r.Use(sessionManager.LoadAndSave)
	r.Use(middleware.LoadUser(sessionManager, dir))

	burst := int(cfg.APIRateLimit * 2)
	if burst < 1 {
		burst = 1
	}
	r.Route("/api/v1", func(r chi.Router) {
		api.Mount(r, api.Routes{
			API:        api.NewHandler(accessService, contentService, dir, markdown.New(), logger),
			Auth:       api.NewAuthHandler(dir, sessionManager, eventService, loginProtection),
			Health:     api.NewHealthHandler(db, entitlementCache, versionInfo),
			Admin:      api.NewAdminHandler(eventService, sched.Registry()),
			Directory:  api.NewDirectoryHandler(userService, catalogService, logger),
			Events:     eventService,
			LoginLimit: loginProtection.Middleware(),
			APILimit:   middleware.UserRateLimit(cfg.APIRateLimit, burst),
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped", "lifecycle_events_dropped", hub.Dropped())
	return nil
}
