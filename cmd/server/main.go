// Package main implements the entry point for the adforge server,
// which orchestrates ad-creative generation tasks across external
// rendering providers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lcollado/adforge/internal/api"
	"github.com/lcollado/adforge/internal/assets"
	"github.com/lcollado/adforge/internal/breaker"
	"github.com/lcollado/adforge/internal/catalog"
	"github.com/lcollado/adforge/internal/config"
	"github.com/lcollado/adforge/internal/events"
	"github.com/lcollado/adforge/internal/orchestrator"
	"github.com/lcollado/adforge/internal/platform/logger"
	"github.com/lcollado/adforge/internal/platform/metrics"
	"github.com/lcollado/adforge/internal/provider"
	"github.com/lcollado/adforge/internal/provider/compositor"
	"github.com/lcollado/adforge/internal/provider/videogen"
	"github.com/lcollado/adforge/internal/retry"
	"github.com/lcollado/adforge/internal/service/auth"
	"github.com/lcollado/adforge/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"archive_enabled", cfg.Archive.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	if len(providers.IDs()) == 0 {
		return fmt.Errorf("no providers enabled; enable at least one under providers.*")
	}

	m := metrics.New()
	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(m)

	var archive store.TaskArchive
	if cfg.Archive.Enabled {
		db, err := store.Connect(cfg.Archive.DatabaseURL, appLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to archive database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("failed to close archive database", "error", err)
			}
		}()
		if err := store.Migrate(db, appLogger); err != nil {
			return fmt.Errorf("failed to run archive migrations: %w", err)
		}
		pgArchive := store.NewPostgresTaskArchive(db, appLogger)
		emitter.RegisterHandler(store.NewArchiveHandler(pgArchive, appLogger))
		archive = pgArchive
	}

	orch := orchestrator.New(
		orchestrator.Config{
			MaxConcurrency: cfg.Orchestrator.MaxConcurrency,
			QueueSize:      cfg.Orchestrator.QueueSize,
			AdapterTimeout: cfg.Orchestrator.AdapterTimeout,
			PollInterval:   cfg.Orchestrator.PollInterval,
			CancelGrace:    cfg.Orchestrator.CancelGracePeriod,
		},
		providers,
		breaker.NewRegistry(breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
			CooldownJitter:   cfg.Breaker.CooldownJitter,
		}),
		retry.NewPolicy(retry.Config{
			BaseDelay:          cfg.Retry.BaseDelay,
			MaxDelay:           cfg.Retry.MaxDelay,
			MaxAttempts:        cfg.Retry.MaxAttempts,
			MaxUnknownAttempts: cfg.Retry.MaxUnknownAttempts,
		}),
		emitter,
		appLogger,
	)
	orch.Start()
	defer orch.Stop()

	m.RegisterHealth(func() []metrics.HealthSample {
		health := orch.Health()
		samples := make([]metrics.HealthSample, len(health))
		for i, h := range health {
			samples[i] = metrics.HealthSample{
				ProviderID:          h.ProviderID,
				BreakerState:        h.BreakerState,
				ConsecutiveFailures: h.ConsecutiveFailures,
				QueueDepth:          h.QueueDepth,
			}
		}
		return samples
	})

	templates, err := catalog.NewFSCatalog(cfg.Catalog.TemplateDir, appLogger)
	if err != nil {
		return fmt.Errorf("failed to load template catalog: %w", err)
	}

	jwtService, err := auth.NewJWTService(auth.Config{
		SigningKey:    cfg.Auth.JWTSecret,
		TokenLifetime: time.Duration(cfg.Auth.TokenLifetimeMinutes) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create JWT service: %w", err)
	}

	taskHandler := api.NewTaskHandler(
		orch,
		templates,
		assets.NewService(assets.Config{
			MaxSizeBytes:        cfg.Assets.MaxSizeBytes,
			AllowedContentTypes: cfg.Assets.AllowedContentTypes,
		}),
		archive,
		appLogger,
	)
	authHandler := api.NewAuthHandler(
		api.NewOperatorCredentials(cfg.Auth.Username, cfg.Auth.PasswordHash),
		jwtService,
		auth.NewBcryptVerifier(),
		appLogger,
	)

	router := api.NewRouter(api.RouterDeps{
		Tasks:      taskHandler,
		Auth:       authHandler,
		JWTService: jwtService,
		Metrics:    m.Handler(),
	})

	return serve(ctx, cfg.Server.Port, router, appLogger)
}

// buildProviders registers every enabled adapter.
func buildProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	if cfg.Providers.Compositor.Enabled {
		adapter, err := compositor.New(ctx, compositor.Config{
			APIKey:    cfg.Providers.Compositor.APIKey,
			Model:     cfg.Providers.Compositor.Model,
			OutputDir: cfg.Providers.Compositor.OutputDir,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create compositor adapter: %w", err)
		}
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.Luma.Enabled {
		adapter := videogen.NewLumaAdapter(videogen.Config{
			BaseURL:     cfg.Providers.Luma.BaseURL,
			APIKey:      cfg.Providers.Luma.APIKey,
			HTTPTimeout: cfg.Providers.Luma.HTTPTimeout,
		}, logger)
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}
	if cfg.Providers.Pika.Enabled {
		adapter := videogen.NewPikaAdapter(videogen.Config{
			BaseURL:     cfg.Providers.Pika.BaseURL,
			APIKey:      cfg.Providers.Pika.APIKey,
			HTTPTimeout: cfg.Providers.Pika.HTTPTimeout,
		}, logger)
		if err := registry.Register(adapter); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// serve runs the HTTP server until the context is cancelled, then
// shuts it down gracefully.
func serve(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
