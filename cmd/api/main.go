package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/alerts"
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/http/router"
	"outreach_backend/internal/outreach"
	"outreach_backend/internal/outreach/planner"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/tagging"
	"outreach_backend/internal/whatsapp"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// A broken template map is a startup error, not a runtime skip.
	templates, err := planner.LoadTemplates(cfg.GetTemplatesPath())
	if err != nil {
		log.Error("failed to load outreach templates", "error", err, "path", cfg.GetTemplatesPath())
		panic("failed to load outreach templates: " + err.Error())
	}
	log.Info("outreach templates loaded", "path", cfg.GetTemplatesPath(), "count", len(templates))

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Alerts module subscribes to failure events (not HTTP-facing)
	alertsModule := alerts.New(cfg, log)
	alertsModule.RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	outreachModule := outreach.NewModule(pool, eventBus, templates, val, cfg, log)
	outreachModule.SetChannel(whatsapp.NewClient(cfg, log))
	outreachModule.SetTagger(tagging.NewClient(cfg))

	runClient, closeRunClient := initRunClient(cfg, log)
	if closeRunClient != nil {
		defer closeRunClient()
	}
	if runClient != nil {
		outreachModule.SetRunEnqueuer(runClient)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			outreachModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRunClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; manual runs execute in-process")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize run queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
