package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/alerts"
	"outreach_backend/internal/events"
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

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	templates, err := planner.LoadTemplates(cfg.GetTemplatesPath())
	if err != nil {
		log.Error("failed to load outreach templates", "error", err, "path", cfg.GetTemplatesPath())
		panic("failed to load outreach templates: " + err.Error())
	}

	alertsModule := alerts.New(cfg, log)
	alertsModule.RegisterHandlers(eventBus)

	val := validator.New()

	// Worker-side outreach wiring (no HTTP handlers required).
	outreachModule := outreach.NewModule(pool, eventBus, templates, val, cfg, log)
	outreachModule.SetChannel(whatsapp.NewClient(cfg, log))
	outreachModule.SetTagger(tagging.NewClient(cfg))

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, outreachModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
