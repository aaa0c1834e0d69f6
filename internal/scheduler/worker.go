package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// OutreachRunner is the slice of the outreach service the worker needs.
type OutreachRunner interface {
	Run(ctx context.Context) (service.RunResult, error)
	TriggerLead(ctx context.Context, leadID uuid.UUID, cause string) (service.Outcome, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner OutreachRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner OutreachRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskOutreachRun, w.handleOutreachRun)
	mux.HandleFunc(TaskOutreachLead, w.handleOutreachLead)

	return w, nil
}

func (w *Worker) handleOutreachRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachRunPayload(task)
	if err != nil {
		return err
	}

	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, payload.RunID)

	_, err = w.runner.Run(ctx)
	return err
}

func (w *Worker) handleOutreachLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachLeadPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	outcome, err := w.runner.TriggerLead(ctx, leadID, payload.Cause)
	if err != nil {
		return err
	}

	w.log.Info("manual outreach trigger processed",
		"lead_id", payload.LeadID, "result", outcome.Result, "cause", outcome.Cause)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
