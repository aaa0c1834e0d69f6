package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic enqueues the outreach run task on a cron schedule. It is a thin
// wrapper over the asynq scheduler so only one instance should run it.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			log.Error("periodic enqueue failed", "task", task.Type(), "error", err)
		},
	})

	// The run ID is assigned by the worker per execution; the registered
	// payload stays empty.
	task, err := NewOutreachRunTask(OutreachRunPayload{})
	if err != nil {
		return nil, err
	}

	if _, err := sched.Register(cfg.GetOutreachRunCron(), task, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register outreach run schedule: %w", err)
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
