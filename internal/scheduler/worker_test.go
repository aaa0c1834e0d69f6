package scheduler

import (
	"context"
	"errors"
	"testing"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeRunner struct {
	runs      int
	triggered []uuid.UUID
	runErr    error
	outcome   service.Outcome
}

func (f *fakeRunner) Run(context.Context) (service.RunResult, error) {
	f.runs++
	return service.RunResult{OK: true}, f.runErr
}

func (f *fakeRunner) TriggerLead(_ context.Context, leadID uuid.UUID, _ string) (service.Outcome, error) {
	f.triggered = append(f.triggered, leadID)
	return f.outcome, nil
}

func testWorker(runner *fakeRunner) *Worker {
	return &Worker{runner: runner, log: logger.New("development")}
}

func TestHandleOutreachRunInvokesRunner(t *testing.T) {
	runner := &fakeRunner{}
	w := testWorker(runner)

	task, err := NewOutreachRunTask(OutreachRunPayload{RunID: "run-1"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := w.handleOutreachRun(context.Background(), task); err != nil {
		t.Fatalf("handle run: %v", err)
	}
	if runner.runs != 1 {
		t.Fatalf("expected 1 run, got %d", runner.runs)
	}
}

func TestHandleOutreachRunPropagatesErrorForRetry(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("store unreachable")}
	w := testWorker(runner)

	task, err := NewOutreachRunTask(OutreachRunPayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := w.handleOutreachRun(context.Background(), task); err == nil {
		t.Fatalf("expected error to propagate so the queue retries")
	}
}

func TestHandleOutreachLeadParsesAndTriggers(t *testing.T) {
	runner := &fakeRunner{outcome: service.Outcome{Result: service.ResultSent}}
	w := testWorker(runner)

	leadID := uuid.New()
	task, err := NewOutreachLeadTask(OutreachLeadPayload{LeadID: leadID.String(), Cause: "operator"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := w.handleOutreachLead(context.Background(), task); err != nil {
		t.Fatalf("handle lead: %v", err)
	}
	if len(runner.triggered) != 1 || runner.triggered[0] != leadID {
		t.Fatalf("expected lead %s triggered, got %v", leadID, runner.triggered)
	}
}

func TestHandleOutreachLeadRejectsMalformedLeadID(t *testing.T) {
	runner := &fakeRunner{}
	w := testWorker(runner)

	task := asynq.NewTask(TaskOutreachLead, []byte(`{"leadId":"not-a-uuid"}`))
	if err := w.handleOutreachLead(context.Background(), task); err == nil {
		t.Fatalf("expected error for malformed lead id")
	}
	if len(runner.triggered) != 0 {
		t.Fatalf("malformed payload must not trigger")
	}
}
