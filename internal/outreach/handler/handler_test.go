package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outreach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeEnqueuer struct {
	runs    int
	leadIDs []uuid.UUID
	causes  []string
	err     error
}

func (f *fakeEnqueuer) EnqueueRun(context.Context) error {
	f.runs++
	return f.err
}

func (f *fakeEnqueuer) EnqueueLeadTrigger(_ context.Context, leadID uuid.UUID, cause string) error {
	f.leadIDs = append(f.leadIDs, leadID)
	f.causes = append(f.causes, cause)
	return f.err
}

func newQueuedHandler(enqueuer *fakeEnqueuer) (*Handler, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	h := New(nil, validator.New())
	h.SetRunEnqueuer(enqueuer)

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/outreach"))
	return h, engine
}

func TestTriggerLeadQueuesWhenEnqueuerAttached(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	_, engine := newQueuedHandler(enqueuer)

	leadID := uuid.New()
	body := strings.NewReader(`{"cause":"operator requested resend"}`)
	req := httptest.NewRequest(http.MethodPost, "/outreach/leads/"+leadID.String()+"/trigger", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(enqueuer.leadIDs) != 1 || enqueuer.leadIDs[0] != leadID {
		t.Fatalf("expected lead %s queued, got %v", leadID, enqueuer.leadIDs)
	}
	if enqueuer.causes[0] != "operator requested resend" {
		t.Fatalf("expected cause on the queue payload, got %q", enqueuer.causes[0])
	}
}

func TestTriggerLeadRejectsMalformedLeadID(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	_, engine := newQueuedHandler(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/outreach/leads/not-a-uuid/trigger", nil)
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(enqueuer.leadIDs) != 0 {
		t.Fatalf("malformed lead id must not be queued")
	}
}

func TestTriggerLeadRejectsOversizedCause(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	_, engine := newQueuedHandler(enqueuer)

	body := strings.NewReader(`{"cause":"` + strings.Repeat("x", 201) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/outreach/leads/"+uuid.NewString()+"/trigger", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized cause, got %d", rec.Code)
	}
	if len(enqueuer.leadIDs) != 0 {
		t.Fatalf("invalid request must not be queued")
	}
}

func TestRunQueuesWhenEnqueuerAttached(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	_, engine := newQueuedHandler(enqueuer)

	req := httptest.NewRequest(http.MethodPost, "/outreach/run", nil)
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if enqueuer.runs != 1 {
		t.Fatalf("expected 1 queued run, got %d", enqueuer.runs)
	}
}
