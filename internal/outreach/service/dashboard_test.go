package service

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"

	"github.com/google/uuid"
)

func TestGetDashboardProjectsScheduledRecentAndFailures(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(1 * time.Hour)
	repo.leads = []repository.Lead{lead}

	otherLead := uuid.New()
	repo.entries = append(repo.entries,
		repository.LogEntry{
			ID:        1,
			DedupKey:  domain.DedupKey(domain.TypeQuoteFollowup, otherLead, domain.StepQuoteFollowup1),
			LeadID:    otherLead,
			Event:     repository.EventSent,
			CreatedAt: testNow.Add(-2 * time.Hour),
		},
		repository.LogEntry{
			ID:        2,
			DedupKey:  domain.DedupKey(domain.TypeQuoteFollowup, otherLead, domain.StepQuoteFollowup2),
			LeadID:    otherLead,
			Event:     repository.EventSent,
			CreatedAt: testNow.Add(-30 * time.Hour),
		},
	)
	repo.nextEntryID = 2

	_ = repo.RecordFailure(context.Background(), repository.RecordFailureParams{
		LeadID: otherLead,
		Event:  "outreach.dispatch",
		Error:  "boom",
	})

	svc, _, _ := newTestService(repo, testCfg{})

	dash, err := svc.GetDashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	// Only the earliest unhandled step of the quote_sent lead is scheduled.
	if len(dash.Upcoming) != 1 {
		t.Fatalf("expected 1 upcoming item, got %d", len(dash.Upcoming))
	}
	item := dash.Upcoming[0]
	if item.Step != domain.StepQuoteFollowup1 || item.LeadID != lead.ID.String() {
		t.Fatalf("unexpected upcoming item: %+v", item)
	}
	if !item.DueAt.After(testNow) {
		t.Fatalf("upcoming item must be due in the future, got %v", item.DueAt)
	}

	if dash.Summary.Scheduled != 1 {
		t.Fatalf("expected scheduled=1, got %d", dash.Summary.Scheduled)
	}
	if dash.Summary.SentLast24h != 1 {
		t.Fatalf("expected sentLast24h=1 (older send excluded), got %d", dash.Summary.SentLast24h)
	}
	if dash.Summary.OpenFailures != 1 {
		t.Fatalf("expected openFailures=1, got %d", dash.Summary.OpenFailures)
	}

	if len(dash.Recent) != 2 {
		t.Fatalf("expected 2 recent entries, got %d", len(dash.Recent))
	}
	if len(dash.Failures) != 1 {
		t.Fatalf("expected 1 open failure, got %d", len(dash.Failures))
	}
}

func TestGetDashboardExcludesAlreadyDueSteps(t *testing.T) {
	repo := newFakeRepo()
	// Step 1 was due an hour ago; it belongs to the next run, not to the
	// upcoming view.
	repo.leads = []repository.Lead{quoteSentLead(3 * time.Hour)}

	svc, _, _ := newTestService(repo, testCfg{})

	dash, err := svc.GetDashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if len(dash.Upcoming) != 0 {
		t.Fatalf("expected no upcoming items for an already-due step, got %+v", dash.Upcoming)
	}
	if dash.Summary.Scheduled != 0 {
		t.Fatalf("expected scheduled=0, got %d", dash.Summary.Scheduled)
	}
}

func TestGetDashboardDoesNotMutateLedger(t *testing.T) {
	repo := newFakeRepo()
	repo.leads = []repository.Lead{quoteSentLead(3 * time.Hour)}

	svc, _, _ := newTestService(repo, testCfg{})

	if _, err := svc.GetDashboard(context.Background()); err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("dashboard must be read-only, found %d new entries", len(repo.entries))
	}
}
