package service

import (
	"context"
	"sort"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"

	"golang.org/x/sync/errgroup"
)

// Dashboard is the read-only operator projection: what is scheduled, what
// happened recently and what needs attention. It is recomputed per request
// and never mutates the ledger.
type Dashboard struct {
	Upcoming []UpcomingItem                 `json:"upcoming"`
	Recent   []repository.LogEntry          `json:"recent"`
	Failures []repository.AutomationFailure `json:"failures"`
	Summary  Summary                        `json:"summary"`
}

// UpcomingItem is one scheduled follow-up that is not yet due. Already-due
// steps belong to the next run, not to this view.
type UpcomingItem struct {
	LeadID   string    `json:"leadId"`
	LeadName string    `json:"leadName"`
	Type     string    `json:"type"`
	Step     string    `json:"step"`
	DueAt    time.Time `json:"dueAt"`
}

// Summary holds the dashboard headline counters.
type Summary struct {
	Scheduled    int `json:"scheduled"`
	SentLast24h  int `json:"sentLast24h"`
	OpenFailures int `json:"openFailures"`
}

const dashboardFeedLimit = 50

// GetDashboard assembles the operator dashboard. The four reads are
// independent and run concurrently; the first error cancels the rest.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	now := s.now()

	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		upcoming, err := s.upcoming(gctx, now)
		if err != nil {
			return err
		}
		dash.Upcoming = upcoming
		dash.Summary.Scheduled = len(upcoming)
		return nil
	})

	g.Go(func() error {
		recent, err := s.repo.ListRecent(gctx, dashboardFeedLimit)
		if err != nil {
			return err
		}
		dash.Recent = recent
		for _, entry := range recent {
			if entry.Event == repository.EventSent && entry.CreatedAt.After(now.Add(-24*time.Hour)) {
				dash.Summary.SentLast24h++
			}
		}
		return nil
	})

	g.Go(func() error {
		failures, err := s.repo.ListOpenFailures(gctx, dashboardFeedLimit)
		if err != nil {
			return err
		}
		dash.Failures = failures
		return nil
	})

	g.Go(func() error {
		count, err := s.repo.CountOpenFailures(gctx)
		if err != nil {
			return err
		}
		dash.Summary.OpenFailures = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

// upcoming recomputes the candidate set the same way a run would and keeps
// the earliest unhandled step per (lead, type), restricted to steps whose
// due time is still in the future.
func (s *Service) upcoming(ctx context.Context, now time.Time) ([]UpcomingItem, error) {
	entries, err := s.repo.ListWindow(ctx, now.Add(-s.dedupLookback))
	if err != nil {
		return nil, err
	}
	handled := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		handled[entry.DedupKey] = struct{}{}
	}

	snap := s.loadSnapshot(ctx, now)
	names := make(map[string]string, len(snap.Leads))
	for _, lead := range snap.Leads {
		names[lead.ID.String()] = lead.Name
	}

	type pair struct {
		lead string
		typ  domain.OpportunityType
	}
	decided := make(map[pair]struct{})

	var items []UpcomingItem
	for _, opp := range s.planner.Plan(snap) {
		key := pair{opp.LeadID.String(), opp.Type}
		if _, ok := decided[key]; ok {
			continue
		}
		if _, ok := handled[opp.DedupKey]; ok {
			continue
		}
		decided[key] = struct{}{}
		if !opp.DueAt.After(now) {
			continue
		}
		items = append(items, UpcomingItem{
			LeadID:   opp.LeadID.String(),
			LeadName: names[opp.LeadID.String()],
			Type:     string(opp.Type),
			Step:     opp.Step,
			DueAt:    opp.DueAt,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].DueAt.Before(items[j].DueAt) })
	return items, nil
}
