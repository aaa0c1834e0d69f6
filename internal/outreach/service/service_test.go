package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/planner"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// =====================================
// Fakes
// =====================================

type fakeRepo struct {
	leads    []repository.Lead
	bookings []repository.Booking
	payments []repository.Payment
	entries  []repository.LogEntry
	failures []repository.AutomationFailure

	now                  time.Time
	nextEntryID          int64
	pingErr              error
	reserveErr           error
	forceReserveConflict bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{now: testNow}
}

func (f *fakeRepo) ListLeads(context.Context) ([]repository.Lead, error) {
	return f.leads, nil
}

func (f *fakeRepo) GetLeadByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.ID == id {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeRepo) ListBookings(context.Context) ([]repository.Booking, error) {
	return f.bookings, nil
}

func (f *fakeRepo) ListBookingsByLead(_ context.Context, leadID uuid.UUID) ([]repository.Booking, error) {
	var out []repository.Booking
	for _, b := range f.bookings {
		if b.LeadID == leadID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPendingPayments(_ context.Context, since time.Time) ([]repository.Payment, error) {
	pending := map[string]struct{}{"created": {}, "pending": {}, "authorized": {}, "requires_action": {}}
	var out []repository.Payment
	for _, p := range f.payments {
		if _, ok := pending[p.Status]; ok && !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) RecordOutreach(_ context.Context, leadID uuid.UUID, at time.Time) error {
	for i := range f.leads {
		if f.leads[i].ID == leadID {
			f.leads[i].OutreachCount++
			f.leads[i].LastOutreachAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRepo) Reserve(_ context.Context, p repository.EntryParams) (bool, error) {
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if f.forceReserveConflict {
		return false, nil
	}
	for _, e := range f.entries {
		if e.DedupKey == p.DedupKey && e.Event == repository.EventReserved {
			return false, nil
		}
	}
	f.append(p, repository.EventReserved)
	return true, nil
}

func (f *fakeRepo) Append(_ context.Context, p repository.EntryParams) error {
	f.append(p, p.Event)
	return nil
}

func (f *fakeRepo) append(p repository.EntryParams, event repository.LogEvent) {
	f.nextEntryID++
	f.entries = append(f.entries, repository.LogEntry{
		ID:         f.nextEntryID,
		DedupKey:   p.DedupKey,
		LeadID:     p.LeadID,
		Event:      event,
		Type:       p.Type,
		Step:       p.Step,
		TemplateID: p.TemplateID,
		Message:    p.Message,
		CreatedAt:  f.now,
	})
}

func (f *fakeRepo) ListWindow(_ context.Context, since time.Time) ([]repository.LogEntry, error) {
	var out []repository.LogEntry
	for _, e := range f.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListRecent(_ context.Context, limit int) ([]repository.LogEntry, error) {
	out := make([]repository.LogEntry, len(f.entries))
	copy(out, f.entries)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListStaleReservations(_ context.Context, cutoff time.Time) ([]repository.LogEntry, error) {
	terminal := make(map[string]struct{})
	for _, e := range f.entries {
		if e.Event == repository.EventSent || e.Event == repository.EventSkipped || e.Event == repository.EventFailed {
			terminal[e.DedupKey] = struct{}{}
		}
	}
	var out []repository.LogEntry
	for _, e := range f.entries {
		if e.Event != repository.EventReserved || !e.CreatedAt.Before(cutoff) {
			continue
		}
		if _, done := terminal[e.DedupKey]; !done {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) RecordFailure(_ context.Context, p repository.RecordFailureParams) error {
	for i := range f.failures {
		if f.failures[i].LeadID == p.LeadID && f.failures[i].Event == p.Event && !f.failures[i].Resolved {
			f.failures[i].Error = p.Error
			f.failures[i].Attempts++
			f.failures[i].UpdatedAt = f.now
			return nil
		}
	}
	f.failures = append(f.failures, repository.AutomationFailure{
		ID:        uuid.New(),
		LeadID:    p.LeadID,
		BookingID: p.BookingID,
		Event:     p.Event,
		Error:     p.Error,
		Attempts:  1,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	})
	return nil
}

func (f *fakeRepo) ListOpenFailures(_ context.Context, limit int) ([]repository.AutomationFailure, error) {
	var out []repository.AutomationFailure
	for _, fl := range f.failures {
		if !fl.Resolved {
			out = append(out, fl)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CountOpenFailures(context.Context) (int, error) {
	count := 0
	for _, fl := range f.failures {
		if !fl.Resolved {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ResolveFailure(_ context.Context, id uuid.UUID) error {
	for i := range f.failures {
		if f.failures[i].ID == id && !f.failures[i].Resolved {
			f.failures[i].Resolved = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }

func (f *fakeRepo) entriesFor(key string, event repository.LogEvent) int {
	count := 0
	for _, e := range f.entries {
		if e.DedupKey == key && e.Event == event {
			count++
		}
	}
	return count
}

type sentMessage struct {
	To      string
	Message string
}

type fakeChannel struct {
	sent    []sentMessage
	sendErr error
}

func (c *fakeChannel) Configured() bool { return true }

func (c *fakeChannel) SendMessage(_ context.Context, to, message string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMessage{To: to, Message: message})
	return nil
}

type taggedContact struct {
	Email string
	Tags  []string
}

type fakeTagger struct {
	tagged []taggedContact
	err    error
}

func (t *fakeTagger) UpsertContact(_ context.Context, email, _ string, tags []string) (bool, error) {
	if t.err != nil {
		return true, t.err
	}
	t.tagged = append(t.tagged, taggedContact{Email: email, Tags: tags})
	return true, nil
}

type testCfg struct {
	maxPerRun  int
	maxPerLead int
}

func (c testCfg) GetMaxMessagesPerRun() int {
	if c.maxPerRun > 0 {
		return c.maxPerRun
	}
	return 50
}

func (c testCfg) GetMaxMessagesPerLeadWindow() int {
	if c.maxPerLead > 0 {
		return c.maxPerLead
	}
	return 3
}

func (testCfg) GetThrottleWindow() time.Duration   { return 168 * time.Hour }
func (testCfg) GetDedupLookback() time.Duration    { return 168 * time.Hour }
func (testCfg) GetPaymentLookback() time.Duration  { return 96 * time.Hour }
func (testCfg) GetReservationGrace() time.Duration { return 30 * time.Minute }
func (testCfg) GetTemplatesPath() string           { return "" }

func fullTemplates() planner.Templates {
	templates := planner.Templates{}
	for _, rule := range domain.AllSteps() {
		templates[rule.Step] = planner.Template{ID: "tpl-" + rule.Step, Body: "hoi {{name}}, stap " + rule.Step}
	}
	return templates
}

func newTestService(repo *fakeRepo, cfg testCfg) (*Service, *fakeChannel, *fakeTagger) {
	channel := &fakeChannel{}
	tagger := &fakeTagger{}
	svc := New(repo, planner.New(fullTemplates()), cfg, logger.New("development"))
	svc.SetChannel(channel)
	svc.SetTagger(tagger)
	svc.now = func() time.Time { return testNow }
	return svc, channel, tagger
}

func quoteSentLead(updatedAgo time.Duration) repository.Lead {
	return repository.Lead{
		ID:          uuid.New(),
		Name:        "Anna",
		Phone:       "+31612345678",
		Email:       "anna@example.com",
		Stage:       domain.StageQuoteSent,
		Destination: "Lissabon",
		BudgetCents: 250000,
		CreatedAt:   testNow.Add(-updatedAgo - time.Hour),
		UpdatedAt:   testNow.Add(-updatedAgo),
	}
}

// =====================================
// Run engine
// =====================================

func TestRunDispatchesDueStepAndIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour) // step 1 due (2h), step 2 not (24h)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !result.OK || result.Sent != 1 || result.Processed != 1 {
		t.Fatalf("expected 1 sent of 1 processed, got %+v", result)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("expected 1 channel send, got %d", len(channel.sent))
	}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	if repo.entriesFor(key, repository.EventReserved) != 1 {
		t.Fatalf("expected reservation entry for %s", key)
	}
	if repo.entriesFor(key, repository.EventSent) != 1 {
		t.Fatalf("expected sent entry for %s", key)
	}

	// Second run: the ledger already holds the key, nothing new goes out.
	result, err = svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result.Sent != 0 {
		t.Fatalf("second run must not re-send, got %+v", result)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("expected channel sends to stay at 1, got %d", len(channel.sent))
	}
}

func TestRunHonorsLinearDripOrder(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(80 * time.Hour) // all three steps past due
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("expected only the earliest unhandled step per run, got %+v", result)
	}

	step1 := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	step2 := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup2)
	if repo.entriesFor(step1, repository.EventSent) != 1 {
		t.Fatalf("expected step 1 sent first")
	}
	if repo.entriesFor(step2, repository.EventSent) != 0 {
		t.Fatalf("step 2 must stay suppressed while step 1 just cleared")
	}

	// Next run advances to step 2.
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if repo.entriesFor(step2, repository.EventSent) != 1 {
		t.Fatalf("expected step 2 sent on the following run")
	}
	if len(channel.sent) != 2 {
		t.Fatalf("expected 2 sends total, got %d", len(channel.sent))
	}
}

func TestRunThrottlesLeadAtWindowCap(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	// Three sends in the window, unrelated keys.
	for i := 0; i < 3; i++ {
		repo.entries = append(repo.entries, repository.LogEntry{
			ID:        int64(100 + i),
			DedupKey:  fmt.Sprintf("payment_reminder:%s:payment_reminder_%d", lead.ID, i+1),
			LeadID:    lead.ID,
			Event:     repository.EventSent,
			CreatedAt: testNow.Add(-48 * time.Hour),
		})
	}

	svc, channel, _ := newTestService(repo, testCfg{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Sent != 0 || result.Skipped != 1 {
		t.Fatalf("expected throttled skip, got %+v", result)
	}
	if len(channel.sent) != 0 {
		t.Fatalf("throttled lead must not receive messages")
	}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	if repo.entriesFor(key, repository.EventSkipped) != 1 {
		t.Fatalf("expected skipped ledger entry for throttled step")
	}
}

func TestRunRespectsPerRunCap(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 8; i++ {
		repo.leads = append(repo.leads, quoteSentLead(3*time.Hour))
	}

	svc, channel, _ := newTestService(repo, testCfg{maxPerRun: 5})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Processed != 5 {
		t.Fatalf("expected run cap of 5, got %+v", result)
	}
	if len(channel.sent) != 5 {
		t.Fatalf("expected 5 sends, got %d", len(channel.sent))
	}
}

func TestRunWithoutChannelReportsNotConfigured(t *testing.T) {
	repo := newFakeRepo()
	repo.leads = []repository.Lead{quoteSentLead(3 * time.Hour)}

	svc := New(repo, planner.New(fullTemplates()), testCfg{}, logger.New("development"))
	svc.now = func() time.Time { return testNow }

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unconfigured run must not error, got %v", err)
	}
	if result.OK || result.Processed != 0 {
		t.Fatalf("expected ok=false with zero work, got %+v", result)
	}
}

func TestRunAbortsWhenStoreUnreachable(t *testing.T) {
	repo := newFakeRepo()
	repo.pingErr = errors.New("connection refused")

	svc, _, _ := newTestService(repo, testCfg{})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected error when the data store is unreachable")
	}
}

func TestRunDispatchFailureIsTerminalAndRecorded(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})
	channel.sendErr = errors.New("gateway timeout")

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Failed != 1 || result.Sent != 0 {
		t.Fatalf("expected 1 failed, got %+v", result)
	}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	if repo.entriesFor(key, repository.EventFailed) != 1 {
		t.Fatalf("expected failed ledger entry")
	}
	if len(repo.failures) != 1 || repo.failures[0].Event != "outreach.dispatch" {
		t.Fatalf("expected outreach.dispatch failure record, got %+v", repo.failures)
	}

	// A failed step is handled: the next run moves on instead of retrying.
	channel.sendErr = nil
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if repo.entriesFor(key, repository.EventSent) != 0 {
		t.Fatalf("failed step must not be retried automatically")
	}
}

func TestRunSkipsLeadWithoutDialablePhone(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	lead.Phone = "not-a-number"
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Skipped != 1 || result.Sent != 0 {
		t.Fatalf("expected address-less skip, got %+v", result)
	}
	if len(channel.sent) != 0 {
		t.Fatalf("no message may go out without a dialable phone")
	}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	if repo.entriesFor(key, repository.EventSkipped) != 1 {
		t.Fatalf("expected skipped ledger entry")
	}
}

func TestRunRepeatedDispatchFailureBumpsAttempts(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(80 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})
	channel.sendErr = errors.New("gateway down")

	for i := 0; i < 2; i++ {
		if _, err := svc.Run(context.Background()); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	if len(repo.failures) != 1 {
		t.Fatalf("expected a single open failure row per (lead, event), got %d", len(repo.failures))
	}
	if repo.failures[0].Attempts != 2 {
		t.Fatalf("expected attempts=2, got %d", repo.failures[0].Attempts)
	}
}

func TestRunTaggingFailureDoesNotRevertSend(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, tagger := newTestService(repo, testCfg{})
	tagger.err = errors.New("brevo 500")

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Sent != 1 {
		t.Fatalf("tagging failure must not revert the send, got %+v", result)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("expected message delivered")
	}
	if len(repo.failures) != 1 || repo.failures[0].Event != "outreach.tagging" {
		t.Fatalf("expected outreach.tagging failure record, got %+v", repo.failures)
	}
}

func TestRunRecordsLeadBookkeepingAfterSend(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, _, tagger := newTestService(repo, testCfg{})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if repo.leads[0].OutreachCount != 1 {
		t.Fatalf("expected outreach_count=1, got %d", repo.leads[0].OutreachCount)
	}
	if repo.leads[0].LastOutreachAt == nil || !repo.leads[0].LastOutreachAt.Equal(testNow) {
		t.Fatalf("expected last_outreach_at=%v, got %v", testNow, repo.leads[0].LastOutreachAt)
	}
	if len(tagger.tagged) != 1 || tagger.tagged[0].Email != lead.Email {
		t.Fatalf("expected contact tagged, got %+v", tagger.tagged)
	}
}

func TestRunSweepsStaleReservationsWithoutResending(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	repo.entries = append(repo.entries, repository.LogEntry{
		ID:        1,
		DedupKey:  key,
		LeadID:    lead.ID,
		Event:     repository.EventReserved,
		Type:      string(domain.TypeQuoteFollowup),
		Step:      domain.StepQuoteFollowup1,
		CreatedAt: testNow.Add(-2 * time.Hour),
	})
	repo.nextEntryID = 1

	svc, channel, _ := newTestService(repo, testCfg{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Sent != 0 || len(channel.sent) != 0 {
		t.Fatalf("stale reservation must never be silently re-sent, got %+v", result)
	}
	if len(repo.failures) != 1 || repo.failures[0].Event != "outreach.reservation_stale" {
		t.Fatalf("expected stale reservation surfaced as failure, got %+v", repo.failures)
	}
}

func TestRunSkipOnlyStepIsLoggedNotDispatched(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	templates := fullTemplates()
	templates[domain.StepQuoteFollowup1] = planner.Template{ID: "tpl-quote_followup_1", Body: ""}

	channel := &fakeChannel{}
	svc := New(repo, planner.New(templates), testCfg{}, logger.New("development"))
	svc.SetChannel(channel)
	svc.now = func() time.Time { return testNow }

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Skipped != 1 || len(channel.sent) != 0 {
		t.Fatalf("expected skip-only step logged without dispatch, got %+v", result)
	}

	key := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup1)
	if repo.entriesFor(key, repository.EventSkipped) != 1 {
		t.Fatalf("expected skipped ledger entry for skip-only step")
	}
}

// =====================================
// Manual trigger
// =====================================

func TestTriggerLeadSendsEarliestEligibleStep(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultSent {
		t.Fatalf("expected sent, got %+v", outcome)
	}
	if len(channel.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(channel.sent))
	}
}

func TestTriggerLeadNoEligibleStep(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(time.Hour) // step 1 not due yet
	repo.leads = []repository.Lead{lead}

	svc, _, _ := newTestService(repo, testCfg{})

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultSkipped || outcome.Cause != CauseNoEligibleStep {
		t.Fatalf("expected no_eligible_step skip, got %+v", outcome)
	}
}

func TestTriggerLeadDoNotContact(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	lead.DoNotContact = true
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultSkipped || outcome.Cause != CauseDoNotContact {
		t.Fatalf("expected do_not_contact skip, got %+v", outcome)
	}
	if len(channel.sent) != 0 {
		t.Fatalf("do-not-contact lead must never receive messages")
	}
}

func TestTriggerLeadThrottled(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}
	for i := 0; i < 3; i++ {
		repo.entries = append(repo.entries, repository.LogEntry{
			ID:        int64(100 + i),
			DedupKey:  fmt.Sprintf("payment_reminder:%s:payment_reminder_%d", lead.ID, i+1),
			LeadID:    lead.ID,
			Event:     repository.EventSent,
			CreatedAt: testNow.Add(-time.Hour),
		})
	}

	svc, _, _ := newTestService(repo, testCfg{})

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultSkipped || outcome.Cause != CauseThrottled {
		t.Fatalf("expected throttled skip, got %+v", outcome)
	}
}

func TestTriggerLeadDedupedOnReservationRace(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}
	repo.forceReserveConflict = true

	svc, channel, _ := newTestService(repo, testCfg{})

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultSkipped || outcome.Cause != CauseDeduped {
		t.Fatalf("expected deduped skip on reservation conflict, got %+v", outcome)
	}
	if len(channel.sent) != 0 {
		t.Fatalf("lost reservation must not dispatch")
	}
}

func TestTriggerLeadDispatchFailure(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(3 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})
	channel.sendErr = errors.New("gateway timeout")

	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if outcome.Result != ResultFailed || outcome.Cause != CauseDispatchFailed {
		t.Fatalf("expected dispatch_failed, got %+v", outcome)
	}
}

func TestTriggerLeadAdvancesPastFailedStep(t *testing.T) {
	repo := newFakeRepo()
	lead := quoteSentLead(80 * time.Hour)
	repo.leads = []repository.Lead{lead}

	svc, channel, _ := newTestService(repo, testCfg{})
	channel.sendErr = errors.New("gateway timeout")

	// First trigger fails step 1 terminally.
	if _, err := svc.TriggerLead(context.Background(), lead.ID, "test"); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}

	// Second trigger moves on to step 2 instead of retrying step 1.
	channel.sendErr = nil
	outcome, err := svc.TriggerLead(context.Background(), lead.ID, "test")
	if err != nil {
		t.Fatalf("second trigger failed: %v", err)
	}
	if outcome.Result != ResultSent {
		t.Fatalf("expected sent, got %+v", outcome)
	}

	step2 := domain.DedupKey(domain.TypeQuoteFollowup, lead.ID, domain.StepQuoteFollowup2)
	if repo.entriesFor(step2, repository.EventSent) != 1 {
		t.Fatalf("expected step 2 dispatched after step 1 failed terminally")
	}
}

func TestTriggerLeadUnknownLead(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo, testCfg{})

	_, err := svc.TriggerLead(context.Background(), uuid.New(), "test")
	if err == nil {
		t.Fatalf("expected error for unknown lead")
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

// =====================================
// Failures
// =====================================

func TestResolveFailure(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	_ = repo.RecordFailure(context.Background(), repository.RecordFailureParams{
		LeadID: leadID,
		Event:  "outreach.dispatch",
		Error:  "boom",
	})

	svc, _, _ := newTestService(repo, testCfg{})

	if err := svc.ResolveFailure(context.Background(), repo.failures[0].ID); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	count, _ := repo.CountOpenFailures(context.Background())
	if count != 0 {
		t.Fatalf("expected no open failures after resolve, got %d", count)
	}

	err := svc.ResolveFailure(context.Background(), repo.failures[0].ID)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found for already resolved failure, got %v", err)
	}
}
