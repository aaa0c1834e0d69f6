// Package service implements the outreach run engine: opportunity selection,
// at-most-once dispatch against the outreach ledger, per-lead throttling and
// the manual single-lead trigger. Opportunities within one run are processed
// sequentially so the in-memory dedup set and throttle counters stay
// consistent without locking.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/planner"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository is the consumer-driven data interface for the run engine.
type Repository interface {
	repository.SnapshotReader
	repository.LeadBookkeeper
	repository.LogStore
	repository.FailureStore
	repository.HealthChecker
}

// Channel delivers one rendered message to a contact address.
type Channel interface {
	SendMessage(ctx context.Context, to string, message string) error
	Configured() bool
}

// Tagger maintains contact segmentation tags, called best-effort after a
// send. A false ok with nil error means the provider is not configured.
type Tagger interface {
	UpsertContact(ctx context.Context, email, name string, tags []string) (bool, error)
}

// Result values for a single dispatch.
const (
	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Causes explaining a non-sent outcome.
const (
	CauseNoEligibleStep   = "no_eligible_step"
	CauseDoNotContact     = "do_not_contact"
	CauseThrottled        = "throttled"
	CauseDeduped          = "deduped"
	CauseDispatchFailed   = "dispatch_failed"
	CauseNoContactAddress = "no_contact_address"
	CauseNoTemplate       = "no_template"
)

// Outcome is the structured result of one dispatch attempt.
type Outcome struct {
	Result string `json:"result"`
	Cause  string `json:"cause,omitempty"`
}

// RunResult summarizes one scheduler run.
type RunResult struct {
	OK        bool `json:"ok"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}

// Failure event namespace in automation_failures.
const (
	failureEventDispatch         = "outreach.dispatch"
	failureEventTagging          = "outreach.tagging"
	failureEventReserve          = "outreach.reserve"
	failureEventReservationStale = "outreach.reservation_stale"
)

// Service is the outreach run engine.
type Service struct {
	repo    Repository
	planner *planner.Planner
	channel Channel
	tagger  Tagger
	bus     events.Bus
	log     *logger.Logger

	maxPerRun        int
	maxPerLeadWindow int
	throttleWindow   time.Duration
	dedupLookback    time.Duration
	paymentLookback  time.Duration
	reservationGrace time.Duration

	now func() time.Time
}

// New creates the run engine. Channel, tagger and event bus are optional
// collaborators attached with setters; a missing channel makes runs report
// not-configured instead of erroring.
func New(repo Repository, pl *planner.Planner, cfg config.OutreachConfig, log *logger.Logger) *Service {
	return &Service{
		repo:             repo,
		planner:          pl,
		log:              log,
		maxPerRun:        cfg.GetMaxMessagesPerRun(),
		maxPerLeadWindow: cfg.GetMaxMessagesPerLeadWindow(),
		throttleWindow:   cfg.GetThrottleWindow(),
		dedupLookback:    cfg.GetDedupLookback(),
		paymentLookback:  cfg.GetPaymentLookback(),
		reservationGrace: cfg.GetReservationGrace(),
		now:              time.Now,
	}
}

// SetChannel attaches the messaging channel provider.
func (s *Service) SetChannel(channel Channel) { s.channel = channel }

// SetTagger attaches the contact tagging provider.
func (s *Service) SetTagger(tagger Tagger) { s.tagger = tagger }

// SetEventBus attaches the domain event bus.
func (s *Service) SetEventBus(bus events.Bus) { s.bus = bus }

// runContext carries the per-run mutable state: the dedup set and per-lead
// sent counts read once from the ledger at run start, then updated in memory
// as the sequential dispatch loop progresses.
type runContext struct {
	now        time.Time
	handled    map[string]struct{}
	sentCounts map[uuid.UUID]int
	leads      map[uuid.UUID]repository.Lead
}

func (rc *runContext) isHandled(key string) bool {
	_, ok := rc.handled[key]
	return ok
}

func (rc *runContext) markHandled(key string) {
	rc.handled[key] = struct{}{}
}

func (rc *runContext) recordSent(leadID uuid.UUID) {
	rc.sentCounts[leadID]++
}

// Run executes one scheduled batch. A missing channel configuration yields
// ok:false with zero work; an unreachable data store returns an error so the
// task queue can retry the run.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	if s.channel == nil || !s.channel.Configured() {
		s.log.Warn("outreach run skipped: channel not configured")
		return RunResult{}, nil
	}

	if err := s.repo.Ping(ctx); err != nil {
		s.log.DatabaseError("outreach run ping", err)
		return RunResult{}, err
	}

	now := s.now()

	rc, err := s.buildRunContext(ctx, now)
	if err != nil {
		// Without the ledger there is no dedup truth; dispatching blind
		// could double-send, so the run aborts.
		s.log.DatabaseError("outreach ledger read", err)
		return RunResult{}, err
	}

	s.sweepStaleReservations(ctx, now)

	snap := s.loadSnapshot(ctx, now)
	for _, lead := range snap.Leads {
		rc.leads[lead.ID] = lead
	}

	batch := s.selectEligible(s.planner.Plan(snap), rc)
	if len(batch) > s.maxPerRun {
		batch = batch[:s.maxPerRun]
	}

	result := RunResult{OK: true}
	for _, opp := range batch {
		outcome := s.process(ctx, rc, opp)
		result.Processed++
		switch outcome.Result {
		case ResultSent:
			result.Sent++
		case ResultFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	s.log.RunSummary(result.Processed, result.Sent, result.Skipped, result.Failed)
	return result, nil
}

// TriggerLead dispatches the single earliest eligible step for one lead,
// bypassing the run cap but honoring throttle, dedup and do-not-contact.
// Cause is free-form audit text from the caller.
func (s *Service) TriggerLead(ctx context.Context, leadID uuid.UUID, cause string) (Outcome, error) {
	if s.channel == nil || !s.channel.Configured() {
		return Outcome{}, apperr.Unavailable("messaging channel not configured")
	}

	s.log.Info("manual outreach trigger", "lead_id", leadID.String(), "cause", cause)

	lead, err := s.repo.GetLeadByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{}, apperr.NotFound("lead not found")
		}
		return Outcome{}, err
	}

	now := s.now()

	rc, err := s.buildRunContext(ctx, now)
	if err != nil {
		return Outcome{}, err
	}
	rc.leads[lead.ID] = lead

	if lead.DoNotContact {
		return Outcome{Result: ResultSkipped, Cause: CauseDoNotContact}, nil
	}

	bookings, err := s.repo.ListBookingsByLead(ctx, leadID)
	if err != nil {
		s.log.DatabaseError("list bookings for lead", err)
		bookings = nil
	}
	payments := s.pendingPaymentsFor(ctx, now, bookings)

	candidates := s.selectEligible(s.planner.PlanForLead(lead, bookings, payments), rc)
	if len(candidates) == 0 {
		return Outcome{Result: ResultSkipped, Cause: CauseNoEligibleStep}, nil
	}

	return s.process(ctx, rc, candidates[0]), nil
}

// buildRunContext reads the ledger window once and folds it into the dedup
// set and per-lead sent counts. Any event kind marks a key handled, so a
// reservation blocks re-reservation before its outcome is known.
func (s *Service) buildRunContext(ctx context.Context, now time.Time) (*runContext, error) {
	entries, err := s.repo.ListWindow(ctx, now.Add(-s.dedupLookback))
	if err != nil {
		return nil, err
	}

	rc := &runContext{
		now:        now,
		handled:    make(map[string]struct{}, len(entries)),
		sentCounts: make(map[uuid.UUID]int),
		leads:      make(map[uuid.UUID]repository.Lead),
	}

	throttleCutoff := now.Add(-s.throttleWindow)
	for _, entry := range entries {
		rc.handled[entry.DedupKey] = struct{}{}
		if entry.Event == repository.EventSent && !entry.CreatedAt.Before(throttleCutoff) {
			rc.sentCounts[entry.LeadID]++
		}
	}

	return rc, nil
}

// loadSnapshot reads leads, bookings and pending payments. Each read is
// independent and degrades to an empty collection on failure; the run
// continues with partial data.
func (s *Service) loadSnapshot(ctx context.Context, now time.Time) planner.Snapshot {
	var snap planner.Snapshot
	var err error

	if snap.Leads, err = s.repo.ListLeads(ctx); err != nil {
		s.log.DatabaseError("list leads", err)
		snap.Leads = nil
	}
	if snap.Bookings, err = s.repo.ListBookings(ctx); err != nil {
		s.log.DatabaseError("list bookings", err)
		snap.Bookings = nil
	}
	if snap.Payments, err = s.repo.ListPendingPayments(ctx, now.Add(-s.paymentLookback)); err != nil {
		s.log.DatabaseError("list pending payments", err)
		snap.Payments = nil
	}

	return snap
}

func (s *Service) pendingPaymentsFor(ctx context.Context, now time.Time, bookings []repository.Booking) []repository.Payment {
	if len(bookings) == 0 {
		return nil
	}

	all, err := s.repo.ListPendingPayments(ctx, now.Add(-s.paymentLookback))
	if err != nil {
		s.log.DatabaseError("list pending payments", err)
		return nil
	}

	bookingIDs := make(map[uuid.UUID]struct{}, len(bookings))
	for _, b := range bookings {
		bookingIDs[b.ID] = struct{}{}
	}

	var matched []repository.Payment
	for _, p := range all {
		if _, ok := bookingIDs[p.BookingID]; ok {
			matched = append(matched, p)
		}
	}
	return matched
}

// selectEligible reduces candidates to the dispatchable batch. Only the
// earliest not-yet-handled step per (lead, type) is eligible; later steps
// of a sequence stay suppressed until the earlier one clears the dedup set.
// Due candidates are sorted ascending by due time.
func (s *Service) selectEligible(candidates []domain.Opportunity, rc *runContext) []domain.Opportunity {
	type pair struct {
		lead uuid.UUID
		typ  domain.OpportunityType
	}

	decided := make(map[pair]struct{})
	var due []domain.Opportunity
	for _, opp := range candidates {
		key := pair{opp.LeadID, opp.Type}
		if _, ok := decided[key]; ok {
			continue
		}
		if rc.isHandled(opp.DedupKey) {
			// Handled step: the next step of the sequence may be considered.
			continue
		}
		decided[key] = struct{}{}
		if !opp.DueAt.After(rc.now) {
			due = append(due, opp)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due
}

// process runs the reserve-dispatch-record cycle for one opportunity.
func (s *Service) process(ctx context.Context, rc *runContext, opp domain.Opportunity) Outcome {
	lead, ok := rc.leads[opp.LeadID]
	if !ok {
		return Outcome{Result: ResultSkipped, Cause: CauseNoEligibleStep}
	}

	if lead.DoNotContact {
		s.appendEntry(ctx, rc, opp, repository.EventSkipped)
		return Outcome{Result: ResultSkipped, Cause: CauseDoNotContact}
	}

	if rc.sentCounts[opp.LeadID] >= s.maxPerLeadWindow {
		s.appendEntry(ctx, rc, opp, repository.EventSkipped)
		return Outcome{Result: ResultSkipped, Cause: CauseThrottled}
	}

	if rc.isHandled(opp.DedupKey) {
		return Outcome{Result: ResultSkipped, Cause: CauseDeduped}
	}

	acquired, err := s.repo.Reserve(ctx, entryParams(opp, repository.EventReserved))
	if err != nil {
		// The ledger write failed; dispatching without a reservation could
		// double-send, so the step fails closed.
		s.log.DispatchError(opp.DedupKey, opp.LeadID.String(), err)
		s.recordFailure(ctx, opp, failureEventReserve, err)
		rc.markHandled(opp.DedupKey)
		return Outcome{Result: ResultFailed, Cause: CauseDispatchFailed}
	}
	if !acquired {
		// Another scheduler instance won the reservation.
		rc.markHandled(opp.DedupKey)
		return Outcome{Result: ResultSkipped, Cause: CauseDeduped}
	}
	rc.markHandled(opp.DedupKey)

	outcome := s.dispatch(ctx, lead, opp)
	if outcome.Result == ResultSent {
		rc.recordSent(opp.LeadID)
	}
	return outcome
}

func (s *Service) appendEntry(ctx context.Context, rc *runContext, opp domain.Opportunity, event repository.LogEvent) {
	if err := s.repo.Append(ctx, entryParams(opp, event)); err != nil {
		s.log.DatabaseError("append outreach log", err)
		return
	}
	rc.markHandled(opp.DedupKey)
}

func entryParams(opp domain.Opportunity, event repository.LogEvent) repository.EntryParams {
	return repository.EntryParams{
		DedupKey:   opp.DedupKey,
		LeadID:     opp.LeadID,
		Event:      event,
		Type:       string(opp.Type),
		Step:       opp.Step,
		TemplateID: opp.TemplateID,
		Message:    opp.Message,
	}
}

// sweepStaleReservations surfaces reservations that never got an outcome
// (a run died between reserving and recording). They are recorded as
// automation failures for operators, never silently re-dispatched.
func (s *Service) sweepStaleReservations(ctx context.Context, now time.Time) {
	stale, err := s.repo.ListStaleReservations(ctx, now.Add(-s.reservationGrace))
	if err != nil {
		s.log.DatabaseError("list stale reservations", err)
		return
	}

	for _, entry := range stale {
		s.log.Warn("stale outreach reservation",
			"dedup_key", entry.DedupKey, "lead_id", entry.LeadID.String(), "reserved_at", entry.CreatedAt)
		err := s.repo.RecordFailure(ctx, repository.RecordFailureParams{
			LeadID: entry.LeadID,
			Event:  failureEventReservationStale,
			Error:  "reservation without outcome",
			Payload: map[string]string{
				"dedupKey": entry.DedupKey,
				"type":     entry.Type,
				"step":     entry.Step,
			},
		})
		if err != nil {
			s.log.DatabaseError("record stale reservation", err)
		}
	}
}

func (s *Service) recordFailure(ctx context.Context, opp domain.Opportunity, event string, cause error) {
	err := s.repo.RecordFailure(ctx, repository.RecordFailureParams{
		LeadID:    opp.LeadID,
		BookingID: opp.BookingID,
		Event:     event,
		Error:     cause.Error(),
		Payload: map[string]string{
			"dedupKey": opp.DedupKey,
			"type":     string(opp.Type),
			"step":     opp.Step,
		},
	})
	if err != nil {
		s.log.DatabaseError("record automation failure", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.OutreachFailed{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    opp.LeadID,
			DedupKey:  opp.DedupKey,
			Event:     event,
			Error:     cause.Error(),
		})
	}
}
