package service

import (
	"context"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/phone"
)

// dispatch delivers one reserved opportunity and records its terminal ledger
// entry. The reservation is already held, so every path must append exactly
// one sent, skipped or failed entry for the dedup key.
func (s *Service) dispatch(ctx context.Context, lead repository.Lead, opp domain.Opportunity) Outcome {
	if opp.SkipOnly {
		s.recordOutcome(ctx, opp, repository.EventSkipped)
		return Outcome{Result: ResultSkipped, Cause: CauseNoTemplate}
	}

	if !phone.IsDialable(lead.Phone) {
		s.recordOutcome(ctx, opp, repository.EventSkipped)
		return Outcome{Result: ResultSkipped, Cause: CauseNoContactAddress}
	}

	if err := s.channel.SendMessage(ctx, phone.NormalizeE164(lead.Phone), opp.Message); err != nil {
		s.log.DispatchError(opp.DedupKey, opp.LeadID.String(), err)
		s.recordOutcome(ctx, opp, repository.EventFailed)
		s.recordFailure(ctx, opp, failureEventDispatch, err)
		return Outcome{Result: ResultFailed, Cause: CauseDispatchFailed}
	}

	s.recordOutcome(ctx, opp, repository.EventSent)
	s.log.DispatchOutcome(opp.DedupKey, opp.LeadID.String(), ResultSent)

	s.tagContact(ctx, lead, opp)
	s.recordBookkeeping(ctx, opp)

	if s.bus != nil {
		s.bus.Publish(ctx, events.OutreachDispatched{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    opp.LeadID,
			DedupKey:  opp.DedupKey,
			Type:      string(opp.Type),
			Step:      opp.Step,
		})
	}

	return Outcome{Result: ResultSent}
}

// recordOutcome appends the terminal entry for a held reservation. A write
// failure here leaves the reservation to the stale sweep; the message state
// is whatever the channel call produced and must not be retried blind.
func (s *Service) recordOutcome(ctx context.Context, opp domain.Opportunity, event repository.LogEvent) {
	if err := s.repo.Append(ctx, entryParams(opp, event)); err != nil {
		s.log.DatabaseError("append outreach outcome", err)
	}
}

// tagContact pushes the lead into the outreach segment after a send.
// Tagging is best-effort: a provider error is recorded for operators but
// never reverts the sent outcome.
func (s *Service) tagContact(ctx context.Context, lead repository.Lead, opp domain.Opportunity) {
	if s.tagger == nil || lead.Email == "" {
		return
	}

	ok, err := s.tagger.UpsertContact(ctx, lead.Email, lead.Name, []string{"outreach", string(opp.Type)})
	if err != nil {
		s.log.Warn("contact tagging failed", "lead_id", opp.LeadID.String(), "error", err.Error())
		s.recordFailure(ctx, opp, failureEventTagging, err)
		return
	}
	if !ok {
		s.log.Debug("contact tagging not configured", "lead_id", opp.LeadID.String())
	}
}

// recordBookkeeping bumps the lead's outreach counters. Soft failure: the
// ledger already holds the truth, the counters are a convenience projection.
func (s *Service) recordBookkeeping(ctx context.Context, opp domain.Opportunity) {
	if err := s.repo.RecordOutreach(ctx, opp.LeadID, s.now()); err != nil {
		s.log.DatabaseError("record lead outreach", err)
	}
}
