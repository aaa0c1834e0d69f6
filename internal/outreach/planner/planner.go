// Package planner recomputes the full set of follow-up opportunities from a
// business-data snapshot. It is pure given its inputs: the same snapshot
// always yields the same opportunities with the same dedup keys.
package planner

import (
	"fmt"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"

	"github.com/google/uuid"
)

// Snapshot is the business data one run plans from.
type Snapshot struct {
	Leads    []repository.Lead
	Bookings []repository.Booking
	Payments []repository.Payment
}

// Planner generates opportunity candidates from snapshots.
type Planner struct {
	templates Templates
}

// New creates a planner with a validated template map.
func New(templates Templates) *Planner {
	return &Planner{templates: templates}
}

// Plan produces the unsorted candidate list for the snapshot. Leads in a
// closed stage or flagged do-not-contact never yield candidates.
func (p *Planner) Plan(snap Snapshot) []domain.Opportunity {
	leadsByID := make(map[uuid.UUID]repository.Lead, len(snap.Leads))
	for _, lead := range snap.Leads {
		leadsByID[lead.ID] = lead
	}
	bookingsByID := make(map[uuid.UUID]repository.Booking, len(snap.Bookings))
	for _, booking := range snap.Bookings {
		bookingsByID[booking.ID] = booking
	}

	var candidates []domain.Opportunity

	for _, lead := range snap.Leads {
		if excluded(lead) {
			continue
		}

		base := lead.UpdatedAt
		if base.IsZero() {
			base = lead.CreatedAt
		}

		for _, rule := range domain.StepsForStage(lead.Stage) {
			candidates = append(candidates, p.build(rule, lead, base, nil, nil, nil))
		}
	}

	for _, payment := range snap.Payments {
		booking, ok := bookingsByID[payment.BookingID]
		if !ok || booking.PaymentStatus == "paid" {
			continue
		}
		lead, ok := leadsByID[booking.LeadID]
		if !ok || excluded(lead) {
			continue
		}

		bookingID := booking.ID
		paymentID := payment.ID
		for _, rule := range domain.PaymentReminderSteps() {
			candidates = append(candidates, p.build(rule, lead, payment.CreatedAt, &bookingID, &paymentID, &payment))
		}
	}

	return candidates
}

// PlanForLead produces candidates for a single lead, for the manual trigger.
func (p *Planner) PlanForLead(lead repository.Lead, bookings []repository.Booking, payments []repository.Payment) []domain.Opportunity {
	return p.Plan(Snapshot{
		Leads:    []repository.Lead{lead},
		Bookings: bookings,
		Payments: payments,
	})
}

func excluded(lead repository.Lead) bool {
	return domain.IsClosedStage(lead.Stage) || lead.DoNotContact
}

func (p *Planner) build(rule domain.StepRule, lead repository.Lead, base time.Time, bookingID, paymentID *uuid.UUID, payment *repository.Payment) domain.Opportunity {
	opp := domain.Opportunity{
		Type:      rule.Type,
		Step:      rule.Step,
		DedupKey:  domain.DedupKey(rule.Type, lead.ID, rule.Step),
		DueAt:     base.Add(rule.Delay),
		LeadID:    lead.ID,
		BookingID: bookingID,
		PaymentID: paymentID,
	}

	tpl, ok := p.templates[rule.Step]
	if !ok || tpl.Body == "" {
		opp.TemplateID = tpl.ID
		opp.SkipOnly = true
		return opp
	}

	opp.TemplateID = tpl.ID
	opp.Message = tpl.Render(personalization(lead, payment))
	return opp
}

func personalization(lead repository.Lead, payment *repository.Payment) map[string]string {
	vars := map[string]string{
		"name":        lead.Name,
		"destination": lead.Destination,
		"budget":      formatEuro(lead.BudgetCents),
	}
	if payment != nil {
		vars["payment_link"] = payment.PaymentURL
		vars["amount"] = formatEuro(payment.AmountCents)
	}
	return vars
}

func formatEuro(cents int64) string {
	return fmt.Sprintf("€%d,%02d", cents/100, cents%100)
}
