package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpportunityType classifies a follow-up sequence.
type OpportunityType string

const (
	TypeQuoteFollowup   OpportunityType = "quote_followup"
	TypePaymentReminder OpportunityType = "payment_reminder"
	TypeReengagement    OpportunityType = "reengagement"
)

// DedupKey builds the deterministic idempotency token for one
// (type, lead, step) triple. It must never depend on run time: the same
// logical step has to produce the same key on every recomputation.
func DedupKey(t OpportunityType, leadID uuid.UUID, step string) string {
	return fmt.Sprintf("%s:%s:%s", t, leadID, step)
}

// Opportunity is a computed, not-yet-acted-on candidate follow-up.
// Opportunities are recomputed every run and never persisted.
type Opportunity struct {
	Type       OpportunityType
	Step       string
	DedupKey   string
	DueAt      time.Time
	TemplateID string
	Message    string
	// SkipOnly marks an opportunity whose step has no usable template
	// configured. It is logged as skipped and never dispatched.
	SkipOnly bool

	LeadID    uuid.UUID
	BookingID *uuid.UUID
	PaymentID *uuid.UUID
}
