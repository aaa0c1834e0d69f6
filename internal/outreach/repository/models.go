package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lead is the CRM lead row as read by the scheduler. The scheduler only
// writes back outreach bookkeeping after a confirmed send.
type Lead struct {
	ID             uuid.UUID
	Name           string
	Phone          string
	Email          string
	Stage          string
	DoNotContact   bool
	OutreachCount  int
	LastOutreachAt *time.Time
	Destination    string
	BudgetCents    int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Booking links a lead to a paid engagement. Read-only to this subsystem.
type Booking struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	PaymentStatus string
	CreatedAt     time.Time
}

// Payment is a payment attempt on a booking. Read-only to this subsystem.
type Payment struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	Status      string
	AmountCents int64
	PaymentURL  string
	CreatedAt   time.Time
}

// LogEvent is the kind of an outreach log entry.
type LogEvent string

const (
	EventReserved LogEvent = "reserved"
	EventSent     LogEvent = "sent"
	EventSkipped  LogEvent = "skipped"
	EventFailed   LogEvent = "failed"
)

// LogEntry is one append-only row of the outreach ledger. The ledger is the
// only persisted ground truth for idempotency and throttling.
type LogEntry struct {
	ID         int64
	DedupKey   string
	LeadID     uuid.UUID
	Event      LogEvent
	Type       string
	Step       string
	TemplateID string
	Message    string
	CreatedAt  time.Time
}

// EntryParams describes a ledger row to insert.
type EntryParams struct {
	DedupKey   string
	LeadID     uuid.UUID
	Event      LogEvent
	Type       string
	Step       string
	TemplateID string
	Message    string
}

// AutomationFailure is a persisted dispatch or tagging error kept for
// operator follow-up. Repeated failures for the same lead and event
// increment Attempts instead of creating new rows.
type AutomationFailure struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	BookingID *uuid.UUID
	Event     string
	Error     string
	Attempts  int
	Payload   json.RawMessage
	Resolved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordFailureParams describes a failure to record.
type RecordFailureParams struct {
	LeadID    uuid.UUID
	BookingID *uuid.UUID
	Event     string
	Error     string
	Payload   any
}
