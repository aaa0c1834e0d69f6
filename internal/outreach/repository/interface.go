package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// SnapshotReader provides the read-only business-data snapshot a run starts
// from. Leads, bookings and payments are owned by the upstream CRM.
type SnapshotReader interface {
	ListLeads(ctx context.Context) ([]Lead, error)
	GetLeadByID(ctx context.Context, id uuid.UUID) (Lead, error)
	ListBookings(ctx context.Context) ([]Booking, error)
	ListBookingsByLead(ctx context.Context, leadID uuid.UUID) ([]Booking, error)
	ListPendingPayments(ctx context.Context, since time.Time) ([]Payment, error)
}

// LeadBookkeeper writes outreach bookkeeping back to the lead after a
// confirmed send.
type LeadBookkeeper interface {
	RecordOutreach(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

// LogStore is the append-only outreach ledger.
type LogStore interface {
	// Reserve atomically claims a dedup key by inserting a reserved entry.
	// It returns false without error when another writer already holds the
	// reservation (unique-index conflict).
	Reserve(ctx context.Context, p EntryParams) (bool, error)
	// Append records a sent/skipped/failed outcome entry.
	Append(ctx context.Context, p EntryParams) error
	// ListWindow returns every ledger entry created at or after since.
	ListWindow(ctx context.Context, since time.Time) ([]LogEntry, error)
	// ListRecent returns the newest entries for the dashboard feed.
	ListRecent(ctx context.Context, limit int) ([]LogEntry, error)
	// ListStaleReservations returns reserved entries older than cutoff that
	// never received a terminal entry for the same dedup key.
	ListStaleReservations(ctx context.Context, cutoff time.Time) ([]LogEntry, error)
}

// FailureStore persists automation failures for operator follow-up.
type FailureStore interface {
	RecordFailure(ctx context.Context, p RecordFailureParams) error
	ListOpenFailures(ctx context.Context, limit int) ([]AutomationFailure, error)
	CountOpenFailures(ctx context.Context) (int, error)
	ResolveFailure(ctx context.Context, id uuid.UUID) error
}

// HealthChecker reports whether the data store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// =====================================
// Composite Interface
// =====================================

// OutreachRepository is the complete data interface for the outreach module.
type OutreachRepository interface {
	SnapshotReader
	LeadBookkeeper
	LogStore
	FailureStore
	HealthChecker
}

// Ensure Repository implements OutreachRepository
var _ OutreachRepository = (*Repository)(nil)
