// Package repository provides data access for the outreach module: the CRM
// snapshot reads, the append-only outreach ledger, and automation failures.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const errRepoNotConfigured = "outreach repository not configured"

// Repository implements OutreachRepository on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new outreach repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping reports whether the data store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	return r.pool.Ping(ctx)
}

const leadColumns = `id, name, phone, email, stage, do_not_contact, outreach_count,
	last_outreach_at, destination, budget_cents, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Stage, &l.DoNotContact,
		&l.OutreachCount, &l.LastOutreachAt, &l.Destination, &l.BudgetCents,
		&l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// ListLeads returns every lead in the store.
func (r *Repository) ListLeads(ctx context.Context) ([]Lead, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// GetLeadByID returns one lead or ErrNotFound.
func (r *Repository) GetLeadByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	if r == nil || r.pool == nil {
		return Lead{}, errors.New(errRepoNotConfigured)
	}

	l, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

// ListBookings returns every booking.
func (r *Repository) ListBookings(ctx context.Context) ([]Booking, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, lead_id, payment_status, created_at FROM bookings ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

// ListBookingsByLead returns the bookings linked to one lead.
func (r *Repository) ListBookingsByLead(ctx context.Context, leadID uuid.UUID) ([]Booking, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, lead_id, payment_status, created_at FROM bookings WHERE lead_id = $1 ORDER BY created_at`,
		leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.LeadID, &b.PaymentStatus, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListPendingPayments returns payments still awaiting completion that were
// created at or after since.
func (r *Repository) ListPendingPayments(ctx context.Context, since time.Time) ([]Payment, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, booking_id, status, amount_cents, payment_url, created_at
		 FROM payments
		 WHERE status = ANY($1) AND created_at >= $2
		 ORDER BY created_at`,
		[]string{"created", "pending", "authorized", "requires_action"}, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Status, &p.AmountCents, &p.PaymentURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// RecordOutreach bumps the lead's outreach counter and last-outreach
// timestamp after a confirmed send.
func (r *Repository) RecordOutreach(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE leads
		 SET outreach_count = outreach_count + 1, last_outreach_at = $2
		 WHERE id = $1`,
		leadID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
