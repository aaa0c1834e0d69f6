package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const logColumns = `id, dedup_key, lead_id, event, type, step, template_id, message, created_at`

func scanLogEntry(row pgx.Row) (LogEntry, error) {
	var e LogEntry
	var event string
	err := row.Scan(&e.ID, &e.DedupKey, &e.LeadID, &event, &e.Type, &e.Step,
		&e.TemplateID, &e.Message, &e.CreatedAt)
	e.Event = LogEvent(event)
	return e, err
}

// Reserve claims a dedup key by inserting a reserved ledger entry. The
// partial unique index on (dedup_key) WHERE event = 'reserved' makes this an
// atomic check-and-set: a conflict means another writer holds the
// reservation, reported as (false, nil).
func (r *Repository) Reserve(ctx context.Context, p EntryParams) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	if p.DedupKey == "" {
		return false, fmt.Errorf("dedup key is required")
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO outreach_log (dedup_key, lead_id, event, type, step, template_id, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.DedupKey, p.LeadID, string(EventReserved), p.Type, p.Step, p.TemplateID, p.Message)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Append records an outcome entry. Reservations go through Reserve.
func (r *Repository) Append(ctx context.Context, p EntryParams) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if p.DedupKey == "" {
		return fmt.Errorf("dedup key is required")
	}
	if p.Event == EventReserved {
		return fmt.Errorf("reservations must use Reserve")
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO outreach_log (dedup_key, lead_id, event, type, step, template_id, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.DedupKey, p.LeadID, string(p.Event), p.Type, p.Step, p.TemplateID, p.Message)
	return err
}

// ListWindow returns every ledger entry created at or after since,
// oldest first.
func (r *Repository) ListWindow(ctx context.Context, since time.Time) ([]LogEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+logColumns+` FROM outreach_log WHERE created_at >= $1 ORDER BY created_at`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLogEntries(rows)
}

// ListRecent returns the newest ledger entries for the dashboard feed.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]LogEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+logColumns+` FROM outreach_log ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLogEntries(rows)
}

// ListStaleReservations returns reserved entries created before cutoff whose
// dedup key never received a terminal entry. These are the recovery signal
// for runs that died between reserving and recording an outcome.
func (r *Repository) ListStaleReservations(ctx context.Context, cutoff time.Time) ([]LogEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+logColumns+` FROM outreach_log res
		 WHERE res.event = 'reserved'
		   AND res.created_at < $1
		   AND NOT EXISTS (
			SELECT 1 FROM outreach_log done
			WHERE done.dedup_key = res.dedup_key
			  AND done.event IN ('sent', 'skipped', 'failed')
		 )
		 ORDER BY res.created_at`,
		cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLogEntries(rows)
}

func collectLogEntries(rows pgx.Rows) ([]LogEntry, error) {
	var entries []LogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
