package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// RecordFailure upserts an automation failure. A still-open failure for the
// same lead and event gets its error refreshed and attempts incremented
// instead of a new row.
func (r *Repository) RecordFailure(ctx context.Context, p RecordFailureParams) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if p.Event == "" {
		return fmt.Errorf("event is required")
	}

	var payload []byte
	if p.Payload != nil {
		data, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal failure payload: %w", err)
		}
		payload = data
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO automation_failures (lead_id, booking_id, event, error, attempts, payload)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 ON CONFLICT (lead_id, event) WHERE NOT resolved
		 DO UPDATE SET error = EXCLUDED.error,
		               payload = EXCLUDED.payload,
		               attempts = automation_failures.attempts + 1,
		               updated_at = now()`,
		p.LeadID, p.BookingID, p.Event, p.Error, payload)
	return err
}

// ListOpenFailures returns unresolved failures, newest first.
func (r *Repository) ListOpenFailures(ctx context.Context, limit int) ([]AutomationFailure, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, lead_id, booking_id, event, error, attempts, payload, resolved, created_at, updated_at
		 FROM automation_failures
		 WHERE NOT resolved
		 ORDER BY updated_at DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []AutomationFailure
	for rows.Next() {
		var f AutomationFailure
		if err := rows.Scan(&f.ID, &f.LeadID, &f.BookingID, &f.Event, &f.Error,
			&f.Attempts, &f.Payload, &f.Resolved, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// CountOpenFailures returns the number of unresolved failures.
func (r *Repository) CountOpenFailures(ctx context.Context) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM automation_failures WHERE NOT resolved`).Scan(&count)
	return count, err
}

// ResolveFailure marks one failure as handled by an operator.
func (r *Repository) ResolveFailure(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE automation_failures SET resolved = true, updated_at = now() WHERE id = $1 AND NOT resolved`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
