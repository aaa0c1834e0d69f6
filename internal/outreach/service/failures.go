package service

import (
	"context"
	"errors"

	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// ListFailures returns unresolved automation failures for operators.
func (s *Service) ListFailures(ctx context.Context, limit int) ([]repository.AutomationFailure, error) {
	return s.repo.ListOpenFailures(ctx, limit)
}

// ResolveFailure marks a failure as handled by an operator.
func (s *Service) ResolveFailure(ctx context.Context, id uuid.UUID) error {
	err := s.repo.ResolveFailure(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("failure not found or already resolved")
	}
	return err
}
