package service

import (
	"context"
	"fmt"
	"time"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// mutate applies fn through the store's atomic update. When expect is set the
// write only happens if the record is still in that status, so a late stage
// can never overwrite a record another writer already moved on.
func (s *Service) mutate(
	ctx context.Context,
	recordID id.RecordID,
	expect models.Status,
	fn func(r *models.VerificationRecord, now time.Time) error,
) (*models.VerificationRecord, error) {
	var from models.Status
	now := s.clock()
	updated, err := s.store.Update(ctx, recordID, func(r *models.VerificationRecord) error {
		if expect != "" && r.Status != expect {
			return fmt.Errorf("%w: expected %s, record is %s", sentinel.ErrInvalidState, expect, r.Status)
		}
		from = r.Status
		return fn(r, now)
	})
	if err != nil {
		return nil, err
	}
	if updated.Status != from {
		s.transitioned(ctx, updated, from)
	}
	return updated, nil
}

func (s *Service) transitioned(ctx context.Context, r *models.VerificationRecord, from models.Status) {
	s.metrics.IncrementTransition(string(r.Status))
	s.logger.InfoContext(ctx, "verification status changed",
		"record_id", r.ID.String(),
		"user_id", r.UserID.String(),
		"from", from,
		"to", r.Status,
	)

	switch r.Status {
	case models.StatusRejected:
		s.setUserStatus(ctx, r.UserID, models.UserKYCRejected)
	case models.StatusCompleted:
		s.setUserStatus(ctx, r.UserID, models.UserKYCVerified)
	}

	s.publish(ctx, r, from)
}

func (s *Service) publish(ctx context.Context, r *models.VerificationRecord, from models.Status) {
	if s.publisher == nil {
		return
	}
	event := ports.StatusChanged{
		RecordID:          r.ID,
		UserID:            r.UserID,
		From:              from,
		To:                r.Status,
		RejectionCategory: r.RejectionCategory,
		OccurredAt:        r.UpdatedAt,
	}
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish status event",
			"record_id", r.ID.String(),
			"to", r.Status,
			"error", err,
		)
	}
}

// setUserStatus updates the denormalized projection. Failures are logged:
// the record remains the source of truth.
func (s *Service) setUserStatus(ctx context.Context, userID id.UserID, status models.UserKYCStatus) {
	if err := s.users.SetKYCStatus(ctx, userID, status, s.clock()); err != nil {
		s.logger.ErrorContext(ctx, "failed to update user kyc status",
			"user_id", userID.String(),
			"kyc_status", status,
			"error", err,
		)
	}
}

// reject terminates any non-terminal record. Returns sentinel.ErrInvalidState
// when the record is already terminal.
func (s *Service) reject(ctx context.Context, recordID id.RecordID, reason string, category models.RejectionCategory) (*models.VerificationRecord, error) {
	return s.mutate(ctx, recordID, "", func(r *models.VerificationRecord, now time.Time) error {
		return r.Reject(reason, category, now)
	})
}

// detached returns a context that survives cancellation of ctx, for writes
// that must land even when the pipeline was cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
}
