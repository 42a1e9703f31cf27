package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"kycgate/internal/kyc/hashing"
	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// Reasons written on records rejected by the orchestrator itself.
const (
	ReasonProcessingTimeout = "processing timeout"
	ReasonPipelineTimeout   = "processing timeout: verification did not finish within the deadline"
)

// SubmitResult is returned as soon as the record is persisted.
type SubmitResult struct {
	RecordID    id.RecordID
	Status      models.Status
	SubmittedAt time.Time
}

// Submit validates the submission, enforces one in-flight record per user,
// anchors the integrity hashes, persists the record and schedules the
// pipeline. It does not wait for verification.
func (s *Service) Submit(ctx context.Context, userID id.UserID, sub models.Submission) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.submit")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID.String()))

	result, err := s.submit(ctx, userID, sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission not accepted")
		return nil, err
	}
	span.SetAttributes(attribute.String("record_id", result.RecordID.String()))
	return result, nil
}

func (s *Service) submit(ctx context.Context, userID id.UserID, sub models.Submission) (*SubmitResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing user")
	}

	valid, problems := sub.Validate(s.cfg.MaxFileBytes)
	if len(problems) > 0 {
		s.metrics.IncrementSubmission("invalid")
		return nil, dErrors.New(dErrors.CodeValidation, "invalid submission").WithDetails(problems...)
	}

	release, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementSubmission("conflict")
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "a submission is already being processed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not acquire submission lock")
	}
	defer release()

	if err := s.resolveActive(ctx, userID); err != nil {
		return nil, err
	}

	now := s.clock()
	recordID := id.NewRecordID()
	integrity := computeIntegrity(userID, valid)

	paths := make(map[models.ArtifactKind]string, len(valid.Files))
	files := make(map[models.ArtifactKind][]byte, len(valid.Files))
	for _, kind := range models.ArtifactOrder {
		f, ok := valid.Files[kind]
		if !ok {
			continue
		}
		path, err := s.artifacts.Save(ctx, recordID, kind, f.Data)
		if err != nil {
			s.discardArtifacts(ctx, recordID)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store artifacts")
		}
		paths[kind] = path
		files[kind] = f.Data
	}

	record := models.NewVerificationRecord(
		recordID, userID, valid.DocumentType, valid.DocumentNumber,
		paths, integrity, requestcontext.DeviceLabel(ctx), now,
	)
	if err := s.store.CreateIfNoneActive(ctx, record); err != nil {
		s.discardArtifacts(ctx, recordID)
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementSubmission("conflict")
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "a verification is already in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification record")
	}

	s.setUserStatus(ctx, userID, models.UserKYCInProgress)
	s.metrics.IncrementTransition(string(models.StatusSubmitted))
	s.publish(ctx, record, "")
	s.metrics.IncrementSubmission("accepted")
	s.logger.InfoContext(ctx, "kyc submission accepted",
		"record_id", recordID.String(),
		"user_id", userID.String(),
		"document_type", valid.DocumentType,
		"merkle_root", integrity.MerkleRoot,
	)

	s.schedule(ctx, record, files)

	return &SubmitResult{
		RecordID:    record.ID,
		Status:      record.Status,
		SubmittedAt: record.SubmittedAt,
	}, nil
}

// resolveActive fails with a conflict while the user has a fresh in-flight
// record, and force-rejects a stale one so the new submission can proceed.
func (s *Service) resolveActive(ctx context.Context, userID id.UserID) error {
	active, err := s.store.FindActiveByUser(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up active verification")
	}

	if !active.IsStale(s.clock(), s.cfg.StaleAfter) {
		s.metrics.IncrementSubmission("conflict")
		return dErrors.New(dErrors.CodeConflict, "a verification is already in progress").
			WithMeta("record_id", active.ID.String()).
			WithMeta("status", string(active.Status))
	}

	s.tasks.Cancel(active.ID)
	_, err = s.reject(ctx, active.ID, ReasonProcessingTimeout, models.RejectionStale)
	if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to retire stale verification")
	}
	s.metrics.IncrementSubmission("stale_replaced")
	s.logger.WarnContext(ctx, "stale verification force-rejected",
		"record_id", active.ID.String(),
		"user_id", userID.String(),
		"status", active.Status,
		"submitted_at", active.SubmittedAt,
	)
	return nil
}

func (s *Service) discardArtifacts(ctx context.Context, recordID id.RecordID) {
	if err := s.artifacts.Remove(recordID); err != nil {
		s.logger.WarnContext(ctx, "failed to remove orphaned artifacts",
			"record_id", recordID.String(),
			"error", err,
		)
	}
}

func computeIntegrity(userID id.UserID, valid models.ValidatedSubmission) models.Integrity {
	fileHashes := make(map[models.ArtifactKind]string, len(valid.Files))
	leaves := make([]string, 0, len(valid.Files))
	for _, kind := range models.ArtifactOrder {
		f, ok := valid.Files[kind]
		if !ok {
			continue
		}
		h := hashing.HashBytes(f.Data)
		fileHashes[kind] = h
		leaves = append(leaves, h)
	}
	return models.Integrity{
		FileHashes:         fileHashes,
		MerkleRoot:         hashing.MerkleRoot(leaves),
		DocumentNumberHash: hashing.HashDocumentNumber(valid.DocumentNumber, string(valid.DocumentType)),
		UserIDHash:         hashing.HashUserID(userID.String()),
	}
}

func (s *Service) schedule(ctx context.Context, record *models.VerificationRecord, files map[models.ArtifactKind][]byte) {
	// the pipeline outlives the request but keeps its values (request id, trace)
	base := context.WithoutCancel(ctx)
	started := s.tasks.Start(base, record.ID, func(taskCtx context.Context) {
		s.runPipeline(taskCtx, record, files)
	})
	if !started {
		s.logger.WarnContext(ctx, "pipeline not started",
			"record_id", record.ID.String(),
			"reason", "registry closed or record busy",
		)
	}
}
