package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
	"kycgate/pkg/platform/sentinel"
	pkgstrings "kycgate/pkg/platform/strings"
)

// Stage names used in spans, logs and metrics.
const (
	stageUpload     = "upload"
	stageAI         = "ai"
	stageCredential = "credential"
	stageLedger     = "ledger"
)

// runPipeline executes upload, AI, credential and ledger in order. Each stage
// persists its outcome before the next begins. A global deadline rejects the
// record and cancels the run if it has not finished in time.
func (s *Service) runPipeline(ctx context.Context, record *models.VerificationRecord, files map[models.ArtifactKind][]byte) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "kyc.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("record_id", record.ID.String()))

	s.metrics.PipelineStarted()
	defer s.metrics.PipelineFinished()

	s.timeouts.Add(1)
	timer := time.AfterFunc(s.cfg.PipelineTimeout, func() {
		defer s.timeouts.Done()
		s.expire(ctx, record)
		cancel()
	})
	defer func() {
		if timer.Stop() {
			s.timeouts.Done()
		}
	}()

	logger := s.logger.With("record_id", record.ID.String(), "user_id", record.UserID.String())

	current, err := s.uploadStage(ctx, record, files)
	if err != nil {
		s.halt(ctx, stageUpload, record, err)
		return
	}

	current, err = s.aiStage(ctx, current, files)
	if err != nil {
		s.halt(ctx, stageAI, record, err)
		return
	}
	if current.Status != models.StatusAIVerified {
		logger.InfoContext(ctx, "pipeline stopped after verification", "status", current.Status)
		return
	}

	current, err = s.credentialStage(ctx, current)
	if err != nil {
		s.halt(ctx, stageCredential, record, err)
		return
	}
	if current.Status != models.StatusCredentialIssued {
		logger.WarnContext(ctx, "pipeline parked before ledger", "status", current.Status, "note", current.Note)
		return
	}

	current, err = s.ledgerStage(ctx, current)
	if err != nil {
		s.halt(ctx, stageLedger, record, err)
		return
	}
	if current.Status == models.StatusCompleted {
		logger.InfoContext(ctx, "verification completed", "tx_hash", current.Ledger.TxHash)
	} else {
		logger.WarnContext(ctx, "pipeline parked after credential", "status", current.Status, "note", current.Note)
	}
}

// halt logs why a stage gave up. An invalid-state error means another writer
// (the deadline, a stale replacement) already moved the record on.
func (s *Service) halt(ctx context.Context, stage string, record *models.VerificationRecord, err error) {
	attrs := []any{
		"record_id", record.ID.String(),
		"stage", stage,
		"error", err,
	}
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		s.logger.InfoContext(ctx, "pipeline superseded", attrs...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "pipeline cancelled", attrs...)
	default:
		s.logger.ErrorContext(ctx, "pipeline stage failed", attrs...)
	}
}

// expire is the global deadline. The rejection is conditional: a record that
// already reached a terminal state is left alone.
func (s *Service) expire(ctx context.Context, record *models.VerificationRecord) {
	wctx, cancel := detached(ctx)
	defer cancel()

	_, err := s.reject(wctx, record.ID, ReasonPipelineTimeout, models.RejectionProcessingTimeout)
	switch {
	case err == nil:
		s.logger.WarnContext(wctx, "verification timed out",
			"record_id", record.ID.String(),
			"timeout", s.cfg.PipelineTimeout,
		)
	case errors.Is(err, sentinel.ErrInvalidState):
		// already terminal
	default:
		s.logger.ErrorContext(wctx, "failed to write pipeline timeout",
			"record_id", record.ID.String(),
			"error", err,
		)
	}
}

// stage starts a span and returns a finisher that records duration and outcome.
func (s *Service) stage(ctx context.Context, name string, record *models.VerificationRecord) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "kyc.stage."+name)
	span.SetAttributes(
		attribute.String("record_id", record.ID.String()),
		attribute.String("stage", name),
	)
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, name+" failed")
		}
		s.metrics.ObserveStage(name, result, time.Since(start))
		span.End()
	}
}

type uploadOutcome struct {
	kind   models.ArtifactKind
	upload models.ContentUpload
}

// uploadStage pushes every artifact to the content store in parallel. Failed
// uploads are logged and left absent; they never fail the pipeline.
func (s *Service) uploadStage(ctx context.Context, record *models.VerificationRecord, files map[models.ArtifactKind][]byte) (_ *models.VerificationRecord, err error) {
	ctx, done := s.stage(ctx, stageUpload, record)
	defer func() { done(err) }()

	var (
		mu      sync.Mutex
		results []uploadOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range models.ArtifactOrder {
		data, ok := files[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			res, err := s.providers.Content.Upload(gctx, ports.ContentFile{
				Name: fmt.Sprintf("%s-%s", record.ID, kind),
				Data: data,
				Metadata: map[string]string{
					"record_id": record.ID.String(),
					"artifact":  string(kind),
					"sha256":    record.Integrity.FileHashes[kind],
				},
			})
			if err != nil {
				s.providerFailed(gctx, "content_store", record, err)
				return nil
			}
			mu.Lock()
			results = append(results, uploadOutcome{kind: kind, upload: models.ContentUpload{
				CID:        res.CID,
				Hash:       record.Integrity.FileHashes[kind],
				Provider:   res.Provider,
				GatewayURL: s.providers.Content.GatewayURL(res.CID),
				Size:       res.Size,
			}})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, record.ID, models.StatusSubmitted, func(r *models.VerificationRecord, now time.Time) error {
		for _, res := range results {
			res.upload.UploadedAt = now
			if err := r.RecordUpload(res.kind, res.upload, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// aiStage moves the record to ai_processing, asks the verifier, and applies
// the verdict. A negative verdict or provider failure rejects the record.
func (s *Service) aiStage(ctx context.Context, record *models.VerificationRecord, files map[models.ArtifactKind][]byte) (_ *models.VerificationRecord, err error) {
	ctx, done := s.stage(ctx, stageAI, record)
	defer func() { done(err) }()

	current, err := s.mutate(ctx, record.ID, models.StatusSubmitted, func(r *models.VerificationRecord, now time.Time) error {
		return r.StartAI(now)
	})
	if err != nil {
		return nil, err
	}

	result, verr := s.providers.Verifier.Verify(ctx, ports.VerifyRequest{
		UserID:         current.UserID,
		DocumentType:   current.DocumentType,
		DocumentNumber: current.DocumentNumber,
		Front:          files[models.ArtifactFront],
		Back:           files[models.ArtifactBack],
		Selfie:         files[models.ArtifactSelfie],
	})
	if verr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.providerFailed(ctx, "ai", current, verr)
		return s.mutate(ctx, current.ID, models.StatusAIProcessing, func(r *models.VerificationRecord, now time.Time) error {
			return r.FailAI("verification provider error: "+verr.Error(), []string{verr.Error()}, now)
		})
	}

	outcome := models.AIOutcome{
		Verified:       result.Verified,
		Decision:       result.Decision,
		Confidence:     result.Confidence,
		FaceMatchScore: result.FaceMatchScore,
		OCRData:        maps.Clone(result.OCRData),
		Errors:         result.Errors,
	}
	return s.mutate(ctx, current.ID, models.StatusAIProcessing, func(r *models.VerificationRecord, now time.Time) error {
		return r.ApplyAIOutcome(outcome, rejectionReason(result), now)
	})
}

const maxReasonProblems = 5

// rejectionReason renders a negative verdict as a stable, readable reason.
func rejectionReason(result *ports.VerifyResult) string {
	prefix := "verification failed"
	if result.Decision == "manual_review" {
		prefix = "manual review required"
	}
	problems := pkgstrings.DedupeAndTrim(result.Errors)
	if len(problems) == 0 {
		return prefix + ": document could not be verified"
	}
	return prefix + ": " + pkgstrings.JoinCapped(problems, "; ", maxReasonProblems)
}

// credentialStage attaches a credential. Synthetic credentials are used when
// issuance is skipped or outside production. A real issuer failure parks the
// record at ai_verified with a note for repair.
func (s *Service) credentialStage(ctx context.Context, record *models.VerificationRecord) (_ *models.VerificationRecord, err error) {
	ctx, done := s.stage(ctx, stageCredential, record)
	defer func() { done(err) }()

	cred, ierr := s.issueCredential(ctx, record)
	if ierr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.providerFailed(ctx, "credential_issuer", record, ierr)
		return s.mutate(ctx, record.ID, models.StatusAIVerified, func(r *models.VerificationRecord, now time.Time) error {
			return r.NoteFailure("credential issuance failed: "+ierr.Error(), now)
		})
	}

	return s.mutate(ctx, record.ID, models.StatusAIVerified, func(r *models.VerificationRecord, now time.Time) error {
		cred.IssuedAt = now
		return r.IssueCredential(cred, now)
	})
}

func (s *Service) issueCredential(ctx context.Context, record *models.VerificationRecord) (models.Credential, error) {
	if s.cfg.SkipCredential || !s.cfg.Production {
		return syntheticCredential(), nil
	}
	if s.providers.Issuer == nil {
		return models.Credential{}, errors.New("no credential issuer configured")
	}

	issued, err := s.providers.Issuer.Issue(ctx, ports.CredentialAttributes{
		UserID:             record.UserID,
		RecordID:           record.ID,
		DocumentType:       record.DocumentType,
		DocumentNumberHash: record.Integrity.DocumentNumberHash,
		MerkleRoot:         record.Integrity.MerkleRoot,
		Confidence:         record.AI.Confidence,
		VerifiedAt:         s.clock(),
	})
	if err != nil {
		return models.Credential{}, err
	}
	return models.Credential{
		Kind:       models.CredentialIssued,
		ID:         issued.CredentialID,
		ExchangeID: issued.ExchangeID,
	}, nil
}

func syntheticCredential() models.Credential {
	exchange := uuid.NewString()
	return models.Credential{
		Kind:       models.CredentialSynthetic,
		ID:         "synthetic-cred-" + exchange,
		ExchangeID: "synthetic-ex-" + exchange,
	}
}

// ledgerStage anchors the record's hashes on-chain. Failure leaves the record
// at credential_issued with a note; it is never rejected at this point.
func (s *Service) ledgerStage(ctx context.Context, record *models.VerificationRecord) (_ *models.VerificationRecord, err error) {
	ctx, done := s.stage(ctx, stageLedger, record)
	defer func() { done(err) }()

	receipt, lerr := s.providers.Ledger.Register(ctx, record.UserID, ledgerPayload(record))
	if lerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.providerFailed(ctx, "ledger", record, lerr)
		return s.mutate(ctx, record.ID, models.StatusCredentialIssued, func(r *models.VerificationRecord, now time.Time) error {
			return r.NoteFailure("ledger registration failed: "+lerr.Error(), now)
		})
	}

	return s.mutate(ctx, record.ID, models.StatusCredentialIssued, func(r *models.VerificationRecord, now time.Time) error {
		return r.Complete(models.LedgerRegistration{
			TxHash:           receipt.TxHash,
			BlockNumber:      receipt.BlockNumber,
			VerificationHash: receipt.VerificationHash,
			RegisteredAt:     now,
		}, now)
	})
}

// ledgerPayload is the hash-only view of a record; no raw PII leaves the service.
func ledgerPayload(r *models.VerificationRecord) ports.LedgerPayload {
	fileHashes := make(map[string]string, len(r.Integrity.FileHashes))
	for kind, h := range r.Integrity.FileHashes {
		fileHashes[string(kind)] = h
	}
	var contentIDs map[string]string
	if len(r.Uploads) > 0 {
		contentIDs = make(map[string]string, len(r.Uploads))
		for kind, u := range r.Uploads {
			contentIDs[string(kind)] = u.CID
		}
	}
	payload := ports.LedgerPayload{
		DocumentType:       r.DocumentType,
		DocumentNumberHash: r.Integrity.DocumentNumberHash,
		UserIDHash:         r.Integrity.UserIDHash,
		FileHashes:         fileHashes,
		MerkleRoot:         r.Integrity.MerkleRoot,
		AIConfidence:       r.AI.Confidence,
		FaceMatchScore:     r.AI.FaceMatchScore,
		ContentIDs:         contentIDs,
	}
	if r.Credential != nil {
		payload.CredentialID = r.Credential.ID
	}
	return payload
}

func (s *Service) providerFailed(ctx context.Context, provider string, record *models.VerificationRecord, err error) {
	category := string(providers.GetCategory(err))
	s.metrics.IncrementProviderError(provider, category)
	s.logger.WarnContext(ctx, "provider call failed",
		"record_id", record.ID.String(),
		"provider", provider,
		"category", category,
		"retryable", providers.IsRetryable(err),
		"error", err,
	)
}
