package service

import (
	"context"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
)

// Repair outcomes reported per record.
const (
	RepairCompleted = "completed"
	RepairFailed    = "failed"
	RepairSkipped   = "skipped"
)

type RepairResult struct {
	RecordID id.RecordID
	From     models.Status
	Status   models.Status
	Outcome  string
	Error    string
}

type RepairReport struct {
	Attempted int
	Repaired  int
	Failed    int
	Skipped   int
	Results   []RepairResult
}

// Repair retries credential and ledger for records parked at ai_verified or
// credential_issued whose pipeline is no longer running. Credentials issued
// here are synthetic.
func (s *Service) Repair(ctx context.Context) (*RepairReport, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.repair")
	defer span.End()

	stuck, err := s.store.ListByStatus(ctx, []models.Status{models.StatusAIVerified, models.StatusCredentialIssued}, s.cfg.RepairBatch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find records to repair")
	}

	report := &RepairReport{Results: make([]RepairResult, 0, len(stuck))}
	for _, record := range stuck {
		res := s.repairOne(ctx, record)
		report.Results = append(report.Results, res)
		s.metrics.IncrementRepair(res.Outcome)
		switch res.Outcome {
		case RepairCompleted:
			report.Attempted++
			report.Repaired++
		case RepairFailed:
			report.Attempted++
			report.Failed++
		default:
			report.Skipped++
		}
	}

	s.logger.InfoContext(ctx, "repair run finished",
		"attempted", report.Attempted,
		"repaired", report.Repaired,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (s *Service) repairOne(ctx context.Context, record *models.VerificationRecord) RepairResult {
	res := RepairResult{RecordID: record.ID, From: record.Status, Status: record.Status}

	release, ok := s.tasks.Claim(record.ID)
	if !ok {
		res.Outcome = RepairSkipped
		res.Error = "pipeline still running"
		return res
	}
	defer release()

	current := record
	if current.Status == models.StatusAIVerified {
		cred := syntheticCredential()
		updated, err := s.mutate(ctx, current.ID, models.StatusAIVerified, func(r *models.VerificationRecord, now time.Time) error {
			cred.IssuedAt = now
			return r.IssueCredential(cred, now)
		})
		if err != nil {
			return failed(res, err)
		}
		current = updated
		res.Status = current.Status
	}

	updated, err := s.ledgerStage(ctx, current)
	if err != nil {
		return failed(res, err)
	}
	res.Status = updated.Status
	if updated.Status != models.StatusCompleted {
		res.Outcome = RepairFailed
		res.Error = updated.Note
		return res
	}
	res.Outcome = RepairCompleted
	return res
}

func failed(res RepairResult, err error) RepairResult {
	res.Outcome = RepairFailed
	res.Error = err.Error()
	return res
}
