package service

import (
	"context"
	"errors"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
)

// Caller identifies who is reading a record.
type Caller struct {
	UserID id.UserID
	Admin  bool
}

// Get returns a record to its owner or to an admin.
func (s *Service) Get(ctx context.Context, caller Caller, recordID id.RecordID) (*models.VerificationRecord, error) {
	record, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	if !caller.Admin && record.UserID != caller.UserID {
		return nil, dErrors.New(dErrors.CodeForbidden, "not allowed to view this verification record")
	}
	return record, nil
}

// UserStatus is the caller's latest record (nil when they never submitted)
// alongside their denormalized KYC status.
type UserStatus struct {
	Record    *models.VerificationRecord
	KYCStatus models.UserKYCStatus
}

func (s *Service) GetLatest(ctx context.Context, userID id.UserID) (*UserStatus, error) {
	status, err := s.users.GetKYCStatus(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc status")
	}

	record, err := s.store.FindLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &UserStatus{KYCStatus: status}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	return &UserStatus{Record: record, KYCStatus: status}, nil
}

// ListResult is one page of an admin listing.
type ListResult struct {
	Records []*models.VerificationRecord
	Total   int
	Offset  int
	Limit   int
}

func (s *Service) List(ctx context.Context, filter models.ListFilter, page models.Page) (*ListResult, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown status filter: "+string(*filter.Status))
	}
	page = page.Normalize()
	records, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification records")
	}
	return &ListResult{Records: records, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// Stats are admin counters across all records.
type Stats struct {
	ByStatus map[models.Status]int
	Total    int
	// InFlight counts pipelines running in this process.
	InFlight int
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count verification records")
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &Stats{ByStatus: counts, Total: total, InFlight: s.tasks.Len()}, nil
}

// LedgerStatus asks the ledger whether the user has an anchored verification.
func (s *Service) LedgerStatus(ctx context.Context, userID id.UserID) (bool, error) {
	verified, err := s.providers.Ledger.IsVerified(ctx, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	}
	return verified, nil
}
