package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// InMemoryStore keeps records in process memory. Records are cloned on the way
// in and out so callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.VerificationRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*models.VerificationRecord)}
}

// CreateIfNoneActive inserts the record unless the user already has a
// non-terminal one, in which case it returns sentinel.ErrConflict.
func (s *InMemoryStore) CreateIfNoneActive(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, r := range s.records {
		if r.UserID == record.UserID && !r.Status.IsTerminal() {
			return sentinel.ErrConflict
		}
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.RecordID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// FindLatestByUser returns the user's most recently submitted record.
func (s *InMemoryStore) FindLatestByUser(_ context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.VerificationRecord
	for _, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.SubmittedAt.After(latest.SubmittedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *InMemoryStore) FindActiveByUser(_ context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.UserID == userID && !r.Status.IsTerminal() {
			return r.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update applies fn to a copy of the record and stores the copy only if fn succeeds.
// The write lock is held across read, mutate and write.
func (s *InMemoryStore) Update(_ context.Context, recordID id.RecordID, fn func(r *models.VerificationRecord) error) (*models.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	pin(next, current)
	s.records[recordID] = next
	return next.Clone(), nil
}

// List returns a page of records newest first, with the total match count.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter, page models.Page) ([]*models.VerificationRecord, int, error) {
	page = page.Normalize()

	s.mu.RLock()
	matched := make([]*models.VerificationRecord, 0, len(s.records))
	for _, r := range s.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.UserID != nil && r.UserID != *filter.UserID {
			continue
		}
		matched = append(matched, r.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.VerificationRecord) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})

	total := len(matched)
	if page.Offset >= total {
		return []*models.VerificationRecord{}, total, nil
	}
	end := min(page.Offset+page.Limit, total)
	return matched[page.Offset:end], total, nil
}

// CountByStatus returns a count for every status, zero included.
func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for _, r := range s.records {
		counts[r.Status]++
	}
	return counts, nil
}

// ListByStatus returns up to limit records in any of the statuses, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, statuses []models.Status, limit int) ([]*models.VerificationRecord, error) {
	s.mu.RLock()
	out := make([]*models.VerificationRecord, 0)
	for _, r := range s.records {
		if slices.Contains(statuses, r.Status) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.VerificationRecord) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemoryUserStatusStore is the per-user status projection.
type InMemoryUserStatusStore struct {
	mu       sync.RWMutex
	statuses map[id.UserID]models.UserKYCStatus
}

func NewInMemoryUserStatusStore() *InMemoryUserStatusStore {
	return &InMemoryUserStatusStore{statuses: make(map[id.UserID]models.UserKYCStatus)}
}

func (s *InMemoryUserStatusStore) SetKYCStatus(_ context.Context, userID id.UserID, status models.UserKYCStatus, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = status
	return nil
}

// GetKYCStatus returns not_started for unknown users.
func (s *InMemoryUserStatusStore) GetKYCStatus(_ context.Context, userID id.UserID) (models.UserKYCStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.statuses[userID]; ok {
		return st, nil
	}
	return models.UserKYCNotStarted, nil
}
