package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ReportStore implements report.Repository.
type ReportStore struct {
	mu     sync.RWMutex
	byUser map[string][]report.Report
	owners map[string]string
}

var _ report.Repository = (*ReportStore)(nil)

// NewReportStore creates an empty ReportStore.
func NewReportStore() *ReportStore {
	return &ReportStore{
		byUser: make(map[string][]report.Report),
		owners: make(map[string]string),
	}
}

// Save stores r unless its id is already known.
func (s *ReportStore) Save(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[r.ID]; ok {
		if owner != r.CreatedBy {
			return shared.ErrReportOwnerConflict
		}
		return nil
	}
	s.owners[r.ID] = r.CreatedBy
	s.byUser[r.CreatedBy] = append(s.byUser[r.CreatedBy], *r)
	return nil
}

// ListByUser returns the user's reports, newest first.
func (s *ReportStore) ListByUser(_ context.Context, userID string) ([]report.Report, error) {
	s.mu.RLock()
	out := slices.Clone(s.byUser[userID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b report.Report) int { return b.Timestamp.Compare(a.Timestamp) })
	return out, nil
}

// Count counts the user's reports at or after since that match pred.
func (s *ReportStore) Count(_ context.Context, userID string, since time.Time, pred report.Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.byUser[userID] {
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		if pred.Matches(r) {
			n++
		}
	}
	return n, nil
}
