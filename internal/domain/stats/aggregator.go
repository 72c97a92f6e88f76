package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// maxUpsertAttempts bounds re-reads after a version conflict.
const maxUpsertAttempts = 3

// Build derives a snapshot from the full report history and ledger.
// prev supplies the longest streak, previously earned badges, rank and
// version; user supplies identity. Both may be nil.
func Build(userID string, prev *Snapshot, user *identity.User, reports []report.Report, entries []reward.Entry, now time.Time) *Snapshot {
	s := NewSnapshot(userID, "", "")

	switch {
	case user != nil:
		s.FullName = user.FullName
		s.InstitutionID = user.InstitutionID
	case prev != nil:
		s.FullName = prev.FullName
		s.InstitutionID = prev.InstitutionID
	}

	earned := s.BadgesEarned
	for _, e := range entries {
		s.TotalPoints += e.PointsValue()
		if e.Kind == reward.KindBadge && e.BadgeID != "" {
			earned = append(earned, e.BadgeID)
		}
	}

	previousLongest := 0
	if prev != nil {
		earned = append(earned, prev.BadgesEarned...)
		previousLongest = prev.LongestStreak
		s.Rank = prev.Rank
		s.Version = prev.Version
	}
	s.BadgesEarned = NormalizeBadges(earned)

	timestamps := make([]time.Time, 0, len(reports))
	for _, r := range reports {
		s.TotalReports++
		if r.HasImage() {
			s.ReportsWithImages++
		}
		s.ReportsByWasteType[r.WasteType]++
		timestamps = append(timestamps, r.Timestamp)

		if s.LastReportDate == nil || r.Timestamp.After(*s.LastReportDate) {
			ts := r.Timestamp.UTC()
			s.LastReportDate = &ts
		}
	}

	s.CurrentStreak = CurrentStreak(timestamps, now)
	s.LongestStreak = LongestStreak(s.CurrentStreak, previousLongest)
	s.UpdatedAt = now.UTC()
	return s
}

// Aggregator recomputes snapshots from the stores.
type Aggregator struct {
	reports   report.Repository
	ledger    reward.Repository
	snapshots Repository
	directory identity.Directory
	clock     timeutil.Clock
}

// NewAggregator creates an Aggregator.
func NewAggregator(reports report.Repository, ledger reward.Repository, snapshots Repository, directory identity.Directory, clock timeutil.Clock) *Aggregator {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Aggregator{
		reports:   reports,
		ledger:    ledger,
		snapshots: snapshots,
		directory: directory,
		clock:     clock,
	}
}

// Now returns the aggregator's current time.
func (a *Aggregator) Now() time.Time { return a.clock.Now() }

// Compute builds a fresh snapshot as of now without persisting it.
func (a *Aggregator) Compute(ctx context.Context, userID string, now time.Time) (*Snapshot, error) {
	prev, err := a.snapshots.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		prev = nil
	}

	user, err := a.directory.GetUser(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		user = nil
	}

	reports, err := a.reports.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}

	entries, err := a.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	return Build(userID, prev, user, reports, entries, now), nil
}

// Recompute rebuilds and upserts the user's snapshot as of the clock's now.
func (a *Aggregator) Recompute(ctx context.Context, userID string) (*Snapshot, error) {
	return a.RecomputeAt(ctx, userID, a.clock.Now())
}

// RecomputeAt rebuilds and upserts the snapshot as of now. A concurrent
// write is detected by the version check and the rebuild is retried.
func (a *Aggregator) RecomputeAt(ctx context.Context, userID string, now time.Time) (*Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		s, err := a.Compute(ctx, userID, now)
		if err != nil {
			return nil, err
		}

		err = a.snapshots.Upsert(ctx, s)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, shared.ErrVersionConflict) {
			return nil, fmt.Errorf("upsert snapshot: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("upsert snapshot: %w", lastErr)
}
