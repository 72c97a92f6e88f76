// Package badge decides which catalog badges a user newly qualifies for and
// how far they are from the rest. Requirement kinds are data in the catalog;
// this package only knows how to measure each kind.
package badge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// ReportCounter answers live windowed count queries against the report store.
type ReportCounter interface {
	Count(ctx context.Context, userID string, since time.Time, pred report.Predicate) (int, error)
}

// JoinRanker answers the user's position in join order.
type JoinRanker interface {
	JoinRank(ctx context.Context, userID string) (int, error)
}

// SnapshotLister lists snapshots; used for institution positions.
type SnapshotLister interface {
	List(ctx context.Context, q stats.Query) ([]stats.Snapshot, error)
}

// Progress describes how close a user is to an unearned badge.
type Progress struct {
	Badge      catalog.Badge `json:"badge"`
	Progress   int           `json:"progress"`
	Target     int           `json:"target"`
	Completed  bool          `json:"completed"`
	Percentage float64       `json:"percentage"`
}

// Evaluator measures requirements against a snapshot and live queries.
type Evaluator struct {
	catalog *catalog.Catalog
	reports ReportCounter
	joins   JoinRanker
	leaders SnapshotLister
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(c *catalog.Catalog, reports ReportCounter, joins JoinRanker, leaders SnapshotLister) *Evaluator {
	return &Evaluator{catalog: c, reports: reports, joins: joins, leaders: leaders}
}

// Evaluate returns the badges s newly qualifies for as of now, in catalog
// order. Badges already in s.BadgesEarned are never returned. A failing
// measurement skips that badge; the failures are returned joined alongside
// the badges that could be decided.
func (e *Evaluator) Evaluate(ctx context.Context, s *stats.Snapshot, now time.Time) ([]catalog.BadgeID, error) {
	var (
		qualified []catalog.BadgeID
		errs      []error
	)

	for _, b := range e.catalog.Badges() {
		if s.HasBadge(b.ID) {
			continue
		}
		m, err := e.measure(ctx, s, b.Requirement, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("badge %s: %w", b.ID, err))
			continue
		}
		if m.met {
			qualified = append(qualified, b.ID)
		}
	}
	return qualified, errors.Join(errs...)
}

// Progress reports progress toward every unearned badge, highest
// percentage first. Ties keep catalog order.
func (e *Evaluator) Progress(ctx context.Context, s *stats.Snapshot, now time.Time) ([]Progress, error) {
	var (
		out  []Progress
		errs []error
	)

	for _, b := range e.catalog.Badges() {
		if s.HasBadge(b.ID) {
			continue
		}
		m, err := e.measure(ctx, s, b.Requirement, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("badge %s: %w", b.ID, err))
			continue
		}
		out = append(out, Progress{
			Badge:      b,
			Progress:   m.value,
			Target:     b.Requirement.Threshold,
			Completed:  m.met,
			Percentage: m.percentage(b.Requirement),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Percentage > out[j].Percentage })
	return out, errors.Join(errs...)
}

type measurement struct {
	value int
	met   bool
}

func (m measurement) percentage(req catalog.Requirement) float64 {
	if req.AtMost() {
		if m.met {
			return 100
		}
		return 0
	}
	return min(100, float64(m.value)/float64(req.Threshold)*100)
}

func atLeast(value, threshold int) measurement {
	return measurement{value: value, met: value >= threshold}
}

func atMost(position, threshold int) measurement {
	return measurement{value: position, met: position > 0 && position <= threshold}
}

func (e *Evaluator) measure(ctx context.Context, s *stats.Snapshot, req catalog.Requirement, now time.Time) (measurement, error) {
	switch req.Kind {
	case catalog.KindTotalReports:
		return atLeast(s.TotalReports, req.Threshold), nil

	case catalog.KindImagesCount:
		return atLeast(s.ReportsWithImages, req.Threshold), nil

	case catalog.KindStreakDays:
		return atLeast(s.LongestStreak, req.Threshold), nil

	case catalog.KindDistinctWasteTypes:
		return atLeast(s.DistinctWasteTypes(), req.Threshold), nil

	case catalog.KindWindowedCount:
		n, err := e.reports.Count(ctx, s.UserID, req.Window.Start(now), req.Predicate)
		if err != nil {
			return measurement{}, err
		}
		return atLeast(n, req.Threshold), nil

	case catalog.KindJoinOrder:
		pos, err := e.joins.JoinRank(ctx, s.UserID)
		if err != nil {
			if shared.IsNotFound(err) {
				return measurement{}, nil
			}
			return measurement{}, err
		}
		return atMost(pos, req.Threshold), nil

	case catalog.KindInstitutionLeader:
		pos, err := e.institutionPosition(ctx, s, req.Threshold)
		if err != nil {
			return measurement{}, err
		}
		return atMost(pos, req.Threshold), nil

	default:
		return measurement{}, shared.NewDomainError("badge", "Evaluate", shared.ErrValidation,
			fmt.Sprintf("unsupported requirement kind %q", req.Kind))
	}
}

// institutionPosition returns the 1-based reports position of s within its
// institution, looking at the top n only; 0 when outside the top n or
// without an institution.
func (e *Evaluator) institutionPosition(ctx context.Context, s *stats.Snapshot, n int) (int, error) {
	if s.InstitutionID == "" || s.TotalReports == 0 {
		return 0, nil
	}

	top, err := e.leaders.List(ctx, stats.Query{
		InstitutionID: s.InstitutionID,
		SortKey:       stats.SortReports,
		Limit:         n + 1,
	})
	if err != nil {
		return 0, err
	}

	// The stored snapshot may lag the one being evaluated; rank the fresh
	// one among the other members.
	others := make([]stats.Snapshot, 0, len(top)+1)
	for _, o := range top {
		if o.UserID != s.UserID {
			others = append(others, o)
		}
	}
	pos := 1
	for i := range others {
		if stats.Compare(stats.SortReports, &others[i], s) < 0 {
			pos++
		}
	}
	if pos > n {
		return 0, nil
	}
	return pos, nil
}
