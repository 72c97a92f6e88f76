package badge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type countKey struct {
	window bool
	pred   report.Predicate
}

type fakeCounter struct {
	counts map[countKey]int
	err    error
	calls  int
}

func (f *fakeCounter) Count(_ context.Context, _ string, since time.Time, pred report.Predicate) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[countKey{window: !since.IsZero(), pred: pred}], nil
}

type fakeJoins map[string]int

func (f fakeJoins) JoinRank(_ context.Context, userID string) (int, error) {
	pos, ok := f[userID]
	if !ok {
		return 0, shared.ErrUserNotFound
	}
	return pos, nil
}

type fakeLister []stats.Snapshot

func (f fakeLister) List(_ context.Context, q stats.Query) ([]stats.Snapshot, error) {
	var out []stats.Snapshot
	for _, s := range f {
		if q.Matches(&s) {
			out = append(out, s)
		}
	}
	stats.Sort(q.SortKey, out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func newEvaluator(c *fakeCounter, joins fakeJoins, lister fakeLister) *Evaluator {
	return NewEvaluator(catalog.Default(), c, joins, lister)
}

func TestEvaluate_SnapshotRequirements(t *testing.T) {
	s := stats.NewSnapshot("u1", "User", "")
	s.TotalReports = 1
	s.LongestStreak = 7
	for _, w := range report.AllWasteTypes() {
		s.ReportsByWasteType[w] = 1
	}

	got, err := newEvaluator(&fakeCounter{}, fakeJoins{}, nil).Evaluate(context.Background(), s, now)
	require.NoError(t, err)
	assert.Equal(t, []catalog.BadgeID{
		catalog.BadgeFirstReport,
		catalog.BadgeWasteCategorizer,
		catalog.BadgeStreakMaster,
	}, got)
}

func TestEvaluate_IsIdempotentOnceEarned(t *testing.T) {
	s := stats.NewSnapshot("u1", "User", "")
	s.TotalReports = 1
	ev := newEvaluator(&fakeCounter{}, fakeJoins{}, nil)

	first, err := ev.Evaluate(context.Background(), s, now)
	require.NoError(t, err)
	require.Equal(t, []catalog.BadgeID{catalog.BadgeFirstReport}, first)

	s.BadgesEarned = stats.NormalizeBadges(append(s.BadgesEarned, first...))
	second, err := ev.Evaluate(context.Background(), s, now)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestEvaluate_WindowedCountsUseLiveQueries(t *testing.T) {
	counter := &fakeCounter{counts: map[countKey]int{
		{window: true, pred: report.PredicateAny}:       5,
		{window: false, pred: report.PredicateSafe}:     50,
		{window: false, pred: report.PredicateRural}:    19,
		{window: false, pred: report.PredicateDetailed}: 10,
	}}
	s := stats.NewSnapshot("u1", "User", "")
	s.BadgesEarned = []catalog.BadgeID{catalog.BadgeFirstReport}

	got, err := newEvaluator(counter, fakeJoins{}, nil).Evaluate(context.Background(), s, now)
	require.NoError(t, err)
	assert.Equal(t, []catalog.BadgeID{
		catalog.BadgeWeeklyReporter,
		catalog.BadgeDetailOriented,
		catalog.BadgeSafetyFirst,
	}, got)
}

func TestEvaluate_JoinOrderAndInstitutionLeader(t *testing.T) {
	me := stats.NewSnapshot("me", "Me", "inst")
	me.TotalReports = 12
	rival := stats.NewSnapshot("rival", "Rival", "inst")
	rival.TotalReports = 11
	// Stored copy of "me" lags behind the fresh snapshot.
	staleMe := stats.NewSnapshot("me", "Me", "inst")
	staleMe.TotalReports = 3

	lister := fakeLister{*rival, *staleMe}
	got, err := newEvaluator(&fakeCounter{}, fakeJoins{"me": 100}, lister).Evaluate(context.Background(), me, now)
	require.NoError(t, err)
	assert.Contains(t, got, catalog.BadgeEarlyAdopter)
	assert.Contains(t, got, catalog.BadgeCommunityLeader)

	late, err := newEvaluator(&fakeCounter{}, fakeJoins{"me": 101}, fakeLister{*rival}).Evaluate(context.Background(), rival, now)
	require.NoError(t, err)
	assert.NotContains(t, late, catalog.BadgeEarlyAdopter)
	assert.Contains(t, late, catalog.BadgeCommunityLeader)
}

func TestEvaluate_CountFailureSkipsOnlyAffectedBadges(t *testing.T) {
	s := stats.NewSnapshot("u1", "User", "")
	s.TotalReports = 1
	storeDown := shared.WrapError("report", "Count", shared.ErrStoreUnavailable, "query failed", errors.New("conn reset"))

	got, err := newEvaluator(&fakeCounter{err: storeDown}, fakeJoins{}, nil).Evaluate(context.Background(), s, now)
	assert.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.Equal(t, []catalog.BadgeID{catalog.BadgeFirstReport}, got)
}

func TestProgress_SortedByPercentage(t *testing.T) {
	s := stats.NewSnapshot("u1", "User", "")
	s.TotalReports = 50
	s.ReportsWithImages = 20
	s.LongestStreak = 1
	s.BadgesEarned = []catalog.BadgeID{catalog.BadgeFirstReport}

	progress, err := newEvaluator(&fakeCounter{}, fakeJoins{"u1": 500}, nil).Progress(context.Background(), s, now)
	require.NoError(t, err)
	require.Len(t, progress, 12)

	assert.Equal(t, catalog.BadgePhotoMaster, progress[0].Badge.ID)
	assert.InDelta(t, 80.0, progress[0].Percentage, 0.001)
	assert.Equal(t, catalog.BadgeEcoWarrior, progress[1].Badge.ID)
	assert.Equal(t, 50, progress[1].Progress)
	assert.Equal(t, 100, progress[1].Target)

	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i-1].Percentage, progress[i].Percentage)
	}
	for _, p := range progress {
		assert.NotEqual(t, catalog.BadgeFirstReport, p.Badge.ID)
	}
}

func TestEvaluate_CustomCatalogNeedsNoCodeChange(t *testing.T) {
	c := catalog.MustNew(catalog.DefaultRules(), nil, []catalog.Badge{
		{ID: "glass_collector", Name: "Glass Collector", Requirement: catalog.WindowedCount(catalog.WindowMonth, report.PredicateWithImage, 3)},
	}, catalog.DefaultLevelThresholds)
	counter := &fakeCounter{counts: map[countKey]int{{window: true, pred: report.PredicateWithImage}: 3}}

	got, err := NewEvaluator(c, counter, fakeJoins{}, nil).Evaluate(context.Background(), stats.NewSnapshot("u", "U", ""), now)
	require.NoError(t, err)
	assert.Equal(t, []catalog.BadgeID{"glass_collector"}, got)
	assert.Equal(t, 1, counter.calls)
}
