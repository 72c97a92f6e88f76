package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestLedgerStore_EnforcesIdempotencyKeyPerUser(t *testing.T) {
	ctx := context.Background()
	l := NewLedgerStore()

	e := reward.NewPointsEntry("u1", catalog.ActionWeeklyGoal, 25, "", "", "weekly_goal:2026-02-10", t0)
	require.NoError(t, l.Append(ctx, e))

	dup := reward.NewPointsEntry("u1", catalog.ActionWeeklyGoal, 25, "", "", "weekly_goal:2026-02-10", t0)
	err := l.Append(ctx, dup)
	assert.True(t, shared.IsRaceDetected(err))

	other := reward.NewPointsEntry("u2", catalog.ActionWeeklyGoal, 25, "", "", "weekly_goal:2026-02-10", t0)
	assert.NoError(t, l.Append(ctx, other))

	entries, err := l.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLedgerStore_QueriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewLedgerStore()

	for i := 0; i < 5; i++ {
		e := reward.NewPointsEntry("u1", catalog.ActionReportCreated, 10, "", "r", reward.ReportKey(catalog.ActionReportCreated, string(rune('a'+i))), t0.Add(time.Duration(i)*time.Hour))
		require.NoError(t, l.Append(ctx, e))
	}
	b, _ := catalog.Default().Badge(catalog.BadgeFirstReport)
	require.NoError(t, l.Append(ctx, reward.NewBadgeEntry("u1", b, t0.Add(10*time.Hour))))

	page, err := l.History(ctx, "u1", reward.HistoryQuery{Kind: reward.KindPoints, Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, t0.Add(3*time.Hour), page[0].EarnedAt)
	assert.Equal(t, t0.Add(2*time.Hour), page[1].EarnedAt)

	empty, err := l.History(ctx, "u1", reward.HistoryQuery{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, empty)

	exists, err := l.ExistsSince(ctx, "u1", catalog.ActionReportCreated, t0.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = l.ExistsSince(ctx, "u1", catalog.ActionReportCreated, t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, exists)

	badges, err := l.RecentBadges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, catalog.BadgeFirstReport, badges[0].BadgeID)
}

func TestReportStore_SaveKeepsOwner(t *testing.T) {
	ctx := context.Background()
	s := NewReportStore()
	r := report.Report{ID: "r1", CreatedBy: "alice", WasteType: report.WasteOrganic, Timestamp: t0}

	require.NoError(t, s.Save(ctx, &r))
	require.NoError(t, s.Save(ctx, &r))

	stolen := r
	stolen.CreatedBy = "bob"
	assert.ErrorIs(t, s.Save(ctx, &stolen), shared.ErrReportOwnerConflict)

	alice, err := s.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 1)
	bob, err := s.ListByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)
}

func TestReportStore_CountWindowAndPredicate(t *testing.T) {
	ctx := context.Background()
	r := NewReportStore()

	require.NoError(t, r.Save(ctx, &report.Report{ID: "1", CreatedBy: "u", Safe: true, Timestamp: t0.AddDate(0, 0, -10)}))
	require.NoError(t, r.Save(ctx, &report.Report{ID: "2", CreatedBy: "u", Safe: true, Timestamp: t0.AddDate(0, 0, -1)}))
	require.NoError(t, r.Save(ctx, &report.Report{ID: "3", CreatedBy: "u", UrbanArea: true, Timestamp: t0}))
	require.NoError(t, r.Save(ctx, &report.Report{ID: "3", CreatedBy: "u", UrbanArea: true, Timestamp: t0}))

	n, _ := r.Count(ctx, "u", time.Time{}, report.PredicateAny)
	assert.Equal(t, 3, n)
	n, _ = r.Count(ctx, "u", t0.AddDate(0, 0, -7), report.PredicateAny)
	assert.Equal(t, 2, n)
	n, _ = r.Count(ctx, "u", time.Time{}, report.PredicateSafe)
	assert.Equal(t, 2, n)
	n, _ = r.Count(ctx, "u", time.Time{}, report.PredicateRural)
	assert.Equal(t, 2, n)

	list, _ := r.ListByUser(ctx, "u")
	require.Len(t, list, 3)
	assert.Equal(t, "3", list[0].ID)
	assert.Equal(t, "1", list[2].ID)
}

func TestSnapshotStore_UpsertVersionCheckAndRankPreservation(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	snap := stats.NewSnapshot("u1", "User", "")
	snap.TotalPoints = 10
	require.NoError(t, s.Upsert(ctx, snap))
	assert.Equal(t, int64(1), snap.Version)

	require.NoError(t, s.SetRanks(ctx, []stats.RankAssignment{{UserID: "u1", Rank: 3}, {UserID: "ghost", Rank: 9}}))

	stale := stats.NewSnapshot("u1", "User", "")
	err := s.Upsert(ctx, stale)
	assert.ErrorIs(t, err, shared.ErrVersionConflict)

	snap.TotalPoints = 30
	snap.Rank = 0
	require.NoError(t, s.Upsert(ctx, snap))
	assert.Equal(t, 3, snap.Rank)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.TotalPoints)
	assert.Equal(t, 3, got.Rank)
	assert.Equal(t, int64(2), got.Version)

	_, err = s.Get(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err))
}

func TestSnapshotStore_CreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	first, err := s.CreateIfAbsent(ctx, stats.NewSnapshot("u1", "First", ""))
	require.NoError(t, err)
	second, err := s.CreateIfAbsent(ctx, stats.NewSnapshot("u1", "Second", ""))
	require.NoError(t, err)

	assert.Equal(t, "First", first.FullName)
	assert.Equal(t, "First", second.FullName)
}

func TestSnapshotStore_ListCountAndTotals(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()
	recent := t0
	old := t0.AddDate(0, -2, 0)

	put := func(id, inst string, points, reports, streak int, last time.Time) {
		snap := stats.NewSnapshot(id, id, inst)
		snap.TotalPoints, snap.TotalReports, snap.LongestStreak = points, reports, streak
		snap.LastReportDate = &last
		require.NoError(t, s.Upsert(ctx, snap))
	}
	put("A", "i1", 100, 10, 2, recent)
	put("B", "i1", 100, 8, 5, old)
	put("C", "i2", 90, 20, 1, recent)

	all, err := s.List(ctx, stats.Query{SortKey: stats.SortPoints})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids(all))

	active, err := s.List(ctx, stats.Query{ActiveSince: t0.AddDate(0, 0, -7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, ids(active))

	c, _ := s.Get(ctx, "C")
	ahead, err := s.CountAhead(ctx, c, stats.Query{SortKey: stats.SortPoints})
	require.NoError(t, err)
	assert.Equal(t, 2, ahead)

	totals, err := s.InstitutionTotals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, stats.InstitutionTotals{
		InstitutionID: "i1", Members: 2, TotalPoints: 200, TotalReports: 18, AvgPoints: 100, TopStreak: 5,
	}, totals[0])
}

func TestDirectoryStore_JoinRank(t *testing.T) {
	ctx := context.Background()
	d := NewDirectoryStore()

	require.NoError(t, d.SaveUser(ctx, &identity.User{ID: "late", JoinedAt: t0.Add(time.Hour)}))
	require.NoError(t, d.SaveUser(ctx, &identity.User{ID: "b", JoinedAt: t0}))
	require.NoError(t, d.SaveUser(ctx, &identity.User{ID: "a", JoinedAt: t0}))

	rank, err := d.JoinRank(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
	rank, _ = d.JoinRank(ctx, "b")
	assert.Equal(t, 2, rank)
	rank, _ = d.JoinRank(ctx, "late")
	assert.Equal(t, 3, rank)

	_, err = d.JoinRank(ctx, "nobody")
	assert.True(t, shared.IsNotFound(err))
}

func ids(snaps []stats.Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.UserID)
	}
	return out
}
