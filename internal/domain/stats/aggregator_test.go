package stats_test

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
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

func TestAggregator_RecomputeMatchesLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	agg := stats.NewAggregator(store.Reports, store.Ledger, store.Snapshots, store.Directory, timeutil.FixedClock(now))

	require.NoError(t, store.Directory.SaveUser(ctx, &identity.User{ID: "u1", FullName: "Ada", InstitutionID: "inst"}))
	for i, day := range []int{2, 3, 4} {
		r := &report.Report{
			ID:        string(rune('a' + i)),
			CreatedBy: "u1",
			WasteType: report.WasteOrganic,
			Timestamp: timeutil.Date(2026, time.March, day).Add(9 * time.Hour),
		}
		if day == 4 {
			r.ImageURL = "https://img/1.jpg"
			r.WasteType = report.WasteMixed
		}
		require.NoError(t, store.Reports.Save(ctx, r))
		require.NoError(t, store.Ledger.Append(ctx, reward.NewPointsEntry("u1", catalog.ActionReportCreated, 10, "", r.ID, reward.ReportKey(catalog.ActionReportCreated, r.ID), r.Timestamp)))
	}
	b, _ := catalog.Default().Badge(catalog.BadgeFirstReport)
	require.NoError(t, store.Ledger.Append(ctx, reward.NewBadgeEntry("u1", b, now)))
	require.NoError(t, store.Ledger.Append(ctx, reward.NewPointsEntry("u1", catalog.ActionBadgeEarned, 50, "", "", reward.BadgeBonusKey(b.ID), now)))

	s, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "Ada", s.FullName)
	assert.Equal(t, "inst", s.InstitutionID)
	assert.Equal(t, 80, s.TotalPoints)
	assert.Equal(t, 3, s.TotalReports)
	assert.Equal(t, 1, s.ReportsWithImages)
	assert.Equal(t, 2, s.DistinctWasteTypes())
	assert.Equal(t, 3, s.CurrentStreak)
	assert.Equal(t, 3, s.LongestStreak)
	assert.Equal(t, []catalog.BadgeID{catalog.BadgeFirstReport}, s.BadgesEarned)
	require.NotNil(t, s.LastReportDate)
	assert.Equal(t, timeutil.Date(2026, time.March, 4).Add(9*time.Hour), *s.LastReportDate)

	stored, err := store.Snapshots.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, s.TotalPoints, stored.TotalPoints)
	assert.Equal(t, int64(1), stored.Version)
}

func TestAggregator_RecomputeKeepsLongestStreakAndRank(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	agg := stats.NewAggregator(store.Reports, store.Ledger, store.Snapshots, store.Directory, timeutil.FixedClock(now))

	prev := stats.NewSnapshot("u1", "Ada", "")
	prev.LongestStreak = 9
	prev.BadgesEarned = []catalog.BadgeID{catalog.BadgeStreakMaster}
	require.NoError(t, store.Snapshots.Upsert(ctx, prev))
	require.NoError(t, store.Snapshots.SetRanks(ctx, []stats.RankAssignment{{UserID: "u1", Rank: 4}}))

	s, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "Ada", s.FullName)
	assert.Equal(t, 0, s.CurrentStreak)
	assert.Equal(t, 9, s.LongestStreak)
	assert.Equal(t, 4, s.Rank)
	assert.True(t, s.HasBadge(catalog.BadgeStreakMaster))
	assert.Equal(t, int64(2), s.Version)
}

func TestAggregator_RecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	agg := stats.NewAggregator(store.Reports, store.Ledger, store.Snapshots, store.Directory, timeutil.FixedClock(now))

	require.NoError(t, store.Reports.Save(ctx, &report.Report{ID: "r", CreatedBy: "u1", WasteType: report.WasteOrganic, Timestamp: now}))
	require.NoError(t, store.Ledger.Append(ctx, reward.NewPointsEntry("u1", catalog.ActionReportCreated, 10, "", "r", "report_created:r", now)))

	first, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)
	second, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)

	first.Version, second.Version = 0, 0
	assert.Equal(t, first, second)
}
