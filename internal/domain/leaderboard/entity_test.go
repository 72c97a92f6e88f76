package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAllTime, p)

	p, err = ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("yearly")
	assert.True(t, shared.IsValidation(err))
}

func TestScope_Query(t *testing.T) {
	now := time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC)

	q := Global().Query(PeriodAllTime, 50, now)
	assert.Equal(t, stats.Query{SortKey: stats.SortPoints, Limit: 50}, q)

	q = Institution("inst-9").Query(PeriodWeekly, 20, now)
	assert.Equal(t, "inst-9", q.InstitutionID)
	assert.Equal(t, now.AddDate(0, 0, -7), q.ActiveSince)

	q = ByCategory(CategoryBadges).Query(PeriodMonthly, 10, now)
	assert.Equal(t, stats.SortBadges, q.SortKey)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), q.ActiveSince)
}

func TestScope_Validate(t *testing.T) {
	assert.NoError(t, Global().Validate())
	assert.NoError(t, ByCategory(CategoryStreak).Validate())
	assert.ErrorIs(t, Institution("").Validate(), shared.ErrInvalidInput)
	assert.ErrorIs(t, ByCategory("karma").Validate(), shared.ErrInvalidInput)
	assert.ErrorIs(t, Scope{Kind: "galaxy"}.Validate(), shared.ErrInvalidInput)
}

func TestScope_CacheKey(t *testing.T) {
	assert.Equal(t, "global:all_time:50", Global().CacheKey(PeriodAllTime, 50))
	assert.Equal(t, "institution:i1:weekly:20", Institution("i1").CacheKey(PeriodWeekly, 20))
	assert.Equal(t, "category:streak:monthly:10", ByCategory(CategoryStreak).CacheKey(PeriodMonthly, 10))
}

func TestNewEntry(t *testing.T) {
	s := stats.NewSnapshot("u1", "Dana", "i1")
	s.TotalPoints = 120
	s.TotalReports = 9
	s.CurrentStreak = 3
	s.BadgesEarned = stats.NormalizeBadges([]catalog.BadgeID{"a", "b"})

	e := NewEntry(4, s, "KBTU")
	assert.Equal(t, Entry{
		Rank: 4, UserID: "u1", FullName: "Dana", TotalPoints: 120, TotalReports: 9,
		BadgesCount: 2, InstitutionName: "KBTU", CurrentStreak: 3,
	}, e)
}
