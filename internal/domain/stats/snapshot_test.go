package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
)

func snap(id string, points, reports int) Snapshot {
	s := NewSnapshot(id, id, "")
	s.TotalPoints = points
	s.TotalReports = reports
	return *s
}

func TestSort_PointsThenReportsThenUserID(t *testing.T) {
	snaps := []Snapshot{snap("C", 90, 20), snap("B", 100, 8), snap("A", 100, 10), snap("D", 100, 8)}

	Sort(SortPoints, snaps)

	var order []string
	for _, s := range snaps {
		order = append(order, s.UserID)
	}
	assert.Equal(t, []string{"A", "B", "D", "C"}, order)
}

func TestSort_CategoryKeys(t *testing.T) {
	a := snap("a", 50, 30)
	a.LongestStreak = 2
	a.BadgesEarned = []catalog.BadgeID{"x"}
	b := snap("b", 80, 10)
	b.LongestStreak = 9
	b.BadgesEarned = []catalog.BadgeID{"x", "y"}

	snaps := []Snapshot{b, a}
	Sort(SortReports, snaps)
	assert.Equal(t, "a", snaps[0].UserID)

	Sort(SortStreak, snaps)
	assert.Equal(t, "b", snaps[0].UserID)

	Sort(SortBadges, snaps)
	assert.Equal(t, "b", snaps[0].UserID)
}

func TestQuery_Matches(t *testing.T) {
	last := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s := NewSnapshot("u", "U", "inst-1")
	s.LastReportDate = &last

	assert.True(t, Query{}.Matches(s))
	assert.True(t, Query{InstitutionID: "inst-1", ActiveSince: last}.Matches(s))
	assert.False(t, Query{InstitutionID: "inst-2"}.Matches(s))
	assert.False(t, Query{ActiveSince: last.Add(time.Second)}.Matches(s))
	assert.False(t, Query{ActiveSince: last}.Matches(NewSnapshot("v", "V", "")))
}

func TestSnapshot_Helpers(t *testing.T) {
	s := NewSnapshot("u", "U", "")
	s.BadgesEarned = NormalizeBadges([]catalog.BadgeID{"b", "a", "b"})
	s.ReportsByWasteType[report.WasteOrganic] = 2
	s.ReportsByWasteType[report.WasteMixed] = 0

	assert.Equal(t, []catalog.BadgeID{"a", "b"}, s.BadgesEarned)
	assert.True(t, s.HasBadge("a"))
	assert.False(t, s.HasBadge("c"))
	assert.Equal(t, 1, s.DistinctWasteTypes())

	c := s.Clone()
	c.BadgesEarned[0] = "z"
	c.ReportsByWasteType[report.WasteOrganic] = 99
	assert.Equal(t, catalog.BadgeID("a"), s.BadgesEarned[0])
	assert.Equal(t, 2, s.ReportsByWasteType[report.WasteOrganic])
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
	reports := []report.Report{
		{ID: "r3", CreatedBy: "u", WasteType: report.WasteOrganic, ImageURL: "img", Timestamp: day(5, 9)},
		{ID: "r2", CreatedBy: "u", WasteType: report.WasteOrganic, Timestamp: day(4, 9)},
		{ID: "r1", CreatedBy: "u", WasteType: report.WasteElectronic, Timestamp: day(1, 9)},
	}
	ten, fifty := 10, 50
	entries := []reward.Entry{
		{Kind: reward.KindPoints, Points: &ten},
		{Kind: reward.KindPoints, Points: &ten},
		{Kind: reward.KindBadge, BadgeID: catalog.BadgeFirstReport},
		{Kind: reward.KindBonus, Points: &fifty},
	}
	prev := NewSnapshot("u", "Old Name", "old-inst")
	prev.LongestStreak = 7
	prev.BadgesEarned = []catalog.BadgeID{catalog.BadgeEarlyAdopter}
	prev.Rank = 4
	prev.Version = 12
	user := &identity.User{ID: "u", FullName: "Aigerim", InstitutionID: "inst-1"}

	s := Build("u", prev, user, reports, entries, now)

	assert.Equal(t, "Aigerim", s.FullName)
	assert.Equal(t, "inst-1", s.InstitutionID)
	assert.Equal(t, 70, s.TotalPoints)
	assert.Equal(t, 3, s.TotalReports)
	assert.Equal(t, 1, s.ReportsWithImages)
	assert.Equal(t, map[report.WasteType]int{report.WasteOrganic: 2, report.WasteElectronic: 1}, s.ReportsByWasteType)
	assert.Equal(t, []catalog.BadgeID{catalog.BadgeEarlyAdopter, catalog.BadgeFirstReport}, s.BadgesEarned)
	assert.Equal(t, 2, s.CurrentStreak)
	assert.Equal(t, 7, s.LongestStreak)
	assert.Equal(t, day(5, 9), *s.LastReportDate)
	assert.Equal(t, 4, s.Rank)
	assert.Equal(t, int64(12), s.Version)
}

func TestBuild_NoHistory(t *testing.T) {
	s := Build("u", nil, nil, nil, nil, time.Now())

	assert.Zero(t, s.TotalPoints)
	assert.Zero(t, s.CurrentStreak)
	assert.Nil(t, s.LastReportDate)
	assert.Empty(t, s.BadgesEarned)
	assert.NotNil(t, s.ReportsByWasteType)
}
