// Package stats holds the per-user statistics snapshot: a derived,
// overwritable cache of the report history and the reward ledger.
// The ledger stays the source of truth; a resync rebuilds the snapshot.
package stats

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the materialized statistics of one user.
type Snapshot struct {
	UserID             string                   `json:"user_id"`
	FullName           string                   `json:"full_name"`
	TotalPoints        int                      `json:"total_points"`
	TotalReports       int                      `json:"total_reports"`
	BadgesEarned       []catalog.BadgeID        `json:"badges_earned"`
	CurrentStreak      int                      `json:"current_streak"`
	LongestStreak      int                      `json:"longest_streak"`
	ReportsWithImages  int                      `json:"reports_with_images"`
	ReportsByWasteType map[report.WasteType]int `json:"reports_by_waste_type"`
	LastReportDate     *time.Time               `json:"last_report_date,omitempty"`
	InstitutionID      string                   `json:"institution_id,omitempty"`

	// Rank is owned by the bulk rank job; 0 means not ranked yet.
	Rank int `json:"rank,omitempty"`

	// Version increments on every successful upsert.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSnapshot creates the zero-valued snapshot of a first-time user.
func NewSnapshot(userID, fullName, institutionID string) *Snapshot {
	return &Snapshot{
		UserID:             userID,
		FullName:           fullName,
		BadgesEarned:       []catalog.BadgeID{},
		ReportsByWasteType: map[report.WasteType]int{},
		InstitutionID:      institutionID,
	}
}

// HasBadge reports whether the badge was already earned.
func (s *Snapshot) HasBadge(id catalog.BadgeID) bool {
	_, found := slices.BinarySearch(s.BadgesEarned, id)
	return found
}

// BadgesCount returns the number of earned badges.
func (s *Snapshot) BadgesCount() int {
	return len(s.BadgesEarned)
}

// DistinctWasteTypes counts waste types with at least one report.
func (s *Snapshot) DistinctWasteTypes() int {
	n := 0
	for _, c := range s.ReportsByWasteType {
		if c > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.BadgesEarned = slices.Clone(s.BadgesEarned)
	c.ReportsByWasteType = make(map[report.WasteType]int, len(s.ReportsByWasteType))
	for k, v := range s.ReportsByWasteType {
		c.ReportsByWasteType[k] = v
	}
	if s.LastReportDate != nil {
		t := *s.LastReportDate
		c.LastReportDate = &t
	}
	return &c
}

// NormalizeBadges sorts and deduplicates a badge list.
func NormalizeBadges(ids []catalog.BadgeID) []catalog.BadgeID {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []catalog.BadgeID{}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ORDERING
// ══════════════════════════════════════════════════════════════════════════════

// SortKey selects the primary ranking value. Every key falls back to total
// points, then total reports, then user id ascending, so orderings are total.
type SortKey string

const (
	SortPoints  SortKey = "points"
	SortReports SortKey = "reports"
	SortStreak  SortKey = "streak"
	SortBadges  SortKey = "badges"
)

// IsValid reports whether k is a known sort key.
func (k SortKey) IsValid() bool {
	switch k {
	case SortPoints, SortReports, SortStreak, SortBadges:
		return true
	}
	return false
}

// Primary returns the primary ranking value of s under k.
func (k SortKey) Primary(s *Snapshot) int {
	switch k {
	case SortReports:
		return s.TotalReports
	case SortStreak:
		return s.LongestStreak
	case SortBadges:
		return len(s.BadgesEarned)
	default:
		return s.TotalPoints
	}
}

// Compare orders a before b when the result is negative.
func Compare(k SortKey, a, b *Snapshot) int {
	if c := cmp.Compare(k.Primary(b), k.Primary(a)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}
	if c := cmp.Compare(b.TotalReports, a.TotalReports); c != 0 {
		return c
	}
	return cmp.Compare(a.UserID, b.UserID)
}

// Sort orders snapshots in place by k.
func Sort(k SortKey, snaps []Snapshot) {
	slices.SortStableFunc(snaps, func(a, b Snapshot) int { return Compare(k, &a, &b) })
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Query filters and orders snapshots for leaderboards.
type Query struct {
	InstitutionID string    // empty for all institutions
	ActiveSince   time.Time // zero for all time; otherwise last_report_date >= ActiveSince
	SortKey       SortKey
	Limit         int // <= 0 for no limit
}

// Matches applies the query filters to s.
func (q Query) Matches(s *Snapshot) bool {
	if q.InstitutionID != "" && s.InstitutionID != q.InstitutionID {
		return false
	}
	if !q.ActiveSince.IsZero() {
		if s.LastReportDate == nil || s.LastReportDate.Before(q.ActiveSince) {
			return false
		}
	}
	return true
}

// RankAssignment is one row of a bulk rank write.
type RankAssignment struct {
	UserID string
	Rank   int
}

// InstitutionTotals aggregates member snapshots of one institution.
type InstitutionTotals struct {
	InstitutionID string
	Members       int
	TotalPoints   int
	TotalReports  int
	AvgPoints     float64
	TopStreak     int
}

// Repository stores snapshots.
type Repository interface {
	// Get returns shared.ErrSnapshotNotFound when the user has no snapshot.
	Get(ctx context.Context, userID string) (*Snapshot, error)

	// Upsert replaces every field except Rank. s.Version must equal the
	// stored version (0 when absent) or shared.ErrStaleSnapshot is returned.
	// On success s.Version and s.Rank reflect the stored row.
	Upsert(ctx context.Context, s *Snapshot) error

	// CreateIfAbsent inserts s unless a snapshot exists and returns the stored one.
	CreateIfAbsent(ctx context.Context, s *Snapshot) (*Snapshot, error)

	// List returns the snapshots matching q in q.SortKey order.
	List(ctx context.Context, q Query) ([]Snapshot, error)

	// CountAhead counts snapshots matching q that sort strictly before s.
	CountAhead(ctx context.Context, s *Snapshot, q Query) (int, error)

	// SetRanks writes materialized ranks.
	SetRanks(ctx context.Context, ranks []RankAssignment) error

	// InstitutionTotals aggregates by institution, ordered by total points desc.
	InstitutionTotals(ctx context.Context, limit int) ([]InstitutionTotals, error)
}
