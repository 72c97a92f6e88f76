// Package leaderboard contains the ranking vocabulary of the rewards engine:
// scopes, periods, categories and the transient entries a ranking query
// returns. Entries are computed per query from stats snapshots and are never
// persisted; the materialized rank lives on the snapshot.
package leaderboard

import (
	"strconv"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Period is the time scope of a ranking.
type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod parses a period; the empty string means all time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAllTime:
		return PeriodAllTime, nil
	case PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return "", shared.ErrInvalidPeriod
}

// ActiveSince returns the lower bound on last_report_date for the period.
// This filters users by recency of any activity, not by points earned
// within the period.
func (p Period) ActiveSince(now time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return catalog.WindowWeek.Start(now)
	case PeriodMonthly:
		return catalog.WindowMonth.Start(now)
	default:
		return time.Time{}
	}
}

// Category is the ranking dimension of a category-scoped board.
type Category string

const (
	CategoryPoints  Category = "points"
	CategoryReports Category = "reports"
	CategoryStreak  Category = "streak"
	CategoryBadges  Category = "badges"
)

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryPoints, CategoryReports, CategoryStreak, CategoryBadges:
		return c, nil
	}
	return "", shared.ErrInvalidCategory
}

// SortKey maps the category to the snapshot ordering.
func (c Category) SortKey() stats.SortKey {
	switch c {
	case CategoryReports:
		return stats.SortReports
	case CategoryStreak:
		return stats.SortStreak
	case CategoryBadges:
		return stats.SortBadges
	default:
		return stats.SortPoints
	}
}

// ScopeKind discriminates Scope.
type ScopeKind string

const (
	ScopeGlobal      ScopeKind = "global"
	ScopeInstitution ScopeKind = "institution"
	ScopeCategory    ScopeKind = "category"
)

// Scope selects which snapshots take part and how they are ordered.
type Scope struct {
	Kind          ScopeKind
	InstitutionID string
	Category      Category
}

// Global ranks every user by points.
func Global() Scope { return Scope{Kind: ScopeGlobal} }

// Institution ranks the members of one institution by points.
func Institution(id string) Scope { return Scope{Kind: ScopeInstitution, InstitutionID: id} }

// ByCategory ranks every user by the category's key.
func ByCategory(c Category) Scope { return Scope{Kind: ScopeCategory, Category: c} }

// Validate checks scope consistency.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		return nil
	case ScopeInstitution:
		if s.InstitutionID == "" {
			return shared.ErrInvalidScope
		}
		return nil
	case ScopeCategory:
		if _, err := ParseCategory(string(s.Category)); err != nil {
			return err
		}
		return nil
	}
	return shared.ErrInvalidScope
}

// Query builds the snapshot query for the scope and period.
func (s Scope) Query(p Period, limit int, now time.Time) stats.Query {
	q := stats.Query{
		SortKey:     stats.SortPoints,
		ActiveSince: p.ActiveSince(now),
		Limit:       limit,
	}
	switch s.Kind {
	case ScopeInstitution:
		q.InstitutionID = s.InstitutionID
	case ScopeCategory:
		q.SortKey = s.Category.SortKey()
	}
	return q
}

// CacheKey identifies the (scope, period, limit) result.
func (s Scope) CacheKey(p Period, limit int) string {
	key := string(s.Kind)
	switch s.Kind {
	case ScopeInstitution:
		key += ":" + s.InstitutionID
	case ScopeCategory:
		key += ":" + string(s.Category)
	}
	return key + ":" + string(p) + ":" + strconv.Itoa(limit)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one row of a ranking.
type Entry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	FullName        string `json:"full_name"`
	TotalPoints     int    `json:"total_points"`
	TotalReports    int    `json:"total_reports"`
	BadgesCount     int    `json:"badges_count"`
	InstitutionName string `json:"institution_name,omitempty"`
	CurrentStreak   int    `json:"current_streak"`
}

// NewEntry projects a snapshot into a ranking row.
func NewEntry(rank int, s *stats.Snapshot, institutionName string) Entry {
	return Entry{
		Rank:            rank,
		UserID:          s.UserID,
		FullName:        s.FullName,
		TotalPoints:     s.TotalPoints,
		TotalReports:    s.TotalReports,
		BadgesCount:     s.BadgesCount(),
		InstitutionName: institutionName,
		CurrentStreak:   s.CurrentStreak,
	}
}

// Complete combines the global board, the user's institution board and the
// user's own position.
type Complete struct {
	Global      []Entry `json:"global_leaderboard"`
	Institution []Entry `json:"institution_leaderboard,omitempty"`
	UserRank    *Entry  `json:"user_rank,omitempty"`
	Period      Period  `json:"period"`
}

// InstitutionRanking is one row of the institution ranking.
type InstitutionRanking struct {
	Rank               int     `json:"rank"`
	InstitutionID      string  `json:"institution_id"`
	InstitutionName    string  `json:"institution_name"`
	TotalMembers       int     `json:"total_members"`
	TotalPoints        int     `json:"total_points"`
	TotalReports       int     `json:"total_reports"`
	AvgPointsPerMember float64 `json:"avg_points_per_member"`
	TopStreak          int     `json:"top_streak"`
}

// RecentAchievement is one item of the community badge feed.
type RecentAchievement struct {
	UserID      string          `json:"user_id"`
	FullName    string          `json:"full_name"`
	BadgeID     catalog.BadgeID `json:"badge_id"`
	Description string          `json:"description"`
	EarnedAt    time.Time       `json:"earned_at"`
}
