// Package reward contains the append-only reward ledger.
// A ledger entry is written once by the reward processor and never changed.
// Every entry carries an idempotency key unique per user; the key encodes
// the award's scope so a duplicate award is rejected by the store.
package reward

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind is the ledger entry category.
type Kind string

const (
	KindPoints      Kind = "points"
	KindBadge       Kind = "badge"
	KindAchievement Kind = "achievement"
	KindBonus       Kind = "bonus"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindPoints, KindBadge, KindAchievement, KindBonus:
		return true
	}
	return false
}

// KindFor maps an action to the ledger kind it is recorded under.
func KindFor(a catalog.Action) Kind {
	switch a {
	case catalog.ActionReportCreated:
		return KindPoints
	case catalog.ActionWeeklyGoal, catalog.ActionMonthlyGoal:
		return KindAchievement
	default:
		return KindBonus
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IDEMPOTENCY KEYS
// ══════════════════════════════════════════════════════════════════════════════

// ReportKey scopes a per-report reward: one per (action, report).
func ReportKey(a catalog.Action, reportID string) string {
	return string(a) + ":" + reportID
}

// DayKey scopes a once-per-UTC-day reward.
func DayKey(a catalog.Action, at time.Time) string {
	return string(a) + ":" + timeutil.DayKey(at)
}

// GoalKey scopes a goal bonus to its period bucket. Monthly goals use the
// calendar month; rolling weekly goals use the UTC date of the award.
func GoalKey(g catalog.GoalRule, at time.Time) string {
	if g.Window == catalog.WindowMonth {
		return string(g.Action) + ":" + timeutil.MonthKey(at)
	}
	return string(g.Action) + ":" + timeutil.DayKey(at)
}

// BadgeKey scopes a badge entry: one per (user, badge).
func BadgeKey(id catalog.BadgeID) string {
	return "badge:" + string(id)
}

// BadgeBonusKey scopes the points awarded alongside a badge.
func BadgeBonusKey(id catalog.BadgeID) string {
	return "badge_bonus:" + string(id)
}

// LegacyKey scopes an entry imported from the legacy store by its object id.
func LegacyKey(objectID string) string {
	return "legacy:" + objectID
}

// MissingBadgeBonuses returns the badges whose bonus entry never landed,
// oldest first. Imported bonuses carry legacy keys that do not name their
// badge, so at most the shortfall between badge markers and bonus entries
// is returned.
func MissingBadgeBonuses(entries []Entry) []catalog.BadgeID {
	keys := make(map[string]struct{}, len(entries))
	var badges []Entry
	bonuses := 0
	for _, e := range entries {
		keys[e.IdempotencyKey] = struct{}{}
		switch {
		case e.Kind == KindBadge:
			badges = append(badges, e)
		case e.Action == catalog.ActionBadgeEarned:
			bonuses++
		}
	}

	shortfall := len(badges) - bonuses
	if shortfall <= 0 {
		return nil
	}

	slices.SortStableFunc(badges, func(a, b Entry) int { return a.EarnedAt.Compare(b.EarnedAt) })
	var missing []catalog.BadgeID
	for _, b := range badges {
		if shortfall == 0 {
			break
		}
		if _, ok := keys[BadgeBonusKey(b.BadgeID)]; !ok {
			missing = append(missing, b.BadgeID)
			shortfall--
		}
	}
	return missing
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one immutable ledger record.
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	Kind           Kind            `json:"kind"`
	Points         *int            `json:"points,omitempty"`
	BadgeID        catalog.BadgeID `json:"badge_id,omitempty"`
	Action         catalog.Action  `json:"action"`
	Description    string          `json:"description"`
	EarnedAt       time.Time       `json:"earned_at"`
	ReportID       string          `json:"report_id,omitempty"`
	IdempotencyKey string          `json:"-"`
}

// PointsValue returns the points carried by the entry, 0 for none.
func (e Entry) PointsValue() int {
	if e.Points == nil {
		return 0
	}
	return *e.Points
}

// NewPointsEntry creates an entry that carries points for an action.
func NewPointsEntry(userID string, action catalog.Action, points int, description, reportID, key string, at time.Time) *Entry {
	return &Entry{
		ID:             uuid.New(),
		UserID:         userID,
		Kind:           KindFor(action),
		Points:         &points,
		Action:         action,
		Description:    description,
		EarnedAt:       at.UTC(),
		ReportID:       reportID,
		IdempotencyKey: key,
	}
}

// NewBadgeEntry creates the pointless badge marker entry.
func NewBadgeEntry(userID string, badge catalog.Badge, at time.Time) *Entry {
	return &Entry{
		ID:             uuid.New(),
		UserID:         userID,
		Kind:           KindBadge,
		BadgeID:        badge.ID,
		Action:         catalog.ActionBadgeEarned,
		Description:    "Earned badge: " + badge.Name,
		EarnedAt:       at.UTC(),
		IdempotencyKey: BadgeKey(badge.ID),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Event is the caller-facing view of an entry emitted while processing a report.
type Event struct {
	Kind        Kind            `json:"kind"`
	Action      catalog.Action  `json:"action"`
	Points      int             `json:"points"`
	BadgeID     catalog.BadgeID `json:"badge_id,omitempty"`
	Description string          `json:"description"`
	EarnedAt    time.Time       `json:"earned_at"`
}

// Event converts the entry into its event form.
func (e Entry) Event() Event {
	return Event{
		Kind:        e.Kind,
		Action:      e.Action,
		Points:      e.PointsValue(),
		BadgeID:     e.BadgeID,
		Description: e.Description,
		EarnedAt:    e.EarnedAt,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryQuery pages through a user's ledger, newest first.
type HistoryQuery struct {
	Kind   Kind // empty for all kinds
	Offset int
	Limit  int
}

// Repository is the append-only ledger store.
type Repository interface {
	// Append stores e. A (user, idempotency key) conflict returns an error
	// matching shared.ErrRaceDetected and leaves the ledger unchanged.
	Append(ctx context.Context, e *Entry) error

	// ListByUser returns all entries of a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]Entry, error)

	// ExistsSince reports whether the user has an entry for action earned
	// at or after since.
	ExistsSince(ctx context.Context, userID string, action catalog.Action, since time.Time) (bool, error)

	// History returns one page of a user's entries.
	History(ctx context.Context, userID string, q HistoryQuery) ([]Entry, error)

	// RecentBadges returns the newest badge entries across all users.
	RecentBadges(ctx context.Context, limit int) ([]Entry, error)
}
