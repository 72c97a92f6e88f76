// Package catalog defines the immutable rule catalog of the rewards engine:
// point rules per action, period goals, badge definitions and level
// thresholds. A Catalog is built once at startup and injected; it has no
// package-level mutable state.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIONS AND WINDOWS
// ══════════════════════════════════════════════════════════════════════════════

// Action is the kind of event a ledger entry rewards.
type Action string

const (
	ActionReportCreated   Action = "report_created"
	ActionReportWithImage Action = "report_with_image"
	ActionReportDetailed  Action = "report_detailed"
	ActionDailyStreak     Action = "daily_streak"
	ActionWeeklyGoal      Action = "weekly_goal"
	ActionMonthlyGoal     Action = "monthly_goal"
	ActionBadgeEarned     Action = "badge_earned"
)

// Window is a time scope for counts and goals.
type Window string

const (
	// WindowAll covers the whole history.
	WindowAll Window = "all"
	// WindowWeek is the rolling seven days ending now.
	WindowWeek Window = "week"
	// WindowMonth is the current UTC calendar month.
	WindowMonth Window = "month"
)

// IsValid reports whether w is a known window.
func (w Window) IsValid() bool {
	return w == WindowAll || w == WindowWeek || w == WindowMonth
}

// Start returns the first instant of the window ending at now.
// WindowAll returns the zero time.
func (w Window) Start(now time.Time) time.Time {
	switch w {
	case WindowWeek:
		return timeutil.RollingWeekStart(now)
	case WindowMonth:
		return timeutil.StartOfMonth(now)
	default:
		return time.Time{}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// ══════════════════════════════════════════════════════════════════════════════

// Multiplier scales an action's points when a report field equals a value,
// e.g. double points for e_waste.
type Multiplier struct {
	Field  string  `json:"field"`
	Equals string  `json:"equals"`
	Factor float64 `json:"factor"`
}

// Rule assigns points to an action.
type Rule struct {
	Action      Action       `json:"action"`
	Points      int          `json:"points"`
	Description string       `json:"description"`
	Multipliers []Multiplier `json:"multipliers,omitempty"`
}

// GoalRule awards its action once per window when the user's report count
// in that window reaches Threshold.
type GoalRule struct {
	Action    Action `json:"action"`
	Window    Window `json:"window"`
	Threshold int    `json:"threshold"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is the validated, read-only rule set.
type Catalog struct {
	rules  map[Action]Rule
	goals  []GoalRule
	badges []Badge
	index  map[BadgeID]int
	levels Levels
}

// New validates the inputs and builds a Catalog. Every problem found is
// reported; the returned error matches shared.ErrValidation.
func New(rules []Rule, goals []GoalRule, badges []Badge, levelThresholds []int) (*Catalog, error) {
	var errs []error

	c := &Catalog{
		rules: make(map[Action]Rule, len(rules)),
		index: make(map[BadgeID]int, len(badges)),
	}

	fields := report.MultiplierFields()
	for _, r := range rules {
		if r.Action == "" {
			errs = append(errs, errors.New("rule with empty action"))
			continue
		}
		if _, dup := c.rules[r.Action]; dup {
			errs = append(errs, fmt.Errorf("duplicate rule for action %q", r.Action))
			continue
		}
		if r.Points < 0 {
			errs = append(errs, fmt.Errorf("rule %q: negative points %d", r.Action, r.Points))
		}
		for _, m := range r.Multipliers {
			if !slices.Contains(fields, m.Field) {
				errs = append(errs, fmt.Errorf("rule %q: unknown multiplier field %q", r.Action, m.Field))
			}
			if m.Factor <= 0 {
				errs = append(errs, fmt.Errorf("rule %q: multiplier factor must be positive", r.Action))
			}
		}
		r.Multipliers = slices.Clone(r.Multipliers)
		c.rules[r.Action] = r
	}

	for _, g := range goals {
		if _, ok := c.rules[g.Action]; !ok {
			errs = append(errs, fmt.Errorf("goal %q has no point rule", g.Action))
		}
		if g.Window != WindowWeek && g.Window != WindowMonth {
			errs = append(errs, fmt.Errorf("goal %q: window must be week or month, got %q", g.Action, g.Window))
		}
		if g.Threshold <= 0 {
			errs = append(errs, fmt.Errorf("goal %q: threshold must be positive", g.Action))
		}
	}
	c.goals = slices.Clone(goals)

	for _, b := range badges {
		if b.ID == "" {
			errs = append(errs, errors.New("badge with empty id"))
			continue
		}
		if _, dup := c.index[b.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate badge %q", b.ID))
			continue
		}
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("badge %q: name is required", b.ID))
		}
		if err := b.Requirement.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("badge %q: %w", b.ID, err))
		}
		c.index[b.ID] = len(c.badges)
		c.badges = append(c.badges, b)
	}
	if len(c.badges) > 0 {
		if _, ok := c.rules[ActionBadgeEarned]; !ok {
			errs = append(errs, fmt.Errorf("badges defined without a %q rule", ActionBadgeEarned))
		}
	}

	levels, err := NewLevels(levelThresholds)
	if err != nil {
		errs = append(errs, err)
	}
	c.levels = levels

	if len(errs) > 0 {
		return nil, shared.WrapError("catalog", "New", shared.ErrValidation, "invalid rule catalog", errors.Join(errs...))
	}
	return c, nil
}

// MustNew is New that panics. Intended for package-level defaults and tests.
func MustNew(rules []Rule, goals []GoalRule, badges []Badge, levelThresholds []int) *Catalog {
	c, err := New(rules, goals, badges, levelThresholds)
	if err != nil {
		panic(err)
	}
	return c
}

// Rule returns the point rule for an action.
func (c *Catalog) Rule(a Action) (Rule, bool) {
	r, ok := c.rules[a]
	return r, ok
}

// Rules returns all point rules ordered by action.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// PointsFor returns the points for action after applying every multiplier
// whose condition matches r. A nil report applies no multipliers.
// ok is false when the catalog has no rule for the action.
func (c *Catalog) PointsFor(a Action, r *report.Report) (points int, ok bool) {
	rule, ok := c.rules[a]
	if !ok {
		return 0, false
	}
	if r == nil || len(rule.Multipliers) == 0 {
		return rule.Points, true
	}

	factor := 1.0
	for _, m := range rule.Multipliers {
		if v, known := r.Field(m.Field); known && v == m.Equals {
			factor *= m.Factor
		}
	}
	return int(math.Round(float64(rule.Points) * factor)), true
}

// Goals returns the goal rules in declaration order.
func (c *Catalog) Goals() []GoalRule {
	return slices.Clone(c.goals)
}

// Badge returns the definition of a badge.
func (c *Catalog) Badge(id BadgeID) (Badge, bool) {
	i, ok := c.index[id]
	if !ok {
		return Badge{}, false
	}
	return c.badges[i], true
}

// Badges returns all badge definitions in declaration order.
func (c *Catalog) Badges() []Badge {
	return slices.Clone(c.badges)
}

// Levels returns the level table.
func (c *Catalog) Levels() Levels {
	return c.levels
}
