// Package command contains write operations (CQRS - Commands).
// Commands append to the reward ledger and refresh the derived snapshots.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/domain/badge"
	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// UserLocker serializes reward processing per user. The returned function
// releases the lock.
type UserLocker interface {
	Lock(ctx context.Context, userID string) (func(), error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS REPORT COMMAND
// Turns one report-created event into ledger entries: base points, report
// bonuses, the daily streak bonus, period goals and newly earned badges.
// ══════════════════════════════════════════════════════════════════════════════

// Stage names one step of report processing.
type Stage string

const (
	StageReportReceived    Stage = "report_received"
	StageBaseRewardEmitted Stage = "base_reward_emitted"
	StageBonusesEmitted    Stage = "bonuses_emitted"
	StageStreakEvaluated   Stage = "streak_evaluated"
	StageGoalsEvaluated    Stage = "goals_evaluated"
	StageBadgesEvaluated   Stage = "badges_evaluated"
	StageStatsRecomputed   Stage = "stats_recomputed"
	StageDone              Stage = "done"
)

// StageError reports the failure of one stage. Later stages still run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ProcessReportCommand carries the report that was just created.
type ProcessReportCommand struct {
	Report report.Report
}

// Validate validates the command.
func (c ProcessReportCommand) Validate() error {
	if err := c.Report.Validate(); err != nil {
		return shared.WrapError("rewards", "ProcessReport", shared.ErrInvalidInput, "invalid report", err)
	}
	return nil
}

// ProcessReportResult contains what processing produced.
type ProcessReportResult struct {
	UserID   string
	ReportID string

	// Events are the ledger entries appended for this report, in order.
	Events []reward.Event

	// NewBadges are the badges awarded for this report.
	NewBadges []catalog.BadgeID

	// Snapshot is the recomputed snapshot; nil when recomputation failed.
	Snapshot *stats.Snapshot

	// Stage is the last stage reached.
	Stage Stage

	ProcessedAt time.Time
}

// PointsAwarded sums the points of the emitted events.
func (r *ProcessReportResult) PointsAwarded() int {
	total := 0
	for _, e := range r.Events {
		total += e.Points
	}
	return total
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessReportHandler handles ProcessReportCommand.
type ProcessReportHandler struct {
	catalog    *catalog.Catalog
	reports    report.Repository
	ledger     reward.Repository
	aggregator *stats.Aggregator
	evaluator  *badge.Evaluator
	locker     UserLocker
	clock      timeutil.Clock
	log        *logger.Logger
}

// NewProcessReportHandler creates a new ProcessReportHandler.
func NewProcessReportHandler(
	c *catalog.Catalog,
	reports report.Repository,
	ledger reward.Repository,
	aggregator *stats.Aggregator,
	evaluator *badge.Evaluator,
	locker UserLocker,
	clock timeutil.Clock,
	log *logger.Logger,
) *ProcessReportHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessReportHandler{
		catalog:    c,
		reports:    reports,
		ledger:     ledger,
		aggregator: aggregator,
		evaluator:  evaluator,
		locker:     locker,
		clock:      clock,
		log:        log.With(logger.Component("reward_processor")),
	}
}

// Handle processes one report. Each stage is best-effort: a failing stage
// is recorded and the next one runs. The result always carries the events
// already appended, together with the joined stage errors. Nothing is
// rolled back.
func (h *ProcessReportHandler) Handle(ctx context.Context, cmd ProcessReportCommand) (*ProcessReportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	r := cmd.Report
	unlock, err := h.locker.Lock(ctx, r.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("process_report: lock user %s: %w", r.CreatedBy, err)
	}
	defer unlock()

	// One instant for the whole run so the goal and badge windows agree.
	now := h.clock.Now()
	run := &processRun{
		h:   h,
		log: h.log.With(logger.UserID(r.CreatedBy), logger.ReportID(r.ID)),
		result: &ProcessReportResult{
			UserID:      r.CreatedBy,
			ReportID:    r.ID,
			Events:      []reward.Event{},
			Stage:       StageReportReceived,
			ProcessedAt: now,
		},
	}

	if err := h.reports.Save(ctx, &r); err != nil {
		return run.result, &StageError{Stage: StageReportReceived, Err: err}
	}

	run.emitBase(ctx, &r, now)
	run.emitBonuses(ctx, &r, now)

	fresh, err := h.aggregator.Compute(ctx, r.CreatedBy, now)
	if err != nil {
		run.fail(StageStreakEvaluated, fmt.Errorf("compute snapshot: %w", err))
	} else {
		run.evaluateStreak(ctx, fresh, now)
	}

	run.evaluateGoals(ctx, r.CreatedBy, now)

	if fresh != nil {
		run.evaluateBadges(ctx, fresh, now)
	} else {
		run.fail(StageBadgesEvaluated, errors.New("no snapshot to evaluate"))
	}

	snap, err := h.aggregator.RecomputeAt(ctx, r.CreatedBy, now)
	if err != nil {
		run.fail(StageStatsRecomputed, err)
	} else {
		run.result.Snapshot = snap
		run.result.Stage = StageStatsRecomputed
	}

	if len(run.errs) == 0 {
		run.result.Stage = StageDone
	}
	run.log.Info("report processed",
		logger.Points(run.result.PointsAwarded()),
		logger.Int("events", len(run.result.Events)),
		logger.Int("failed_stages", len(run.errs)),
		logger.Bool("complete", len(run.errs) == 0),
	)
	return run.result, errors.Join(run.errs...)
}

// processRun holds the state of one Handle call.
type processRun struct {
	h      *ProcessReportHandler
	log    *logger.Logger
	result *ProcessReportResult
	errs   []error
}

func (p *processRun) fail(stage Stage, err error) {
	p.log.Warn("stage failed", logger.String("stage", string(stage)), logger.Err(err))
	p.errs = append(p.errs, &StageError{Stage: stage, Err: err})
}

func (p *processRun) reached(stage Stage) {
	p.result.Stage = stage
}

// record writes e and records its event. A duplicate idempotency key means
// the award already exists and is not an error.
func (p *processRun) record(ctx context.Context, e *reward.Entry) error {
	err := p.h.ledger.Append(ctx, e)
	switch {
	case err == nil:
		p.result.Events = append(p.result.Events, e.Event())
		return nil
	case shared.IsRaceDetected(err):
		p.log.Debug("award already recorded", logger.Action(string(e.Action)), logger.String("key", e.IdempotencyKey))
		return nil
	default:
		return fmt.Errorf("append %s: %w", e.Action, err)
	}
}

func (p *processRun) emitAction(ctx context.Context, a catalog.Action, r *report.Report, key string, at time.Time) error {
	rule, ok := p.h.catalog.Rule(a)
	if !ok {
		return nil
	}
	points, _ := p.h.catalog.PointsFor(a, r)
	return p.record(ctx, reward.NewPointsEntry(r.CreatedBy, a, points, rule.Description, r.ID, key, at))
}

func (p *processRun) emitBase(ctx context.Context, r *report.Report, now time.Time) {
	if err := p.emitAction(ctx, catalog.ActionReportCreated, r, reward.ReportKey(catalog.ActionReportCreated, r.ID), now); err != nil {
		p.fail(StageBaseRewardEmitted, err)
		return
	}
	p.reached(StageBaseRewardEmitted)
}

func (p *processRun) emitBonuses(ctx context.Context, r *report.Report, now time.Time) {
	var errs []error
	if r.HasImage() {
		errs = append(errs, p.emitAction(ctx, catalog.ActionReportWithImage, r, reward.ReportKey(catalog.ActionReportWithImage, r.ID), now))
	}
	if r.IsDetailed() {
		errs = append(errs, p.emitAction(ctx, catalog.ActionReportDetailed, r, reward.ReportKey(catalog.ActionReportDetailed, r.ID), now))
	}
	if err := errors.Join(errs...); err != nil {
		p.fail(StageBonusesEmitted, err)
		return
	}
	p.reached(StageBonusesEmitted)
}

// evaluateStreak awards the daily streak bonus at most once per UTC day
// while the current streak is longer than one day.
func (p *processRun) evaluateStreak(ctx context.Context, fresh *stats.Snapshot, now time.Time) {
	if fresh.CurrentStreak <= 1 {
		p.reached(StageStreakEvaluated)
		return
	}

	rule, ok := p.h.catalog.Rule(catalog.ActionDailyStreak)
	if !ok {
		p.reached(StageStreakEvaluated)
		return
	}
	desc := fmt.Sprintf("%s: %d days", rule.Description, fresh.CurrentStreak)
	e := reward.NewPointsEntry(fresh.UserID, catalog.ActionDailyStreak, rule.Points, desc, "", reward.DayKey(catalog.ActionDailyStreak, now), now)
	if err := p.record(ctx, e); err != nil {
		p.fail(StageStreakEvaluated, err)
		return
	}
	p.reached(StageStreakEvaluated)
}

// evaluateGoals awards each goal once per window. The existence check
// covers rolling windows; the idempotency key covers concurrent writers.
func (p *processRun) evaluateGoals(ctx context.Context, userID string, now time.Time) {
	var errs []error
	for _, g := range p.h.catalog.Goals() {
		if err := p.evaluateGoal(ctx, userID, g, now); err != nil {
			errs = append(errs, fmt.Errorf("goal %s: %w", g.Action, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.fail(StageGoalsEvaluated, err)
		return
	}
	p.reached(StageGoalsEvaluated)
}

func (p *processRun) evaluateGoal(ctx context.Context, userID string, g catalog.GoalRule, now time.Time) error {
	start := g.Window.Start(now)

	n, err := p.h.reports.Count(ctx, userID, start, report.PredicateAny)
	if err != nil {
		return fmt.Errorf("count reports: %w", err)
	}
	if n < g.Threshold {
		return nil
	}

	exists, err := p.h.ledger.ExistsSince(ctx, userID, g.Action, start)
	if err != nil {
		return fmt.Errorf("check existing award: %w", err)
	}
	if exists {
		return nil
	}

	rule, _ := p.h.catalog.Rule(g.Action)
	return p.record(ctx, reward.NewPointsEntry(userID, g.Action, rule.Points, rule.Description, "", reward.GoalKey(g, now), now))
}

// evaluateBadges writes a badge entry and its bonus entry per newly
// qualifying badge.
func (p *processRun) evaluateBadges(ctx context.Context, fresh *stats.Snapshot, now time.Time) {
	qualified, evalErr := p.h.evaluator.Evaluate(ctx, fresh, now)

	errs := []error{evalErr}
	bonus, hasBonus := p.h.catalog.Rule(catalog.ActionBadgeEarned)
	for _, id := range qualified {
		b, _ := p.h.catalog.Badge(id)

		before := len(p.result.Events)
		if err := p.record(ctx, reward.NewBadgeEntry(fresh.UserID, b, now)); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(p.result.Events) > before {
			p.result.NewBadges = append(p.result.NewBadges, id)
			p.log.Info("badge earned", logger.Badge(string(id)))
		}

		if !hasBonus {
			continue
		}
		e := reward.NewPointsEntry(fresh.UserID, catalog.ActionBadgeEarned, bonus.Points,
			"Badge bonus: "+b.Name, "", reward.BadgeBonusKey(id), now)
		if err := p.record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		p.fail(StageBadgesEvaluated, err)
		return
	}
	p.reached(StageBadgesEvaluated)
}
