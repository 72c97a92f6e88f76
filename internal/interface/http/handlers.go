package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/application/query"
	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT HOOK
// ══════════════════════════════════════════════════════════════════════════════

// reportRequest is the body of the report-created hook. Safe and UrbanArea
// default to true; a missing timestamp means now.
type reportRequest struct {
	ID              string    `json:"id"`
	CreatedBy       string    `json:"created_by"`
	ImageURL        string    `json:"image_url"`
	MeasureHeightCm *float64  `json:"measure_height_cm"`
	MeasureWidthCm  *float64  `json:"measure_width_cm"`
	Feedback        string    `json:"feedback"`
	WasteType       string    `json:"waste_type"`
	Safe            *bool     `json:"safe"`
	UrbanArea       *bool     `json:"urban_area"`
	Timestamp       time.Time `json:"timestamp"`
}

func (r reportRequest) toReport(now time.Time) report.Report {
	rep := report.Report{
		ID:              strings.TrimSpace(r.ID),
		CreatedBy:       strings.TrimSpace(r.CreatedBy),
		ImageURL:        r.ImageURL,
		MeasureHeightCm: r.MeasureHeightCm,
		MeasureWidthCm:  r.MeasureWidthCm,
		Feedback:        r.Feedback,
		WasteType:       report.WasteType(r.WasteType),
		Safe:            r.Safe == nil || *r.Safe,
		UrbanArea:       r.UrbanArea == nil || *r.UrbanArea,
		Timestamp:       r.Timestamp.UTC(),
	}
	if rep.Timestamp.IsZero() {
		rep.Timestamp = now.UTC()
	}
	return rep
}

type processReportResponse struct {
	UserID        string            `json:"user_id"`
	ReportID      string            `json:"report_id"`
	PointsAwarded int               `json:"points_awarded"`
	Events        []reward.Event    `json:"events"`
	NewBadges     []catalog.BadgeID `json:"new_badges"`
	Stage         command.Stage     `json:"stage"`
	Stats         *stats.Snapshot   `json:"stats,omitempty"`
	FailedStages  []string          `json:"failed_stages,omitempty"`
}

func (s *Server) handleProcessReport(c *fiber.Ctx) error {
	var req reportRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.WrapError("rewards", "ProcessReport", shared.ErrInvalidInput, "malformed report body", err)
	}

	res, err := s.deps.ProcessReport.Handle(c.UserContext(), command.ProcessReportCommand{Report: req.toReport(time.Now())})
	if res == nil || (err != nil && res.Stage == command.StageReportReceived) {
		return err
	}

	out := processReportResponse{
		UserID:        res.UserID,
		ReportID:      res.ReportID,
		PointsAwarded: res.PointsAwarded(),
		Events:        res.Events,
		NewBadges:     res.NewBadges,
		Stage:         res.Stage,
		Stats:         res.Snapshot,
		FailedStages:  failedStages(err),
	}
	if out.NewBadges == nil {
		out.NewBadges = []catalog.BadgeID{}
	}
	if err != nil {
		logger.FromContext(c.UserContext()).Warn("report processed with failed stages",
			logger.ReportID(res.ReportID), logger.F("failed_stages", out.FailedStages), logger.Err(err))
	}
	return writeJSON(c, fiber.StatusOK, out)
}

// failedStages lists the stages named by the StageErrors inside err.
func failedStages(err error) []string {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var out []string
	for _, e := range errs {
		var se *command.StageError
		if errors.As(e, &se) {
			out = append(out, string(se.Stage))
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// USER VIEWS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleUserStats(c *fiber.Ctx) error {
	snap, err := s.deps.UserStats.Handle(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, snap)
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	p, err := s.deps.Profile.Handle(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, p)
}

func (s *Server) handleAchievements(c *fiber.Ctx) error {
	progress, err := s.deps.AchievementProgress.Handle(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, progress)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	q := query.GetRewardHistoryQuery{
		UserID: c.Params("id"),
		Kind:   reward.Kind(c.Query("type")),
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("skip", 0),
	}
	h, err := s.deps.RewardHistory.Handle(c.UserContext(), q)
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, h.Rewards, &ResponseMeta{Limit: h.Limit, Skip: h.Skip})
}

func (s *Server) handleBreakdown(c *fiber.Ctx) error {
	b, err := s.deps.PointsBreakdown.Handle(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, b)
}

func (s *Server) handleUserRank(c *fiber.Ctx) error {
	q := query.GetUserRankQuery{
		UserID: c.Params("id"),
		Period: leaderboard.Period(c.Query("period")),
		Scope:  leaderboard.Global(),
	}
	if cat := c.Query("category"); cat != "" {
		category, err := leaderboard.ParseCategory(cat)
		if err != nil {
			return err
		}
		q.Scope = leaderboard.ByCategory(category)
	}
	entry, err := s.deps.UserRank.Handle(c.UserContext(), q)
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, entry)
}

func (s *Server) handleCompleteLeaderboard(c *fiber.Ctx) error {
	complete, err := s.deps.CompleteLeaderboard.Handle(c.UserContext(), query.GetCompleteLeaderboardQuery{
		UserID: c.Params("id"),
		Period: leaderboard.Period(c.Query("period")),
	})
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, complete)
}

type syncResponse struct {
	Stats       *stats.Snapshot `json:"stats"`
	PointsDelta int             `json:"points_delta"`
}

func (s *Server) handleSyncUser(c *fiber.Ctx) error {
	res, err := s.deps.SyncUserStats.Handle(c.UserContext(), command.SyncUserStatsCommand{UserID: c.Params("id")})
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, syncResponse{Stats: res.Snapshot, PointsDelta: res.PointsDelta})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG AND RANKINGS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleBadgeCatalog(c *fiber.Ctx) error {
	return writeJSON(c, fiber.StatusOK, s.deps.BadgeCatalog.Handle())
}

func (s *Server) scopedLeaderboard(c *fiber.Ctx, scope leaderboard.Scope) error {
	res, err := s.deps.Leaderboard.Handle(c.UserContext(), query.GetLeaderboardQuery{
		Scope:  scope,
		Period: leaderboard.Period(c.Query("period")),
		Limit:  c.QueryInt("limit", 0),
	})
	if err != nil {
		return err
	}
	return writeJSONWithMeta(c, fiber.StatusOK, res, &ResponseMeta{Cached: res.Cached})
}

func (s *Server) handleGlobalLeaderboard(c *fiber.Ctx) error {
	return s.scopedLeaderboard(c, leaderboard.Global())
}

func (s *Server) handleInstitutionLeaderboard(c *fiber.Ctx) error {
	return s.scopedLeaderboard(c, leaderboard.Institution(c.Params("id")))
}

func (s *Server) handleCategoryLeaderboard(c *fiber.Ctx) error {
	category, err := leaderboard.ParseCategory(c.Params("category"))
	if err != nil {
		return err
	}
	return s.scopedLeaderboard(c, leaderboard.ByCategory(category))
}

func (s *Server) handleInstitutionRankings(c *fiber.Ctx) error {
	rankings, err := s.deps.InstitutionRankings.Handle(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, rankings)
}

func (s *Server) handleRecentAchievements(c *fiber.Ctx) error {
	items, err := s.deps.RecentAchievements.Handle(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return writeJSON(c, fiber.StatusOK, items)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ══════════════════════════════════════════════════════════════════════════════

type recalculateResponse struct {
	Ranked     int   `json:"ranked"`
	Batches    int   `json:"batches"`
	DurationMs int64 `json:"duration_ms"`
}

func (s *Server) handleRecalculateRanks(c *fiber.Ctx) error {
	ctx := c.UserContext()
	res, err := s.deps.RecalculateRanks.Handle(ctx)
	if err != nil {
		return err
	}
	if s.deps.AfterRankRecalculation != nil {
		if err := s.deps.AfterRankRecalculation(ctx); err != nil {
			logger.FromContext(ctx).Warn("post-recalculation hook failed", logger.Err(err))
		}
	}
	return writeJSON(c, fiber.StatusOK, recalculateResponse{
		Ranked:     res.Ranked,
		Batches:    res.Batches,
		DurationMs: res.Duration.Milliseconds(),
	})
}
