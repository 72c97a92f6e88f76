package query

import (
	"context"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/badge"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENT PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementProgressHandler reports progress toward unearned badges.
type GetAchievementProgressHandler struct {
	stats     *GetUserStatsHandler
	evaluator *badge.Evaluator
	clock     timeutil.Clock
}

// NewGetAchievementProgressHandler creates a new GetAchievementProgressHandler.
func NewGetAchievementProgressHandler(statsHandler *GetUserStatsHandler, evaluator *badge.Evaluator, clock timeutil.Clock) *GetAchievementProgressHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetAchievementProgressHandler{stats: statsHandler, evaluator: evaluator, clock: clock}
}

// Handle returns progress for every unearned badge, highest percentage first.
func (h *GetAchievementProgressHandler) Handle(ctx context.Context, userID string) ([]badge.Progress, error) {
	s, err := h.stats.Handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress, err := h.evaluator.Progress(ctx, s, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("get_achievement_progress: %w", err)
	}
	if progress == nil {
		progress = []badge.Progress{}
	}
	return progress, nil
}
