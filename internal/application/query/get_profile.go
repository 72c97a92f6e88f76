package query

import (
	"context"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/badge"
	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Stats, level, the latest rewards and badge progress for one user.
// ══════════════════════════════════════════════════════════════════════════════

const profileRecentRewards = 10

// Profile is the gamification profile of a user.
type Profile struct {
	Stats         *stats.Snapshot  `json:"stats"`
	Level         LevelInfo        `json:"level"`
	RecentRewards []reward.Entry   `json:"recent_rewards"`
	Progress      []badge.Progress `json:"achievements_progress"`
}

// GetProfileHandler composes the profile.
type GetProfileHandler struct {
	stats    *GetUserStatsHandler
	progress *GetAchievementProgressHandler
	ledger   reward.Repository
	levels   catalog.Levels
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(statsHandler *GetUserStatsHandler, progress *GetAchievementProgressHandler, ledger reward.Repository, c *catalog.Catalog) *GetProfileHandler {
	return &GetProfileHandler{
		stats:    statsHandler,
		progress: progress,
		ledger:   ledger,
		levels:   c.Levels(),
	}
}

// Handle builds the profile. A user with no snapshot gets a zero profile.
func (h *GetProfileHandler) Handle(ctx context.Context, userID string) (*Profile, error) {
	s, err := h.stats.Handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := h.ledger.History(ctx, userID, reward.HistoryQuery{Limit: profileRecentRewards})
	if err != nil {
		return nil, fmt.Errorf("get_profile: %w", err)
	}
	if recent == nil {
		recent = []reward.Entry{}
	}

	progress, err := h.progress.Handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Stats:         s,
		Level:         levelInfo(h.levels, s.TotalPoints),
		RecentRewards: recent,
		Progress:      progress,
	}, nil
}
