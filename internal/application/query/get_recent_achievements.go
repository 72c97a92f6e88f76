package query

import (
	"context"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECENT ACHIEVEMENTS QUERY
// The community feed of the newest badges.
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultRecentAchievementsLimit = 20
	MaxRecentAchievementsLimit     = 50
)

// GetRecentAchievementsHandler lists recently earned badges.
type GetRecentAchievementsHandler struct {
	ledger    reward.Repository
	directory identity.Directory
	log       *logger.Logger
}

// NewGetRecentAchievementsHandler creates a new GetRecentAchievementsHandler.
func NewGetRecentAchievementsHandler(ledger reward.Repository, directory identity.Directory, log *logger.Logger) *GetRecentAchievementsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetRecentAchievementsHandler{ledger: ledger, directory: directory, log: log}
}

// Handle returns the newest badge entries joined with the earner's name.
func (h *GetRecentAchievementsHandler) Handle(ctx context.Context, limit int) ([]leaderboard.RecentAchievement, error) {
	if limit < 0 {
		return nil, shared.NewDomainError("leaderboard", "RecentAchievements", shared.ErrInvalidInput, "limit cannot be negative")
	}
	limit = clampLimit(limit, DefaultRecentAchievementsLimit, MaxRecentAchievementsLimit)

	entries, err := h.ledger.RecentBadges(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_recent_achievements: %w", err)
	}

	names := make(map[string]string)
	out := make([]leaderboard.RecentAchievement, 0, len(entries))
	for _, e := range entries {
		name, seen := names[e.UserID]
		if !seen {
			u, err := h.directory.GetUser(ctx, e.UserID)
			switch {
			case err == nil:
				name = u.FullName
			case !shared.IsNotFound(err):
				h.log.Warn("user lookup failed", logger.UserID(e.UserID), logger.Err(err))
			}
			names[e.UserID] = name
		}

		out = append(out, leaderboard.RecentAchievement{
			UserID:      e.UserID,
			FullName:    name,
			BadgeID:     e.BadgeID,
			Description: e.Description,
			EarnedAt:    e.EarnedAt,
		})
	}
	return out, nil
}
