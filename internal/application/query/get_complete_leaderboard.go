package query

import (
	"context"

	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPLETE LEADERBOARD QUERY
// Global board, the user's institution board and the user's own position
// in one response.
// ══════════════════════════════════════════════════════════════════════════════

// GetCompleteLeaderboardQuery selects the combined view for a user.
type GetCompleteLeaderboardQuery struct {
	UserID string
	Period leaderboard.Period
}

// GetCompleteLeaderboardHandler composes the leaderboard queries.
type GetCompleteLeaderboardHandler struct {
	stats  *GetUserStatsHandler
	boards *GetLeaderboardHandler
	ranks  *GetUserRankHandler
}

// NewGetCompleteLeaderboardHandler creates a new GetCompleteLeaderboardHandler.
func NewGetCompleteLeaderboardHandler(statsHandler *GetUserStatsHandler, boards *GetLeaderboardHandler, ranks *GetUserRankHandler) *GetCompleteLeaderboardHandler {
	return &GetCompleteLeaderboardHandler{stats: statsHandler, boards: boards, ranks: ranks}
}

// Handle builds the combined view. Users without an institution get no
// institution board.
func (h *GetCompleteLeaderboardHandler) Handle(ctx context.Context, q GetCompleteLeaderboardQuery) (*leaderboard.Complete, error) {
	global, err := h.boards.Handle(ctx, GetLeaderboardQuery{Scope: leaderboard.Global(), Period: q.Period})
	if err != nil {
		return nil, err
	}

	s, err := h.stats.Handle(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	out := &leaderboard.Complete{Global: global.Entries, Period: global.Period}

	if s.InstitutionID != "" {
		inst, err := h.boards.Handle(ctx, GetLeaderboardQuery{
			Scope:  leaderboard.Institution(s.InstitutionID),
			Period: q.Period,
		})
		if err != nil {
			return nil, err
		}
		out.Institution = inst.Entries
	}

	rank, err := h.ranks.Handle(ctx, GetUserRankQuery{UserID: q.UserID, Period: q.Period})
	if err != nil {
		return nil, err
	}
	out.UserRank = rank
	return out, nil
}
