package query

import (
	"context"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET POINTS BREAKDOWN QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ActionTotal sums the ledger entries of one action.
type ActionTotal struct {
	Points int `json:"points"`
	Count  int `json:"count"`
}

// PointsBreakdown is the detailed statistics view of a user.
type PointsBreakdown struct {
	Stats           *stats.Snapshot                `json:"stats"`
	PointsBreakdown map[catalog.Action]ActionTotal `json:"points_breakdown"`
	LevelInfo
}

// GetPointsBreakdownHandler handles the detailed statistics query.
type GetPointsBreakdownHandler struct {
	stats  *GetUserStatsHandler
	ledger reward.Repository
	levels catalog.Levels
}

// NewGetPointsBreakdownHandler creates a new GetPointsBreakdownHandler.
func NewGetPointsBreakdownHandler(statsHandler *GetUserStatsHandler, ledger reward.Repository, c *catalog.Catalog) *GetPointsBreakdownHandler {
	return &GetPointsBreakdownHandler{stats: statsHandler, ledger: ledger, levels: c.Levels()}
}

// Handle groups the user's ledger by action.
func (h *GetPointsBreakdownHandler) Handle(ctx context.Context, userID string) (*PointsBreakdown, error) {
	s, err := h.stats.Handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := h.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_points_breakdown: %w", err)
	}

	byAction := make(map[catalog.Action]ActionTotal)
	for _, e := range entries {
		t := byAction[e.Action]
		t.Points += e.PointsValue()
		t.Count++
		byAction[e.Action] = t
	}

	return &PointsBreakdown{
		Stats:           s,
		PointsBreakdown: byAction,
		LevelInfo:       levelInfo(h.levels, s.TotalPoints),
	}, nil
}
