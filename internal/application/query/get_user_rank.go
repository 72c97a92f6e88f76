package query

import (
	"context"
	"fmt"

	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RANK QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRankQuery asks for one user's position.
type GetUserRankQuery struct {
	UserID string
	Period leaderboard.Period

	// Scope defaults to the global board.
	Scope leaderboard.Scope
}

// GetUserRankHandler computes a user's position on demand.
type GetUserRankHandler struct {
	stats        *GetUserStatsHandler
	snapshots    stats.Repository
	institutions InstitutionResolver
	clock        timeutil.Clock
	log          *logger.Logger
}

// NewGetUserRankHandler creates a new GetUserRankHandler.
func NewGetUserRankHandler(statsHandler *GetUserStatsHandler, snapshots stats.Repository, institutions InstitutionResolver, clock timeutil.Clock, log *logger.Logger) *GetUserRankHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetUserRankHandler{
		stats:        statsHandler,
		snapshots:    snapshots,
		institutions: institutions,
		clock:        clock,
		log:          log,
	}
}

// Handle returns 1 + the number of snapshots ranked strictly ahead of the
// user under the scope's full ordering, so the result agrees with the
// position the user has in the corresponding Leaderboard page.
func (h *GetUserRankHandler) Handle(ctx context.Context, q GetUserRankQuery) (*leaderboard.Entry, error) {
	if q.Scope.Kind == "" {
		q.Scope = leaderboard.Global()
	}
	if err := q.Scope.Validate(); err != nil {
		return nil, err
	}
	period, err := leaderboard.ParsePeriod(string(q.Period))
	if err != nil {
		return nil, err
	}

	s, err := h.stats.Handle(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	ahead, err := h.snapshots.CountAhead(ctx, s, q.Scope.Query(period, 0, h.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("get_user_rank: %w", err)
	}

	names := institutionNames(ctx, h.institutions, h.log, []stats.Snapshot{*s})
	entry := leaderboard.NewEntry(ahead+1, s, names[s.InstitutionID])
	return &entry, nil
}
