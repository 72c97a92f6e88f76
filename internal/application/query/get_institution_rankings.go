package query

import (
	"context"
	"fmt"
	"math"

	"github.com/carboniq/carboniq-rewards/internal/domain/leaderboard"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET INSTITUTION RANKINGS QUERY
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultInstitutionRankingLimit = 20
	MaxInstitutionRankingLimit     = 50

	unknownInstitution = "Unknown"
)

// GetInstitutionRankingsHandler ranks institutions by their members' points.
type GetInstitutionRankingsHandler struct {
	snapshots    stats.Repository
	institutions InstitutionResolver
	log          *logger.Logger
}

// NewGetInstitutionRankingsHandler creates a new GetInstitutionRankingsHandler.
func NewGetInstitutionRankingsHandler(snapshots stats.Repository, institutions InstitutionResolver, log *logger.Logger) *GetInstitutionRankingsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetInstitutionRankingsHandler{snapshots: snapshots, institutions: institutions, log: log}
}

// Handle returns up to limit institutions, highest total points first.
func (h *GetInstitutionRankingsHandler) Handle(ctx context.Context, limit int) ([]leaderboard.InstitutionRanking, error) {
	if limit < 0 {
		return nil, shared.NewDomainError("leaderboard", "InstitutionRankings", shared.ErrInvalidInput, "limit cannot be negative")
	}
	limit = clampLimit(limit, DefaultInstitutionRankingLimit, MaxInstitutionRankingLimit)

	totals, err := h.snapshots.InstitutionTotals(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_institution_rankings: %w", err)
	}

	out := make([]leaderboard.InstitutionRanking, 0, len(totals))
	for i, t := range totals {
		name := unknownInstitution
		inst, err := h.institutions.GetInstitution(ctx, t.InstitutionID)
		switch {
		case err == nil && inst.Name != "":
			name = inst.Name
		case err != nil && !shared.IsNotFound(err):
			h.log.Warn("institution lookup failed", logger.InstitutionID(t.InstitutionID), logger.Err(err))
		}

		out = append(out, leaderboard.InstitutionRanking{
			Rank:               i + 1,
			InstitutionID:      t.InstitutionID,
			InstitutionName:    name,
			TotalMembers:       t.Members,
			TotalPoints:        t.TotalPoints,
			TotalReports:       t.TotalReports,
			AvgPointsPerMember: math.Round(t.AvgPoints*10) / 10,
			TopStreak:          t.TopStreak,
		})
	}
	return out, nil
}
