package query

import (
	"context"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// InstitutionResolver looks up institution records.
type InstitutionResolver interface {
	GetInstitution(ctx context.Context, institutionID string) (*identity.Institution, error)
}

// clampLimit applies the default for 0 and caps at ceiling.
func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}

// institutionNames resolves the names of the snapshots' institutions.
// Unknown or failing lookups are left out.
func institutionNames(ctx context.Context, r InstitutionResolver, log *logger.Logger, snaps []stats.Snapshot) map[string]string {
	names := make(map[string]string)
	for _, s := range snaps {
		id := s.InstitutionID
		if id == "" {
			continue
		}
		if _, done := names[id]; done {
			continue
		}
		inst, err := r.GetInstitution(ctx, id)
		switch {
		case err == nil:
			names[id] = inst.Name
		case shared.IsNotFound(err):
			names[id] = ""
		default:
			log.Warn("institution lookup failed", logger.InstitutionID(id), logger.Err(err))
			names[id] = ""
		}
	}
	return names
}

// LevelInfo is a user's position on the level table.
type LevelInfo struct {
	Level             int `json:"level"`
	NextLevelPoints   int `json:"next_level_points"`
	PointsToNextLevel int `json:"points_to_next_level"`
	MaxLevel          int `json:"max_level"`
}

// levelInfo computes LevelInfo; at the top level both next values are 0.
func levelInfo(levels catalog.Levels, points int) LevelInfo {
	level, next := levels.Level(points)
	info := LevelInfo{Level: level, NextLevelPoints: next, MaxLevel: levels.Max()}
	if next > 0 {
		info.PointsToNextLevel = max(0, next-points)
	}
	return info
}
