package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC USER STATS COMMAND
// Rebuilds a user's snapshot from the report history and the ledger, after
// re-emitting badge bonuses lost to a partially failed report run.
// ══════════════════════════════════════════════════════════════════════════════

// SyncUserStatsCommand identifies the user to resync.
type SyncUserStatsCommand struct {
	UserID string
}

// Validate validates the command.
func (c SyncUserStatsCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return shared.NewDomainError("rewards", "SyncUserStats", shared.ErrInvalidInput, "user_id is required")
	}
	return nil
}

// SyncUserStatsResult contains the resynced snapshot.
type SyncUserStatsResult struct {
	Snapshot *stats.Snapshot

	// PointsDelta is the change in total points the resync corrected.
	PointsDelta int

	// RestoredBonuses are the badges whose missing bonus was re-emitted.
	RestoredBonuses []catalog.BadgeID
}

// SyncUserStatsHandler handles SyncUserStatsCommand.
type SyncUserStatsHandler struct {
	catalog    *catalog.Catalog
	ledger     reward.Repository
	snapshots  stats.Repository
	aggregator *stats.Aggregator
	locker     UserLocker
	log        *logger.Logger
}

// NewSyncUserStatsHandler creates a new SyncUserStatsHandler.
func NewSyncUserStatsHandler(
	c *catalog.Catalog,
	ledger reward.Repository,
	snapshots stats.Repository,
	aggregator *stats.Aggregator,
	locker UserLocker,
	log *logger.Logger,
) *SyncUserStatsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncUserStatsHandler{
		catalog:    c,
		ledger:     ledger,
		snapshots:  snapshots,
		aggregator: aggregator,
		locker:     locker,
		log:        log.With(logger.Component("stats_sync")),
	}
}

// Handle recomputes the snapshot under the user's lock.
func (h *SyncUserStatsHandler) Handle(ctx context.Context, cmd SyncUserStatsCommand) (*SyncUserStatsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("sync_user_stats: lock user %s: %w", cmd.UserID, err)
	}
	defer unlock()

	before := 0
	if prev, err := h.snapshots.Get(ctx, cmd.UserID); err == nil {
		before = prev.TotalPoints
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("sync_user_stats: %w", err)
	}

	restored, err := h.restoreBadgeBonuses(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("sync_user_stats: %w", err)
	}

	snap, err := h.aggregator.Recompute(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("sync_user_stats: %w", err)
	}

	delta := snap.TotalPoints - before
	if delta != 0 {
		h.log.Info("snapshot corrected", logger.UserID(cmd.UserID), logger.Int("points_delta", delta))
	}
	return &SyncUserStatsResult{Snapshot: snap, PointsDelta: delta, RestoredBonuses: restored}, nil
}

// restoreBadgeBonuses appends the bonus of every earned badge whose bonus
// entry is missing. The evaluator never revisits an earned badge, so this
// is the only path that can write it.
func (h *SyncUserStatsHandler) restoreBadgeBonuses(ctx context.Context, userID string) ([]catalog.BadgeID, error) {
	bonus, ok := h.catalog.Rule(catalog.ActionBadgeEarned)
	if !ok {
		return nil, nil
	}

	entries, err := h.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	now := h.aggregator.Now()
	var restored []catalog.BadgeID
	for _, id := range reward.MissingBadgeBonuses(entries) {
		desc := "Badge bonus: " + string(id)
		if b, ok := h.catalog.Badge(id); ok {
			desc = "Badge bonus: " + b.Name
		}
		e := reward.NewPointsEntry(userID, catalog.ActionBadgeEarned, bonus.Points, desc, "", reward.BadgeBonusKey(id), now)
		if err := h.ledger.Append(ctx, e); err != nil && !shared.IsRaceDetected(err) {
			return restored, fmt.Errorf("restore bonus %s: %w", id, err)
		}
		restored = append(restored, id)
		h.log.Info("badge bonus restored", logger.UserID(userID), logger.Badge(string(id)))
	}
	return restored, nil
}
