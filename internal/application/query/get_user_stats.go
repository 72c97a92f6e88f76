// Package query contains read operations following CQRS pattern.
// Queries never modify ledger state; the only write they perform is the
// lazy creation of a first-time user's zero snapshot.
package query

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Returns the user's snapshot, creating the zero snapshot on first read.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserStatsHandler reads snapshots.
type GetUserStatsHandler struct {
	snapshots stats.Repository
	directory identity.Directory
	group     singleflight.Group
	log       *logger.Logger
}

// NewGetUserStatsHandler creates a new GetUserStatsHandler.
func NewGetUserStatsHandler(snapshots stats.Repository, directory identity.Directory, log *logger.Logger) *GetUserStatsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetUserStatsHandler{
		snapshots: snapshots,
		directory: directory,
		log:       log.With(logger.Component("stats_query")),
	}
}

// Handle returns the user's snapshot. A known user without a snapshot gets
// a persisted zero snapshot; concurrent first reads share one insert. An
// id the directory does not know yields a zero snapshot that is not stored.
func (h *GetUserStatsHandler) Handle(ctx context.Context, userID string) (*stats.Snapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, shared.NewDomainError("rewards", "GetUserStats", shared.ErrInvalidInput, "user_id is required")
	}

	s, err := h.snapshots.Get(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("get_user_stats: %w", err)
	}

	// The shared insert outlives any one caller; each caller still stops
	// waiting when its own ctx ends.
	ch := h.group.DoChan(userID, func() (any, error) {
		return h.initialize(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get_user_stats: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("get_user_stats: %w", res.Err)
		}
		return res.Val.(*stats.Snapshot).Clone(), nil
	}
}

func (h *GetUserStatsHandler) initialize(ctx context.Context, userID string) (*stats.Snapshot, error) {
	u, err := h.directory.GetUser(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return stats.NewSnapshot(userID, "", ""), nil
		}
		return nil, err
	}

	s, err := h.snapshots.CreateIfAbsent(ctx, stats.NewSnapshot(u.ID, u.FullName, u.InstitutionID))
	if err != nil {
		return nil, err
	}
	h.log.Debug("initialized snapshot", logger.UserID(userID))
	return s, nil
}
