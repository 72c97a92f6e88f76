// Package jobs contains the scheduled jobs of the rewards worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE RANKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RankRecalculator rewrites every materialized rank.
type RankRecalculator interface {
	Handle(ctx context.Context) (*command.RecalculateRanksResult, error)
}

// CacheInvalidator drops cached leaderboard pages.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) (int, error)
}

// RecalculateRanksConfig contains configuration for the job.
type RecalculateRanksConfig struct {
	// Timeout bounds a single run.
	Timeout time.Duration
}

// DefaultRecalculateRanksConfig returns sensible defaults.
func DefaultRecalculateRanksConfig() RecalculateRanksConfig {
	return RecalculateRanksConfig{Timeout: 10 * time.Minute}
}

// RecalculateRanksStats describes the last run.
type RecalculateRanksStats struct {
	StartedAt        time.Time
	Duration         time.Duration
	Ranked           int
	Batches          int
	CacheKeysDropped int
	CacheError       error
}

// RecalculateRanksJob runs the bulk rank recalculation and then drops the
// leaderboard cache so readers see the new ranks.
type RecalculateRanksJob struct {
	ranks  RankRecalculator
	cache  CacheInvalidator
	logger *slog.Logger
	config RecalculateRanksConfig

	lastStats atomic.Pointer[RecalculateRanksStats]
}

// NewRecalculateRanksJob creates the job. cache may be nil.
func NewRecalculateRanksJob(ranks RankRecalculator, cache CacheInvalidator, logger *slog.Logger, config RecalculateRanksConfig) *RecalculateRanksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRecalculateRanksConfig().Timeout
	}
	return &RecalculateRanksJob{
		ranks:  ranks,
		cache:  cache,
		logger: logger.With("job", "recalculate_ranks"),
		config: config,
	}
}

// Name returns the job name.
func (j *RecalculateRanksJob) Name() string { return "recalculate_ranks" }

// Description returns a human-readable description of the job.
func (j *RecalculateRanksJob) Description() string {
	return "Recomputes the global rank of every user and invalidates cached leaderboards"
}

// Run executes the job. A cache invalidation failure is logged but does
// not fail the run; cached pages expire on their own TTL.
func (j *RecalculateRanksJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	st := &RecalculateRanksStats{StartedAt: time.Now()}
	defer func() {
		st.Duration = time.Since(st.StartedAt)
		j.lastStats.Store(st)
	}()

	res, err := j.ranks.Handle(ctx)
	if err != nil {
		return fmt.Errorf("recalculate ranks: %w", err)
	}
	st.Ranked = res.Ranked
	st.Batches = res.Batches

	if j.cache != nil {
		n, err := j.cache.InvalidateAll(ctx)
		st.CacheKeysDropped = n
		if err != nil {
			st.CacheError = err
			j.logger.Warn("leaderboard cache invalidation failed", "error", err)
		}
	}

	j.logger.Info("ranks recalculated",
		"ranked", st.Ranked,
		"batches", st.Batches,
		"cache_keys_dropped", st.CacheKeysDropped,
	)
	return nil
}

// LastStats returns statistics of the most recent run, or nil.
func (j *RecalculateRanksJob) LastStats() *RecalculateRanksStats {
	return j.lastStats.Load()
}
