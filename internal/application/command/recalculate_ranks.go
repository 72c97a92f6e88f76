package command

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE RANKS COMMAND
// Sorts every snapshot by the global key and materializes the rank column.
// Batches are written independently; a failed batch is retried and does
// not roll back the others.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateRanksResult summarizes one run.
type RecalculateRanksResult struct {
	Ranked   int
	Batches  int
	Duration time.Duration
}

// RecalculateRanksConfig tunes batching.
type RecalculateRanksConfig struct {
	BatchSize   int
	Concurrency int
}

// DefaultRecalculateRanksConfig returns default configuration.
func DefaultRecalculateRanksConfig() RecalculateRanksConfig {
	return RecalculateRanksConfig{
		BatchSize:   500,
		Concurrency: 4,
	}
}

// RecalculateRanksHandler rewrites all materialized ranks.
type RecalculateRanksHandler struct {
	snapshots stats.Repository
	retrier   *retry.Retrier
	config    RecalculateRanksConfig
	log       *logger.Logger
}

// NewRecalculateRanksHandler creates a new RecalculateRanksHandler.
func NewRecalculateRanksHandler(snapshots stats.Repository, retrier *retry.Retrier, config RecalculateRanksConfig, log *logger.Logger) *RecalculateRanksHandler {
	def := DefaultRecalculateRanksConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("rank_job"))
	if retrier == nil {
		retrier = retry.StoreRetrier(shared.IsRetryable, retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("rank batch failed, retrying", logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Err(err))
		}))
	}
	return &RecalculateRanksHandler{
		snapshots: snapshots,
		retrier:   retrier,
		config:    config,
		log:       log,
	}
}

// Handle ranks all snapshots by (points desc, reports desc, user_id asc).
func (h *RecalculateRanksHandler) Handle(ctx context.Context) (*RecalculateRanksResult, error) {
	start := time.Now()

	all, err := h.snapshots.List(ctx, stats.Query{SortKey: stats.SortPoints})
	if err != nil {
		return nil, fmt.Errorf("recalculate_ranks: list snapshots: %w", err)
	}

	ranks := make([]stats.RankAssignment, len(all))
	for i, s := range all {
		ranks[i] = stats.RankAssignment{UserID: s.UserID, Rank: i + 1}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)

	batches := 0
	for lo := 0; lo < len(ranks); lo += h.config.BatchSize {
		batch := ranks[lo:min(lo+h.config.BatchSize, len(ranks))]
		batches++
		g.Go(func() error {
			return h.retrier.Do(gctx, func(ctx context.Context) error {
				return h.snapshots.SetRanks(ctx, batch)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recalculate_ranks: write batch: %w", err)
	}

	res := &RecalculateRanksResult{Ranked: len(ranks), Batches: batches, Duration: time.Since(start)}
	h.log.Info("ranks recalculated",
		logger.Int("ranked", res.Ranked),
		logger.Int("batches", res.Batches),
		logger.Latency(res.Duration),
	)
	return res, nil
}
