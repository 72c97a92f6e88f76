package legacy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// IMPORTER
// ══════════════════════════════════════════════════════════════════════════════

// Resyncer rebuilds one user's stats snapshot from the ledger.
type Resyncer interface {
	Resync(ctx context.Context, userID string) error
}

// ResyncFunc adapts a function to Resyncer.
type ResyncFunc func(ctx context.Context, userID string) error

// Resync calls f.
func (f ResyncFunc) Resync(ctx context.Context, userID string) error { return f(ctx, userID) }

// Stats counts what one run did.
type Stats struct {
	Institutions int           `json:"institutions"`
	Users        int           `json:"users"`
	Reports      int           `json:"reports"`
	Rewards      int           `json:"rewards"`
	Duplicates   int           `json:"duplicates"`
	Skipped      int           `json:"skipped"`
	Resynced     int           `json:"resynced"`
	ResyncFailed int           `json:"resync_failed"`
	Duration     time.Duration `json:"duration"`
}

// Config tunes the importer.
type Config struct {
	// ResyncConcurrency bounds parallel snapshot rebuilds.
	ResyncConcurrency int
	// SkipResync leaves snapshots untouched; run sync-user later.
	SkipResync bool
}

// Importer copies a legacy data set into the rewards stores. Re-running it
// is safe: reports are saved by id and ledger entries carry stable keys.
type Importer struct {
	source  Source
	writer  identity.Writer
	reports report.Repository
	ledger  reward.Repository
	resync  Resyncer
	retrier *retry.Retrier
	config  Config
	log     *logger.Logger
}

// NewImporter creates a new Importer.
func NewImporter(
	source Source,
	writer identity.Writer,
	reports report.Repository,
	ledger reward.Repository,
	resync Resyncer,
	config Config,
	log *logger.Logger,
) *Importer {
	if config.ResyncConcurrency <= 0 {
		config.ResyncConcurrency = 4
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("legacy_import"))
	return &Importer{
		source:  source,
		writer:  writer,
		reports: reports,
		ledger:  ledger,
		resync:  resync,
		retrier: retry.ImportRetrier(shared.IsRetryable, retry.WithOnRetry(logRetry(log))),
		config:  config,
		log:     log,
	}
}

// Run imports institutions, users, reports and rewards in that order, then
// resyncs every user seen. Undecodable or unconvertible documents are
// counted as skipped; store failures that survive retries abort the run.
func (im *Importer) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	st := &Stats{}
	touched := make(map[string]struct{})

	err := im.source.Institutions(ctx, func(d InstitutionDoc) error {
		inst, err := convertInstitution(d)
		if err != nil {
			return im.skip(st, "institution", err)
		}
		if err := im.write(ctx, func(ctx context.Context) error { return im.writer.SaveInstitution(ctx, inst) }); err != nil {
			return fmt.Errorf("save institution %s: %w", inst.ID, err)
		}
		st.Institutions++
		return nil
	})
	if err != nil {
		return st, err
	}

	err = im.source.Users(ctx, func(d UserDoc) error {
		u, err := convertUser(d)
		if err != nil {
			return im.skip(st, "user", err)
		}
		if err := im.write(ctx, func(ctx context.Context) error { return im.writer.SaveUser(ctx, u) }); err != nil {
			return fmt.Errorf("save user %s: %w", u.ID, err)
		}
		touched[u.ID] = struct{}{}
		st.Users++
		return nil
	})
	if err != nil {
		return st, err
	}

	err = im.source.Reports(ctx, func(d ReportDoc) error {
		r, err := convertReport(d)
		if err != nil {
			return im.skip(st, "report", err)
		}
		err = im.write(ctx, func(ctx context.Context) error { return im.reports.Save(ctx, r) })
		if errors.Is(err, shared.ErrReportOwnerConflict) {
			return im.skip(st, "report", skip("report %s: %v", r.ID, err))
		}
		if err != nil {
			return fmt.Errorf("save report %s: %w", r.ID, err)
		}
		touched[r.CreatedBy] = struct{}{}
		st.Reports++
		return nil
	})
	if err != nil {
		return st, err
	}

	err = im.source.Rewards(ctx, func(d RewardDoc) error {
		e, err := convertReward(d)
		if err != nil {
			return im.skip(st, "reward", err)
		}
		err = im.write(ctx, func(ctx context.Context) error { return im.ledger.Append(ctx, e) })
		switch {
		case shared.IsRaceDetected(err):
			st.Duplicates++
		case err != nil:
			return fmt.Errorf("append reward %s: %w", d.ID.Hex(), err)
		default:
			st.Rewards++
		}
		touched[e.UserID] = struct{}{}
		return nil
	})
	if err != nil {
		return st, err
	}

	if !im.config.SkipResync && im.resync != nil {
		im.resyncAll(ctx, touched, st)
	}

	st.Duration = time.Since(start)
	im.log.Info("legacy import finished",
		logger.Int("institutions", st.Institutions),
		logger.Int("users", st.Users),
		logger.Int("reports", st.Reports),
		logger.Int("rewards", st.Rewards),
		logger.Int("duplicates", st.Duplicates),
		logger.Int("skipped", st.Skipped),
		logger.Int("resynced", st.Resynced),
		logger.Latency(st.Duration),
	)
	if st.ResyncFailed > 0 {
		return st, fmt.Errorf("legacy import: %d snapshot resyncs failed", st.ResyncFailed)
	}
	return st, nil
}

func (im *Importer) write(ctx context.Context, fn func(context.Context) error) error {
	return im.retrier.Do(ctx, fn)
}

func logRetry(log *logger.Logger) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("store write failed, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}

func (im *Importer) skip(st *Stats, kind string, err error) error {
	if !errors.Is(err, ErrSkipped) {
		return err
	}
	st.Skipped++
	im.log.Warn("legacy document skipped", logger.String("kind", kind), logger.Err(err))
	return nil
}

// resyncAll rebuilds snapshots in user id order with bounded parallelism.
// A failed resync is logged and counted; it never cancels the others.
func (im *Importer) resyncAll(ctx context.Context, touched map[string]struct{}, st *Stats) {
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.config.ResyncConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := im.retrier.Do(gctx, func(ctx context.Context) error { return im.resync.Resync(ctx, id) })
			if err != nil {
				failed.Add(1)
				im.log.Error("snapshot resync failed", logger.UserID(id), logger.Err(err))
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	st.Resynced = int(ok.Load())
	st.ResyncFailed = int(failed.Load())
}
