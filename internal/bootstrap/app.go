// Package bootstrap assembles the rewards engine from configuration. The
// api, worker and rewardsctl binaries share one wiring so every process
// sees the same catalog, stores and locking discipline.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carboniq/carboniq-rewards/config"
	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/application/query"
	"github.com/carboniq/carboniq-rewards/internal/domain/badge"
	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/identity"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/catalogfile"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/directory"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/locking"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/memory"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/postgres"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/persistence/redis"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/carboniq/carboniq-rewards/internal/interface/http"
	"github.com/carboniq/carboniq-rewards/pkg/circuitbreaker"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION CONTAINER
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write-side handlers.
type Commands struct {
	ProcessReport    *command.ProcessReportHandler
	SyncUserStats    *command.SyncUserStatsHandler
	RecalculateRanks *command.RecalculateRanksHandler
}

// Queries groups the read-side handlers.
type Queries struct {
	UserStats           *query.GetUserStatsHandler
	Profile             *query.GetProfileHandler
	AchievementProgress *query.GetAchievementProgressHandler
	RewardHistory       *query.GetRewardHistoryHandler
	PointsBreakdown     *query.GetPointsBreakdownHandler
	UserRank            *query.GetUserRankHandler
	Leaderboard         *query.GetLeaderboardHandler
	CompleteLeaderboard *query.GetCompleteLeaderboardHandler
	InstitutionRankings *query.GetInstitutionRankingsHandler
	RecentAchievements  *query.GetRecentAchievementsHandler
	BadgeCatalog        *query.GetBadgeCatalogHandler
}

// App holds every wired component. Close releases connections.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Catalog *catalog.Catalog
	Clock   timeutil.Clock

	Reports   report.Repository
	Ledger    reward.Repository
	Snapshots stats.Repository
	Directory identity.Directory
	Writer    identity.Writer
	Locker    command.UserLocker

	// DB and Cache are nil when their backend is not configured.
	DB           *postgres.Connection
	Cache        *redis.Cache
	Leaderboards *redis.LeaderboardCache

	Aggregator *stats.Aggregator
	Evaluator  *badge.Evaluator
	Commands   Commands
	Queries    Queries
	Health     *httpserver.CompositeHealthChecker

	closers []func()
}

// NewLogger builds the application logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.Observability.LogCaller,
	}).With(logger.String("service", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))
}

// NewSlog builds the slog logger the scheduler runs with: JSON outside
// development, text otherwise.
func NewSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug || logger.ParseLevel(cfg.Observability.LogLevel) == logger.LevelDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", cfg.App.Name)
}

// New connects the configured backends and wires every handler. On error
// anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	app := &App{
		Config: cfg,
		Logger: log,
		Clock:  timeutil.SystemClock{},
		Health: httpserver.NewCompositeHealthChecker(cfg.App.Version),
	}

	c, err := loadCatalog(cfg.Rewards.CatalogPath)
	if err != nil {
		return nil, err
	}
	app.Catalog = c
	log.Info("catalog loaded",
		logger.Int("rules", len(c.Rules())),
		logger.Int("badges", len(c.Badges())),
		logger.Int("max_level", c.Levels().Max()),
	)

	for _, step := range []func() error{
		func() error { return app.openStorage(ctx) },
		app.openRedis,
		app.wire,
	} {
		if err := step(); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	c, err := catalogfile.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKENDS
// ══════════════════════════════════════════════════════════════════════════════

func (a *App) openStorage(ctx context.Context) error {
	var dir identity.Directory

	switch a.Config.App.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		a.Reports, a.Ledger, a.Snapshots = store.Reports, store.Ledger, store.Snapshots
		dir, a.Writer = store.Directory, store.Directory
		a.Logger.Warn("using in-memory storage; data is lost on exit")

	case config.StoragePostgres:
		db := a.Config.Database
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = db.URL
		pgCfg.MaxConns = int32(db.MaxConns)
		pgCfg.MinConns = int32(db.MinConns)
		pgCfg.MaxConnLifetime = db.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = db.ConnMaxIdleTime
		pgCfg.ConnectTimeout = db.ConnectTimeout

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.DB = conn
		a.closers = append(a.closers, conn.Close)
		a.Health.AddCheck("postgres", httpserver.PingCheck(conn))

		if db.AutoMigrate {
			if _, err := a.Migrate(ctx); err != nil {
				return err
			}
		}

		a.Reports = postgres.NewReportRepository(conn)
		a.Ledger = postgres.NewLedgerRepository(conn)
		a.Snapshots = postgres.NewStatsRepository(conn)
		pgDir := postgres.NewDirectoryRepository(conn)
		dir, a.Writer = pgDir, pgDir

	default:
		return fmt.Errorf("unknown storage %q", a.Config.App.Storage)
	}

	cached, err := directory.NewCached(dir, directory.Config{
		Size: a.Config.Rewards.DirectoryCacheSize,
		TTL:  a.Config.Rewards.DirectoryCacheTTL,
	}, a.Clock)
	if err != nil {
		return fmt.Errorf("directory cache: %w", err)
	}
	a.Directory = cached
	return nil
}

func (a *App) openRedis() error {
	if !a.Config.UseRedis() {
		return nil
	}

	rc := a.Config.Redis
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = rc.Host
	redisCfg.Port = rc.Port
	redisCfg.Password = rc.Password
	redisCfg.DB = rc.DB
	redisCfg.PoolSize = rc.PoolSize
	redisCfg.MinIdleConns = rc.MinIdleConns
	redisCfg.DialTimeout = rc.DialTimeout
	redisCfg.ReadTimeout = rc.ReadTimeout
	redisCfg.WriteTimeout = rc.WriteTimeout
	if rc.KeyPrefix != "" {
		redisCfg.KeyPrefix = rc.KeyPrefix
	}

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		if a.Config.Rewards.LockMode == config.LockRedis {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.Logger.Warn("redis unavailable, leaderboard cache disabled", logger.Err(err))
		return nil
	}

	a.Cache = cache
	a.Leaderboards = redis.NewLeaderboardCache(cache)
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("redis", httpserver.PingCheck(cache))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (a *App) wire() error {
	log := a.Logger
	cfg := a.Config

	switch {
	case cfg.Rewards.LockMode == config.LockRedis && a.Cache != nil:
		a.Locker = redis.NewUserLock(a.Cache, redis.UserLockConfig{
			TTL:            cfg.Rewards.LockTTL,
			AcquireTimeout: cfg.Rewards.LockAcquireTimeout,
		})
	default:
		a.Locker = locking.NewKeyedMutex()
	}

	a.Aggregator = stats.NewAggregator(a.Reports, a.Ledger, a.Snapshots, a.Directory, a.Clock)
	a.Evaluator = badge.NewEvaluator(a.Catalog, a.Reports, a.Directory, a.Snapshots)

	a.Commands = Commands{
		ProcessReport: command.NewProcessReportHandler(a.Catalog, a.Reports, a.Ledger, a.Aggregator, a.Evaluator, a.Locker, a.Clock, log),
		SyncUserStats: command.NewSyncUserStatsHandler(a.Catalog, a.Ledger, a.Snapshots, a.Aggregator, a.Locker, log),
		RecalculateRanks: command.NewRecalculateRanksHandler(a.Snapshots, nil, command.RecalculateRanksConfig{
			BatchSize:   cfg.Scheduler.RankBatchSize,
			Concurrency: cfg.Scheduler.RankConcurrency,
		}, log),
	}

	var (
		boardCache query.LeaderboardCache
		breaker    *circuitbreaker.CircuitBreaker
	)
	if a.Leaderboards != nil {
		boardCache = a.Leaderboards
		breaker = circuitbreaker.CacheBreaker(query.CacheOutage, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}

	userStats := query.NewGetUserStatsHandler(a.Snapshots, a.Directory, log)
	boards := query.NewGetLeaderboardHandler(a.Snapshots, a.Directory, boardCache, breaker,
		query.GetLeaderboardConfig{CacheTTL: cfg.Rewards.LeaderboardCacheTTL}, a.Clock, log)
	ranks := query.NewGetUserRankHandler(userStats, a.Snapshots, a.Directory, a.Clock, log)
	progress := query.NewGetAchievementProgressHandler(userStats, a.Evaluator, a.Clock)

	a.Queries = Queries{
		UserStats:           userStats,
		Profile:             query.NewGetProfileHandler(userStats, progress, a.Ledger, a.Catalog),
		AchievementProgress: progress,
		RewardHistory:       query.NewGetRewardHistoryHandler(a.Ledger),
		PointsBreakdown:     query.NewGetPointsBreakdownHandler(userStats, a.Ledger, a.Catalog),
		UserRank:            ranks,
		Leaderboard:         boards,
		CompleteLeaderboard: query.NewGetCompleteLeaderboardHandler(userStats, boards, ranks),
		InstitutionRankings: query.NewGetInstitutionRankingsHandler(a.Snapshots, a.Directory, log),
		RecentAchievements:  query.NewGetRecentAchievementsHandler(a.Ledger, a.Directory, log),
		BadgeCatalog:        query.NewGetBadgeCatalogHandler(a.Catalog),
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migrate applies pending schema migrations. It is a no-op for memory storage.
func (a *App) Migrate(ctx context.Context) (int, error) {
	if a.DB == nil {
		return 0, nil
	}
	n, err := postgres.NewMigrator(a.DB).Migrate(ctx)
	if err != nil {
		return n, fmt.Errorf("migrate: %w", err)
	}
	a.Logger.Info("migrations applied", logger.Int("applied", n))
	return n, nil
}

// MigrationStatus lists the embedded migrations with their applied state.
func (a *App) MigrationStatus(ctx context.Context) ([]postgres.Migration, error) {
	if a.DB == nil {
		return nil, nil
	}
	return postgres.NewMigrator(a.DB).Status(ctx)
}

// RollbackMigration reverts the newest applied migration.
func (a *App) RollbackMigration(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	if err := postgres.NewMigrator(a.DB).Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	a.Logger.Warn("last migration rolled back")
	return nil
}

// InvalidateLeaderboards drops every cached leaderboard page.
func (a *App) InvalidateLeaderboards(ctx context.Context) error {
	if a.Leaderboards == nil {
		return nil
	}
	n, err := a.Leaderboards.InvalidateAll(ctx)
	if err != nil {
		return err
	}
	a.Logger.Debug("leaderboard cache invalidated", logger.Int("keys", n))
	return nil
}

// Resync rebuilds one user's snapshot under the user lock.
func (a *App) Resync(ctx context.Context, userID string) error {
	_, err := a.Commands.SyncUserStats.Handle(ctx, command.SyncUserStatsCommand{UserID: userID})
	return err
}

// RankJob returns the scheduled rank recalculation job.
func (a *App) RankJob(log *slog.Logger) *jobs.RecalculateRanksJob {
	var invalidator jobs.CacheInvalidator
	if a.Leaderboards != nil {
		invalidator = a.Leaderboards
	}
	return jobs.NewRecalculateRanksJob(a.Commands.RecalculateRanks, invalidator, log, jobs.RecalculateRanksConfig{
		Timeout: a.Config.Scheduler.JobTimeout,
	})
}

// HTTPConfig maps the HTTP settings onto the server config.
func (a *App) HTTPConfig() httpserver.Config {
	h := a.Config.HTTP
	c := httpserver.DefaultConfig()
	c.Host = h.Host
	c.Port = h.Port
	if h.ReadTimeout > 0 {
		c.ReadTimeout = h.ReadTimeout
	}
	if h.WriteTimeout > 0 {
		c.WriteTimeout = h.WriteTimeout
	}
	if h.IdleTimeout > 0 {
		c.IdleTimeout = h.IdleTimeout
	}
	if h.BodyLimit > 0 {
		c.BodyLimit = h.BodyLimit
	}
	c.AdminToken = h.AdminToken
	if h.CORSOrigins != "" {
		c.CORSOrigins = h.CORSOrigins
	}
	c.Version = a.Config.App.Version
	return c
}

// HTTPDependencies hands the handlers to the HTTP server.
func (a *App) HTTPDependencies() httpserver.Dependencies {
	return httpserver.Dependencies{
		ProcessReport:          a.Commands.ProcessReport,
		SyncUserStats:          a.Commands.SyncUserStats,
		RecalculateRanks:       a.Commands.RecalculateRanks,
		UserStats:              a.Queries.UserStats,
		Profile:                a.Queries.Profile,
		AchievementProgress:    a.Queries.AchievementProgress,
		RewardHistory:          a.Queries.RewardHistory,
		PointsBreakdown:        a.Queries.PointsBreakdown,
		UserRank:               a.Queries.UserRank,
		Leaderboard:            a.Queries.Leaderboard,
		CompleteLeaderboard:    a.Queries.CompleteLeaderboard,
		InstitutionRankings:    a.Queries.InstitutionRankings,
		RecentAchievements:     a.Queries.RecentAchievements,
		BadgeCatalog:           a.Queries.BadgeCatalog,
		AfterRankRecalculation: a.InvalidateLeaderboards,
		Health:                 a.Health,
		Logger:                 a.Logger,
	}
}

// Close releases backends in reverse open order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ShutdownContext returns a context bounded by the configured shutdown timeout.
func (a *App) ShutdownContext() (context.Context, context.CancelFunc) {
	timeout := a.Config.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
