package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/config"
	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/locking"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:            "carboniq-rewards",
			Environment:     config.EnvDevelopment,
			Version:         "test",
			Storage:         config.StorageMemory,
			ShutdownTimeout: time.Second,
		},
		Redis:   config.RedisConfig{Disabled: true},
		HTTP:    config.HTTPConfig{Host: "127.0.0.1", Port: 9090, AdminToken: "t"},
		Rewards: config.RewardsConfig{LockMode: config.LockLocal},
	}
}

func TestNew_MemoryWiring(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Cache)
	assert.IsType(t, &locking.KeyedMutex{}, app.Locker)

	deps := app.HTTPDependencies()
	assert.NotNil(t, deps.ProcessReport)
	assert.NotNil(t, deps.Leaderboard)
	assert.NotNil(t, deps.AfterRankRecalculation)

	httpCfg := app.HTTPConfig()
	assert.Equal(t, "127.0.0.1:9090", httpCfg.Address())
	assert.Equal(t, "t", httpCfg.AdminToken)
}

func TestNew_EndToEndReport(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer app.Close()
	ctx := context.Background()

	res, err := app.Commands.ProcessReport.Handle(ctx, command.ProcessReportCommand{Report: report.Report{
		ID:        "r1",
		CreatedBy: "u1",
		WasteType: report.WasteOrganic,
		Timestamp: time.Now().UTC(),
	}})
	require.NoError(t, err)
	assert.Equal(t, 60, res.PointsAwarded())

	require.NoError(t, app.Resync(ctx, "u1"))
	snap, err := app.Queries.UserStats.Handle(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 60, snap.TotalPoints)

	n, err := app.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	migs, err := app.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, migs)
	assert.NoError(t, app.RollbackMigration(ctx))
	assert.NoError(t, app.InvalidateLeaderboards(ctx))

	job := app.RankJob(nil)
	require.NoError(t, job.Run(ctx))
	ranked, err := app.Snapshots.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, ranked.Rank)
}

func TestNew_CatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte("level_thresholds = [0, 50, 200]\n"), 0o600))

	cfg := memoryConfig()
	cfg.Rewards.CatalogPath = path
	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()
	assert.Equal(t, 3, app.Catalog.Levels().Max())

	cfg.Rewards.CatalogPath = filepath.Join(t.TempDir(), "missing.toml")
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_UnknownStorage(t *testing.T) {
	cfg := memoryConfig()
	cfg.App.Storage = "cassandra"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown storage")
}
