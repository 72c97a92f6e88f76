package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.App.Storage)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, LockLocal, cfg.Rewards.LockMode)
	assert.False(t, cfg.UseRedis())
	assert.Equal(t, "@every 10m", cfg.Scheduler.RankSchedule)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 30*time.Second, cfg.Rewards.LeaderboardCacheTTL)
}

func TestLoad_PostgresFromComponents(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "rewards")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("REDIS_DISABLED", "false")
	t.Setenv("REWARDS_LOCK_MODE", "redis")
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.App.Storage)
	assert.Equal(t, "postgres://rewards:secret@db:5432/carboniq?sslmode=disable", cfg.Database.URL)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, 9000, cfg.HTTP.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:       AppConfig{Environment: EnvProduction, Storage: StoragePostgres},
			Database:  DatabaseConfig{URL: "postgres://x"},
			Redis:     RedisConfig{Disabled: true},
			HTTP:      HTTPConfig{Port: 8080},
			Scheduler: SchedulerConfig{Enabled: true, RankSchedule: "@every 1m"},
			Rewards:   RewardsConfig{LockMode: LockLocal},
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"memory in production", func(c *Config) { c.App.Storage = StorageMemory }, "not allowed in production"},
		{"unknown storage", func(c *Config) { c.App.Storage = "sqlite" }, "APP_STORAGE"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"redis lock without redis", func(c *Config) { c.Rewards.LockMode = LockRedis }, "REDIS_DISABLED"},
		{"unknown lock mode", func(c *Config) { c.Rewards.LockMode = "zk" }, "REWARDS_LOCK_MODE"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "HTTP_PORT"},
		{"empty schedule", func(c *Config) { c.Scheduler.RankSchedule = " " }, "SCHEDULER_RANK_SCHEDULE"},
		{"negative ttl", func(c *Config) { c.Rewards.LeaderboardCacheTTL = -time.Second }, "CACHE_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_BOOL", "perhaps")
	t.Setenv("X_DUR", "soon")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, time.Minute, getEnvDuration("X_DUR", time.Minute))
	assert.Equal(t, "d", getEnv("X_MISSING", "d"))
}
