package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, shared.ErrRaceDetected},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, shared.ErrStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, shared.ErrStoreUnavailable},
		{"connection failure", &pgconn.PgError{Code: "08006"}, shared.ErrStoreUnavailable},
		{"closed pool", ErrConnectionClosed, shared.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, shared.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("stats", "Get", tt.err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("stats", "Get", nil))

	syntax := classify("stats", "List", &pgconn.PgError{Code: "42601"})
	assert.False(t, shared.IsRetryable(syntax))
	assert.Contains(t, syntax.Error(), "stats.List")

	canceled := classify("stats", "List", context.Canceled)
	assert.True(t, errors.Is(canceled, context.Canceled))
}

func TestPredicateSQL_CoversEveryPredicate(t *testing.T) {
	seen := map[string]report.Predicate{}
	for _, p := range []report.Predicate{
		report.PredicateAny,
		report.PredicateSafe,
		report.PredicateUrban,
		report.PredicateRural,
		report.PredicateDetailed,
		report.PredicateWithImage,
	} {
		sql := predicateSQL(p)
		require.NotEmpty(t, sql)
		prev, dup := seen[sql]
		assert.False(t, dup, "%s and %s render the same SQL", p, prev)
		seen[sql] = p
	}
	assert.Equal(t, "TRUE", predicateSQL(""))
}

func TestOrderSQL(t *testing.T) {
	assert.Equal(t,
		"longest_streak DESC, total_points DESC, total_reports DESC, user_id COLLATE \"C\" ASC",
		orderSQL(stats.SortStreak))
	assert.Equal(t,
		"total_points DESC, total_points DESC, total_reports DESC, user_id COLLATE \"C\" ASC",
		orderSQL(""))
	assert.Equal(t, "badges_count", primaryColumn(stats.SortBadges))
}

func TestFilterSQL(t *testing.T) {
	where, args := filterSQL(stats.Query{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	where, args = filterSQL(stats.Query{InstitutionID: "inst-1", ActiveSince: since})
	assert.Equal(t, " WHERE institution_id = $1 AND last_report_date >= $2", where)
	assert.Equal(t, []any{"inst-1", since}, args)
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Contains(t, cfg.DSN(), "dbname=carboniq")
	assert.Contains(t, cfg.DSN(), "connect_timeout=10")

	cfg.URL = "postgres://u:p@db:5432/rewards"
	assert.Equal(t, cfg.URL, cfg.DSN())

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(10), pc.MaxConns)
	assert.Equal(t, "db", pc.ConnConfig.Host)
}

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}

func TestGetMigrations_UserStatsOrderIsByteWise(t *testing.T) {
	last := GetMigrations()[len(GetMigrations())-1]
	assert.Equal(t, "user_stats_bytewise_ids", last.Name)
	assert.Contains(t, last.UpSQL, `user_id TYPE TEXT COLLATE "C"`)
}
