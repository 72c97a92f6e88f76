package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// AppliedMigrations returns applied versions and when they were applied.
func (m *Migrator) AppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if _, done := applied[mig.Version]; done {
			continue
		}
		if mig.UpSQL == "" {
			return ran, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name,
			)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: version %d: %w", ErrMigrationFailed, mig.Version, err)
		}
		ran++
	}
	return ran, nil
}

// Rollback reverts the last applied migration. It is a no-op on an empty schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_identity", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_reports", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_reward_ledger", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_user_stats", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "user_stats_bytewise_ids", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS institutions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT '',
    institution_id TEXT NOT NULL DEFAULT '',
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Join order drives the early adopter badge.
CREATE INDEX IF NOT EXISTS idx_users_joined ON users(joined_at, id);
`

const migration001Down = `
DROP TABLE IF EXISTS users;
DROP TABLE IF EXISTS institutions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: REPORTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    created_by TEXT NOT NULL,
    image_url TEXT NOT NULL DEFAULT '',
    measure_height_cm DOUBLE PRECISION,
    measure_width_cm DOUBLE PRECISION,
    feedback TEXT NOT NULL DEFAULT '',
    waste_type TEXT NOT NULL,
    safe BOOLEAN NOT NULL DEFAULT FALSE,
    urban_area BOOLEAN NOT NULL DEFAULT FALSE,
    reported_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_user_time ON reports(created_by, reported_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS reports;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: REWARD LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS reward_ledger (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('points', 'badge', 'achievement', 'bonus')),
    points INTEGER,
    badge_id TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL,
    report_id TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL,

    CONSTRAINT uq_reward_ledger_key UNIQUE (user_id, idempotency_key)
);

CREATE INDEX IF NOT EXISTS idx_reward_ledger_user_time ON reward_ledger(user_id, earned_at DESC);
CREATE INDEX IF NOT EXISTS idx_reward_ledger_user_action ON reward_ledger(user_id, action, earned_at);
CREATE INDEX IF NOT EXISTS idx_reward_ledger_badges ON reward_ledger(earned_at DESC) WHERE kind = 'badge';

-- The ledger is append-only.
CREATE OR REPLACE FUNCTION reward_ledger_immutable() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'reward_ledger is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_reward_ledger_immutable ON reward_ledger;
CREATE TRIGGER trg_reward_ledger_immutable
    BEFORE UPDATE OR DELETE ON reward_ledger
    FOR EACH ROW EXECUTE FUNCTION reward_ledger_immutable();
`

const migration003Down = `
DROP TRIGGER IF EXISTS trg_reward_ledger_immutable ON reward_ledger;
DROP FUNCTION IF EXISTS reward_ledger_immutable();
DROP TABLE IF EXISTS reward_ledger;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: USER STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT '',
    institution_id TEXT NOT NULL DEFAULT '',
    total_points INTEGER NOT NULL DEFAULT 0,
    total_reports INTEGER NOT NULL DEFAULT 0,
    badges_earned TEXT[] NOT NULL DEFAULT '{}',
    badges_count INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    reports_with_images INTEGER NOT NULL DEFAULT 0,
    reports_by_waste_type JSONB NOT NULL DEFAULT '{}'::jsonb,
    last_report_date TIMESTAMP WITH TIME ZONE,
    rank INTEGER NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_user_stats_points ON user_stats(total_points DESC, total_reports DESC, user_id);
CREATE INDEX IF NOT EXISTS idx_user_stats_institution ON user_stats(institution_id, total_points DESC);
CREATE INDEX IF NOT EXISTS idx_user_stats_last_report ON user_stats(last_report_date);
`

const migration004Down = `
DROP TABLE IF EXISTS user_stats;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: BYTE-WISE USER ID ORDER
// Leaderboard ties break on user_id compared byte by byte, whatever the
// database locale.
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
ALTER TABLE user_stats ALTER COLUMN user_id TYPE TEXT COLLATE "C";
`

const migration005Down = `
ALTER TABLE user_stats ALTER COLUMN user_id TYPE TEXT COLLATE "default";
`
