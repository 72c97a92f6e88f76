package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/reward"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements reward.Repository. The unique
// (user_id, idempotency_key) constraint is the only duplicate guard.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const ledgerColumns = `id, user_id, kind, points, badge_id, action, description,
	earned_at, report_id, idempotency_key`

// Append inserts e. A key collision surfaces as shared.ErrDuplicateAward.
func (r *LedgerRepository) Append(ctx context.Context, e *reward.Entry) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO reward_ledger (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID,
		e.UserID,
		string(e.Kind),
		e.Points,
		string(e.BadgeID),
		string(e.Action),
		e.Description,
		e.EarnedAt.UTC(),
		e.ReportID,
		e.IdempotencyKey,
	)
	if IsUniqueViolation(err) {
		return shared.ErrDuplicateAward
	}
	return classify("ledger", "Append", err)
}

// ListByUser returns the user's entries, newest first.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string) ([]reward.Entry, error) {
	return r.collect(ctx, "ListByUser", `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE user_id = $1
		ORDER BY earned_at DESC, id DESC
	`, userID)
}

// ExistsSince reports whether the user earned an action entry at or after since.
func (r *LedgerRepository) ExistsSince(ctx context.Context, userID string, action catalog.Action, since time.Time) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reward_ledger
			WHERE user_id = $1 AND action = $2 AND earned_at >= $3
		)
	`, userID, string(action), since.UTC()).Scan(&exists)
	if err != nil {
		return false, classify("ledger", "ExistsSince", err)
	}
	return exists, nil
}

// History returns one page of the user's entries, newest first.
func (r *LedgerRepository) History(ctx context.Context, userID string, q reward.HistoryQuery) ([]reward.Entry, error) {
	var limit *int
	if q.Limit > 0 {
		limit = &q.Limit
	}
	return r.collect(ctx, "History", `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE user_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY earned_at DESC, id DESC
		OFFSET $3
		LIMIT $4
	`, userID, string(q.Kind), max(q.Offset, 0), limit)
}

// RecentBadges returns the newest badge entries across all users.
func (r *LedgerRepository) RecentBadges(ctx context.Context, limit int) ([]reward.Entry, error) {
	return r.collect(ctx, "RecentBadges", `
		SELECT `+ledgerColumns+`
		FROM reward_ledger
		WHERE kind = 'badge'
		ORDER BY earned_at DESC, id DESC
		LIMIT $1
	`, limit)
}

func (r *LedgerRepository) collect(ctx context.Context, op, sql string, args ...any) ([]reward.Entry, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("ledger", op, err)
	}
	out, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, classify("ledger", op, err)
	}
	return out, nil
}

func scanEntry(row pgx.CollectableRow) (reward.Entry, error) {
	var (
		e                   reward.Entry
		kind, badge, action string
	)
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&kind,
		&e.Points,
		&badge,
		&action,
		&e.Description,
		&e.EarnedAt,
		&e.ReportID,
		&e.IdempotencyKey,
	)
	e.Kind = reward.Kind(kind)
	e.BadgeID = catalog.BadgeID(badge)
	e.Action = catalog.Action(action)
	e.EarnedAt = e.EarnedAt.UTC()
	return e, err
}
