package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carboniq/carboniq-rewards/internal/domain/catalog"
	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
	"github.com/carboniq/carboniq-rewards/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements stats.Repository on the user_stats table.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

const statsColumns = `user_id, full_name, institution_id, total_points, total_reports,
	badges_earned, current_streak, longest_streak, reports_with_images,
	reports_by_waste_type, last_report_date, rank, version, updated_at`

// Get returns the user's snapshot.
func (r *StatsRepository) Get(ctx context.Context, userID string) (*stats.Snapshot, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	if err != nil {
		return nil, classify("stats", "Get", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSnapshot)
	if IsNoRows(err) {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, classify("stats", "Get", err)
	}
	return &s, nil
}

// Upsert writes s when s.Version matches the stored version. Version 0
// inserts; any other version updates the matching row. Rank is never written.
func (r *StatsRepository) Upsert(ctx context.Context, s *stats.Snapshot) error {
	badges := badgeStrings(s.BadgesEarned)
	args := []any{
		s.UserID,
		s.FullName,
		s.InstitutionID,
		s.TotalPoints,
		s.TotalReports,
		badges,
		len(badges),
		s.CurrentStreak,
		s.LongestStreak,
		s.ReportsWithImages,
		wasteCounts(s.ReportsByWasteType),
		s.LastReportDate,
		s.UpdatedAt.UTC(),
	}

	var sql string
	if s.Version == 0 {
		sql = `
			INSERT INTO user_stats (user_id, full_name, institution_id, total_points, total_reports,
				badges_earned, badges_count, current_streak, longest_streak, reports_with_images,
				reports_by_waste_type, last_report_date, updated_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING version, rank`
	} else {
		sql = `
			UPDATE user_stats SET
				full_name = $2,
				institution_id = $3,
				total_points = $4,
				total_reports = $5,
				badges_earned = $6,
				badges_count = $7,
				current_streak = $8,
				longest_streak = $9,
				reports_with_images = $10,
				reports_by_waste_type = $11,
				last_report_date = $12,
				updated_at = $13,
				version = version + 1
			WHERE user_id = $1 AND version = $14
			RETURNING version, rank`
		args = append(args, s.Version)
	}

	var (
		version int64
		rank    int
	)
	err := r.conn.QueryRow(ctx, sql, args...).Scan(&version, &rank)
	if IsNoRows(err) {
		return shared.ErrStaleSnapshot
	}
	if err != nil {
		return classify("stats", "Upsert", err)
	}
	s.Version = version
	s.Rank = rank
	return nil
}

// CreateIfAbsent inserts s at version 1 unless a row exists, then returns
// the stored row.
func (r *StatsRepository) CreateIfAbsent(ctx context.Context, s *stats.Snapshot) (*stats.Snapshot, error) {
	badges := badgeStrings(s.BadgesEarned)
	_, err := r.conn.Exec(ctx, `
		INSERT INTO user_stats (user_id, full_name, institution_id, total_points, total_reports,
			badges_earned, badges_count, current_streak, longest_streak, reports_with_images,
			reports_by_waste_type, last_report_date, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
		ON CONFLICT (user_id) DO NOTHING
	`,
		s.UserID, s.FullName, s.InstitutionID, s.TotalPoints, s.TotalReports,
		badges, len(badges), s.CurrentStreak, s.LongestStreak, s.ReportsWithImages,
		wasteCounts(s.ReportsByWasteType), s.LastReportDate, s.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, classify("stats", "CreateIfAbsent", err)
	}
	return r.Get(ctx, s.UserID)
}

// List returns the snapshots matching q in q.SortKey order.
func (r *StatsRepository) List(ctx context.Context, q stats.Query) ([]stats.Snapshot, error) {
	where, args := filterSQL(q)
	sql := `SELECT ` + statsColumns + ` FROM user_stats` + where + ` ORDER BY ` + orderSQL(q.SortKey)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("stats", "List", err)
	}
	out, err := pgx.CollectRows(rows, scanSnapshot)
	if err != nil {
		return nil, classify("stats", "List", err)
	}
	return out, nil
}

// CountAhead counts matching snapshots that sort strictly before s.
func (r *StatsRepository) CountAhead(ctx context.Context, s *stats.Snapshot, q stats.Query) (int, error) {
	key := sortKeyOrDefault(q.SortKey)
	where, args := filterSQL(q)

	// Descending keys are negated so one row comparison expresses the order.
	args = append(args, -key.Primary(s), -s.TotalPoints, -s.TotalReports, s.UserID)
	n := len(args)
	cond := fmt.Sprintf(`(-%s, -total_points, -total_reports, user_id COLLATE "C") < ($%d, $%d, $%d, $%d)`,
		primaryColumn(key), n-3, n-2, n-1, n)
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}

	var count int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM user_stats`+where, args...).Scan(&count); err != nil {
		return 0, classify("stats", "CountAhead", err)
	}
	return count, nil
}

// SetRanks writes ranks in one batch without bumping versions.
func (r *StatsRepository) SetRanks(ctx context.Context, ranks []stats.RankAssignment) error {
	if len(ranks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range ranks {
		batch.Queue(`UPDATE user_stats SET rank = $2 WHERE user_id = $1`, a.UserID, a.Rank)
	}

	br := r.conn.SendBatch(ctx, batch)
	defer br.Close()

	for range ranks {
		if _, err := br.Exec(); err != nil {
			return classify("stats", "SetRanks", err)
		}
	}
	return nil
}

// InstitutionTotals aggregates member snapshots per institution.
func (r *StatsRepository) InstitutionTotals(ctx context.Context, limit int) ([]stats.InstitutionTotals, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.conn.Query(ctx, `
		SELECT institution_id,
		       count(*),
		       sum(total_points),
		       sum(total_reports),
		       avg(total_points)::float8,
		       max(longest_streak)
		FROM user_stats
		WHERE institution_id <> ''
		GROUP BY institution_id
		ORDER BY sum(total_points) DESC, institution_id
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, classify("stats", "InstitutionTotals", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.InstitutionTotals, error) {
		var t stats.InstitutionTotals
		err := row.Scan(&t.InstitutionID, &t.Members, &t.TotalPoints, &t.TotalReports, &t.AvgPoints, &t.TopStreak)
		return t, err
	})
	if err != nil {
		return nil, classify("stats", "InstitutionTotals", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL BUILDING
// ─────────────────────────────────────────────────────────────────────────────

func sortKeyOrDefault(k stats.SortKey) stats.SortKey {
	if k.IsValid() {
		return k
	}
	return stats.SortPoints
}

func primaryColumn(k stats.SortKey) string {
	switch k {
	case stats.SortReports:
		return "total_reports"
	case stats.SortStreak:
		return "longest_streak"
	case stats.SortBadges:
		return "badges_count"
	default:
		return "total_points"
	}
}

// orderSQL matches stats.Compare.
func orderSQL(k stats.SortKey) string {
	return primaryColumn(sortKeyOrDefault(k)) + ` DESC, total_points DESC, total_reports DESC, user_id COLLATE "C" ASC`
}

func filterSQL(q stats.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.InstitutionID != "" {
		args = append(args, q.InstitutionID)
		conds = append(conds, fmt.Sprintf("institution_id = $%d", len(args)))
	}
	if !q.ActiveSince.IsZero() {
		args = append(args, q.ActiveSince.UTC())
		conds = append(conds, fmt.Sprintf("last_report_date >= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ─────────────────────────────────────────────────────────────────────────────
// SCANNING
// ─────────────────────────────────────────────────────────────────────────────

func scanSnapshot(row pgx.CollectableRow) (stats.Snapshot, error) {
	var (
		s       stats.Snapshot
		badges  []string
		byType  map[string]int
		lastRep *time.Time
	)
	err := row.Scan(
		&s.UserID,
		&s.FullName,
		&s.InstitutionID,
		&s.TotalPoints,
		&s.TotalReports,
		&badges,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.ReportsWithImages,
		&byType,
		&lastRep,
		&s.Rank,
		&s.Version,
		&s.UpdatedAt,
	)
	if err != nil {
		return s, err
	}

	s.BadgesEarned = make([]catalog.BadgeID, 0, len(badges))
	for _, b := range badges {
		s.BadgesEarned = append(s.BadgesEarned, catalog.BadgeID(b))
	}
	s.BadgesEarned = stats.NormalizeBadges(s.BadgesEarned)

	s.ReportsByWasteType = make(map[report.WasteType]int, len(byType))
	for k, v := range byType {
		s.ReportsByWasteType[report.WasteType(k)] = v
	}
	if lastRep != nil {
		t := lastRep.UTC()
		s.LastReportDate = &t
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func badgeStrings(ids []catalog.BadgeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range stats.NormalizeBadges(ids) {
		out = append(out, string(id))
	}
	return out
}

func wasteCounts(m map[report.WasteType]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
