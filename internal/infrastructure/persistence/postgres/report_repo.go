package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carboniq/carboniq-rewards/internal/domain/report"
	"github.com/carboniq/carboniq-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ReportRepository implements report.Repository.
type ReportRepository struct {
	conn *Connection
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection) *ReportRepository {
	return &ReportRepository{conn: conn}
}

const reportColumns = `id, created_by, image_url, measure_height_cm, measure_width_cm,
	feedback, waste_type, safe, urban_area, reported_at`

// Save inserts the report. An existing id is left untouched and checked
// for its owner.
func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`,
		rep.ID,
		rep.CreatedBy,
		rep.ImageURL,
		rep.MeasureHeightCm,
		rep.MeasureWidthCm,
		rep.Feedback,
		string(rep.WasteType),
		rep.Safe,
		rep.UrbanArea,
		rep.Timestamp.UTC(),
	)
	if err != nil {
		return classify("report", "Save", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var owner string
	if err := r.conn.QueryRow(ctx, `SELECT created_by FROM reports WHERE id = $1`, rep.ID).Scan(&owner); err != nil {
		return classify("report", "Save", err)
	}
	if owner != rep.CreatedBy {
		return shared.ErrReportOwnerConflict
	}
	return nil
}

// ListByUser returns the user's reports, newest first.
func (r *ReportRepository) ListByUser(ctx context.Context, userID string) ([]report.Report, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE created_by = $1
		ORDER BY reported_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, classify("report", "ListByUser", err)
	}

	out, err := pgx.CollectRows(rows, scanReport)
	if err != nil {
		return nil, classify("report", "ListByUser", err)
	}
	return out, nil
}

// Count counts the user's reports at or after since matching pred.
func (r *ReportRepository) Count(ctx context.Context, userID string, since time.Time, pred report.Predicate) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT count(*)
		FROM reports
		WHERE created_by = $1
		  AND ($2::timestamptz IS NULL OR reported_at >= $2)
		  AND `+predicateSQL(pred),
		userID, nullableTime(since),
	).Scan(&n)
	if err != nil {
		return 0, classify("report", "Count", err)
	}
	return n, nil
}

// predicateSQL renders a predicate as a boolean SQL expression over reports.
// It mirrors report.Predicate.Matches.
func predicateSQL(p report.Predicate) string {
	switch p {
	case report.PredicateSafe:
		return "safe"
	case report.PredicateUrban:
		return "urban_area"
	case report.PredicateRural:
		return "NOT urban_area"
	case report.PredicateDetailed:
		return "(measure_height_cm > 0 AND measure_width_cm > 0 AND btrim(feedback) <> '')"
	case report.PredicateWithImage:
		return "btrim(image_url) <> ''"
	default:
		return "TRUE"
	}
}

func scanReport(row pgx.CollectableRow) (report.Report, error) {
	var (
		rep       report.Report
		wasteType string
	)
	err := row.Scan(
		&rep.ID,
		&rep.CreatedBy,
		&rep.ImageURL,
		&rep.MeasureHeightCm,
		&rep.MeasureWidthCm,
		&rep.Feedback,
		&wasteType,
		&rep.Safe,
		&rep.UrbanArea,
		&rep.Timestamp,
	)
	rep.WasteType = report.WasteType(wasteType)
	rep.Timestamp = rep.Timestamp.UTC()
	return rep, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
