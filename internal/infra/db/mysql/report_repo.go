package mysql

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Insert simpan report baru (insert-only)
func (r *ReportRepository) Insert(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO diagnostic_reports
(id, report_type, schema_version, body, created_at, updated_at)
VALUES (?,?,?,?,?,?);
`
	body, err := encodeBody(rep)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		rep.ID, rep.ReportType, rep.SchemaVersion, body, rep.CreatedAt, rep.UpdatedAt,
	)
	return err
}

// Get by ID
func (r *ReportRepository) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	const q = `
SELECT id, report_type, schema_version, body, created_at, updated_at
FROM diagnostic_reports
WHERE id=? LIMIT 1;
`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rep, err
}

// Paginate with offset + limit, newest first
func (r *ReportRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Report, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	const q = `
SELECT id, report_type, schema_version, body, created_at, updated_at
FROM diagnostic_reports
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
