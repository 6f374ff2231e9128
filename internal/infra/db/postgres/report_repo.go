package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Insert stores a new report; body goes to a JSONB column
func (r *ReportRepository) Insert(ctx context.Context, rep *domain.Report) error {
	const q = `
INSERT INTO diagnostic_reports
  (id, report_type, schema_version, body, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6);
`
	body := "{}"
	if len(rep.Document) > 0 {
		b, err := json.Marshal(rep.Document)
		if err != nil {
			return fmt.Errorf("encode report body: %w", err)
		}
		body = string(b)
	}
	_, err := r.db.ExecContext(ctx, q,
		string(rep.ID), rep.ReportType, rep.SchemaVersion, body, rep.CreatedAt, rep.UpdatedAt,
	)
	return err
}

// Get returns one report or ErrNotFound
func (r *ReportRepository) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	const q = `
SELECT id, report_type, schema_version, body, created_at, updated_at
FROM diagnostic_reports
WHERE id=$1;
`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rep, err
}

// Paginate returns a page of reports ordered by created_at desc
func (r *ReportRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.Report, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	const q = `
SELECT id, report_type, schema_version, body, created_at, updated_at
FROM diagnostic_reports
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
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

func scanReport(s interface{ Scan(...any) error }) (*domain.Report, error) {
	var (
		r                domain.Report
		id               string
		body             []byte
		created, updated time.Time
	)
	if err := s.Scan(&id, &r.ReportType, &r.SchemaVersion, &body, &created, &updated); err != nil {
		return nil, err
	}
	doc, err := domain.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	r.ID = domain.ID(id)
	r.Document = doc
	r.CreatedAt = created.UTC()
	r.UpdatedAt = updated.UTC()
	return &r, nil
}
