package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

type scanner interface {
	Scan(dest ...any) error
}

// encodeBody serializes the report document, "{}" when empty
func encodeBody(r *domain.Report) ([]byte, error) {
	if len(r.Document) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(r.Document)
	if err != nil {
		return nil, fmt.Errorf("encode report body: %w", err)
	}
	return b, nil
}

func scanReport(s scanner) (*domain.Report, error) {
	var (
		r                domain.Report
		body             []byte
		created, updated time.Time
	)
	if err := s.Scan(&r.ID, &r.ReportType, &r.SchemaVersion, &body, &created, &updated); err != nil {
		return nil, err
	}
	doc, err := domain.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", r.ID, err)
	}
	r.Document = doc
	r.CreatedAt = created.UTC()
	r.UpdatedAt = updated.UTC()
	return &r, nil
}
