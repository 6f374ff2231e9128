package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/intake"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

// Metrics receives report pipeline events. Optional.
type Metrics interface {
	ReportGenerated(isJSON bool)
	ReportPersisted(ok bool)
}

// Service implements the report use-cases. Repo and Cache are optional:
// without a Repo reports are generated but never stored.
type Service struct {
	Assistant assistant.Client
	Repo      domain.Repository
	Cache     domain.Cache
	Clock     application.Clock
	Metrics   Metrics
	Log       *zap.Logger
	NewID     func() string
}

//
// ==== USE CASES ====
//

// GenerateCommand carries one intake submission.
type GenerateCommand struct {
	Input    string
	FormData json.RawMessage
}

// GenerateResult is the response payload of a generation.
type GenerateResult struct {
	Response       string     `json:"response"`
	ResponseID     *domain.ID `json:"response_id"`
	IsJSON         bool       `json:"is_json"`
	ParsedResponse any        `json:"parsed_response"`
}

// Generate kirim input ke assistant → parse → simpan (best effort)
func (s *Service) Generate(ctx context.Context, cmd GenerateCommand) (GenerateResult, error) {
	input, err := intake.ExtractInput(cmd.Input, cmd.FormData)
	if err != nil {
		return GenerateResult{}, err
	}
	form := intake.DecodeForm(cmd.FormData)
	s.log().Info("generating report",
		zap.Int("input_bytes", len(input)),
		zap.Bool("form", len(cmd.FormData) > 0),
		zap.Bool("movement_assessment", form.HasMovementAssessment()),
	)

	text, err := s.Assistant.Complete(ctx, input)
	if err != nil {
		return GenerateResult{}, err
	}

	value, isJSON := domain.ParseResponse(text)
	if s.Metrics != nil {
		s.Metrics.ReportGenerated(isJSON)
	}

	var id *domain.ID
	if isJSON && domain.IsReport(value) {
		doc := value.(map[string]any)
		if len(cmd.FormData) > 0 {
			domain.MergeContact(doc, form.Contact)
		}
		id = s.persist(ctx, doc)
	}

	res := GenerateResult{
		Response:   text,
		ResponseID: id,
		IsJSON:     isJSON,
	}
	if isJSON {
		pretty, err := prettyJSON(value)
		if err != nil {
			return GenerateResult{}, fmt.Errorf("encode response: %w", err)
		}
		res.Response = pretty
		res.ParsedResponse = value
	}
	return res, nil
}

// persist stores the report. Failures are logged and swallowed so the caller
// still gets the generated report.
func (s *Service) persist(ctx context.Context, doc map[string]any) *domain.ID {
	if s.Repo == nil {
		return nil
	}
	r := domain.New(domain.ID(s.newID()), doc, s.now())
	if err := s.Repo.Insert(ctx, r); err != nil {
		s.log().Error("report save failed", zap.String("report_id", string(r.ID)), zap.Error(err))
		if s.Metrics != nil {
			s.Metrics.ReportPersisted(false)
		}
		return nil
	}
	if s.Metrics != nil {
		s.Metrics.ReportPersisted(true)
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, r); err != nil {
			s.log().Warn("report cache set failed", zap.String("report_id", string(r.ID)), zap.Error(err))
		}
	}
	return &r.ID
}

// Get ambil 1 report by id, lewat cache dulu
func (s *Service) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	if s.Cache != nil {
		r, err := s.Cache.Get(ctx, id)
		if err != nil {
			s.log().Warn("report cache get failed", zap.String("report_id", string(id)), zap.Error(err))
		} else if r != nil {
			return r, nil
		}
	}
	if s.Repo == nil {
		return nil, domain.ErrNotFound
	}
	r, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, r); err != nil {
			s.log().Warn("report cache set failed", zap.String("report_id", string(id)), zap.Error(err))
		}
	}
	return r, nil
}

// List returns a page of report summaries, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]domain.Summary, error) {
	if s.Repo == nil {
		return []domain.Summary{}, nil
	}
	page, pageSize = domain.NormalizePage(page, pageSize)
	list, err := s.Repo.Paginate(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(list))
	for _, r := range list {
		out = append(out, r.Summary())
	}
	return out, nil
}

// IsValidation reports whether err is a client input problem.
func IsValidation(err error) bool {
	return errors.Is(err, intake.ErrMissingInput)
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
