package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

const (
	defaultSubject = "Your Hydrawav3 Diagnostic Report"
	pdfContentType = "application/pdf"
)

// Metrics receives delivery events. Optional.
type Metrics interface {
	PDFRendered(ok bool)
	EmailSent(ok bool)
}

// Service renders reports to PDF and emails them. Mailer is nil when SMTP is
// not configured; Archive is optional.
type Service struct {
	Page     domain.ReportPage
	Renderer domain.Renderer
	Composer domain.Composer
	Mailer   domain.Mailer
	Archive  domain.ArtifactStore
	Clock    application.Clock
	Metrics  Metrics
	Log      *zap.Logger
}

// PDF is a rendered report.
type PDF struct {
	Filename   string
	Content    []byte
	ArchiveURL string
}

// RenderPDF bangun HTML → render lewat headless browser → archive (best effort)
func (s *Service) RenderPDF(ctx context.Context, report any) (PDF, error) {
	if !reports.Truthy(report) {
		return PDF{}, domain.ErrReportRequired
	}
	pdf, err := s.render(ctx, report)
	if err != nil {
		return PDF{}, err
	}

	if s.Archive != nil {
		key := fmt.Sprintf("reports/%s/%s.pdf", s.now().Format("2006/01/02"), uuid.NewString())
		url, err := s.Archive.PutBytes(ctx, key, pdfContentType, pdf.Content)
		if err != nil {
			s.log().Warn("pdf archive failed", zap.String("key", key), zap.Error(err))
		} else {
			pdf.ArchiveURL = url
		}
	}
	return pdf, nil
}

// SendEmailCommand carries one email request.
type SendEmailCommand struct {
	To      string
	Subject string
	Message string
	Report  any
}

// SendEmail render PDF lalu kirim sebagai lampiran email
func (s *Service) SendEmail(ctx context.Context, cmd SendEmailCommand) (string, error) {
	if !strings.Contains(cmd.To, "@") {
		return "", domain.ErrInvalidRecipient
	}
	if !reports.Truthy(cmd.Report) {
		return "", domain.ErrReportRequired
	}
	if s.Mailer == nil {
		return "", domain.ErrSMTPNotConfigured
	}

	pdf, err := s.render(ctx, cmd.Report)
	if err != nil {
		return "", err
	}

	html, text, err := s.Composer.Compose(RecipientName(cmd.Report), cmd.Message)
	if err != nil {
		return "", fmt.Errorf("compose email: %w", err)
	}
	subject := cmd.Subject
	if subject == "" {
		subject = defaultSubject
	}

	id, err := s.Mailer.Send(ctx, domain.Email{
		To:      cmd.To,
		Subject: subject,
		Text:    text,
		HTML:    html,
		Attachments: []domain.Attachment{{
			Filename:    pdf.Filename,
			ContentType: pdfContentType,
			Content:     pdf.Content,
		}},
	})
	if s.Metrics != nil {
		s.Metrics.EmailSent(err == nil)
	}
	if err != nil {
		return "", err
	}
	s.log().Info("report email sent", zap.String("message_id", id))
	return id, nil
}

func (s *Service) render(ctx context.Context, report any) (PDF, error) {
	doc, _ := report.(map[string]any)
	if doc == nil {
		doc = map[string]any{}
	}
	html, err := s.Page.Build(doc)
	if err != nil {
		return PDF{}, fmt.Errorf("build report page: %w", err)
	}
	content, err := s.Renderer.Render(ctx, html)
	if s.Metrics != nil {
		s.Metrics.PDFRendered(err == nil)
	}
	if err != nil {
		return PDF{}, err
	}
	return PDF{Filename: Filename(s.now()), Content: content}, nil
}

// Filename is the attachment name for a report rendered at t.
func Filename(t time.Time) string {
	return "Hydrawav3_Report_" + t.Format("2006-01-02") + ".pdf"
}

// RecipientName is the first word of personal_snapshot.name, or "there".
func RecipientName(report any) string {
	doc, _ := report.(map[string]any)
	snap, _ := doc[reports.FieldPersonalSnapshot].(map[string]any)
	name, _ := snap["name"].(string)
	if first, _, _ := strings.Cut(strings.TrimSpace(name), " "); first != "" {
		return first
	}
	return "there"
}

// IsValidation reports whether err is a client input problem.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrReportRequired) || errors.Is(err, domain.ErrInvalidRecipient)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
