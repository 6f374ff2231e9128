package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
)

type stubPage struct{ got map[string]any }

func (p *stubPage) Build(report map[string]any) (string, error) {
	p.got = report
	return "<html>report</html>", nil
}

type stubRenderer struct {
	html  string
	calls int
	err   error
}

func (r *stubRenderer) Render(_ context.Context, html string) ([]byte, error) {
	r.calls++
	r.html = html
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7"), nil
}

type stubComposer struct{ name, message string }

func (c *stubComposer) Compose(name, message string) (string, string, error) {
	c.name, c.message = name, message
	return "<p>Dear " + name + "</p>", "Dear " + name, nil
}

type stubMailer struct {
	sent []domain.Email
	err  error
}

func (m *stubMailer) Send(_ context.Context, e domain.Email) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, e)
	return "<msg-1@hydrawav3>", nil
}

type stubArchive struct {
	key string
	err error
}

func (a *stubArchive) PutBytes(_ context.Context, key, _ string, _ []byte) (string, error) {
	a.key = key
	if a.err != nil {
		return "", a.err
	}
	return "http://minio/reports/" + key, nil
}

var testNow = time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

func newService() (*Service, *stubRenderer, *stubMailer, *stubComposer) {
	r := &stubRenderer{}
	m := &stubMailer{}
	c := &stubComposer{}
	return &Service{
		Page:     &stubPage{},
		Renderer: r,
		Composer: c,
		Mailer:   m,
		Clock:    application.FixedClock{T: testNow},
	}, r, m, c
}

var sampleReport = map[string]any{
	"report_type":       "general_mobility_kinetic_chain",
	"personal_snapshot": map[string]any{"name": "Ada Lovelace"},
}

func TestRenderPDF(t *testing.T) {
	svc, r, _, _ := newService()

	pdf, err := svc.RenderPDF(context.Background(), sampleReport)
	require.NoError(t, err)

	assert.Equal(t, "Hydrawav3_Report_2026-10-18.pdf", pdf.Filename)
	assert.Equal(t, []byte("%PDF-1.7"), pdf.Content)
	assert.Equal(t, "<html>report</html>", r.html)
	assert.Empty(t, pdf.ArchiveURL)
}

func TestRenderPDFRequiresReport(t *testing.T) {
	for _, report := range []any{nil, false, ""} {
		svc, r, _, _ := newService()
		_, err := svc.RenderPDF(context.Background(), report)
		assert.ErrorIs(t, err, domain.ErrReportRequired)
		assert.True(t, IsValidation(err))
		assert.Zero(t, r.calls)
	}
}

func TestRenderPDFNonObjectReportUsesEmptyDocument(t *testing.T) {
	svc, _, _, _ := newService()
	page := &stubPage{}
	svc.Page = page

	_, err := svc.RenderPDF(context.Background(), "plain text report")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, page.got)
}

func TestRenderPDFArchives(t *testing.T) {
	svc, _, _, _ := newService()
	archive := &stubArchive{}
	svc.Archive = archive

	pdf, err := svc.RenderPDF(context.Background(), sampleReport)
	require.NoError(t, err)
	assert.Regexp(t, `^reports/2026/10/18/[0-9a-f-]{36}\.pdf$`, archive.key)
	assert.Equal(t, "http://minio/reports/"+archive.key, pdf.ArchiveURL)

	archive.err = errors.New("bucket gone")
	pdf, err = svc.RenderPDF(context.Background(), sampleReport)
	require.NoError(t, err)
	assert.Empty(t, pdf.ArchiveURL)
}

func TestRenderPDFRendererError(t *testing.T) {
	svc, r, _, _ := newService()
	r.err = errors.New("chrome crashed")

	_, err := svc.RenderPDF(context.Background(), sampleReport)
	assert.EqualError(t, err, "chrome crashed")
	assert.False(t, IsValidation(err))
}

func TestSendEmail(t *testing.T) {
	svc, _, m, c := newService()

	id, err := svc.SendEmail(context.Background(), SendEmailCommand{
		To:      "ada@example.com",
		Message: "See attached.",
		Report:  sampleReport,
	})
	require.NoError(t, err)

	assert.Equal(t, "<msg-1@hydrawav3>", id)
	assert.Equal(t, "Ada", c.name)
	assert.Equal(t, "See attached.", c.message)
	require.Len(t, m.sent, 1)
	e := m.sent[0]
	assert.Equal(t, "ada@example.com", e.To)
	assert.Equal(t, defaultSubject, e.Subject)
	assert.Equal(t, "Dear Ada", e.Text)
	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "Hydrawav3_Report_2026-10-18.pdf", e.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", e.Attachments[0].ContentType)
}

func TestSendEmailValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  SendEmailCommand
		want error
	}{
		{"missing recipient", SendEmailCommand{Report: sampleReport}, domain.ErrInvalidRecipient},
		{"bad recipient", SendEmailCommand{To: "ada.example.com", Report: sampleReport}, domain.ErrInvalidRecipient},
		{"missing report", SendEmailCommand{To: "ada@example.com"}, domain.ErrReportRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r, m, _ := newService()
			_, err := svc.SendEmail(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
			assert.Zero(t, r.calls)
			assert.Empty(t, m.sent)
		})
	}
}

func TestSendEmailWithoutSMTP(t *testing.T) {
	svc, r, _, _ := newService()
	svc.Mailer = nil

	_, err := svc.SendEmail(context.Background(), SendEmailCommand{To: "ada@example.com", Report: sampleReport})
	assert.ErrorIs(t, err, domain.ErrSMTPNotConfigured)
	assert.False(t, IsValidation(err))
	assert.Zero(t, r.calls)
}

func TestSendEmailRelayError(t *testing.T) {
	svc, _, m, _ := newService()
	m.err = errors.New("535 authentication failed")

	_, err := svc.SendEmail(context.Background(), SendEmailCommand{To: "ada@example.com", Subject: "Hi", Report: sampleReport})
	assert.EqualError(t, err, "535 authentication failed")
}

func TestRecipientName(t *testing.T) {
	assert.Equal(t, "Ada", RecipientName(sampleReport))
	assert.Equal(t, "there", RecipientName(map[string]any{}))
	assert.Equal(t, "there", RecipientName(map[string]any{"personal_snapshot": map[string]any{"name": 7}}))
	assert.Equal(t, "there", RecipientName("text"))
}
