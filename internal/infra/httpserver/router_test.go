package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	appdelivery "github.com/bryanwahyu/kinetic-intake/internal/application/delivery"
	appreports "github.com/bryanwahyu/kinetic-intake/internal/application/reports"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
	"github.com/bryanwahyu/kinetic-intake/internal/middleware"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

type fakeAssistant struct {
	reply string
	err   error
	input string
}

func (f *fakeAssistant) Complete(ctx context.Context, input string) (string, error) {
	f.input = input
	return f.reply, f.err
}

type memRepo struct {
	mu   sync.Mutex
	reps map[domain.ID]*domain.Report
}

func (m *memRepo) Insert(ctx context.Context, r *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reps[r.ID] = r
	return nil
}

func (m *memRepo) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) Paginate(ctx context.Context, page, size int) ([]*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Report
	for _, r := range m.reps {
		out = append(out, r)
	}
	return out, nil
}

type fakePage struct{}

func (fakePage) Build(report map[string]any) (string, error) { return "<html></html>", nil }

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

type fakeComposer struct{}

func (fakeComposer) Compose(name, msg string) (string, string, error) {
	return "<p>Dear " + name + "</p>", "Dear " + name, nil
}

type fakeMailer struct{ sent []delivery.Email }

func (f *fakeMailer) Send(ctx context.Context, e delivery.Email) (string, error) {
	f.sent = append(f.sent, e)
	return "<msg-1@test>", nil
}

type fixture struct {
	handler   http.Handler
	assistant *fakeAssistant
	repo      *memRepo
	mailer    *fakeMailer
}

func newFixture(t *testing.T, withMailer bool) *fixture {
	t.Helper()
	f := &fixture{
		assistant: &fakeAssistant{},
		repo:      &memRepo{reps: map[domain.ID]*domain.Report{}},
		mailer:    &fakeMailer{},
	}
	clock := application.FixedClock{T: now}
	reportsSvc := &appreports.Service{
		Assistant: f.assistant,
		Repo:      f.repo,
		Clock:     clock,
		NewID:     func() string { return "rep-1" },
	}
	deliverySvc := &appdelivery.Service{
		Page:     fakePage{},
		Renderer: fakeRenderer{},
		Composer: fakeComposer{},
		Clock:    clock,
	}
	if withMailer {
		deliverySvc.Mailer = f.mailer
	}
	f.handler = NewRouter(reportsSvc, deliverySvc, Options{Metrics: middleware.NewMetrics()})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestChatInfo(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/api/chat", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Hydrawav3 Assistant API running", body["message"])
	assert.NotEmpty(t, body["example"])
}

func TestChatGeneratesAndStoresReport(t *testing.T) {
	f := newFixture(t, false)
	f.assistant.reply = "```json\n{\"report_type\":\"general_mobility_kinetic_chain\",\"personal_snapshot\":{\"name\":\"Ada\"}}\n```"

	w := f.do(http.MethodPost, "/api/chat", `{"input":"Generate a general_mobility_kinetic_chain report"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Response generated successfully", body["message"])

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["is_json"])
	assert.Equal(t, "rep-1", data["response_id"])
	assert.Contains(t, f.repo.reps, domain.ID("rep-1"))
	assert.Equal(t, "Generate a general_mobility_kinetic_chain report", f.assistant.input)
}

func TestChatPlainText(t *testing.T) {
	f := newFixture(t, false)
	f.assistant.reply = "Sorry, I need more detail."

	w := f.do(http.MethodPost, "/api/chat", `{"input":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, false, data["is_json"])
	assert.Nil(t, data["response_id"])
	assert.Nil(t, data["parsed_response"])
	assert.Equal(t, "Sorry, I need more detail.", data["response"])
	assert.Empty(t, f.repo.reps)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing input", `{}`, nil, http.StatusBadRequest, "Missing input to send to AI"},
		{"blank input", `{"input":"   "}`, nil, http.StatusBadRequest, "Missing input to send to AI"},
		{"non-string input", `{"input":42}`, nil, http.StatusBadRequest, "Missing input to send to AI"},
		{"malformed json", `{"input":`, nil, http.StatusBadRequest, "Invalid JSON body"},
		{"empty body", ``, nil, http.StatusBadRequest, "Request body is required"},
		{"quota", `{"input":"hi"}`, assistant.ErrQuotaExceeded, http.StatusTooManyRequests, "AI quota exceeded"},
		{"run timeout", `{"input":"hi"}`, assistant.ErrRunTimeout, http.StatusInternalServerError, "Assistant run timed out"},
		{"run failed", `{"input":"hi"}`, &assistant.RunError{Status: "failed", Message: "boom"}, http.StatusInternalServerError, "Assistant run failed: boom"},
		{"upstream", `{"input":"hi"}`, errors.New("connection reset"), http.StatusInternalServerError, "connection reset"},
		{"provider error verbatim", `{"input":"hi"}`, &assistant.UpstreamError{Op: "retrieve run", Err: errors.New("Rate limit reached for requests")}, http.StatusInternalServerError, "Rate limit reached for requests"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.assistant.err = tt.err

			w := f.do(http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestGetReport(t *testing.T) {
	f := newFixture(t, false)
	f.repo.reps["rep-1"] = domain.New("rep-1", map[string]any{"report_type": "x"}, now)

	w := f.do(http.MethodGet, "/api/reports/rep-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "x", data["report_type"])

	w = f.do(http.MethodGet, "/api/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Report not found", decodeBody(t, w)["error"])

	w = f.do(http.MethodGet, "/api/reports/bad$id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports(t *testing.T) {
	f := newFixture(t, false)
	f.repo.reps["rep-1"] = domain.New("rep-1", map[string]any{"report_type": "x"}, now)

	w := f.do(http.MethodGet, "/api/reports?page=0&page_size=500", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(100), body["page_size"])
	assert.Len(t, body["data"], 1)
}

func TestGeneratePDF(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/reports/generate-pdf", `{"report":{"report_type":"x"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Hydrawav3_Report_2026-10-18.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestGeneratePDFMissingReport(t *testing.T) {
	for _, body := range []string{`{}`, `{"report":null}`, `{"report":""}`, `{"report":false}`} {
		f := newFixture(t, false)
		w := f.do(http.MethodPost, "/api/reports/generate-pdf", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Report data is required", decodeBody(t, w)["error"])
	}
}

func TestSendEmail(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(http.MethodPost, "/api/reports/send-email",
		`{"to":" ada@example.com ","subject":"Hello\r\nBcc: x@evil.test","report":{"personal_snapshot":{"name":"Ada Lovelace"}}}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "Email sent successfully", body["message"])
	assert.Equal(t, "<msg-1@test>", body["messageId"])

	require.Len(t, f.mailer.sent, 1)
	sent := f.mailer.sent[0]
	assert.Equal(t, "ada@example.com", sent.To)
	assert.NotContains(t, sent.Subject, "\n")
	assert.Equal(t, "Dear Ada", sent.Text)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "Hydrawav3_Report_2026-10-18.pdf", sent.Attachments[0].Filename)
}

func TestSendEmailErrors(t *testing.T) {
	tests := []struct {
		name   string
		mailer bool
		body   string
		status int
		msg    string
	}{
		{"no recipient", true, `{"report":{"a":1}}`, http.StatusBadRequest, "Valid recipient email is required"},
		{"bad recipient", true, `{"to":"ada","report":{"a":1}}`, http.StatusBadRequest, "Valid recipient email is required"},
		{"no report", true, `{"to":"ada@example.com"}`, http.StatusBadRequest, "Report data is required"},
		{"smtp missing", false, `{"to":"ada@example.com","report":{"a":1}}`, http.StatusInternalServerError, "SMTP configuration missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.mailer)
			w := f.do(http.MethodPost, "/api/reports/send-email", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeBody(t, w)["error"])
			assert.Empty(t, f.mailer.sent)
		})
	}
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = f.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestReadyRoute(t *testing.T) {
	handler := NewRouter(&appreports.Service{}, &appdelivery.Service{}, Options{
		Ready: map[string]middleware.HealthChecker{
			"database": middleware.CheckFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
