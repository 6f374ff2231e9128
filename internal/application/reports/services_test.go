package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/kinetic-intake/internal/application"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/intake"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

type fakeAssistant struct {
	reply string
	err   error
	input string
}

func (f *fakeAssistant) Complete(_ context.Context, input string) (string, error) {
	f.input = input
	return f.reply, f.err
}

type memRepo struct {
	saved     []*domain.Report
	insertErr error
}

func (m *memRepo) Insert(_ context.Context, r *domain.Report) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memRepo) Get(_ context.Context, id domain.ID) (*domain.Report, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Paginate(_ context.Context, page, pageSize int) ([]*domain.Report, error) {
	return m.saved, nil
}

type memCache struct {
	items map[domain.ID]*domain.Report
	gets  int
}

func (c *memCache) Get(_ context.Context, id domain.ID) (*domain.Report, error) {
	c.gets++
	return c.items[id], nil
}

func (c *memCache) Set(_ context.Context, r *domain.Report) error {
	if c.items == nil {
		c.items = map[domain.ID]*domain.Report{}
	}
	c.items[r.ID] = r
	return nil
}

type countingMetrics struct {
	generated, json, persisted, failed int
}

func (m *countingMetrics) ReportGenerated(isJSON bool) {
	m.generated++
	if isJSON {
		m.json++
	}
}

func (m *countingMetrics) ReportPersisted(ok bool) {
	if ok {
		m.persisted++
	} else {
		m.failed++
	}
}

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newService(a assistant.Client, repo domain.Repository) *Service {
	return &Service{
		Assistant: a,
		Repo:      repo,
		Clock:     application.FixedClock{T: testNow},
		NewID:     func() string { return "rep-1" },
	}
}

const formJSON = `{"name":"Ada Lovelace","email":"ada@example.com","phoneNumber":"555-0100","age":"41"}`

func TestGenerateStoresReportWithContact(t *testing.T) {
	ai := &fakeAssistant{reply: `{"schema_version":"1.0","report_type":"general_mobility_kinetic_chain","personal_snapshot":{"age":"41"}}`}
	repo := &memRepo{}
	metrics := &countingMetrics{}
	svc := newService(ai, repo)
	svc.Metrics = metrics

	res, err := svc.Generate(context.Background(), GenerateCommand{FormData: json.RawMessage(formJSON)})
	require.NoError(t, err)

	assert.True(t, res.IsJSON)
	require.NotNil(t, res.ResponseID)
	assert.Equal(t, domain.ID("rep-1"), *res.ResponseID)
	assert.Contains(t, ai.input, "\n  \"name\": \"Ada Lovelace\"")

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Equal(t, "general_mobility_kinetic_chain", saved.ReportType)
	assert.Equal(t, testNow, saved.CreatedAt)
	snap := saved.Document["personal_snapshot"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", snap["name"])
	assert.Equal(t, "ada@example.com", snap["email"])
	assert.Equal(t, "555-0100", snap["phoneNumber"])
	assert.Equal(t, "41", snap["age"])

	assert.Contains(t, res.Response, "\n  \"personal_snapshot\": {")
	assert.Equal(t, saved.Document, res.ParsedResponse)
	assert.Equal(t, 1, metrics.persisted)
	assert.Equal(t, 1, metrics.json)
}

func TestGenerateTextReply(t *testing.T) {
	ai := &fakeAssistant{reply: "I need more detail about your discomfort."}
	repo := &memRepo{}
	svc := newService(ai, repo)

	res, err := svc.Generate(context.Background(), GenerateCommand{Input: "  hello  "})
	require.NoError(t, err)

	assert.Equal(t, "hello", ai.input)
	assert.False(t, res.IsJSON)
	assert.Equal(t, "I need more detail about your discomfort.", res.Response)
	assert.Nil(t, res.ParsedResponse)
	assert.Nil(t, res.ResponseID)
	assert.Empty(t, repo.saved)
}

func TestGenerateJSONWithoutMarkerIsNotStored(t *testing.T) {
	ai := &fakeAssistant{reply: `{"summary":"<b>ok</b>"}`}
	repo := &memRepo{}
	svc := newService(ai, repo)

	res, err := svc.Generate(context.Background(), GenerateCommand{Input: "x"})
	require.NoError(t, err)

	assert.True(t, res.IsJSON)
	assert.Nil(t, res.ResponseID)
	assert.Equal(t, "{\n  \"summary\": \"<b>ok</b>\"\n}", res.Response)
	assert.Empty(t, repo.saved)
}

func TestGenerateTimeoutStoresNothing(t *testing.T) {
	ai := &fakeAssistant{err: assistant.ErrRunTimeout}
	repo := &memRepo{}
	svc := newService(ai, repo)

	_, err := svc.Generate(context.Background(), GenerateCommand{FormData: json.RawMessage(formJSON)})
	assert.ErrorIs(t, err, assistant.ErrRunTimeout)
	assert.Empty(t, repo.saved)
}

func TestGeneratePersistFailureIsSwallowed(t *testing.T) {
	ai := &fakeAssistant{reply: `{"report_type":"x"}`}
	metrics := &countingMetrics{}
	svc := newService(ai, &memRepo{insertErr: errors.New("connection refused")})
	svc.Metrics = metrics

	res, err := svc.Generate(context.Background(), GenerateCommand{Input: "x"})
	require.NoError(t, err)
	assert.True(t, res.IsJSON)
	assert.Nil(t, res.ResponseID)
	assert.Equal(t, 1, metrics.failed)
}

func TestGenerateWithoutRepository(t *testing.T) {
	svc := newService(&fakeAssistant{reply: `{"report_type":"x"}`}, nil)

	res, err := svc.Generate(context.Background(), GenerateCommand{Input: "x"})
	require.NoError(t, err)
	assert.Nil(t, res.ResponseID)
}

func TestGenerateMissingInput(t *testing.T) {
	ai := &fakeAssistant{}
	svc := newService(ai, &memRepo{})

	_, err := svc.Generate(context.Background(), GenerateCommand{FormData: json.RawMessage("null")})
	assert.ErrorIs(t, err, intake.ErrMissingInput)
	assert.True(t, IsValidation(err))
	assert.Empty(t, ai.input)
}

func TestGetUsesCache(t *testing.T) {
	repo := &memRepo{}
	cache := &memCache{}
	svc := newService(&fakeAssistant{reply: `{"report_type":"x"}`}, repo)
	svc.Cache = cache

	res, err := svc.Generate(context.Background(), GenerateCommand{Input: "x"})
	require.NoError(t, err)
	require.NotNil(t, res.ResponseID)

	repo.saved = nil // only the cache can answer now
	got, err := svc.Get(context.Background(), *res.ResponseID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ReportType)
	assert.Equal(t, 1, cache.gets)
}

func TestGetFallsBackToRepository(t *testing.T) {
	r := domain.New("rep-9", map[string]any{"report_type": "x"}, testNow)
	repo := &memRepo{saved: []*domain.Report{r}}
	cache := &memCache{}
	svc := newService(nil, repo)
	svc.Cache = cache

	got, err := svc.Get(context.Background(), "rep-9")
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.Same(t, r, cache.items["rep-9"])

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList(t *testing.T) {
	r := domain.New("rep-1", map[string]any{
		"report_type":       "x",
		"personal_snapshot": map[string]any{"name": "Ada"},
	}, testNow)
	svc := newService(nil, &memRepo{saved: []*domain.Report{r}})

	list, err := svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)

	svc.Repo = nil
	list, err = svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
