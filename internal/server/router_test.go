package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docextract/internal/api/handlers"
	"github.com/cloo-solutions/docextract/internal/api/middleware"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/extraction"
	"github.com/cloo-solutions/docextract/internal/openai"
	"github.com/cloo-solutions/docextract/internal/service"
)

// stubCompleter answers every prompt with the same model output
type stubCompleter struct {
	content string
}

func (s stubCompleter) Complete(ctx context.Context, messages []openai.Message, temperature float32) (string, error) {
	return s.content, nil
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Submit(ctx context.Context, input service.SubmitInput) (*domain.ExtractionJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionJob), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionJob), args.Error(1)
}

func (m *MockJobService) List(ctx context.Context, input service.ListJobsInput) (*service.ListJobsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListJobsOutput), args.Error(1)
}

func (m *MockJobService) Result(ctx context.Context, id string) (*service.JobResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.JobResult), args.Error(1)
}

func (m *MockJobService) CreateUpload(ctx context.Context, filename, contentType string) (*service.UploadTarget, error) {
	args := m.Called(ctx, filename, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadTarget), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires the real pipeline over a stub model
func newTestRouter(t *testing.T, keys []string, jobs handlers.JobService) http.Handler {
	t.Helper()

	completer := stubCompleter{content: `[{"primary_name": "Alice Smith", "entity_type": "person", "confidence_score": 0.9}]`}
	client := extraction.NewClient(completer, discardLogger())
	orchestrator := extraction.NewOrchestrator(client, extraction.NewGate(2), extraction.WithLogger(discardLogger()))
	docs := service.NewDocumentService(orchestrator, nil, "").WithLogger(discardLogger())

	cfg := RouterConfig{
		APIKeys:           middleware.NewStaticKeys(keys),
		Logger:            discardLogger(),
		ExtractionHandler: handlers.NewExtractionHandler(docs),
		RunHandler:        handlers.NewRunHandler(docs),
	}
	if jobs != nil {
		cfg.JobHandler = handlers.NewJobHandler(jobs)
	}
	return NewRouter(cfg)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, []string{"secret"}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	router := newTestRouter(t, []string{"secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/extractions", strings.NewReader(`{"text":"Alice Smith is the CEO."}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ExtractEndToEnd(t *testing.T) {
	router := newTestRouter(t, []string{"secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/extractions",
		strings.NewReader(`{"text":"- Alice Smith is the CEO.\n- Beta Corp is a subsidiary.","document_name":"report.txt"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Run      handlers.RunResponse     `json:"run"`
			Entities []domain.ExtractedEntity `json:"entities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Data.Run.ChunkCount)
	require.Len(t, resp.Data.Entities, 2)
	assert.Equal(t, "Alice Smith is the CEO.", resp.Data.Entities[0].RawSourceText)
	assert.Equal(t, "Beta Corp is a subsidiary.", resp.Data.Entities[1].RawSourceText)
	assert.Equal(t, domain.EntityTypeIndividual, resp.Data.Entities[0].EntityType)
	assert.Equal(t, "report.txt", resp.Data.Entities[0].Metadata.SourceDocumentName)
	_, err := time.Parse(time.RFC3339, resp.Data.Entities[0].Metadata.ExtractionDate)
	assert.NoError(t, err)
}

func TestRouter_RunsWithoutPersistence(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_JobRoutesOnlyWithJobService(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	jobs := new(MockJobService)
	jobs.On("Get", mock.Anything, "job-1").Return(&domain.ExtractionJob{
		ID:     "job-1",
		Status: domain.ExtractionJobStatusPending,
		Mode:   domain.ExtractionModeChunked,
	}, nil)
	router = newTestRouter(t, nil, jobs)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestRouter_RejectsOversizedBody(t *testing.T) {
	cfg := RouterConfig{
		MaxBodyBytes:      16,
		Logger:            discardLogger(),
		ExtractionHandler: handlers.NewExtractionHandler(service.NewDocumentService(nil, nil, "")),
		RunHandler:        handlers.NewRunHandler(service.NewDocumentService(nil, nil, "")),
	}
	router := NewRouter(cfg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/segments", strings.NewReader(`{"text":"`+strings.Repeat("x", 64)+`"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
