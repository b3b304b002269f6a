//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docextract/internal/api/handlers"
	"github.com/cloo-solutions/docextract/internal/api/middleware"
	"github.com/cloo-solutions/docextract/internal/extraction"
	"github.com/cloo-solutions/docextract/internal/jobs"
	"github.com/cloo-solutions/docextract/internal/openai"
	"github.com/cloo-solutions/docextract/internal/repository"
	"github.com/cloo-solutions/docextract/internal/server"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/cloo-solutions/docextract/internal/storage"
	"github.com/cloo-solutions/docextract/internal/testutil"
	"github.com/cloo-solutions/docextract/internal/text"
)

const (
	e2eAPIKey = "e2e-secret"
	e2eBucket = "docextract-e2e"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	S3Client   *storage.S3Client
	Model      *httptest.Server
	ModelCalls *atomic.Int64
	Server     *httptest.Server
	Worker     *jobs.ExtractionWorker
	BinaryDir  string
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres, RustFS and a scripted model, and serves the
// full API over them
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	s3Client := s3C.NewS3Client(ctx, t, e2eBucket)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.Model, env.ModelCalls = newScriptedModel()
	env.startServer()

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Model != nil {
		e.Model.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// newScriptedModel answers chat completions with one Individual record named
// after the chunk it was sent
func newScriptedModel() (*httptest.Server, *atomic.Int64) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		name := "Unknown Person"
		if n := len(req.Messages); n > 0 {
			name = firstName(req.Messages[n-1].Content)
		}

		reply, _ := json.Marshal(fmt.Sprintf(`[{"primary_name": %q, "entity_type": "person", "confidence_score": 0.8}]`, name))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cmpl-e2e","object":"chat.completion","created":0,"model":"e2e",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, reply)
	}))
	return srv, &calls
}

// firstName returns the first "Alice Smith"-style word pair in a chunk
func firstName(chunk string) string {
	words := strings.Fields(chunk)
	for i := 0; i+1 < len(words); i++ {
		a, b := strings.Trim(words[i], ".,:;\""), strings.Trim(words[i+1], ".,:;\"")
		if isCapitalised(a) && isCapitalised(b) {
			return a + " " + b
		}
	}
	return "Unknown Person"
}

func isCapitalised(w string) bool {
	return len(w) > 1 && w[0] >= 'A' && w[0] <= 'Z' && strings.ToLower(w[1:]) == w[1:]
}

func (e *E2ETestEnv) startServer() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	model := openai.NewClientWithConfig(openai.Config{BaseURL: e.Model.URL, APIKey: "e2e", Model: "e2e"})
	orchestrator := extraction.NewOrchestrator(
		extraction.NewClient(model, logger),
		extraction.NewGate(4),
		extraction.WithLogger(logger),
	)

	docs := service.NewDocumentService(orchestrator, text.NewChunker(text.DefaultMaxChunkWords), "").
		WithLogger(logger).
		WithPersistence(
			repository.NewTxRunner(e.Pool),
			repository.NewRunRepository(e.Pool),
			repository.NewEntityRepository(e.Pool),
		)
	jobRepo := repository.NewJobRepository(e.Pool)

	e.Worker = jobs.NewExtractionWorker(jobRepo, docs, e.S3Client, jobs.DefaultBatchSize, logger)

	router := server.NewRouter(server.RouterConfig{
		APIKeys:           middleware.NewStaticKeys([]string{e2eAPIKey}),
		Logger:            logger,
		ExtractionHandler: handlers.NewExtractionHandler(docs),
		RunHandler:        handlers.NewRunHandler(docs),
		JobHandler:        handlers.NewJobHandler(service.NewJobService(jobRepo, docs, e.S3Client)),
	})
	e.Server = httptest.NewServer(router)
}

// DrainJobs runs the worker until no pending jobs remain
func (e *E2ETestEnv) DrainJobs() {
	for i := 0; i < 10; i++ {
		var pending int
		err := e.Pool.QueryRow(e.Ctx, `SELECT count(*) FROM extraction_jobs WHERE status = 'pending'`).Scan(&pending)
		if err != nil {
			e.T.Fatalf("failed to count pending jobs: %v", err)
		}
		if pending == 0 {
			return
		}
		if err := e.Worker.ProcessJobs(e.Ctx); err != nil {
			e.T.Fatalf("worker failed: %v", err)
		}
	}
	e.T.Fatalf("jobs still pending after draining")
}

// BuildBinaries builds the docextract and docextractd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "docextract-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"docextract", "docextractd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the docextract CLI against the test server and model
func (e *E2ETestEnv) RunCLI(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "docextract"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"DOCEXTRACT_API_KEY="+e2eAPIKey,
		"DOCEXTRACT_API_URL="+e.Server.URL,
		"DOCEXTRACT_MODEL_BASE_URL="+e.Model.URL,
		"DOCEXTRACT_LOG_LEVEL=error",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	Status int
	Body   APIResponse
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body.Error)
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body any, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: apiResp}
	}

	return &apiResp, nil
}

// Decode unmarshals the data field of resp into v
func Decode[T any](t *testing.T, resp *APIResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatalf("failed to decode response data: %v", err)
	}
	return v
}

// UploadFile uploads content to a presigned URL
func (e *E2ETestEnv) UploadFile(uploadURL string, content []byte, contentType string) error {
	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPut, uploadURL, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// DownloadFile downloads a presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
