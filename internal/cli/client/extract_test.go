package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docextract/internal/config"
	"github.com/cloo-solutions/docextract/internal/domain"
)

// newModelServer serves OpenAI-style chat completions with a fixed reply
func newModelServer(t *testing.T, reply string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)

		content, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","created":0,"model":"test",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, content)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(modelURL string) *config.Config {
	return &config.Config{
		LogLevel:       "error",
		LogFormat:      "text",
		ModelBaseURL:   modelURL,
		ModelName:      "test",
		ModelAPIKey:    "test",
		ModelTimeout:   5 * time.Second,
		Concurrency:    2,
		MaxChunkWords:  256,
		ExtractionMode: string(domain.ExtractionModeChunked),
	}
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunExtract_WritesEntities(t *testing.T) {
	srv, calls := newModelServer(t, `[{"primary_name": "Alice Smith", "entity_type": "person", "confidence_score": 0.9}]`)
	input := writeInput(t, "- Alice Smith is the CEO.\n- Beta Corp is a subsidiary.")
	output := filepath.Join(t.TempDir(), "out", "entities.json")

	var out bytes.Buffer
	err := runExtract(context.Background(), &out, testConfig(srv.URL), extractOptions{
		InputFile:    input,
		OutputFile:   output,
		DocumentName: "report.txt",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Contains(t, out.String(), "Saving 2 extracted entities to: "+output)
	assert.Contains(t, out.String(), "Process completed successfully!")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"entities\""))

	var result domain.ExtractionResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Alice Smith is the CEO.", result.Entities[0].RawSourceText)
	assert.Equal(t, "Beta Corp is a subsidiary.", result.Entities[1].RawSourceText)
	assert.Equal(t, "report.txt", result.Entities[0].Metadata.SourceDocumentName)
	assert.Equal(t, domain.EntityTypeIndividual, result.Entities[0].EntityType)
}

func TestRunExtract_SingleModeOverride(t *testing.T) {
	srv, calls := newModelServer(t, `{"entities": [{"primary_name": "Beta Corp", "entity_type": "company"}]}`)
	input := writeInput(t, "- Alice Smith is the CEO.\n- Beta Corp is a subsidiary.")
	output := filepath.Join(t.TempDir(), "entities.json")

	err := runExtract(context.Background(), &bytes.Buffer{}, testConfig(srv.URL), extractOptions{
		InputFile:  input,
		OutputFile: output,
		Mode:       string(domain.ExtractionModeSingle),
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	var result domain.ExtractionResult
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Entities, 1)
	assert.Equal(t, domain.DefaultDocumentName, result.Entities[0].Metadata.SourceDocumentName)
}

func TestRunExtract_NoEntitiesWritesNothing(t *testing.T) {
	srv, _ := newModelServer(t, `[]`)
	input := writeInput(t, "Nothing of interest here.")
	output := filepath.Join(t.TempDir(), "entities.json")

	var out bytes.Buffer
	err := runExtract(context.Background(), &out, testConfig(srv.URL), extractOptions{
		InputFile:  input,
		OutputFile: output,
	})

	require.NoError(t, err)
	assert.Contains(t, out.String(), "No entities were extracted from the document.")
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunExtract_Errors(t *testing.T) {
	srv, _ := newModelServer(t, `[]`)
	input := writeInput(t, "text")

	tests := []struct {
		name    string
		opts    extractOptions
		wantErr string
	}{
		{
			name:    "missing input",
			opts:    extractOptions{InputFile: filepath.Join(t.TempDir(), "nope.txt"), OutputFile: "out.json"},
			wantErr: "failed to read input file",
		},
		{
			name:    "s3 output without storage",
			opts:    extractOptions{InputFile: input, OutputFile: "s3://bucket/out.json"},
			wantErr: domain.ErrStorageNotConfigured.Message,
		},
		{
			name:    "malformed s3 uri",
			opts:    extractOptions{InputFile: input, OutputFile: "s3://bucket"},
			wantErr: "s3 uri must be",
		},
		{
			name:    "invalid mode",
			opts:    extractOptions{InputFile: input, OutputFile: "out.json", Mode: "bulk"},
			wantErr: domain.ErrInvalidExtractionMode.Message,
		},
		{
			name:    "negative concurrency",
			opts:    extractOptions{InputFile: input, OutputFile: "out.json", Concurrency: -1},
			wantErr: "concurrency must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runExtract(context.Background(), &bytes.Buffer{}, testConfig(srv.URL), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunExtract_AllChunksFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model offline"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	input := writeInput(t, "Alice Smith is the CEO.")
	output := filepath.Join(t.TempDir(), "entities.json")

	err := runExtract(context.Background(), &bytes.Buffer{}, testConfig(srv.URL), extractOptions{
		InputFile:  input,
		OutputFile: output,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllChunksFailed)
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSegment(t *testing.T) {
	input := writeInput(t, "Intro sentence. Second sentence.\n\n- first item\n- second item")

	var out bytes.Buffer
	err := runSegment(&out, testConfig("http://unused"), input, 0, "")
	require.NoError(t, err)

	var decoded segmentOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.NotEmpty(t, decoded.Segments)
	assert.Equal(t, domain.SegmentKindProse, decoded.Segments[0].Kind)
	assert.NotEmpty(t, decoded.Chunks)
}

func TestRunSegment_SingleMode(t *testing.T) {
	input := writeInput(t, "  one\n\n- two  ")

	var out bytes.Buffer
	require.NoError(t, runSegment(&out, testConfig("http://unused"), input, 0, domain.ExtractionModeSingle))

	var decoded segmentOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, []string{"one\n\n- two"}, decoded.Chunks)
}
