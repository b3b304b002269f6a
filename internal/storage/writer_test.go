package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docextract/internal/domain"
)

type MockObjectPutter struct {
	mock.Mock
}

func (m *MockObjectPutter) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func sampleResult() *domain.ExtractionResult {
	return &domain.ExtractionResult{Entities: []domain.ExtractedEntity{{
		RecordID:    "r1",
		EntityType:  domain.EntityTypeIndividual,
		PrimaryName: "Alice Smith",
		Metadata: domain.Metadata{
			SourceDocumentName: "doc",
			ExtractionDate:     "2026-01-02T03:04:05Z",
			ConfidenceScore:    0.9,
		},
		RawSourceText: "Alice Smith is the CEO.",
	}}}
}

func TestEncodeResult(t *testing.T) {
	data, err := EncodeResult(sampleResult())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(data), "{\n  \"entities\": ["))

	var decoded domain.ExtractionResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Entities, 1)
	assert.Equal(t, "Alice Smith", decoded.Entities[0].PrimaryName)
}

func TestEncodeResult_EmptyIsList(t *testing.T) {
	data, err := EncodeResult(&domain.ExtractionResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"entities": []}`, string(data))

	data, err = EncodeResult(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entities": []}`, string(data))
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")
	w := &FileWriter{Path: path}

	require.NoError(t, w.Write(context.Background(), sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"primary_name": "Alice Smith"`)
}

func TestS3Writer(t *testing.T) {
	putter := new(MockObjectPutter)
	w := &S3Writer{Client: putter, Key: "results/job-1.json"}

	putter.On("PutObject", mock.Anything, "results/job-1.json", mock.MatchedBy(func(b []byte) bool {
		return strings.Contains(string(b), "Alice Smith")
	}), "application/json").Return(nil)

	require.NoError(t, w.Write(context.Background(), sampleResult()))
	putter.AssertExpectations(t)
}

func TestS3Writer_Error(t *testing.T) {
	putter := new(MockObjectPutter)
	w := &S3Writer{Client: putter, Key: "k"}
	putter.On("PutObject", mock.Anything, "k", mock.Anything, "application/json").Return(errors.New("denied"))

	assert.Error(t, w.Write(context.Background(), sampleResult()))
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://results/run/out.json", "results", "run/out.json", false},
		{"s3://bucket/key", "bucket", "key", false},
		{"s3://bucket", "", "", true},
		{"s3:///key", "", "", true},
		{"/tmp/out.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "results/abc.json", ResultKey("abc"))
	assert.Equal(t, "documents/u1/report.txt", SourceKey("u1", "../../report.txt"))
	assert.Equal(t, "documents/u1/document.txt", SourceKey("u1", ""))
}
