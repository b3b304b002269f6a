package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/docextract/internal/domain"
)

const s3Scheme = "s3://"

// ResultWriter persists an extraction result
type ResultWriter interface {
	Write(ctx context.Context, result *domain.ExtractionResult) error
}

// ObjectPutter is the subset of S3Client used to upload results
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// EncodeResult renders a result as two-space indented JSON
func EncodeResult(result *domain.ExtractionResult) ([]byte, error) {
	if result == nil {
		result = &domain.ExtractionResult{}
	}
	if result.Entities == nil {
		result = &domain.ExtractionResult{Entities: []domain.ExtractedEntity{}}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return append(data, '\n'), nil
}

// FileWriter writes results to a local file
type FileWriter struct {
	Path string
}

func (w *FileWriter) Write(_ context.Context, result *domain.ExtractionResult) error {
	data, err := EncodeResult(result)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(w.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// S3Writer uploads results under a fixed key
type S3Writer struct {
	Client ObjectPutter
	Key    string
}

func (w *S3Writer) Write(ctx context.Context, result *domain.ExtractionResult) error {
	data, err := EncodeResult(result)
	if err != nil {
		return err
	}
	return w.Client.PutObject(ctx, w.Key, data, "application/json")
}

// ResultKey is the object key under which a job's result is stored
func ResultKey(jobID string) string {
	return "results/" + jobID + ".json"
}

// SourceKey is the object key for an uploaded source document
func SourceKey(uploadID, filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" {
		name = "document.txt"
	}
	return "documents/" + uploadID + "/" + name
}

// IsS3URI reports whether target uses the s3:// scheme
func IsS3URI(target string) bool {
	return strings.HasPrefix(target, s3Scheme)
}

// ParseS3URI splits s3://bucket/key into bucket and key
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri must be s3://bucket/key: %s", uri)
	}
	return bucket, key, nil
}
