package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloo-solutions/docextract/internal/config"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/extraction"
	"github.com/cloo-solutions/docextract/internal/logging"
	"github.com/cloo-solutions/docextract/internal/openai"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/cloo-solutions/docextract/internal/storage"
	"github.com/cloo-solutions/docextract/internal/text"
)

// PipelineOptions overrides configuration for a single invocation. Zero
// values keep the configured setting.
type PipelineOptions struct {
	Concurrency   int
	MaxChunkWords int
	Mode          domain.ExtractionMode
}

// NewLogger builds the process logger from configuration
func NewLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, closer, nil
}

// NewDocumentService wires the model client, gate, orchestrator and chunker
// into a DocumentService without persistence.
func NewDocumentService(cfg *config.Config, opts PipelineOptions, logger *slog.Logger) (*service.DocumentService, error) {
	concurrency := cfg.Concurrency
	if opts.Concurrency != 0 {
		concurrency = opts.Concurrency
	}
	maxWords := cfg.MaxChunkWords
	if opts.MaxChunkWords != 0 {
		maxWords = opts.MaxChunkWords
	}
	mode := domain.ExtractionMode(cfg.ExtractionMode)
	if opts.Mode != "" {
		mode = opts.Mode
	}

	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if maxWords <= 0 {
		return nil, fmt.Errorf("max chunk words must be positive, got %d", maxWords)
	}
	if !domain.IsValidExtractionMode(mode) {
		return nil, domain.ErrInvalidExtractionMode
	}

	model := openai.NewClientWithConfig(openai.Config{
		BaseURL:  cfg.ModelBaseURL,
		APIKey:   cfg.ModelAPIKey,
		Model:    cfg.ModelName,
		Timeout:  cfg.ModelTimeout,
		JSONMode: cfg.ModelJSONMode,
	})

	orchestrator := extraction.NewOrchestrator(
		extraction.NewClient(model, logger),
		extraction.NewGate(concurrency),
		extraction.WithRetries(cfg.ChunkRetries, extraction.DefaultRetryInterval),
		extraction.WithLogger(logger),
	)

	return service.NewDocumentService(orchestrator, text.NewChunker(maxWords), mode).WithLogger(logger), nil
}

// NewS3Client connects to the configured bucket, creating it if needed
func NewS3Client(ctx context.Context, cfg *config.Config) (*storage.S3Client, error) {
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
		MaxObjectBytes:  cfg.S3MaxObjectBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	return client, nil
}
