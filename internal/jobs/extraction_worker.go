package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/logging"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/cloo-solutions/docextract/internal/storage"
	"github.com/cloo-solutions/docextract/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
	// DefaultBatchSize is the number of jobs claimed per poll
	DefaultBatchSize = 4
)

// ExtractionJobRepository defines the job queue operations the worker needs
type ExtractionJobRepository interface {
	// ClaimPending moves pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.ExtractionJob, error)

	// UpdateStatus updates the status of a job
	UpdateStatus(ctx context.Context, jobID string, status domain.ExtractionJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error

	// MarkCompleted records the run and result object of a finished job
	MarkCompleted(ctx context.Context, jobID, runID, resultKey string) error
}

// DocumentProcessor runs one document through the extraction pipeline
type DocumentProcessor interface {
	Process(ctx context.Context, input service.ProcessInput) (*service.ProcessOutput, error)
}

// ObjectStore reads source documents and stores job results
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ExtractionWorker processes queued extraction jobs
type ExtractionWorker struct {
	repo      ExtractionJobRepository
	processor DocumentProcessor
	store     ObjectStore
	batchSize int
	logger    *slog.Logger
}

// NewExtractionWorker creates a new ExtractionWorker. store may be nil, in
// which case jobs referencing a source key fail and results are not uploaded.
func NewExtractionWorker(repo ExtractionJobRepository, processor DocumentProcessor, store ObjectStore, batchSize int, logger *slog.Logger) *ExtractionWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionWorker{
		repo:      repo,
		processor: processor,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ExtractionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending extraction jobs", "count", len(jobs))

	for _, job := range jobs {
		jobCtx := logging.WithJobID(ctx, job.ID)
		if err := w.processJob(jobCtx, job); err != nil {
			w.logger.ErrorContext(jobCtx, "error processing job", "error", err)
		}
	}

	return nil
}

func (w *ExtractionWorker) processJob(ctx context.Context, job *domain.ExtractionJob) error {
	ctx, span := telemetry.StartSpan(ctx, "ExtractionWorker.processJob", telemetry.SpanAttributes{
		JobID:        job.ID,
		DocumentName: job.DocumentName,
		Operation:    string(job.Mode),
	})
	defer span.End()

	text, err := w.loadText(ctx, job)
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	out, err := w.processor.Process(ctx, service.ProcessInput{
		Text:         text,
		DocumentName: job.DocumentName,
		Mode:         job.Mode,
	})
	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	resultKey := ""
	if w.store != nil {
		resultKey = storage.ResultKey(job.ID)
		writer := &storage.S3Writer{Client: w.store, Key: resultKey}
		if err := writer.Write(ctx, out.Result); err != nil {
			span.SetError(err)
			return w.handleJobFailure(ctx, job, fmt.Errorf("failed to upload result: %w", err))
		}
	}

	if err := w.repo.MarkCompleted(ctx, job.ID, out.Run.ID, resultKey); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	w.logger.InfoContext(ctx, "job completed",
		"run_id", out.Run.ID,
		"entities", out.Run.EntityCount,
		"failed_chunks", len(out.Run.FailedChunks),
	)
	return nil
}

func (w *ExtractionWorker) loadText(ctx context.Context, job *domain.ExtractionJob) (string, error) {
	if job.SourceKey == "" {
		return job.Text, nil
	}
	if w.store == nil {
		return "", domain.ErrStorageNotConfigured
	}
	data, err := w.store.GetObject(ctx, job.SourceKey)
	if err != nil {
		return "", fmt.Errorf("failed to load source document %s: %w", job.SourceKey, err)
	}
	return string(data), nil
}

// retryable reports whether a later attempt could succeed
func retryable(err error) bool {
	switch {
	case errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, domain.ErrStorageNotConfigured),
		errors.Is(err, domain.ErrInvalidExtractionMode):
		return false
	}
	return true
}

// handleJobFailure handles a failed job with retry logic
func (w *ExtractionWorker) handleJobFailure(ctx context.Context, job *domain.ExtractionJob, jobErr error) error {
	w.logger.WarnContext(ctx, "job failed", "error", jobErr)

	if !retryable(jobErr) {
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.ExtractionJobStatusFailed, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		w.logger.ErrorContext(ctx, "job exceeded max retries, marking as failed", "max_retries", MaxRetries)
		telemetry.CaptureError(ctx, jobErr)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.ExtractionJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	w.logger.InfoContext(ctx, "job will be retried", "attempt", job.Retries+1, "max_retries", MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.ExtractionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
