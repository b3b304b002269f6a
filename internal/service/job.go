package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/pagination"
	"github.com/cloo-solutions/docextract/internal/storage"
	"github.com/cloo-solutions/docextract/internal/telemetry"
)

// StorageClientInterface defines the object storage operations used for jobs
type StorageClientInterface interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
}

// JobService manages asynchronous extraction jobs
type JobService struct {
	jobRepo       JobRepositoryInterface
	documents     *DocumentService
	storageClient StorageClientInterface
	uuidGen       UUIDGenerator
}

// NewJobService creates a JobService. storageClient may be nil when object
// storage is not configured.
func NewJobService(jobRepo JobRepositoryInterface, documents *DocumentService, storageClient StorageClientInterface) *JobService {
	return &JobService{
		jobRepo:       jobRepo,
		documents:     documents,
		storageClient: storageClient,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

// NewJobServiceWithUUIDGen creates a JobService with custom UUID generator (for testing)
func NewJobServiceWithUUIDGen(jobRepo JobRepositoryInterface, documents *DocumentService, storageClient StorageClientInterface, uuidGen UUIDGenerator) *JobService {
	return &JobService{
		jobRepo:       jobRepo,
		documents:     documents,
		storageClient: storageClient,
		uuidGen:       uuidGen,
	}
}

type SubmitInput struct {
	Text         string
	SourceKey    string
	DocumentName string
	Mode         domain.ExtractionMode
}

// Submit queues a document for extraction
func (s *JobService) Submit(ctx context.Context, input SubmitInput) (*domain.ExtractionJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "JobService.Submit", telemetry.SpanAttributes{
		DocumentName: input.DocumentName,
		Operation:    "submit",
	})
	defer span.End()

	mode := input.Mode
	if mode == "" {
		mode = domain.ExtractionModeChunked
	}
	if !domain.IsValidExtractionMode(mode) {
		return nil, domain.ErrInvalidExtractionMode
	}

	sourceKey := strings.TrimSpace(input.SourceKey)
	if sourceKey == "" && strings.TrimSpace(input.Text) == "" {
		return nil, domain.ErrEmptyDocument
	}
	if sourceKey != "" {
		if s.storageClient == nil {
			return nil, domain.ErrStorageNotConfigured
		}
		if _, err := s.storageClient.HeadObject(ctx, sourceKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "source document not found", err)
			}
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, domain.ErrStorageOperationFail.Message, err)
		}
	}

	docName := strings.TrimSpace(input.DocumentName)
	if docName == "" {
		docName = domain.DefaultDocumentName
	}

	job := &domain.ExtractionJob{
		ID:           s.uuidGen.NewString(),
		DocumentName: docName,
		Mode:         mode,
		SourceKey:    sourceKey,
		Status:       domain.ExtractionJobStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if sourceKey == "" {
		job.Text = input.Text
	}

	if err := domain.ValidateExtractionJob(job); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid extraction job", err)
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Get returns a job by ID
func (s *JobService) Get(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

type ListJobsInput struct {
	Status domain.ExtractionJobStatus
	Cursor string
	Limit  int
}

type ListJobsOutput struct {
	Items   []*domain.ExtractionJob
	Cursor  string
	HasMore bool
}

// List returns jobs newest first, optionally filtered by status
func (s *JobService) List(ctx context.Context, input ListJobsInput) (*ListJobsOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}
	if input.Status != "" && !domain.IsValidExtractionJobStatus(input.Status) {
		return nil, domain.ErrInvalidJobStatus
	}

	result, err := s.jobRepo.ListWithCursor(ctx, input.Status, cursor, pagination.NormalizeLimit(input.Limit))
	if err != nil {
		return nil, err
	}

	return &ListJobsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

type JobResult struct {
	Job         *domain.ExtractionJob
	Run         *domain.ExtractionRun
	Entities    []domain.ExtractedEntity
	DownloadURL string
}

// Result returns the run and entities of a completed job
func (s *JobService) Result(ctx context.Context, id string) (*JobResult, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.ExtractionJobStatusCompleted {
		return nil, domain.ErrResultNotReady
	}

	run, err := s.documents.GetRun(ctx, job.RunID)
	if err != nil {
		return nil, err
	}
	entities, err := s.documents.ListRunEntities(ctx, job.RunID)
	if err != nil {
		return nil, err
	}

	out := &JobResult{Job: job, Run: run, Entities: entities}
	if job.ResultKey != "" && s.storageClient != nil {
		url, err := s.storageClient.GenerateDownloadURL(ctx, job.ResultKey)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, domain.ErrStorageOperationFail.Message, err)
		}
		out.DownloadURL = url
	}
	return out, nil
}

type UploadTarget struct {
	SourceKey string
	UploadURL string
}

// CreateUpload reserves a source key and returns a presigned upload URL for it
func (s *JobService) CreateUpload(ctx context.Context, filename, contentType string) (*UploadTarget, error) {
	if s.storageClient == nil {
		return nil, domain.ErrStorageNotConfigured
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	key := storage.SourceKey(s.uuidGen.NewString(), filename)
	url, err := s.storageClient.GenerateUploadURL(ctx, key, contentType)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, domain.ErrStorageOperationFail.Message, err)
	}

	return &UploadTarget{SourceKey: key, UploadURL: url}, nil
}
