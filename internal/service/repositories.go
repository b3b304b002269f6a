package service

import (
	"context"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/pagination"
	"github.com/google/uuid"
)

// RunRepositoryInterface defines the repository interface for extraction runs
type RunRepositoryInterface interface {
	Create(ctx context.Context, run *domain.ExtractionRun) error
	GetByID(ctx context.Context, id string) (*domain.ExtractionRun, error)
}

// EntityRepositoryInterface defines the repository interface for extracted entities
type EntityRepositoryInterface interface {
	CreateBatch(ctx context.Context, runID string, entities []domain.ExtractedEntity) error
	ListByRun(ctx context.Context, runID string) ([]domain.ExtractedEntity, error)
}

// JobRepositoryInterface defines the repository interface for extraction jobs
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.ExtractionJob) error
	GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error)
	ListWithCursor(ctx context.Context, status domain.ExtractionJobStatus, cursor *pagination.Cursor, limit int) (*JobPageResult, error)
	MarkCompleted(ctx context.Context, id, runID, resultKey string) error
}

type JobPageResult struct {
	Items      []*domain.ExtractionJob
	NextCursor string
	HasMore    bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
