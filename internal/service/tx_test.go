package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/extraction"
	"github.com/cloo-solutions/docextract/internal/pagination"
	"github.com/cloo-solutions/docextract/internal/storage"
)

type testTxRepos struct {
	runs     RunRepositoryInterface
	entities EntityRepositoryInterface
	jobs     JobRepositoryInterface
}

func (t *testTxRepos) Runs() RunRepositoryInterface {
	return t.runs
}

func (t *testTxRepos) Entities() EntityRepositoryInterface {
	return t.entities
}

func (t *testTxRepos) Jobs() JobRepositoryInterface {
	return t.jobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

// MockRunRepository is a mock implementation of RunRepositoryInterface
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *domain.ExtractionRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id string) (*domain.ExtractionRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionRun), args.Error(1)
}

// MockEntityRepository is a mock implementation of EntityRepositoryInterface
type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) CreateBatch(ctx context.Context, runID string, entities []domain.ExtractedEntity) error {
	args := m.Called(ctx, runID, entities)
	return args.Error(0)
}

func (m *MockEntityRepository) ListByRun(ctx context.Context, runID string) ([]domain.ExtractedEntity, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExtractedEntity), args.Error(1)
}

// MockJobRepository is a mock implementation of JobRepositoryInterface
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.ExtractionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionJob), args.Error(1)
}

func (m *MockJobRepository) ListWithCursor(ctx context.Context, status domain.ExtractionJobStatus, cursor *pagination.Cursor, limit int) (*JobPageResult, error) {
	args := m.Called(ctx, status, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*JobPageResult), args.Error(1)
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, id, runID, resultKey string) error {
	args := m.Called(ctx, id, runID, resultKey)
	return args.Error(0)
}

// MockStorageClient is a mock implementation of StorageClientInterface
type MockStorageClient struct {
	mock.Mock
}

func (m *MockStorageClient) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockStorageClient) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorageClient) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectMetadata), args.Error(1)
}

// MockBatchExtractor is a mock implementation of BatchExtractor
type MockBatchExtractor struct {
	mock.Mock
}

func (m *MockBatchExtractor) Execute(ctx context.Context, chunks []string, documentName string) (*extraction.Report, error) {
	args := m.Called(ctx, chunks, documentName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*extraction.Report), args.Error(1)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}
