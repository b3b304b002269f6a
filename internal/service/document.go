package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/extraction"
	"github.com/cloo-solutions/docextract/internal/logging"
	"github.com/cloo-solutions/docextract/internal/telemetry"
	"github.com/cloo-solutions/docextract/internal/text"
)

// BatchExtractor runs extraction over an ordered chunk list
type BatchExtractor interface {
	Execute(ctx context.Context, chunks []string, documentName string) (*extraction.Report, error)
}

// DocumentService runs documents through segmentation, chunking and
// extraction, and optionally persists the outcome.
type DocumentService struct {
	extractor   BatchExtractor
	chunker     *text.Chunker
	defaultMode domain.ExtractionMode
	txRunner    TxRunner
	runRepo     RunRepositoryInterface
	entityRepo  EntityRepositoryInterface
	uuidGen     UUIDGenerator
	now         func() time.Time
	logger      *slog.Logger
}

// NewDocumentService creates a DocumentService without persistence
func NewDocumentService(extractor BatchExtractor, chunker *text.Chunker, defaultMode domain.ExtractionMode) *DocumentService {
	if chunker == nil {
		chunker = text.NewChunker(text.DefaultMaxChunkWords)
	}
	if defaultMode == "" {
		defaultMode = domain.ExtractionModeChunked
	}
	return &DocumentService{
		extractor:   extractor,
		chunker:     chunker,
		defaultMode: defaultMode,
		uuidGen:     &DefaultUUIDGenerator{},
		now:         time.Now,
		logger:      slog.Default(),
	}
}

// WithPersistence stores runs and their entities through the given repositories
func (s *DocumentService) WithPersistence(txRunner TxRunner, runRepo RunRepositoryInterface, entityRepo EntityRepositoryInterface) *DocumentService {
	s.txRunner = txRunner
	s.runRepo = runRepo
	s.entityRepo = entityRepo
	return s
}

// WithUUIDGenerator overrides run id generation (for testing)
func (s *DocumentService) WithUUIDGenerator(gen UUIDGenerator) *DocumentService {
	s.uuidGen = gen
	return s
}

func (s *DocumentService) WithLogger(logger *slog.Logger) *DocumentService {
	s.logger = logger
	return s
}

// Persistent reports whether runs are stored
func (s *DocumentService) Persistent() bool {
	return s.txRunner != nil
}

type ProcessInput struct {
	Text         string
	DocumentName string
	Mode         domain.ExtractionMode
	// RunID is assigned when empty
	RunID string
}

type ProcessOutput struct {
	Run    *domain.ExtractionRun
	Result *domain.ExtractionResult
}

// Chunks returns the segments and chunks the pipeline would extract from
func (s *DocumentService) Chunks(input string, mode domain.ExtractionMode) ([]domain.Segment, []string, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	switch mode {
	case domain.ExtractionModeChunked:
		segments := text.Segment(input)
		return segments, s.chunker.Chunk(segments), nil
	case domain.ExtractionModeSingle:
		// The whole document is the only chunk, so it is also every entity's raw_source_text.
		whole := strings.TrimSpace(input)
		if whole == "" {
			return []domain.Segment{}, []string{}, nil
		}
		return []domain.Segment{{Kind: domain.SegmentKindProse, Content: whole}}, []string{whole}, nil
	default:
		return nil, nil, domain.ErrInvalidExtractionMode
	}
}

// Process extracts entities from one document. An empty document yields an
// empty result. It fails only when every chunk failed.
func (s *DocumentService) Process(ctx context.Context, input ProcessInput) (*ProcessOutput, error) {
	docName := strings.TrimSpace(input.DocumentName)
	if docName == "" {
		docName = domain.DefaultDocumentName
	}
	mode := input.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	runID := input.RunID
	if runID == "" {
		runID = s.uuidGen.NewString()
	}

	ctx = logging.WithRunID(ctx, runID)
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Process", telemetry.SpanAttributes{
		RunID:        runID,
		DocumentName: docName,
		Operation:    string(mode),
	})
	defer span.End()

	_, chunks, err := s.Chunks(input.Text, mode)
	if err != nil {
		return nil, err
	}

	startedAt := s.now().UTC()
	s.logger.InfoContext(ctx, "processing document",
		"document", docName,
		"mode", mode,
		"chunks", len(chunks),
	)

	report, err := s.extractor.Execute(ctx, chunks, docName)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	run := &domain.ExtractionRun{
		ID:              runID,
		DocumentName:    docName,
		Mode:            mode,
		ChunkCount:      report.ChunkCount,
		FailedChunks:    report.Failures,
		EntityCount:     len(report.Result.Entities),
		DroppedEntities: report.Dropped,
		ExtractionDate:  report.ExtractionDate,
		StartedAt:       startedAt,
		FinishedAt:      s.now().UTC(),
	}

	if !run.Succeeded() {
		err := domain.NewDomainErrorWithCause(domain.ErrAllChunksFailed.Code, domain.ErrAllChunksFailed.Message,
			errors.New(report.Failures[0].Error))
		span.SetError(err)
		return nil, err
	}

	if s.txRunner != nil {
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Runs().Create(ctx, run); err != nil {
				return fmt.Errorf("failed to store run: %w", err)
			}
			if err := repos.Entities().CreateBatch(ctx, run.ID, report.Result.Entities); err != nil {
				return fmt.Errorf("failed to store entities: %w", err)
			}
			return nil
		})
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	return &ProcessOutput{Run: run, Result: report.Result}, nil
}

// GetRun returns a stored run
func (s *DocumentService) GetRun(ctx context.Context, id string) (*domain.ExtractionRun, error) {
	if s.runRepo == nil {
		return nil, domain.ErrPersistenceDisabled
	}
	return s.runRepo.GetByID(ctx, id)
}

// ListRunEntities returns the entities stored for a run
func (s *DocumentService) ListRunEntities(ctx context.Context, runID string) ([]domain.ExtractedEntity, error) {
	if s.runRepo == nil || s.entityRepo == nil {
		return nil, domain.ErrPersistenceDisabled
	}
	if _, err := s.runRepo.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.entityRepo.ListByRun(ctx, runID)
}
