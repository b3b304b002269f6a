package extraction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/telemetry"
)

// DefaultRetryInterval is the initial backoff between transport retries
const DefaultRetryInterval = 500 * time.Millisecond

// EntityExtractor produces raw entity records for one chunk
type EntityExtractor interface {
	Extract(ctx context.Context, chunk string) ([]domain.RawEntity, error)
}

// IDGenerator produces record identifiers
type IDGenerator interface {
	NewString() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewString() string {
	return uuid.NewString()
}

// Report is the outcome of one orchestrated batch.
type Report struct {
	Result         *domain.ExtractionResult
	ChunkCount     int
	Failures       []domain.ChunkFailure
	Dropped        int
	ExtractionDate string
}

// Orchestrator fans chunks out to an EntityExtractor under a Gate, then
// stamps provenance on and validates everything that came back.
type Orchestrator struct {
	extractor     EntityExtractor
	gate          *Gate
	ids           IDGenerator
	now           func() time.Time
	retries       int
	retryInterval time.Duration
	logger        *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithIDGenerator overrides record id generation
func WithIDGenerator(ids IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = ids }
}

// WithClock overrides the batch timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRetries retries a chunk's transport failures up to n times with
// exponential backoff starting at interval.
func WithRetries(n int, interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.retries = n
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an Orchestrator. A nil gate gets one with
// DefaultConcurrency slots.
func NewOrchestrator(extractor EntityExtractor, gate *Gate, opts ...Option) *Orchestrator {
	if gate == nil {
		gate = NewGate(DefaultConcurrency)
	}
	o := &Orchestrator{
		extractor:     extractor,
		gate:          gate,
		ids:           uuidGenerator{},
		now:           time.Now,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome is the settled state of one chunk's task
type outcome struct {
	entities []domain.RawEntity
	err      error
}

// Run extracts entities from every chunk and returns their union.
func (o *Orchestrator) Run(ctx context.Context, chunks []string, documentName string) (*domain.ExtractionResult, error) {
	report, err := o.Execute(ctx, chunks, documentName)
	if err != nil {
		return nil, err
	}
	return report.Result, nil
}

// Execute is Run with per-chunk failure and validation accounting.
// It never fails because individual chunks failed. A blank documentName is
// recorded as domain.DefaultDocumentName.
func (o *Orchestrator) Execute(ctx context.Context, chunks []string, documentName string) (*Report, error) {
	if strings.TrimSpace(documentName) == "" {
		documentName = domain.DefaultDocumentName
	}

	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Execute", telemetry.SpanAttributes{
		DocumentName: documentName,
		Operation:    "extract",
	})
	defer span.End()
	span.SetData("chunk_count", len(chunks))

	report := &Report{
		Result:     &domain.ExtractionResult{Entities: []domain.ExtractedEntity{}},
		ChunkCount: len(chunks),
		Failures:   []domain.ChunkFailure{},
	}
	if len(chunks) == 0 {
		return report, nil
	}

	o.logger.InfoContext(ctx, "processing chunks",
		"chunks", len(chunks),
		"concurrency", o.gate.Limit(),
	)

	outcomes := make([]outcome, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entities, err := o.extractChunk(ctx, chunks[i])
			outcomes[i] = outcome{entities: entities, err: err}
		}(i)
	}
	wg.Wait()

	extractionDate := o.now().UTC().Format(time.RFC3339)
	report.ExtractionDate = extractionDate

	for i, out := range outcomes {
		if out.err != nil {
			o.logger.ErrorContext(ctx, "chunk extraction failed, skipping",
				"chunk", i+1,
				"error", out.err,
			)
			telemetry.CaptureError(ctx, out.err)
			report.Failures = append(report.Failures, domain.ChunkFailure{Index: i, Error: out.err.Error()})
			continue
		}

		for _, raw := range out.entities {
			entity, err := domain.DecodeEntity(o.ids.NewString(), raw)
			if err != nil {
				o.logger.WarnContext(ctx, "dropping undecodable entity", "chunk", i+1, "error", err)
				report.Dropped++
				continue
			}

			entity.RawSourceText = chunks[i]
			entity.Metadata.ExtractionDate = extractionDate
			entity.Metadata.SourceDocumentName = documentName

			if v := domain.ValidateEntity(entity); !v.Valid {
				o.logger.WarnContext(ctx, "dropping invalid entity",
					"chunk", i+1,
					"primary_name", entity.PrimaryName,
					"problems", v.Problems,
				)
				report.Dropped++
				continue
			}

			report.Result.Entities = append(report.Result.Entities, *entity)
		}
	}

	if len(report.Failures) == len(chunks) {
		span.SetError(domain.ErrAllChunksFailed)
	}

	o.logger.InfoContext(ctx, "extraction batch complete",
		"entities", len(report.Result.Entities),
		"failed_chunks", len(report.Failures),
		"dropped_entities", report.Dropped,
	)

	return report, nil
}

// extractChunk runs one chunk through the extractor while holding a gate
// slot, retrying transport failures when configured.
func (o *Orchestrator) extractChunk(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
	attempt := func() ([]domain.RawEntity, error) {
		if err := o.gate.Acquire(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		defer o.gate.Release()

		entities, err := o.extractor.Extract(ctx, chunk)
		if err != nil && (ctx.Err() != nil || !errors.Is(err, ErrModelRequest)) {
			return nil, backoff.Permanent(err)
		}
		return entities, err
	}

	if o.retries <= 0 {
		entities, err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return entities, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.retries)), ctx)

	return backoff.RetryWithData(attempt, policy)
}
