package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/text"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// oneEntityPerChunk returns a single valid record named after the chunk
func oneEntityPerChunk(_ context.Context, chunk string) ([]domain.RawEntity, error) {
	return []domain.RawEntity{{
		"primary_name":     chunk,
		"entity_type":      "Individual",
		"confidence_score": 0.9,
	}}, nil
}

func newTestOrchestrator(extractor EntityExtractor, gate *Gate, opts ...Option) *Orchestrator {
	base := []Option{
		WithClock(fixedClock),
		WithIDGenerator(&sequenceIDs{}),
		WithLogger(discardLogger()),
	}
	return NewOrchestrator(extractor, gate, append(base, opts...)...)
}

func TestOrchestrator_EndToEndListExample(t *testing.T) {
	segments := text.Segment("- Alice Smith is the CEO.\n- Beta Corp is a subsidiary.")
	chunks := text.NewChunker(text.DefaultMaxChunkWords).Chunk(segments)
	require.Len(t, chunks, 2)

	o := newTestOrchestrator(funcExtractor(oneEntityPerChunk), NewGate(4))

	result, err := o.Run(context.Background(), chunks, "report.txt")

	require.NoError(t, err)
	require.Len(t, result.Entities, 2)

	assert.Equal(t, "Alice Smith is the CEO.", result.Entities[0].RawSourceText)
	assert.Equal(t, "Beta Corp is a subsidiary.", result.Entities[1].RawSourceText)
	assert.NotEqual(t, result.Entities[0].RawSourceText, result.Entities[1].RawSourceText)
	assert.NotEqual(t, result.Entities[0].RecordID, result.Entities[1].RecordID)

	for _, e := range result.Entities {
		assert.Equal(t, "2026-01-02T03:04:05Z", e.Metadata.ExtractionDate)
		assert.Equal(t, "report.txt", e.Metadata.SourceDocumentName)
	}
}

func TestOrchestrator_BlankDocumentNameKeepsEntities(t *testing.T) {
	o := newTestOrchestrator(funcExtractor(oneEntityPerChunk), NewGate(2))

	for _, name := range []string{"", "   "} {
		report, err := o.Execute(context.Background(), []string{"Alice is the CEO.", "Bob too."}, name)

		require.NoError(t, err)
		require.Len(t, report.Result.Entities, 2)
		assert.Equal(t, 0, report.Dropped)
		for _, e := range report.Result.Entities {
			assert.Equal(t, domain.DefaultDocumentName, e.Metadata.SourceDocumentName)
		}
	}
}

func TestOrchestrator_NoChunks(t *testing.T) {
	called := false
	o := newTestOrchestrator(funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		called = true
		return nil, nil
	}), nil)

	report, err := o.Execute(context.Background(), nil, "empty.txt")

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, 0, report.ChunkCount)
	assert.NotNil(t, report.Result.Entities)
	assert.Empty(t, report.Result.Entities)
}

func TestOrchestrator_OneTransportFailureKeepsTheRest(t *testing.T) {
	chunks := []string{"c0", "c1", "c2", "c3", "c4"}
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		if chunk == "c2" {
			return nil, fmt.Errorf("%w: connection refused", ErrModelRequest)
		}
		return oneEntityPerChunk(ctx, chunk)
	})

	o := newTestOrchestrator(extractor, NewGate(2))

	report, err := o.Execute(context.Background(), chunks, "doc")

	require.NoError(t, err)
	assert.Len(t, report.Result.Entities, len(chunks)-1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Index)
	assert.Contains(t, report.Failures[0].Error, "connection refused")

	for _, e := range report.Result.Entities {
		assert.NotEqual(t, "c2", e.RawSourceText)
		assert.Equal(t, e.PrimaryName, e.RawSourceText)
	}
}

func TestOrchestrator_AllChunksFailed(t *testing.T) {
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		return nil, fmt.Errorf("%w: down", ErrModelRequest)
	})
	o := newTestOrchestrator(extractor, NewGate(2))

	report, err := o.Execute(context.Background(), []string{"a", "b"}, "doc")

	require.NoError(t, err)
	assert.Empty(t, report.Result.Entities)
	assert.Len(t, report.Failures, 2)
}

func TestOrchestrator_RespectsConcurrencyLimit(t *testing.T) {
	const limit = 3
	var (
		current atomic.Int64
		maxSeen atomic.Int64
	)

	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return oneEntityPerChunk(ctx, chunk)
	})

	chunks := make([]string, 30)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
	}

	gate := NewGate(limit)
	o := newTestOrchestrator(extractor, gate)

	report, err := o.Execute(context.Background(), chunks, "doc")

	require.NoError(t, err)
	assert.Len(t, report.Result.Entities, len(chunks))
	assert.LessOrEqual(t, maxSeen.Load(), int64(limit))
	assert.LessOrEqual(t, gate.Peak(), limit)
	assert.Greater(t, gate.Peak(), 0)
	assert.Equal(t, 0, gate.InFlight())
}

func TestOrchestrator_IdempotentEntityCount(t *testing.T) {
	chunks := []string{"Alice", "Bob", "Carol", "Dan"}
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		entities := []domain.RawEntity{{"primary_name": chunk, "entity_type": "Individual"}}
		if chunk == "Bob" {
			entities = append(entities, domain.RawEntity{"primary_name": "Bob Corp", "entity_type": "Organization"})
		}
		return entities, nil
	})

	o := newTestOrchestrator(extractor, NewGate(2))

	first, err := o.Run(context.Background(), chunks, "doc")
	require.NoError(t, err)
	second, err := o.Run(context.Background(), chunks, "doc")
	require.NoError(t, err)

	assert.Len(t, first.Entities, 5)
	assert.Equal(t, len(first.Entities), len(second.Entities))
}

func TestOrchestrator_DropsInvalidEntitiesIndividually(t *testing.T) {
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		return []domain.RawEntity{
			{"primary_name": "Alice", "entity_type": "Individual"},
			{"entity_type": "Individual"},
			{"primary_name": "Beta", "confidence_score": 7},
			{"primary_name": "Gamma", "identifiers": "not-a-list"},
		}, nil
	})

	o := newTestOrchestrator(extractor, nil)

	report, err := o.Execute(context.Background(), []string{"chunk"}, "doc")

	require.NoError(t, err)
	require.Len(t, report.Result.Entities, 1)
	assert.Equal(t, "Alice", report.Result.Entities[0].PrimaryName)
	assert.Equal(t, 3, report.Dropped)
	assert.Empty(t, report.Failures)
}

func TestOrchestrator_RetriesTransportFailures(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts = map[string]int{}
	)
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		mu.Lock()
		attempts[chunk]++
		n := attempts[chunk]
		mu.Unlock()
		if n == 1 {
			return nil, fmt.Errorf("%w: flaky", ErrModelRequest)
		}
		return oneEntityPerChunk(ctx, chunk)
	})

	o := newTestOrchestrator(extractor, NewGate(2), WithRetries(2, time.Millisecond))

	report, err := o.Execute(context.Background(), []string{"a", "b", "c"}, "doc")

	require.NoError(t, err)
	assert.Len(t, report.Result.Entities, 3)
	assert.Empty(t, report.Failures)
	for _, chunk := range []string{"a", "b", "c"} {
		assert.Equal(t, 2, attempts[chunk])
	}
}

func TestOrchestrator_DoesNotRetryNonTransportErrors(t *testing.T) {
	var calls atomic.Int64
	boom := errors.New("boom")
	extractor := funcExtractor(func(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
		calls.Add(1)
		return nil, boom
	})

	o := newTestOrchestrator(extractor, NewGate(1), WithRetries(3, time.Millisecond))

	report, err := o.Execute(context.Background(), []string{"a"}, "doc")

	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "boom", report.Failures[0].Error)
	assert.Equal(t, int64(1), calls.Load())
}

func TestOrchestrator_WithModelClient(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(isExtraction), float32(0)).
		Return(`{"entities": [{"entity_name": "Beta Corp", "entity_type": "company", "confidence_score": 0.7}]}`, nil)

	o := newTestOrchestrator(NewClient(completer, discardLogger()), NewGate(2))

	result, err := o.Run(context.Background(), []string{"Beta Corp is a subsidiary."}, "doc")

	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	e := result.Entities[0]
	assert.Equal(t, "Beta Corp", e.PrimaryName)
	assert.Equal(t, domain.EntityTypeOrganization, e.EntityType)
	assert.Equal(t, 0.7, e.Metadata.ConfidenceScore)
	assert.Equal(t, "Beta Corp is a subsidiary.", e.RawSourceText)
}
