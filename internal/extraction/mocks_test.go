package extraction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/openai"
)

// MockCompleter is a mock for the model completion capability
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []openai.Message, temperature float32) (string, error) {
	args := m.Called(ctx, messages, temperature)
	return args.String(0), args.Error(1)
}

// isRepair matches requests carrying the repair instruction
func isRepair(msgs []openai.Message) bool {
	return len(msgs) > 0 && msgs[0].Content == repairPrompt
}

// isExtraction matches requests carrying the extraction instruction
func isExtraction(msgs []openai.Message) bool {
	return len(msgs) > 0 && msgs[0].Content == systemPrompt
}

// funcExtractor adapts a function to EntityExtractor
type funcExtractor func(ctx context.Context, chunk string) ([]domain.RawEntity, error)

func (f funcExtractor) Extract(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
	return f(ctx, chunk)
}

// sequenceIDs hands out predictable ids safely across goroutines
type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("rec-%d", s.n)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
