// Package extraction turns text chunks into validated entity records by
// calling a language model, repairing its output and aggregating results.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/openai"
)

// ErrModelRequest wraps every transport failure returned by Extract
var ErrModelRequest = errors.New("model request failed")

// extractionTemperature keeps model output deterministic
const extractionTemperature = 0

// Client extracts raw entity records from a single chunk.
type Client struct {
	completer openai.Completer
	logger    *slog.Logger
}

func NewClient(completer openai.Completer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		completer: completer,
		logger:    logger,
	}
}

// Extract asks the model for the entities in chunk. Malformed output gets one
// repair request; if that also fails the chunk yields no entities and no
// error. Transport failures are returned wrapped in ErrModelRequest. A
// response without choices counts as malformed output, not a transport failure.
func (c *Client) Extract(ctx context.Context, chunk string) ([]domain.RawEntity, error) {
	resp, err := c.completer.Complete(ctx, extractionMessages(chunk), extractionTemperature)
	if err != nil && !errors.Is(err, openai.ErrEmptyResponse) {
		return nil, fmt.Errorf("%w: extraction: %w", ErrModelRequest, err)
	}

	entities, parseErr := parseEntities(resp)
	if parseErr == nil {
		return entities, nil
	}

	c.logger.DebugContext(ctx, "model output malformed, requesting repair", "error", parseErr)

	fixed, err := c.completer.Complete(ctx, repairMessages(resp), extractionTemperature)
	if err != nil && !errors.Is(err, openai.ErrEmptyResponse) {
		return nil, fmt.Errorf("%w: repair: %w", ErrModelRequest, err)
	}

	entities, parseErr = parseEntities(fixed)
	if parseErr != nil {
		c.logger.WarnContext(ctx, "repaired output still malformed, chunk yields no entities", "error", parseErr)
		return []domain.RawEntity{}, nil
	}

	return entities, nil
}
