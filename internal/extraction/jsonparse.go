package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloo-solutions/docextract/internal/domain"
)

var (
	errNoJSON     = errors.New("no JSON value found in model output")
	errWrongShape = errors.New("model output is neither an entity list nor an object with an entities list")
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// locateJSON returns the JSON text embedded in a model response. A fenced
// code block wins; otherwise the outermost [...] or {...} is used.
func locateJSON(text string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, true
		}
	}
	return outermostSpan(text)
}

// outermostSpan runs from the first opening bracket or brace to the last
// closing character of the same kind.
func outermostSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", false
	}

	closing := byte(']')
	if text[start] == '{' {
		closing = '}'
	}

	end := strings.LastIndexByte(text, closing)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// parseEntities extracts raw entity records from a model response.
func parseEntities(text string) ([]domain.RawEntity, error) {
	body, ok := locateJSON(text)
	if !ok {
		return nil, errNoJSON
	}

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON in model output: %w", err)
	}

	return normalizeEntities(v)
}

// normalizeEntities accepts either a bare list or an object holding an
// "entities" list. Non-object list elements are skipped, but a non-empty
// list without a single object is rejected as the wrong shape.
func normalizeEntities(v any) ([]domain.RawEntity, error) {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		entities, ok := t["entities"].([]any)
		if !ok {
			return nil, errWrongShape
		}
		list = entities
	default:
		return nil, errWrongShape
	}

	records := make([]domain.RawEntity, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, domain.RawEntity(obj))
		}
	}
	if len(list) > 0 && len(records) == 0 {
		return nil, errWrongShape
	}
	return records, nil
}
