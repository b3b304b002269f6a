package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ValidationResult is the outcome of validating one entity record.
// Valid results carry no problems; invalid ones list every problem found.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Err returns nil for a valid result, or a validation DomainError
// summarising the problems.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return NewDomainErrorWithCause(ErrInvalidEntity.Code, ErrInvalidEntity.Message,
		errors.New(strings.Join(r.Problems, "; ")))
}

// ValidateEntity checks a stamped entity against the output schema
func ValidateEntity(e *ExtractedEntity) ValidationResult {
	if e == nil {
		return ValidationResult{Problems: []string{"entity is nil"}}
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if e.RecordID == "" {
		add("record_id is required")
	}
	if !isValidEntityType(e.EntityType) {
		add("entity_type %q is invalid", e.EntityType)
	}
	if strings.TrimSpace(e.PrimaryName) == "" {
		add("primary_name is required")
	}
	if e.RawSourceText == "" {
		add("raw_source_text is required")
	}

	m := e.Metadata
	if m.SourceDocumentName == "" {
		add("metadata.source_document_name is required")
	}
	if m.ExtractionDate == "" {
		add("metadata.extraction_date is required")
	} else if _, err := time.Parse(time.RFC3339, m.ExtractionDate); err != nil {
		add("metadata.extraction_date %q is not RFC 3339", m.ExtractionDate)
	}
	if m.ConfidenceScore < 0 || m.ConfidenceScore > 1 {
		add("metadata.confidence_score %v is outside [0,1]", m.ConfidenceScore)
	}

	for i, id := range e.Identifiers {
		if id.Type == "" || id.Value == "" {
			add("identifiers[%d] requires type and value", i)
		}
	}
	for i, a := range e.Addresses {
		if a.Country == "" || a.FullAddress == "" {
			add("addresses[%d] requires country and full_address", i)
		}
	}
	for i, l := range e.Locations {
		if l.Type == "" || l.Location == "" {
			add("locations[%d] requires type and location", i)
		}
	}
	for i, d := range e.Dates {
		if d.Type == "" || d.Date == "" {
			add("dates[%d] requires type and date", i)
		}
	}
	for i, a := range e.Assertions {
		if a.Type == "" || a.Description == "" {
			add("assertions[%d] requires type and description", i)
		}
		if a.EffectiveDate != "" && !isDate(a.EffectiveDate) {
			add("assertions[%d].effective_date %q is not YYYY-MM-DD", i, a.EffectiveDate)
		}
		if a.EndDate != "" && !isDate(a.EndDate) {
			add("assertions[%d].end_date %q is not YYYY-MM-DD", i, a.EndDate)
		}
	}
	for i, r := range e.Relationships {
		if r.RelatedEntityName == "" || r.RelationshipType == "" {
			add("relationships[%d] requires related_entity_name and relationship_type", i)
		}
	}

	return ValidationResult{Valid: len(problems) == 0, Problems: problems}
}

func isValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypeIndividual, EntityTypeOrganization, EntityTypeUnknown:
		return true
	}
	return false
}

func isDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
