package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntityType classifies an extracted entity
type EntityType string

const (
	EntityTypeIndividual   EntityType = "Individual"
	EntityTypeOrganization EntityType = "Organization"
	EntityTypeUnknown      EntityType = "Unknown"
)

// Identifier is an official identifier associated with an entity, such as a
// passport, registration number or tax ID.
type Identifier struct {
	Type           string `json:"type"`
	Value          string `json:"value"`
	IssuingCountry string `json:"issuing_country,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Address is a structured physical address.
type Address struct {
	Street        string `json:"street,omitempty"`
	City          string `json:"city,omitempty"`
	StateProvince string `json:"state_province,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country"`
	FullAddress   string `json:"full_address"`
}

// LocationLink ties an entity to a place, e.g. Nationality or Residency.
type LocationLink struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Country  string `json:"country,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// DatedEvent is a key date for an entity, e.g. Birth or Incorporation.
type DatedEvent struct {
	Type  string `json:"type"`
	Date  string `json:"date"`
	Notes string `json:"notes,omitempty"`
}

// Assertion is a free-form fact or claim about an entity not covered by a
// more specific field.
type Assertion struct {
	Type           string         `json:"type"`
	Description    string         `json:"description"`
	SourceCitation string         `json:"source_citation,omitempty"`
	EffectiveDate  string         `json:"effective_date,omitempty"`
	EndDate        string         `json:"end_date,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// Relationship links this entity to another named entity.
type Relationship struct {
	RelatedEntityName string `json:"related_entity_name"`
	RelatedEntityID   string `json:"related_entity_id,omitempty"`
	RelationshipType  string `json:"relationship_type"`
}

// Metadata records provenance and confidence for one entity.
type Metadata struct {
	SourceDocumentName string  `json:"source_document_name"`
	ExtractionDate     string  `json:"extraction_date"`
	ConfidenceScore    float64 `json:"confidence_score"`
	Notes              string  `json:"notes,omitempty"`
}

// ExtractedEntity is one individual or organization profile derived from a
// single chunk of a document.
type ExtractedEntity struct {
	RecordID      string         `json:"record_id"`
	EntityType    EntityType     `json:"entity_type"`
	PrimaryName   string         `json:"primary_name"`
	Aliases       []string       `json:"aliases"`
	Identifiers   []Identifier   `json:"identifiers"`
	Addresses     []Address      `json:"addresses"`
	Locations     []LocationLink `json:"locations"`
	Dates         []DatedEvent   `json:"dates"`
	Assertions    []Assertion    `json:"assertions"`
	Relationships []Relationship `json:"relationships"`
	Metadata      Metadata       `json:"metadata"`
	RawSourceText string         `json:"raw_source_text"`
}

// RawEntity is one entity record as decoded from model output, before
// provenance stamping and validation.
type RawEntity map[string]any

// ExtractionResult is the aggregate output of one extraction run.
type ExtractionResult struct {
	Entities []ExtractedEntity `json:"entities"`
}

// NormalizeEntityType maps loose model labels onto the three known types
func NormalizeEntityType(label string) EntityType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "individual", "person", "people", "human":
		return EntityTypeIndividual
	case "organization", "organisation", "company", "corporation", "org":
		return EntityTypeOrganization
	default:
		return EntityTypeUnknown
	}
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if strings.TrimSpace(one) != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("aliases must be a string or list of strings: %w", err)
	}
	*s = many
	return nil
}

type entityWire struct {
	PrimaryName     string         `json:"primary_name"`
	EntityName      string         `json:"entity_name"`
	Name            string         `json:"name"`
	EntityType      string         `json:"entity_type"`
	ConfidenceScore *float64       `json:"confidence_score"`
	Aliases         stringList     `json:"aliases"`
	Identifiers     []Identifier   `json:"identifiers"`
	Addresses       []Address      `json:"addresses"`
	Locations       []LocationLink `json:"locations"`
	Dates           []DatedEvent   `json:"dates"`
	Assertions      []Assertion    `json:"assertions"`
	Relationships   []Relationship `json:"relationships"`
	Metadata        *struct {
		ConfidenceScore *float64 `json:"confidence_score"`
		Notes           string   `json:"notes"`
	} `json:"metadata"`
}

// DecodeEntity converts a raw model record into an ExtractedEntity with the
// given record ID. Provenance fields are left empty for the caller to stamp.
// A missing confidence score decodes as 0.
func DecodeEntity(recordID string, raw RawEntity) (*ExtractedEntity, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeValidation, "entity record is not serializable", err)
	}

	var w entityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeValidation, "entity record has unexpected shape", err)
	}

	name := firstNonEmpty(w.PrimaryName, w.EntityName, w.Name)

	e := &ExtractedEntity{
		RecordID:      recordID,
		EntityType:    NormalizeEntityType(w.EntityType),
		PrimaryName:   strings.TrimSpace(name),
		Aliases:       nonNil([]string(w.Aliases)),
		Identifiers:   nonNil(w.Identifiers),
		Addresses:     nonNil(w.Addresses),
		Locations:     nonNil(w.Locations),
		Dates:         nonNil(w.Dates),
		Assertions:    nonNil(w.Assertions),
		Relationships: nonNil(w.Relationships),
	}

	switch {
	case w.ConfidenceScore != nil:
		e.Metadata.ConfidenceScore = *w.ConfidenceScore
	case w.Metadata != nil && w.Metadata.ConfidenceScore != nil:
		e.Metadata.ConfidenceScore = *w.Metadata.ConfidenceScore
	}
	if w.Metadata != nil {
		e.Metadata.Notes = w.Metadata.Notes
	}

	return e, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
