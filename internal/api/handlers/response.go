package handlers

import (
	"time"

	"github.com/cloo-solutions/docextract/internal/domain"
)

type RunResponse struct {
	ID              string                `json:"id"`
	DocumentName    string                `json:"document_name"`
	Mode            domain.ExtractionMode `json:"mode"`
	ChunkCount      int                   `json:"chunk_count"`
	FailedChunks    []domain.ChunkFailure `json:"failed_chunks"`
	EntityCount     int                   `json:"entity_count"`
	DroppedEntities int                   `json:"dropped_entities"`
	ExtractionDate  string                `json:"extraction_date,omitempty"`
	StartedAt       string                `json:"started_at"`
	FinishedAt      string                `json:"finished_at"`
}

func runToResponse(r *domain.ExtractionRun) *RunResponse {
	failures := r.FailedChunks
	if failures == nil {
		failures = []domain.ChunkFailure{}
	}
	return &RunResponse{
		ID:              r.ID,
		DocumentName:    r.DocumentName,
		Mode:            r.Mode,
		ChunkCount:      r.ChunkCount,
		FailedChunks:    failures,
		EntityCount:     r.EntityCount,
		DroppedEntities: r.DroppedEntities,
		ExtractionDate:  r.ExtractionDate,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:      r.FinishedAt.UTC().Format(time.RFC3339),
	}
}

type JobResponse struct {
	ID           string                     `json:"id"`
	DocumentName string                     `json:"document_name"`
	Mode         domain.ExtractionMode      `json:"mode"`
	SourceKey    string                     `json:"source_key,omitempty"`
	Status       domain.ExtractionJobStatus `json:"status"`
	Retries      int32                      `json:"retries"`
	Error        string                     `json:"error,omitempty"`
	RunID        string                     `json:"run_id,omitempty"`
	ResultKey    string                     `json:"result_key,omitempty"`
	CreatedAt    string                     `json:"created_at"`
	ProcessedAt  string                     `json:"processed_at,omitempty"`
}

func jobToResponse(j *domain.ExtractionJob) *JobResponse {
	resp := &JobResponse{
		ID:           j.ID,
		DocumentName: j.DocumentName,
		Mode:         j.Mode,
		SourceKey:    j.SourceKey,
		Status:       j.Status,
		Retries:      j.Retries,
		Error:        j.Error,
		RunID:        j.RunID,
		ResultKey:    j.ResultKey,
		CreatedAt:    j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		resp.ProcessedAt = j.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func entitiesOrEmpty(entities []domain.ExtractedEntity) []domain.ExtractedEntity {
	if entities == nil {
		return []domain.ExtractedEntity{}
	}
	return entities
}
