package domain

import "time"

// ExtractionMode selects how a document is fed to the model
type ExtractionMode string

const (
	// ExtractionModeChunked segments and chunks the document, one model call per chunk
	ExtractionModeChunked ExtractionMode = "chunked"
	// ExtractionModeSingle sends the whole document as a single chunk
	ExtractionModeSingle ExtractionMode = "single"
)

// DefaultDocumentName is used when the caller does not name the document
const DefaultDocumentName = "Unnamed Document"

// IsValidExtractionMode reports whether m is a known mode
func IsValidExtractionMode(m ExtractionMode) bool {
	switch m {
	case ExtractionModeChunked, ExtractionModeSingle:
		return true
	}
	return false
}

// ChunkFailure records a chunk whose extraction could not complete
type ChunkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ExtractionRun summarises one pass of the pipeline over one document
type ExtractionRun struct {
	ID              string
	DocumentName    string
	Mode            ExtractionMode
	ChunkCount      int
	FailedChunks    []ChunkFailure
	EntityCount     int
	DroppedEntities int
	ExtractionDate  string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Succeeded reports whether at least one chunk completed, or there was
// nothing to extract at all
func (r *ExtractionRun) Succeeded() bool {
	return r.ChunkCount == 0 || len(r.FailedChunks) < r.ChunkCount
}
