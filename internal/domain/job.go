package domain

import (
	"fmt"
	"time"
)

// ExtractionJobStatus represents the status of an asynchronous extraction job
type ExtractionJobStatus string

const (
	ExtractionJobStatusPending    ExtractionJobStatus = "pending"
	ExtractionJobStatusProcessing ExtractionJobStatus = "processing"
	ExtractionJobStatusCompleted  ExtractionJobStatus = "completed"
	ExtractionJobStatusFailed     ExtractionJobStatus = "failed"
)

// ExtractionJob is a queued request to extract entities from one document.
// The document is either inline (Text) or stored in object storage (SourceKey).
type ExtractionJob struct {
	ID           string
	DocumentName string
	Mode         ExtractionMode
	Text         string
	SourceKey    string
	Status       ExtractionJobStatus
	Retries      int32
	Error        string
	RunID        string // Set once the job completes
	ResultKey    string // Object key of the uploaded result, if any
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// ValidateExtractionJob validates an ExtractionJob instance
func ValidateExtractionJob(j *ExtractionJob) error {
	if j == nil {
		return fmt.Errorf("extraction job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("extraction job ID is required")
	}

	if j.Text == "" && j.SourceKey == "" {
		return fmt.Errorf("extraction job must have either Text or SourceKey")
	}

	if j.Text != "" && j.SourceKey != "" {
		return fmt.Errorf("extraction job cannot have both Text and SourceKey")
	}

	if !IsValidExtractionMode(j.Mode) {
		return fmt.Errorf("extraction job Mode is invalid: %s", j.Mode)
	}

	if !IsValidExtractionJobStatus(j.Status) {
		return fmt.Errorf("extraction job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("extraction job Retries cannot be negative")
	}

	return nil
}

// IsValidExtractionJobStatus reports whether s is a known job status
func IsValidExtractionJobStatus(s ExtractionJobStatus) bool {
	switch s {
	case ExtractionJobStatusPending, ExtractionJobStatusProcessing,
		ExtractionJobStatusCompleted, ExtractionJobStatusFailed:
		return true
	}
	return false
}
