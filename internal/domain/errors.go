package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message, so wrapped sentinels
// still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors
var (
	ErrEmptyDocument         = NewDomainError(ErrCodeValidation, "document text is empty")
	ErrInvalidExtractionMode = NewDomainError(ErrCodeValidation, "invalid extraction mode")
	ErrInvalidJobStatus      = NewDomainError(ErrCodeValidation, "invalid extraction job status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidCursor         = NewDomainError(ErrCodeValidation, "invalid cursor")
	ErrInvalidEntity         = NewDomainError(ErrCodeValidation, "invalid entity record")
)

// Not found errors
var (
	ErrRunNotFound    = NewDomainError(ErrCodeNotFound, "extraction run not found")
	ErrJobNotFound    = NewDomainError(ErrCodeNotFound, "extraction job not found")
	ErrResultNotReady = NewDomainError(ErrCodeInvalidOperation, "extraction job has not completed")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Infrastructure errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrStorageNotConfigured = NewDomainError(ErrCodeUnavailable, "object storage not configured")
	ErrPersistenceDisabled  = NewDomainError(ErrCodeUnavailable, "persistence not configured")
	ErrAllChunksFailed      = NewDomainError(ErrCodeInternalError, "every chunk failed extraction")
)
