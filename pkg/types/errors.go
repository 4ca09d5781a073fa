package types

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes an extraction failure.
type ErrorKind string

const (
	ErrFileAccess        ErrorKind = "file_access"
	ErrIO                ErrorKind = "io_error"
	ErrMemory            ErrorKind = "memory_error"
	ErrDependencyMissing ErrorKind = "dependency_missing"
	ErrCorruptedFile     ErrorKind = "corrupted_file"
	ErrProcessingFailed  ErrorKind = "processing_failed"
	ErrUnknown           ErrorKind = "unknown"
)

// Severity grades how serious an extraction failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Sentinel errors recognized by the classifier.
var (
	// ErrNotRegularFile is returned when a path exists but is not a
	// regular file (directory, socket, device).
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrCapabilityUnavailable is reported when a category's extraction
	// capability is not wired in.
	ErrCapabilityUnavailable = errors.New("extraction capability unavailable")
	// ErrCorrupted signals that a capability recognized the file but
	// could not decode it.
	ErrCorrupted = errors.New("corrupted file content")
)

// ExtractError is the structured error carried by extraction and scan
// results. It never propagates as a panic; public operations return it
// inside their result values.
type ExtractError struct {
	Kind             ErrorKind
	Severity         Severity
	Message          string
	Recoverable      bool
	RetryRecommended bool
	// Attempts records how many attempts were made before this error
	// was surfaced, when the error ended a retry loop.
	Attempts int
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Severity, e.Message)
}

// Clone returns a copy so cached results never alias caller state.
func (e *ExtractError) Clone() *ExtractError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// NewExtractError builds an ExtractError with the default policy for the
// given kind.
func NewExtractError(kind ErrorKind, msg string) *ExtractError {
	e := &ExtractError{Kind: kind, Message: msg}
	switch kind {
	case ErrFileAccess:
		e.Severity = SeverityHigh
	case ErrIO:
		e.Severity = SeverityMedium
		e.Recoverable = true
		e.RetryRecommended = true
	case ErrMemory:
		e.Severity = SeverityCritical
	case ErrDependencyMissing:
		e.Severity = SeverityHigh
	case ErrCorruptedFile:
		e.Severity = SeverityHigh
		e.Recoverable = true
	case ErrProcessingFailed:
		e.Severity = SeverityHigh
	default:
		e.Kind = ErrUnknown
		e.Severity = SeverityMedium
		e.Recoverable = true
	}
	return e
}
