// Package shared contains common domain errors used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// ErrNotFound: unknown user, institution or snapshot.
	ErrNotFound = errors.New("entity not found")

	// ErrValidation: malformed configuration or input.
	ErrValidation = errors.New("validation error")

	// ErrInvalidInput: a request argument is out of the accepted domain.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable: transient storage failure, safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRaceDetected: a uniqueness constraint suppressed a duplicate award.
	// Callers treat it as a successful no-op.
	ErrRaceDetected = errors.New("duplicate award suppressed")

	// ErrTimeout: the operation hit its deadline.
	ErrTimeout = errors.New("operation timeout")

	// ErrVersionConflict: a snapshot changed between read and write.
	ErrVersionConflict = errors.New("version conflict")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "stats", "ledger", "catalog"
	Op      string // Operation that failed, e.g., "Recompute", "Append"
	Kind    error  // Base error kind for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on both the kind and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Stats errors
var (
	ErrSnapshotNotFound = NewDomainError("stats", "Get", ErrNotFound, "stats snapshot not found")
	ErrStaleSnapshot    = NewDomainError("stats", "Upsert", ErrVersionConflict, "snapshot was updated concurrently")
)

// Identity errors
var (
	ErrUserNotFound        = NewDomainError("identity", "GetUser", ErrNotFound, "user not found")
	ErrInstitutionNotFound = NewDomainError("identity", "GetInstitution", ErrNotFound, "institution not found")
)

// Report errors
var (
	ErrReportOwnerConflict = NewDomainError("report", "Save", ErrInvalidInput, "report id already belongs to another user")
)

// Ledger errors
var (
	ErrDuplicateAward = NewDomainError("ledger", "Append", ErrRaceDetected, "idempotency key already used")
)

// Leaderboard errors
var (
	ErrInvalidScope    = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard scope")
	ErrInvalidPeriod   = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard period")
	ErrInvalidCategory = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard category")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRaceDetected checks if the error signals an idempotently suppressed duplicate.
func IsRaceDetected(err error) bool {
	return errors.Is(err, ErrRaceDetected)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsStoreUnavailable checks if the error is a transient storage failure.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return IsStoreUnavailable(err)
}
