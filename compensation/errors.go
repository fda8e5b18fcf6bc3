/*
errors.go - Error types for the compensation engine

ERROR CATEGORIES:
  1. Resolution and aggregation: none. Both are total.
  2. Invalidation: transient store failures, surfaced as non-fatal warnings
  3. Client errors: malformed scopes, clock strings, unknown records

SEE ALSO:
  - invalidate.go: Produces InvalidationWarning
  - overrides.go: Returns the warning next to a successful save
*/
package compensation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidScope is returned when an override key is incomplete.
	ErrInvalidScope = errors.New("invalid override scope")

	// ErrInvalidStartTime is returned when a clock string is not HH:MM.
	ErrInvalidStartTime = errors.New("invalid start time")

	// ErrInvalidationIncomplete marks a sweep that could not clear every
	// cached value in its scope. The override write that triggered it stands.
	ErrInvalidationIncomplete = errors.New("cache invalidation incomplete")

	ErrOverrideNotFound   = errors.New("override not found")
	ErrSectorNotFound     = errors.New("sector not found")
	ErrWorkerNotFound     = errors.New("worker not found")
	ErrShiftNotFound      = errors.New("shift not found")
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrInvalidRange is returned when a report window ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ClockError reports an unparseable "HH:MM" string.
type ClockError struct {
	Input string
}

func (e *ClockError) Error() string {
	return fmt.Sprintf("invalid start time %q (want HH:MM)", e.Input)
}

func (e *ClockError) Unwrap() error { return ErrInvalidStartTime }

// InvalidationWarning is returned next to a committed override write when the
// follow-up sweep failed. Cached values in Scope may be stale until a retry
// succeeds.
type InvalidationWarning struct {
	Scope Scope
	Stage string // "list_shifts", "list_assignments" or "clear"
	Err   error
}

func (w *InvalidationWarning) Error() string {
	return fmt.Sprintf("cache invalidation for %s failed at %s: %v", w.Scope, w.Stage, w.Err)
}

func (w *InvalidationWarning) Unwrap() []error {
	return []error{ErrInvalidationIncomplete, w.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsWarning reports whether err is a non-fatal invalidation warning.
func IsWarning(err error) bool {
	return errors.Is(err, ErrInvalidationIncomplete)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScope) ||
		errors.Is(err, ErrInvalidStartTime) ||
		errors.Is(err, ErrInvalidRange)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOverrideNotFound) ||
		errors.Is(err, ErrSectorNotFound) ||
		errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrAssignmentNotFound)
}
