/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is/errors.As;
  the API layer maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Validation errors - rejected locally, no state changes
  2. Conflict errors   - concurrent writer detected (document backend only)
  3. Backend errors    - connection or initialization failure

SEE ALSO:
  - scores.go, leave.go, queue.go: Raise these errors
  - api/handlers.go: Maps them to status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownGroup is returned when a referenced group does not exist.
	ErrUnknownGroup = errors.New("unknown group")

	// ErrInvalidDimension is returned when a dimension name is not one of
	// the four recognized axes.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrDuplicateName is returned when a rename targets an existing or
	// blank group name.
	ErrDuplicateName = errors.New("duplicate group name")

	// ErrInvalidHours is returned when a leave quantity is not positive
	// (or negative where zero is allowed).
	ErrInvalidHours = errors.New("invalid leave hours")

	// ErrNotFound is returned when an approval id is not in the queue.
	// Resolving a request twice yields this on the second call.
	ErrNotFound = errors.New("approval request not found")

	// ErrVersionConflict is returned by versioned backends when the remote
	// state changed since it was last loaded. Surfaced to the caller for
	// retry; never silently overwritten.
	ErrVersionConflict = errors.New("version conflict")

	// ErrBackendUnavailable is returned on connection or initialization
	// failure. Fatal for the operation, not for the process: in-memory
	// state stays whatever it was before the call.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownGroupError identifies the missing group.
type UnknownGroupError struct {
	Name string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("unknown group %q", e.Name)
}

func (e *UnknownGroupError) Unwrap() error { return ErrUnknownGroup }

// InvalidDimensionError identifies the rejected axis name.
type InvalidDimensionError struct {
	Dimension string
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension %q", e.Dimension)
}

func (e *InvalidDimensionError) Unwrap() error { return ErrInvalidDimension }

// DuplicateNameError identifies the colliding target name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	if e.Name == "" {
		return "group name must not be blank"
	}
	return fmt.Sprintf("group %q already exists", e.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// InvalidHoursError carries the rejected quantity.
type InvalidHoursError struct {
	Hours string
}

func (e *InvalidHoursError) Error() string {
	return fmt.Sprintf("invalid leave hours %s", e.Hours)
}

func (e *InvalidHoursError) Unwrap() error { return ErrInvalidHours }

// VersionConflictError reports the token mismatch detected by a versioned
// backend.
type VersionConflictError struct {
	Expected VersionToken
	Actual   VersionToken
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict: expected %s, found %s", e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is a locally-recovered validation
// failure (operation rejected, no state changed).
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownGroup) ||
		errors.Is(err, ErrInvalidDimension) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrBackendUnavailable)
}
