// Package apperr holds the error taxonomy shared by the workflow, the stores and the HTTP adapter.
// Callers wrap these sentinels with context (fmt.Errorf("%w: ...")) and match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a malformed or missing field, rejected before any write.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a uniqueness race or duplicate natural key.
	ErrConflict = errors.New("conflict")
	// ErrIncompleteConfiguration marks a parameter definition that lacks data for the dosing math.
	ErrIncompleteConfiguration = errors.New("incomplete configuration")
	// ErrInvalidStateTransition marks an attempt to mutate a terminal record or instance.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrTenantMismatch marks an entity that belongs to a different company.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound marks a missing entity within the caller's company.
	ErrNotFound = errors.New("not found")
	// ErrIncompleteParameters marks a conclude attempt while measurements are missing.
	ErrIncompleteParameters = errors.New("incomplete parameters")
)

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidTransitionf builds an ErrInvalidStateTransition with a formatted detail.
func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, fmt.Sprintf(format, args...))
}

// IncompleteParametersError is returned when a record cannot be concluded.
// It matches both ErrIncompleteParameters and ErrInvalidStateTransition.
type IncompleteParametersError struct {
	RecordID int64
	Missing  []string
}

func (e *IncompleteParametersError) Error() string {
	msg := fmt.Sprintf("cannot conclude: %d parameters missing", len(e.Missing))
	if len(e.Missing) > 0 {
		msg += " (" + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

func (e *IncompleteParametersError) Unwrap() []error {
	return []error{ErrIncompleteParameters, ErrInvalidStateTransition}
}
