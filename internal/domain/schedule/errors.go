package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound = errors.New("schedule entry not found")
	ErrValidation    = errors.New("invalid schedule entry")
	ErrConflict      = errors.New("schedule entry state conflict")
)

// ValidationError rejects an entry at creation time, before any monitor sees it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError is returned when an operation is not allowed in the entry's current status.
type ConflictError struct {
	ID     string
	Status Status
	Op     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s entry %s in status %s", e.Op, e.ID, e.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
