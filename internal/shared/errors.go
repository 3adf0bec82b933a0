package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with current state (duplicates, references, stock).
	ErrConflict = errors.New("conflict")
	// ErrUnprocessable indicates well-formed input that references nothing usable.
	ErrUnprocessable = errors.New("unprocessable")
)

// ValidationError collects per-field validation messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError holding a single field message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: fmt.Sprintf(format, args...)}}
}

// Add records a message for field, keeping the first one reported.
func (e *ValidationError) Add(field, format string, args ...any) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = fmt.Sprintf(format, args...)
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// Err returns nil when no field failed, which lets callers return it directly.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
