package custody

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("invalid state")
	ErrDuplicate    = errors.New("already exists")

	// ErrOwnerChanged: la operación fue pactada con un dueño que ya no lo es.
	ErrOwnerChanged = fmt.Errorf("%w: pet changed owner", ErrConflict)
)

// ValidationError lleva el detalle por campo. errors.Is(err, ErrInvalidInput) == true.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// StateError describe una transición intentada desde un estado inválido.
type StateError struct {
	Entity string
	Status string
	Op     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %q", e.Op, e.Entity, e.Status)
}

func (e *StateError) Unwrap() error { return ErrConflict }

func NewStateError(entity, op, status string) error {
	return &StateError{Entity: entity, Op: op, Status: status}
}
