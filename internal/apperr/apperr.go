// Package apperr defines the error taxonomy shared across services: user
// input errors (validation), missing entities (not found), and everything
// else, which stays a plain wrapped error. Handlers map these to HTTP
// statuses with errors.As.
package apperr

import (
	"fmt"
)

// ValidationError reports invalid user input. It is returned before any
// persistence happens and maps to a 400 at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing session, badge, or user.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// NotFound builds a NotFoundError.
func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}
