// Package apperr defines the error taxonomy shared by the engine, the stores
// and the HTTP boundary
package apperr

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when an operation arrives without an owner
var ErrUnauthorized = errors.New("unauthorized")

// ErrConflict marks store failures that are transient write conflicts.
// Stores wrap their driver errors with it so callers can match on it
var ErrConflict = errors.New("transaction conflict")

// ValidationError reports a missing or malformed input field.
// It is raised before anything is written
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid is a shorthand for creating a ValidationError
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an entity that is absent or not owned by the caller
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound is a shorthand for creating a NotFoundError
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// TransactionAbortError wraps any failure that aborted a unit of work
type TransactionAbortError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *TransactionAbortError) Error() string {
	return fmt.Sprintf("transaction %s aborted after %d attempt(s): %v", e.Op, e.Attempts, e.Cause)
}

func (e *TransactionAbortError) Unwrap() error {
	return e.Cause
}

// DriftWarning describes a denormalized value that no longer matches its
// source documents. Warnings are logged, never returned to request callers
type DriftWarning struct {
	Kind     string `json:"kind"`
	OwnerID  string `json:"owner_id"`
	ClientID string `json:"client_id"`
	Detail   string `json:"detail"`
}

func (w DriftWarning) String() string {
	return fmt.Sprintf("%s client=%s: %s", w.Kind, w.ClientID, w.Detail)
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDomain reports whether err is a caller-facing error that must pass
// through a transaction boundary unwrapped
func IsDomain(err error) bool {
	return IsNotFound(err) || IsValidation(err) || errors.Is(err, ErrUnauthorized)
}
