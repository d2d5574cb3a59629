// Package domain provides shared domain-level sentinel and typed errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates the requested entity does not exist in the caller's tenant.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness or concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource already exists or was modified")

// ErrUnauthenticated covers every failure to establish who the caller is.
var ErrUnauthenticated = errors.New("authentication required")

// ErrInvalidCredentials is returned for both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountSuspended is returned at login when the account's tenant is inactive.
var ErrAccountSuspended = errors.New("account suspended")

// ErrForbidden indicates an authenticated caller lacks the required role or tenant.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyOnPlan indicates a plan change to the tenant's current plan.
var ErrAlreadyOnPlan = errors.New("tenant is already on the requested plan")

// ErrMissingScope is returned by stores when called without a tenant scope.
var ErrMissingScope = errors.New("tenant scope is required")

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level validation failures.
type ValidationError struct {
	Fields []FieldError
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e if any field failed, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid is shorthand for a single-field ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// QuotaExceededError reports that a tenant reached its active note limit.
type QuotaExceededError struct {
	Current int
	Limit   int
}

// Error implements error.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("note limit reached: %d of %d active notes", e.Current, e.Limit)
}
