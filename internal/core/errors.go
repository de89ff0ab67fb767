// Package core holds the ledger domain model and its error kinds.
//
// Error kinds are typed so the API boundary can map them to transport
// status codes without string matching. Lower layers wrap them with %w;
// callers unwrap with errors.As.
package core

import "fmt"

// ValidationError reports a rejected input, naming the failing field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing resource by kind and id.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// PermissionError reports a role failing the access gate for an operation.
type PermissionError struct {
	Role      Role
	Operation string
}

func NewPermissionError(role Role, operation string) *PermissionError {
	return &PermissionError{Role: role, Operation: operation}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s is not allowed to %s", e.Role, e.Operation)
}

// ConflictError reports a uniqueness violation, such as registering a
// category name twice.
type ConflictError struct {
	Resource string
	Key      string
}

func NewConflictError(resource, key string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.Key)
}
