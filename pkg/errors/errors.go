// Package errors provides custom error types for the curator system.
// These errors enable programmatic error checking with errors.Is and
// errors.As throughout the version store, conflict and branch packages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the curator system
var (
	// ErrNotFound indicates that a requested version, entity or branch was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSerialization indicates that an entity value cannot be serialized
	ErrSerialization = errors.New("serialization failed")

	// ErrMergeConflict indicates that a merge produced conflicts and was not committed
	ErrMergeConflict = errors.New("merge conflict")

	// ErrConflictsUnresolved indicates that a workflow item still carries conflicts
	ErrConflictsUnresolved = errors.New("unresolved conflicts")

	// ErrStale indicates that the entity log moved while an operation was in flight
	ErrStale = errors.New("stale version")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// SerializationError is raised when an entity value cannot be encoded,
// for example because it contains a cycle, a NaN or an unsupported type.
type SerializationError struct {
	EntityID string
	Message  string
	Err      error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("cannot serialize entity %s: %s", e.EntityID, e.Message)
	}
	return fmt.Sprintf("cannot serialize value: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

// NewSerializationError creates a new SerializationError
func NewSerializationError(entityID string, err error) *SerializationError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &SerializationError{EntityID: entityID, Message: message, Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// MergeConflictError reports the conflicting paths of a merge that was
// not committed. It is carried in merge results rather than returned.
type MergeConflictError struct {
	Target string
	Source string
	Paths  []string
}

// Error implements the error interface
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict between %s and %s on: %s", e.Source, e.Target, strings.Join(e.Paths, ", "))
}

// Is implements errors.Is support
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// NewMergeConflictError creates a new MergeConflictError
func NewMergeConflictError(target, source string, paths []string) *MergeConflictError {
	return &MergeConflictError{Target: target, Source: source, Paths: paths}
}

// ConflictsUnresolvedError is returned when a workflow item with pending
// conflicts is handed to an operation that requires a clean item.
type ConflictsUnresolvedError struct {
	EntityID   string
	Properties []string
}

// Error implements the error interface
func (e *ConflictsUnresolvedError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("entity %s has %d unresolved conflicts: %s", e.EntityID, len(e.Properties), strings.Join(e.Properties, ", "))
	}
	return fmt.Sprintf("%d unresolved conflicts: %s", len(e.Properties), strings.Join(e.Properties, ", "))
}

// Is implements errors.Is support
func (e *ConflictsUnresolvedError) Is(target error) bool {
	return target == ErrConflictsUnresolved
}

// StaleError indicates that the latest version of an entity changed between
// read and commit.
type StaleError struct {
	EntityID string
	Expected string
	Actual   string
}

// Error implements the error interface
func (e *StaleError) Error() string {
	return fmt.Sprintf("entity %s moved: expected latest %q, found %q", e.EntityID, e.Expected, e.Actual)
}

// Is implements errors.Is support
func (e *StaleError) Is(target error) bool {
	return target == ErrStale
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// IOError represents an error during I/O operations against a backing store
type IOError struct {
	Operation string // "get", "put", "delete", "list", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "restore", "merge", "branch", "cleanup"
	Resource  string // "version", "entity", "branch", "store"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSerialization checks if an error is a serialization error
func IsSerialization(err error) bool {
	return errors.Is(err, ErrSerialization)
}

// IsMergeConflict checks if an error reports merge conflicts
func IsMergeConflict(err error) bool {
	return errors.Is(err, ErrMergeConflict)
}

// IsStale checks if an error reports a stale read
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapSerialization wraps an error as a SerializationError
func WrapSerialization(entityID string, err error) error {
	if err == nil {
		return nil
	}
	return NewSerializationError(entityID, err)
}
