package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports missing or blank required input. It is raised before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Field + " is invalid"
	}
	return e.Message
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a reference to an id that does not exist.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

// ConnectionFailure distinguishes the cause of a ConnectionError.
type ConnectionFailure string

const (
	FailureMissingParameters ConnectionFailure = "missing_parameters"
	FailureHostRefused       ConnectionFailure = "host_refused"
	FailureDatabaseMissing   ConnectionFailure = "database_missing"
	FailureBadCredentials    ConnectionFailure = "bad_credentials"
	FailureUnreachable       ConnectionFailure = "unreachable"
	FailureInactive          ConnectionFailure = "inactive"
)

// Message is the user-facing description of the failure.
func (f ConnectionFailure) Message() string {
	switch f {
	case FailureMissingParameters:
		return "Missing required connection parameters"
	case FailureHostRefused:
		return "Could not connect to host: Connection refused"
	case FailureDatabaseMissing:
		return "Database does not exist"
	case FailureBadCredentials:
		return "Authentication failed: Invalid credentials"
	case FailureUnreachable:
		return "Failed to establish connection"
	case FailureInactive:
		return "Connection is not active"
	default:
		return "Connection failed"
	}
}

// NewConnectionError builds a ConnectionError with the failure's standard message.
func NewConnectionError(f ConnectionFailure, err error) *ConnectionError {
	return &ConnectionError{Failure: f, Message: f.Message(), Err: err}
}

// ConnectionError reports a reachability or authentication failure.
type ConnectionError struct {
	Failure ConnectionFailure
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps the cause of a failed statement.
type ExecutionError struct {
	Cause string
	Err   error
}

func (e *ExecutionError) Error() string {
	return "Query execution failed: " + e.Cause
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PersistenceError aggregates every per-record failure of an external store write.
type PersistenceError struct {
	Operation string
	Reasons   []string
}

func (e *PersistenceError) Error() string {
	if len(e.Reasons) == 1 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Reasons[0])
	}
	return fmt.Sprintf("%s: %d record(s) failed: %s", e.Operation, len(e.Reasons), strings.Join(e.Reasons, "; "))
}
