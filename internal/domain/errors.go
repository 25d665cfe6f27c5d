package domain

import "fmt"

// Error types for consistent error handling across the assistant.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrHTTPStatus is a non-2xx answer from an upstream HTTP API.
type ErrHTTPStatus struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ErrHTTPStatus) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *ErrHTTPStatus) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// MalformedAnalysisError carries the raw model output that could not be
// decoded into a QuestionAnalysis.
type MalformedAnalysisError struct {
	Raw string
	Err error
}

func (e *MalformedAnalysisError) Error() string {
	return fmt.Sprintf("malformed analysis: %v", e.Err)
}

func (e *MalformedAnalysisError) Unwrap() error {
	return e.Err
}
