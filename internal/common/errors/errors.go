// Package errors provides the error taxonomy for catalog loading and bus
// search, plus the single translation point to user-facing messages.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCatalogLoadFailed ErrorCode = "CATALOG_LOAD_FAILED"
	ErrCodeUnknownState      ErrorCode = "UNKNOWN_STATE"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeInvalidFilter ErrorCode = "INVALID_FILTER"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// NoResultsMessage is shown when a search succeeds with zero rows.
const NoResultsMessage = "No buses found matching your criteria. Please try different filters."

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCatalogLoadFailedError reports one state's route file as unusable.
// It is a warning-level condition: the state degrades to an empty list.
func NewCatalogLoadFailedError(state, file string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogLoadFailed,
		Message:   "Could not load routes for state",
		Details:   fmt.Sprintf("state: %s, file: %s, error: %v", state, file, err),
		Retryable: false,
		Metadata:  map[string]interface{}{"state": state, "file": file},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewUnknownStateError(state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownState,
		Message:   "Unknown state",
		Details:   fmt.Sprintf("state: %s", state),
		Retryable: false,
		Metadata:  map[string]interface{}{"state": state},
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryRejectedError reports a query failure that repeats on every
// attempt, such as an SQL error or an undecodable row.
func NewQueryRejectedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query rejected",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryTimeoutError is not retried: the caller's deadline is already spent.
func NewQueryTimeoutError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidFilterError rejects criteria before they reach the store.
// fields lists the offending filter names.
func NewInvalidFilterError(details string, fields ...string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeInvalidFilter,
		Message:   "Invalid search filters",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	if len(fields) > 0 {
		e.Metadata = map[string]interface{}{"fields": fields}
	}
	return e
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Classification
// ==========================

// AsStandard extracts a StandardError from err, wrapping anything else as
// an internal error.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// UserMessage translates an error into text safe to show an end user.
// Driver and query details never leave this function.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := AsStandard(err)
	switch stdErr.Code {
	case ErrCodeInvalidFilter:
		if fields, ok := stdErr.Metadata["fields"].([]string); ok && len(fields) > 0 {
			return fmt.Sprintf("Invalid search filters (%s). Please check your selections.", strings.Join(fields, ", "))
		}
		return "Invalid search filters. Please check your selections."
	case ErrCodeUnknownState:
		return "The selected state is not available."
	case ErrCodeCatalogLoadFailed:
		return "Routes for the selected state are currently unavailable."
	case ErrCodeDatabaseConnectionFailed:
		return "Database connection failed. Please try again later."
	case ErrCodeQueryExecutionFailed, ErrCodeQueryTimeout:
		return "Search failed. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch AsStandard(err).Code {
	case ErrCodeInvalidFilter:
		return http.StatusBadRequest
	case ErrCodeUnknownState:
		return http.StatusNotFound
	case ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	case ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount is the number of job-level retries granted per code.
// Connection and execution failures were already retried by the search
// service, so the job is not retried again.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryTimeout:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError builds the engine-facing error. The message is the
// user-facing translation, not the internal details.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   UserMessage(stdErr),
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"errorCategory": GetErrorCategory(stdErr.Code),
			"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeCatalogLoadFailed, ErrCodeUnknownState:
		return "CATALOG"
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed, ErrCodeQueryTimeout:
		return "DATABASE"
	case ErrCodeInvalidFilter:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
