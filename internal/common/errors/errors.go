// Package errors provides standardized error handling for the
// prior-authorization assessment engine and its BPMN workflow boundary.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Pipeline taxonomy.
	ErrCodeSchemaViolation      ErrorCode = "SCHEMA_VIOLATION"
	ErrCodeConnectorUnavailable ErrorCode = "CONNECTOR_UNAVAILABLE"
	ErrCodeValidationNegative   ErrorCode = "VALIDATION_NEGATIVE"
	ErrCodeLowConfidence        ErrorCode = "LOW_CONFIDENCE_WARNING"
	ErrCodeAssessmentCancelled  ErrorCode = "ASSESSMENT_CANCELLED"

	// Connector transport errors.
	ErrCodeRegistryTimeout     ErrorCode = "REGISTRY_TIMEOUT"
	ErrCodeCodeLookupFailed    ErrorCode = "CODE_LOOKUP_FAILED"
	ErrCodeSearchQueryFailed   ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout       ErrorCode = "SEARCH_TIMEOUT"
	ErrCodePolicyIndexNotFound ErrorCode = "POLICY_INDEX_NOT_FOUND"

	// Infrastructure errors.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateWaypoint        ErrorCode = "DUPLICATE_WAYPOINT"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the error code from an error chain, or "" if the
// chain holds no StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable StandardError.
// Plain errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSchemaViolationError rejects a malformed request before any
// connector call is made. Never retryable.
func NewSchemaViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaViolation,
		Message:   "Request failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectorUnavailableError is the fatal outcome of a mandatory
// connector that could not be reached. The assessment aborts before any
// waypoint is produced; the workflow layer may retry the whole job.
func NewConnectorUnavailableError(connector string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeConnectorUnavailable,
		Message:   fmt.Sprintf("Mandatory connector '%s' unavailable", connector),
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"connector": connector},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationNegativeError records a connector that was reached and
// returned a negative finding. Non-fatal: it feeds the gating rubric.
func NewValidationNegativeError(connector, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationNegative,
		Message:   fmt.Sprintf("Connector '%s' returned a negative finding", connector),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"connector": connector},
		Timestamp: time.Now().UTC(),
	}
}

// NewLowConfidenceWarning flags aggregate or per-criterion confidence
// below the soft threshold. Non-fatal.
func NewLowConfidenceWarning(score float64, threshold float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeLowConfidence,
		Message:   "Assessment confidence below soft threshold",
		Details:   fmt.Sprintf("score: %.1f, threshold: %.1f", score, threshold),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssessmentCancelledError reports caller cancellation. All partial
// state is discarded.
func NewAssessmentCancelledError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeAssessmentCancelled,
		Message:   "Assessment cancelled by caller",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryTimeoutError creates a retryable provider-registry timeout.
func NewRegistryTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryTimeout,
		Message:   "Provider registry call timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCodeLookupFailedError creates a retryable code-validation transport error.
func NewCodeLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCodeLookupFailed,
		Message:   "Code validation service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable policy search error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Coverage policy search error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable policy search timeout.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Coverage policy search timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPolicyIndexNotFoundError creates a non-retryable missing-index error.
func NewPolicyIndexNotFoundError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodePolicyIndexNotFound,
		Message:   "Coverage policy index not found",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateWaypointError rejects a second write of the same
// assessment. Waypoints are write-once.
func NewDuplicateWaypointError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateWaypoint,
		Message:   "Waypoint already persisted for request",
		Details:   fmt.Sprintf("requestId: %s", requestID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda
// workflow engine at the worker boundary.
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
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// GetRetryCount returns the workflow-level retry budget per code.
// This is distinct from the orchestrator's single in-process retry on
// transient connector failures.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeConnectorUnavailable,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeCodeLookupFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeRegistryTimeout,
		ErrCodeSearchTimeout:
		return 2

	default:
		return 0 // Business/validation errors: no workflow retry.
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code carries a workflow retry budget.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CONNECTOR") || strings.Contains(codeStr, "REGISTRY") || strings.Contains(codeStr, "CODE_LOOKUP"):
		return "CONNECTOR"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "POLICY"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "WAYPOINT"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "CONFIDENCE"):
		return "SCORING"
	default:
		return "OTHER"
	}
}
