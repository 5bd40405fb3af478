// Package errors provides the structured error type used at the API and
// workflow boundaries of the agent.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeInvalidQuery            ErrorCode = "INVALID_QUERY"
	ErrCodeCompletionFailed        ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout       ErrorCode = "COMPLETION_TIMEOUT"
	ErrCodeExtractionParseFailed   ErrorCode = "EXTRACTION_PARSE_FAILED"
	ErrCodePredictionServiceFailed ErrorCode = "PREDICTION_SERVICE_FAILED"
	ErrCodePredictionTimeout       ErrorCode = "PREDICTION_TIMEOUT"
	ErrCodeSynthesisFailed         ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeCacheUnavailable        ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
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

// BPMNError is the shape thrown to the workflow engine.
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

// ToErrorVariables returns the variables attached to a failed or thrown job.
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidQueryError reports a malformed or empty query payload.
func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Query must be a non-empty string", details, false)
}

// NewCompletionFailedError reports a failed call to the completion service.
func NewCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeCompletionFailed, "Completion service error", err.Error(), true)
}

// NewCompletionTimeoutError reports a completion call that exceeded its deadline.
func NewCompletionTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeCompletionTimeout, "Completion service timeout",
		fmt.Sprintf("call exceeded %s", timeout), true)
}

// NewExtractionParseFailedError reports unparsable extraction output.
func NewExtractionParseFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionParseFailed, "Could not parse extracted parameters", err.Error(), false)
}

// NewPredictionServiceFailedError reports a failed prediction call.
func NewPredictionServiceFailedError(service string, err error) *StandardError {
	return newError(ErrCodePredictionServiceFailed,
		fmt.Sprintf("Prediction service '%s' error", service), err.Error(), true)
}

// NewPredictionTimeoutError reports a prediction call that exceeded its deadline.
func NewPredictionTimeoutError(service string) *StandardError {
	return newError(ErrCodePredictionTimeout,
		fmt.Sprintf("Prediction service '%s' timeout", service), "", true)
}

// NewSynthesisFailedError reports a failed narration call.
func NewSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Response synthesis error", err.Error(), true)
}

// NewCacheUnavailableError reports a response cache failure.
func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Response cache unavailable", err.Error(), false)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// AsStandardError normalizes any error to a StandardError.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// GetRetryCount returns how many times a workflow engine should retry the code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCompletionFailed,
		ErrCodePredictionServiceFailed,
		ErrCodeSynthesisFailed:
		return 3
	case ErrCodeCompletionTimeout,
		ErrCodePredictionTimeout:
		return 2
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// ConvertToBPMNError maps a StandardError onto the workflow error shape.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   GetRetryCount(stdErr.Code),
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns a coarse category for dashboards.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "COMPLETION"), strings.Contains(codeStr, "SYNTHESIS"),
		strings.Contains(codeStr, "EXTRACTION"):
		return "AI"
	case strings.Contains(codeStr, "PREDICTION"):
		return "PREDICTION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
