// Package errors provides the gateway error taxonomy and its mapping onto
// HTTP statuses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Startup
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Upstream outcomes
	ErrCodeTransportFailure         ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeUpstreamClientError      ErrorCode = "UPSTREAM_CLIENT_ERROR"
	ErrCodeUpstreamServerError      ErrorCode = "UPSTREAM_SERVER_ERROR"
	ErrCodeMalformedUpstreamSuccess ErrorCode = "MALFORMED_UPSTREAM_SUCCESS"

	// Raised by the gateway itself
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeCircuitOpen         ErrorCode = "CIRCUIT_OPEN"
	ErrCodeRequestBodyTooLarge ErrorCode = "REQUEST_BODY_TOO_LARGE"
	ErrCodeRequestReadFailed   ErrorCode = "REQUEST_READ_FAILED"
	ErrCodeMethodNotAllowed    ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRouteNotFound       ErrorCode = "ROUTE_NOT_FOUND"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Constructors
// ==========================

func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid gateway configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTransportFailureError(message, cause string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   message,
		Details:   cause,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRateLimitedError(label string, retryAfter time.Duration) *StandardError {
	return (&StandardError{
		Code:      ErrCodeRateLimited,
		Message:   fmt.Sprintf("Too many requests for %s", label),
		Details:   fmt.Sprintf("retry after %s", retryAfter.Round(time.Second)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}).WithMetadata("retryAfter", retryAfter)
}

func NewCircuitOpenError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   "External API temporarily unavailable",
		Details:   fmt.Sprintf("circuit breaker open for %s", resource),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewRequestBodyTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestBodyTooLarge,
		Message:   "Request body exceeds configured limit",
		Details:   fmt.Sprintf("limit: %d bytes", limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRequestReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestReadFailed,
		Message:   "Failed to read request body",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewMethodNotAllowedError(method, path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   "Method not allowed",
		Details:   fmt.Sprintf("%s %s", method, path),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRouteNotFoundError(path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRouteNotFound,
		Message:   "Route not found",
		Details:   path,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

var httpStatusMap = map[ErrorCode]int{
	ErrCodeConfiguration:            http.StatusInternalServerError,
	ErrCodeTransportFailure:         http.StatusInternalServerError,
	ErrCodeMalformedUpstreamSuccess: http.StatusBadGateway,
	ErrCodeRateLimited:              http.StatusTooManyRequests,
	ErrCodeCircuitOpen:              http.StatusServiceUnavailable,
	ErrCodeRequestBodyTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeRequestReadFailed:        http.StatusBadRequest,
	ErrCodeMethodNotAllowed:         http.StatusMethodNotAllowed,
	ErrCodeRouteNotFound:            http.StatusNotFound,
	ErrCodeInternal:                 http.StatusInternalServerError,
}

// GetHTTPStatus returns the status the gateway answers with for a
// gateway-originated error. Upstream client/server errors keep the upstream
// status and never go through this table.
func GetHTTPStatus(code ErrorCode) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetErrorCategory groups codes for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeConfiguration:
		return "configuration"
	case ErrCodeTransportFailure, ErrCodeCircuitOpen:
		return "transport"
	case ErrCodeUpstreamClientError:
		return "upstream_client"
	case ErrCodeUpstreamServerError, ErrCodeMalformedUpstreamSuccess:
		return "upstream_server"
	case ErrCodeRateLimited, ErrCodeRequestBodyTooLarge, ErrCodeRequestReadFailed,
		ErrCodeMethodNotAllowed, ErrCodeRouteNotFound:
		return "request"
	}
	return "internal"
}

// CodeForUpstreamStatus classifies a completed non-2xx upstream response.
func CodeForUpstreamStatus(status int) ErrorCode {
	if status >= 500 {
		return ErrCodeUpstreamServerError
	}
	return ErrCodeUpstreamClientError
}

// IsRetryable reports whether the dashboard may offer a retry for err.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// AsStandardError normalizes any error into a *StandardError.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
