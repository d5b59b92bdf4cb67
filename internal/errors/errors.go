package errors

import (
	"fmt"
	"net/http"
)

// APIError is a status-API failure with its RFC 7807 problem type
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Type       string      `json:"type"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of e carrying details
func (e *APIError) WithDetails(details interface{}) *APIError {
	out := *e
	out.Details = details
	return &out
}

func newAPIError(statusCode int, problemType, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Type:       problemType,
		Message:    message,
	}
}

// Errors served by the status API
var (
	ErrWebSocketUpgrade  = newAPIError(http.StatusBadRequest, TypeWebSocketUpgrade, "WEBSOCKET_UPGRADE_REQUIRED", "WebSocket upgrade required")
	ErrRunNotFound       = newAPIError(http.StatusNotFound, TypeRunNotFound, "RUN_NOT_FOUND", "No run has been recorded yet")
	ErrRateLimitExceeded = newAPIError(http.StatusTooManyRequests, TypeRateLimit, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
)

// NotFoundError reports a missing part of the latest run
func NotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, TypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource)).
		WithDetails(resource)
}

// ErrRunFailed reports the failure of the latest run
func ErrRunFailed(err error) *APIError {
	return newAPIError(http.StatusUnprocessableEntity, TypeRunFailed, "RUN_FAILED", "The latest run failed").
		WithDetails(err.Error())
}
