package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// RetryableStatusCode reports whether an HTTP status from the backend points
// at a transient condition. Covers timeouts, rate limits, server errors and
// the Cloudflare 52x range.
func RetryableStatusCode(statusCode int) bool {
	return statusCode >= 500 || statusCode == 429 || statusCode == 408
}

// NewBackendError creates an error for a backend API call. Retryability is
// determined here, at the point the error is produced, from the status code.
func NewBackendError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeBackendAPI, "backend API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithUserMessage("Message service is unavailable")

	switch {
	case statusCode == 401 || statusCode == 403:
		appErr.Code = ErrCodeAuthentication
	case statusCode == 400 || statusCode == 422:
		appErr.Code = ErrCodeValidationFailed
	case statusCode == 404:
		appErr.Code = ErrCodeNotFound
	case statusCode == 429:
		appErr.Code = ErrCodeRateLimit
	}

	appErr.Retryable = RetryableStatusCode(statusCode)
	return appErr
}

// NewNetworkError creates a retryable error for transport-level failures
// (connection reset, DNS failure, dial timeout) where no status code exists.
func NewNetworkError(endpoint string, err error) *AppError {
	return WrapRetryable(err, ErrCodeBackendAPI, "backend request failed").
		WithContext("endpoint", endpoint).
		WithUserMessage("Network error, retrying")
}

// NewFeedError creates a retryable error for realtime feed failures.
func NewFeedError(sessionID string, err error) *AppError {
	return WrapRetryable(err, ErrCodeRealtimeFeed, "realtime feed error").
		WithContext("session_id", sessionID)
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return WrapRetryable(nil, ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewCircuitOpenError creates the distinct "not even attempted" error returned
// when a category's circuit breaker refuses an operation.
func NewCircuitOpenError(category string) *AppError {
	return New(ErrCodeCircuitOpen, "circuit breaker is open").
		WithContext("category", category).
		WithUserMessage("Service is temporarily unavailable")
}
