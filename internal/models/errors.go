package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents malformed or out-of-range request fields (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnsupportedModel represents a model id absent from the pricing catalog (404)
	ErrorTypeUnsupportedModel ErrorType = "unsupported_model"
	// ErrorTypeAuthentication represents upstream credential rejection (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeRateLimit represents upstream throttling, retryable (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeProvider represents any other upstream failure, including timeouts (500)
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeLedger represents a usage accounting persistence failure; never
	// surfaced to the caller, only to the operator channel
	ErrorTypeLedger ErrorType = "ledger"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeUnsupportedModel:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error naming the offending field
func NewValidationError(field, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    fmt.Sprintf("%s: %s", field, message),
		Code:       "invalid_argument",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewUnsupportedModelError creates an error for a model id absent from the catalog
func NewUnsupportedModelError(modelID string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnsupportedModel,
		Message:    fmt.Sprintf("unsupported model: %s", modelID),
		Code:       "unsupported_model",
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewAuthenticationError creates an upstream credential rejection error
func NewAuthenticationError(provider string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    fmt.Sprintf("provider %s rejected credentials", provider),
		Code:       "authentication_failed",
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewRateLimitError creates a retryable upstream throttling error
func NewRateLimitError(provider string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Message:    fmt.Sprintf("provider %s rate limit exceeded", provider),
		Code:       "rate_limit_exceeded",
		StatusCode: http.StatusTooManyRequests,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewProviderError creates an unclassified upstream failure
func NewProviderError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       "provider_error",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewTransientProviderError creates a retryable upstream failure such as a
// transient network error
func NewTransientProviderError(provider, message string, cause error) *AppError {
	err := NewProviderError(provider, message, cause)
	err.Retryable = true
	return err
}

// NewLedgerWriteError creates an accounting persistence failure
func NewLedgerWriteError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLedger,
		Message:    "usage ledger write failed",
		Code:       "ledger_write_failed",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		Code:       "internal_error",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption. The wrapped cause
// (which may carry upstream error text or credentials) is dropped.
func SanitizeError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "an unexpected error occurred",
		Code:       "internal_error",
		StatusCode: http.StatusInternalServerError,
	}
}
