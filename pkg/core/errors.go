package core

import (
	"fmt"
)

// Error represents a failure at a component or gateway boundary.
type Error struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Param    string    `json:"param,omitempty"`
	Provider string    `json:"provider,omitempty"`
	wrapped  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrBusy           ErrorType = "busy_error"
	ErrUnavailable    ErrorType = "unavailable_error"
	ErrAPI            ErrorType = "api_error"
	ErrProvider       ErrorType = "provider_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewBusyError creates an error for a rejected concurrent request.
func NewBusyError(message string) *Error {
	return &Error{Type: ErrBusy, Message: message}
}

// NewUnavailableError creates an error for missing hardware or devices.
func NewUnavailableError(message string) *Error {
	return &Error{Type: ErrUnavailable, Message: message}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}

// NewProviderError creates a provider-specific error wrapping the cause.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:     ErrProvider,
		Provider: provider,
		Message:  underlying.Error(),
		wrapped:  underlying,
	}
}

// IsRetryable reports whether the failure class is transient. Gateway
// failures are never retried automatically; callers use this for surfacing.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrAPI, ErrProvider:
		return true
	default:
		return false
	}
}
