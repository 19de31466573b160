package llm

import (
	"errors"
	"net/http"
	"time"
)

// ErrMissingCredential is returned by ProviderRegistry.Resolve when neither a
// per-model key nor a usable default credential exists for a model.
var ErrMissingCredential = errors.New("missing credential")

// ErrorType is the provider-neutral failure category.
type ErrorType string

const (
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
)

// Error is a transport failure translated out of a provider SDK. The
// engine reports every *Error as a TransportError.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error
}

func (e *Error) Error() string {
	if e.ProviderErr == nil {
		return e.Message
	}
	return e.Message + ": " + e.ProviderErr.Error()
}

func (e *Error) Unwrap() error {
	return e.ProviderErr
}

func newError(t ErrorType, message string, retryable bool, status int, cause error) *Error {
	return &Error{Type: t, Message: message, Retryable: retryable, StatusCode: status, ProviderErr: cause}
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsRateLimitError reports whether err is a provider rate limit.
func IsRateLimitError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrorTypeRateLimit
}

// IsRequestTooLargeError reports whether the provider rejected the request size.
func IsRequestTooLargeError(err error) bool {
	e, ok := asError(err)
	return ok && e.Type == ErrorTypeRequestTooLarge
}

// IsRetryableError reports whether repeating the call may succeed.
func IsRetryableError(err error) bool {
	e, ok := asError(err)
	return ok && e.Retryable
}

// ExtractRetryAfter returns the provider's requested delay, if any.
func ExtractRetryAfter(err error) *time.Duration {
	if e, ok := asError(err); ok {
		return e.RetryAfter
	}
	return nil
}

// NewRateLimitError creates a retryable rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	e := newError(ErrorTypeRateLimit, message, true, http.StatusTooManyRequests, providerErr)
	e.RetryAfter = retryAfter
	return e
}

// NewRequestTooLargeError creates an error for oversized requests. Media
// payloads are never trimmed, so retrying cannot help.
func NewRequestTooLargeError(message string, providerErr error) *Error {
	return newError(ErrorTypeRequestTooLarge, message, false, http.StatusRequestEntityTooLarge, providerErr)
}

// NewProviderError creates a non-retryable provider error.
func NewProviderError(message string, providerErr error) *Error {
	return newError(ErrorTypeProvider, message, false, 0, providerErr)
}

// NewAuthError creates an error for a rejected credential.
func NewAuthError(message string, providerErr error) *Error {
	return newError(ErrorTypeAuth, message, false, http.StatusUnauthorized, providerErr)
}

// NewNetworkError creates a retryable connectivity error.
func NewNetworkError(message string, providerErr error) *Error {
	return newError(ErrorTypeNetwork, message, true, 0, providerErr)
}

// NewServerError creates a retryable error for 5xx responses.
func NewServerError(message string, statusCode int, providerErr error) *Error {
	return newError(ErrorTypeProvider, message, true, statusCode, providerErr)
}

// FromStatus maps an HTTP status reported by a provider SDK onto the
// neutral taxonomy.
func FromStatus(provider string, statusCode int, providerErr error) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(provider+" rate limit exceeded", nil, providerErr)
	case statusCode == http.StatusRequestEntityTooLarge:
		return NewRequestTooLargeError(provider+" request too large", providerErr)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e := NewAuthError(provider+" rejected credentials", providerErr)
		e.StatusCode = statusCode
		return e
	case statusCode == http.StatusBadRequest || statusCode == http.StatusNotFound || statusCode == http.StatusUnprocessableEntity:
		return newError(ErrorTypeInvalidRequest, provider+" invalid request", false, statusCode, providerErr)
	case statusCode >= 500:
		return NewServerError(provider+" server error", statusCode, providerErr)
	default:
		e := NewProviderError(provider+" API error", providerErr)
		e.StatusCode = statusCode
		return e
	}
}
