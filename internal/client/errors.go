package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProviderUnavailable is returned when the provider cannot be reached,
	// keeps failing with 5xx responses, or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited is returned once 429 responses outlast every retry.
	// Errors wrapping it also match ErrProviderUnavailable.
	ErrRateLimited = errors.New("provider rate limit exceeded")
)

// RequestError is a non-retryable 4xx response from the provider
type RequestError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.IsAuth() {
		return fmt.Sprintf("provider authentication failed on %s (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsAuth reports whether the provider rejected the API key
func (e *RequestError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// isClientError reports whether err is a 4xx that says nothing about provider health
func isClientError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}
