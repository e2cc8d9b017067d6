package api

import (
	"fmt"
	"net/http"
	"time"
)

// ValidationError is a caller-fixable problem with the request itself.
type ValidationError struct {
	Field   string
	Message string
	// Details holds per-field messages produced by request binding.
	Details map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Status() int { return http.StatusBadRequest }

// UnsupportedProviderError means no registry entry exists for the requested provider.
type UnsupportedProviderError struct {
	Provider ProviderID
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("Unsupported AI service: %s", e.Provider)
}

func (e *UnsupportedProviderError) Status() int { return http.StatusBadRequest }

// RateLimitExceededError means the provider's sliding window is full.
type RateLimitExceededError struct {
	Provider ProviderID
	Limit    int
	Window   time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return "Rate limit exceeded"
}

func (e *RateLimitExceededError) Detail() string {
	return fmt.Sprintf("%s allows %d requests per %s", e.Provider, e.Limit, e.Window)
}

func (e *RateLimitExceededError) Status() int { return http.StatusTooManyRequests }

// UpstreamError wraps any failure of the single upstream call: transport errors, timeouts,
// non-2xx answers and payloads the provider's extractor could not read.
type UpstreamError struct {
	Provider ProviderID
	// StatusCode is the upstream HTTP status, or 0 when no response was received.
	StatusCode      int
	ProviderMessage string
	Timeout         bool
	Err             error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("AI service error (%s, status %d): %s", e.Provider, e.StatusCode, e.ProviderMessage)
	}
	return fmt.Sprintf("AI service error (%s): %s", e.Provider, e.ProviderMessage)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Status() int {
	if e.Timeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
