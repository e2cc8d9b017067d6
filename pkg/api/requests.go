package api

import (
	"context"
	"fmt"
	"strings"
)

// ProviderID identifies an upstream text-generation service.
type ProviderID string

const (
	Claude ProviderID = "claude"
	OpenAI ProviderID = "openai"
	Ollama ProviderID = "ollama"
	Gemini ProviderID = "gemini"
	Custom ProviderID = "custom"
)

// KnownProviders lists every provider the broker can be configured with, in display order.
var KnownProviders = []ProviderID{Claude, OpenAI, Ollama, Gemini, Custom}

// Known reports whether p is one of the built-in provider ids.
func (p ProviderID) Known() bool {
	for _, k := range KnownProviders {
		if p == k {
			return true
		}
	}
	return false
}

func (p ProviderID) String() string { return string(p) }

// GenerationRequest is the body of a synchronous call and the content of a request descriptor.
type GenerationRequest struct {
	// the upstream provider, e.g. "claude", "openai" or "ollama"
	Service ProviderID `json:"service"`

	// the text prompt, must be non-empty
	Prompt string `json:"prompt"`

	// provider specific model identifier, defaults to the provider's default model
	Model string `json:"model,omitempty"`

	Settings *Settings `json:"settings,omitempty"`
}

// Settings carries the optional generation knobs. Unknown keys are ignored by the decoder.
type Settings struct {
	MaxTokens   *int     `json:"maxTokens,omitempty" binding:"omitempty,gt=0"`
	Temperature *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0"`

	// Timeout of the upstream call in milliseconds.
	Timeout *int `json:"timeout,omitempty" binding:"omitempty,gt=0"`
	// TimeoutMillis is accepted as an alias of Timeout.
	TimeoutMillis *int `json:"timeoutMillis,omitempty" binding:"omitempty,gt=0"`
}

// TimeoutMS returns the requested upstream timeout in milliseconds, or 0 when unset.
func (s *Settings) TimeoutMS() int {
	if s == nil {
		return 0
	}
	if s.Timeout != nil {
		return *s.Timeout
	}
	if s.TimeoutMillis != nil {
		return *s.TimeoutMillis
	}
	return 0
}

// MaxTokensOr returns the requested max tokens or the fallback.
func (s *Settings) MaxTokensOr(fallback int) int {
	if s == nil || s.MaxTokens == nil {
		return fallback
	}
	return *s.MaxTokens
}

// TemperatureOr returns the requested temperature or the fallback.
func (s *Settings) TemperatureOr(fallback float64) float64 {
	if s == nil || s.Temperature == nil {
		return fallback
	}
	return *s.Temperature
}

// Validate checks the provider-independent invariants of a request.
func (r *GenerationRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "Prompt is required"}
	}
	if r.Settings == nil {
		return nil
	}
	if r.Settings.MaxTokens != nil && *r.Settings.MaxTokens <= 0 {
		return &ValidationError{Field: "settings.maxTokens", Message: "maxTokens must be a positive integer"}
	}
	if r.Settings.Temperature != nil && *r.Settings.Temperature < 0 {
		return &ValidationError{Field: "settings.temperature", Message: "temperature must not be negative"}
	}
	for _, t := range []*int{r.Settings.Timeout, r.Settings.TimeoutMillis} {
		if t != nil && *t <= 0 {
			return &ValidationError{Field: "settings.timeout", Message: "timeout must be a positive number of milliseconds"}
		}
	}
	return nil
}

// CheckTemperature validates the requested temperature against a provider's accepted range.
func (r *GenerationRequest) CheckTemperature(max float64) error {
	if r.Settings == nil || r.Settings.Temperature == nil || max <= 0 {
		return nil
	}
	if t := *r.Settings.Temperature; t > max {
		return &ValidationError{
			Field:   "settings.temperature",
			Message: fmt.Sprintf("temperature %.2f is outside the range [0, %.2f] accepted by %s", t, max, r.Service),
		}
	}
	return nil
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the caller-visible request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the request id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
