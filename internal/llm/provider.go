package llm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nulzo/model-bridge/pkg/api"
)

// PayloadBuilder maps a prompt, resolved model and optional settings to the provider's request body.
type PayloadBuilder func(prompt, model string, settings *api.Settings) (any, error)

// TextExtractor pulls the generated text out of a successful provider response.
// It must be pure: the same input always yields the same output.
type TextExtractor func(raw []byte) (string, error)

// Entry is the static description of one upstream provider.
type Entry struct {
	ID           api.ProviderID
	Endpoint     string
	Headers      map[string]string
	DefaultModel string
	// Timeout overrides the dispatcher default when > 0.
	Timeout time.Duration
	// MaxTemperature bounds settings.temperature; 0 means the provider declares no range.
	MaxTemperature float64
	// Configured reports whether credentials were supplied. Local providers are always configured.
	Configured bool

	Build   PayloadBuilder
	Extract TextExtractor
	// ErrorMessage pulls a human readable message from a failure body. Optional.
	ErrorMessage func(raw []byte) string
	// ResolveURL builds a model-specific endpoint. Optional, Endpoint is used otherwise.
	ResolveURL func(model string) string
}

// ResolveModel returns model, or the entry default when model is blank.
func (e *Entry) ResolveModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return e.DefaultModel
	}
	return model
}

func (e *Entry) URL(model string) string {
	if e.ResolveURL != nil {
		return e.ResolveURL(model)
	}
	return e.Endpoint
}

// Message extracts the provider message from a failure body, falling back to the raw text.
func (e *Entry) Message(raw []byte) string {
	if e.ErrorMessage != nil {
		if msg := e.ErrorMessage(raw); msg != "" {
			return msg
		}
	}
	return DefaultErrorMessage(raw)
}

const maxMessageLen = 512

// DefaultErrorMessage understands the common {"error":{"message":..}} and {"error":".."} shapes.
func DefaultErrorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if len(body.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if json.Unmarshal(body.Error, &flat) == nil && flat != "" {
				return flat
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}

	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return msg
}
