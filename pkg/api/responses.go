package api

import (
	"encoding/json"
	"time"
)

// GenerationResult is the normalized outcome of one successful dispatch.
type GenerationResult struct {
	Text      string     `json:"text"`
	Provider  ProviderID `json:"provider"`
	Model     string     `json:"model"`
	RequestID string     `json:"request_id"`
	Timestamp time.Time  `json:"timestamp"`
}

// GenerationResponse is the success envelope of the synchronous channel.
type GenerationResponse struct {
	Success   bool       `json:"success"`
	Response  string     `json:"response"`
	Service   ProviderID `json:"service"`
	Model     string     `json:"model,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewGenerationResponse wraps a result in the synchronous envelope.
func NewGenerationResponse(r *GenerationResult) GenerationResponse {
	return GenerationResponse{
		Success:   true,
		Response:  r.Text,
		Service:   r.Provider,
		Model:     r.Model,
		RequestID: r.RequestID,
		Timestamp: r.Timestamp,
	}
}

// ResponseDescriptor is written to the mailbox response path after every cycle.
type ResponseDescriptor struct {
	Response  string    `json:"response,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON always emits response on success, even when the provider returned no text.
func (d ResponseDescriptor) MarshalJSON() ([]byte, error) {
	type descriptor ResponseDescriptor
	if !d.Success {
		return json.Marshal(descriptor(d))
	}
	return json.Marshal(struct {
		Response string `json:"response"`
		descriptor
	}{d.Response, descriptor(d)})
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProcessFileResponse acknowledges a poll-triggered mailbox cycle.
type ProcessFileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RateLimitInfo is the public view of a provider's limit.
type RateLimitInfo struct {
	Requests int   `json:"requests"`
	WindowMS int64 `json:"window"`
}

// ConfigResponse is returned by the capability endpoint. It never carries credentials.
type ConfigResponse struct {
	Services    []ProviderID                 `json:"services"`
	RateLimits  map[ProviderID]RateLimitInfo `json:"rateLimits"`
	ProfilePath string                       `json:"profilePath"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Uptime    string              `json:"uptime"`
	Services  map[ProviderID]bool `json:"services"`
	Mailbox   string              `json:"mailbox,omitempty"`
}
