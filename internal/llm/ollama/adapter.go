package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/pkg/api"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "codellama"
)

func init() {
	llm.Register(string(api.Ollama), NewAdapter)
}

type Options struct {
	NumPredict  *int     `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type Request struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

type Response struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// NewAdapter describes a local Ollama server. It needs no credentials.
func NewAdapter(cfg config.ProviderConfig) (*llm.Entry, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	// tolerate the OpenAI-compatible base some deployments configure
	base = strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")

	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	return &llm.Entry{
		ID:           api.Ollama,
		Endpoint:     base + "/api/generate",
		Headers:      map[string]string{},
		DefaultModel: model,
		Timeout:      cfg.Timeout,
		Configured:   true,
		Build:        Shape,
		Extract:      Extract,
	}, nil
}

func Shape(prompt, model string, settings *api.Settings) (any, error) {
	req := Request{Model: model, Prompt: prompt, Stream: false}
	if settings != nil && (settings.MaxTokens != nil || settings.Temperature != nil) {
		req.Options = &Options{NumPredict: settings.MaxTokens, Temperature: settings.Temperature}
	}
	return req, nil
}

func Extract(raw []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if resp.Response == nil {
		return "", errors.New("ollama response has no response field")
	}
	return *resp.Response, nil
}
