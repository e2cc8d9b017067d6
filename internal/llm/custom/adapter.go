// Package custom talks to a self-hosted generation endpoint that accepts {prompt, model}.
package custom

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/pkg/api"
)

const defaultModel = "default"

func init() {
	llm.Register(string(api.Custom), NewAdapter)
}

type Request struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func NewAdapter(cfg config.ProviderConfig) (*llm.Entry, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("custom provider requires base_url")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	return &llm.Entry{
		ID:           api.Custom,
		Endpoint:     cfg.BaseURL,
		Headers:      headers,
		DefaultModel: model,
		Timeout:      cfg.Timeout,
		// the token is optional, a reachable endpoint is all it needs
		Configured: true,
		Build:      Shape,
		Extract:    Extract,
	}, nil
}

func Shape(prompt, model string, _ *api.Settings) (any, error) {
	return Request{Prompt: prompt, Model: model}, nil
}

// Extract accepts the shapes common among self-hosted servers, in order:
// response, text, output, choices[0].message.content, or a bare JSON string.
func Extract(raw []byte) (string, error) {
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("decode custom response: %w", err)
	}

	for _, key := range []string{"response", "text", "output"} {
		if v, ok := body[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				return s, nil
			}
		}
	}

	if v, ok := body["choices"]; ok {
		var choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}
		if err := json.Unmarshal(v, &choices); err == nil && len(choices) > 0 {
			return choices[0].Message.Content, nil
		}
	}

	return "", errors.New("custom response has no recognizable text field")
}
