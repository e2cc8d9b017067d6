package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/internal/llm"
	"github.com/nulzo/model-bridge/pkg/api"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

func init() {
	llm.Register(string(api.Gemini), NewAdapter)
}

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}
type GenerationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}
type GeminiRequest struct {
	Contents         []GeminiContent   `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}
type PromptFeedback struct {
	BlockReason string `json:"blockReason"`
}
type GeminiResponse struct {
	Candidates     []GeminiCandidate `json:"candidates"`
	PromptFeedback *PromptFeedback   `json:"promptFeedback,omitempty"`
}

// NewAdapter describes generateContent. The model is part of the URL.
func NewAdapter(cfg config.ProviderConfig) (*llm.Entry, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	return &llm.Entry{
		ID:       api.Gemini,
		Endpoint: fmt.Sprintf("%s/models/%s:generateContent", base, url.PathEscape(model)),
		Headers: map[string]string{
			"x-goog-api-key": cfg.APIKey,
		},
		DefaultModel:   model,
		Timeout:        cfg.Timeout,
		MaxTemperature: 2,
		Configured:     cfg.APIKey != "",
		Build:          Shape,
		Extract:        Extract,
		ResolveURL: func(m string) string {
			if m == "" {
				m = model
			}
			return fmt.Sprintf("%s/models/%s:generateContent", base, url.PathEscape(m))
		},
	}, nil
}

// Shape ignores model: Gemini takes it from the URL.
func Shape(prompt, _ string, settings *api.Settings) (any, error) {
	gr := GeminiRequest{
		Contents: []GeminiContent{{Role: "user", Parts: []GeminiPart{{Text: prompt}}}},
	}
	if settings != nil && (settings.MaxTokens != nil || settings.Temperature != nil) {
		gr.GenerationConfig = &GenerationConfig{
			MaxOutputTokens: settings.MaxTokens,
			Temperature:     settings.Temperature,
		}
	}
	return gr, nil
}

func Extract(raw []byte) (string, error) {
	var resp GeminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini response has no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
