package anthropic

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
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultModel     = "claude-3-sonnet-20240229"
	defaultMaxTokens = 4000
	apiVersion       = "2023-06-01"
)

func init() {
	llm.Register(string(api.Claude), NewAdapter)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	ID         string    `json:"id"`
	Content    []Content `json:"content"`
	Model      string    `json:"model"`
	StopReason string    `json:"stop_reason"`
	Usage      Usage     `json:"usage"`
}

// NewAdapter describes the Messages API.
func NewAdapter(cfg config.ProviderConfig) (*llm.Entry, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}

	return &llm.Entry{
		ID:       api.Claude,
		Endpoint: strings.TrimRight(base, "/") + "/messages",
		Headers: map[string]string{
			"x-api-key":         cfg.APIKey,
			"anthropic-version": apiVersion,
		},
		DefaultModel:   model,
		Timeout:        cfg.Timeout,
		MaxTemperature: 1,
		Configured:     cfg.APIKey != "",
		Build:          Shape,
		Extract:        Extract,
	}, nil
}

func Shape(prompt, model string, settings *api.Settings) (any, error) {
	req := Request{
		Model:     model,
		MaxTokens: settings.MaxTokensOr(defaultMaxTokens),
		Messages:  []Message{{Role: "user", Content: prompt}},
	}
	if settings != nil && settings.Temperature != nil {
		t := *settings.Temperature
		req.Temperature = &t
	}
	return req, nil
}

// Extract joins the text blocks of the message.
func Extract(raw []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	var sb strings.Builder
	found := false
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
			found = true
		}
	}
	if !found {
		return "", errors.New("anthropic response has no text content")
	}
	return sb.String(), nil
}
