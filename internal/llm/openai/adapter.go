package openai

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
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-3.5-turbo"
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
	maxTemperature     = 2.0
)

func init() {
	llm.Register(string(api.OpenAI), NewAdapter)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Response struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// NewAdapter describes the chat completions endpoint.
func NewAdapter(cfg config.ProviderConfig) (*llm.Entry, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
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
		ID:             api.OpenAI,
		Endpoint:       strings.TrimRight(base, "/") + "/chat/completions",
		Headers:        headers,
		DefaultModel:   model,
		Timeout:        cfg.Timeout,
		MaxTemperature: maxTemperature,
		Configured:     cfg.APIKey != "",
		Build:          Shape,
		Extract:        Extract,
	}, nil
}

func Shape(prompt, model string, settings *api.Settings) (any, error) {
	return Request{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   settings.MaxTokensOr(defaultMaxTokens),
		Temperature: settings.TemperatureOr(defaultTemperature),
	}, nil
}

func Extract(raw []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
