package google

import (
	"encoding/json"
	"testing"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter_ModelInURL(t *testing.T) {
	entry, err := NewAdapter(config.ProviderConfig{ID: "gemini", APIKey: "g-key"})
	require.NoError(t, err)

	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent", entry.URL(""))
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent", entry.URL("gemini-1.5-pro"))
	assert.Equal(t, "g-key", entry.Headers["x-goog-api-key"])
}

func TestShape_GenerationConfig(t *testing.T) {
	payload, err := Shape("Write a haiku", "ignored", nil)
	require.NoError(t, err)
	b, _ := json.Marshal(payload)
	assert.JSONEq(t, `{"contents":[{"role":"user","parts":[{"text":"Write a haiku"}]}]}`, string(b))

	temp := 0.7
	payload, err = Shape("Write a haiku", "ignored", &api.Settings{Temperature: &temp})
	require.NoError(t, err)

	gr := payload.(GeminiRequest)
	require.NotNil(t, gr.GenerationConfig)
	assert.Equal(t, 0.7, *gr.GenerationConfig.Temperature)
	assert.Nil(t, gr.GenerationConfig.MaxOutputTokens)
}

func TestExtract(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"old pond "},{"text":"frog leaps"}]},"finishReason":"STOP"}]}`)

	text, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "old pond frog leaps", text)

	_, err = Extract([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}
