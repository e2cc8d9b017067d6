package custom

import (
	"testing"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapter_RequiresEndpoint(t *testing.T) {
	_, err := NewAdapter(config.ProviderConfig{ID: "custom"})
	assert.Error(t, err)

	entry, err := NewAdapter(config.ProviderConfig{ID: "custom", BaseURL: "http://10.0.0.5:5000/generate", APIKey: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:5000/generate", entry.URL(""))
	assert.Equal(t, "Bearer tok", entry.Headers["Authorization"])
}

func TestExtract_Shapes(t *testing.T) {
	cases := map[string]string{
		`{"response":"a"}`:                          "a",
		`{"text":"b","output":"ignored"}`:           "b",
		`{"output":"c"}`:                            "c",
		`{"choices":[{"message":{"content":"d"}}]}`: "d",
		`"e"`:                                       "e",
	}
	for raw, want := range cases {
		got, err := Extract([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := Extract([]byte(`{"result":42}`))
	assert.Error(t, err)
	_, err = Extract([]byte(`not json`))
	assert.Error(t, err)
}
