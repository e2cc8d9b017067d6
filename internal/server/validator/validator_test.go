package validator

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Service string `json:"service" binding:"required,oneof=claude openai"`
	Prompt  string `json:"prompt"`
}

func TestParseError(t *testing.T) {
	v := New()

	t.Run("required field", func(t *testing.T) {
		var p payload
		err := binding.JSON.BindBody([]byte(`{}`), &p)
		require.Error(t, err)

		assert.Equal(t, map[string]string{"service": "service is a required field"}, v.ParseError(err))
	})

	t.Run("oneof", func(t *testing.T) {
		var p payload
		err := binding.JSON.BindBody([]byte(`{"service":"mistral"}`), &p)
		require.Error(t, err)

		assert.Equal(t, map[string]string{"service": "must be one of [claude, openai]"}, v.ParseError(err))
	})

	t.Run("type mismatch", func(t *testing.T) {
		var p payload
		err := binding.JSON.BindBody([]byte(`{"service":"claude","prompt":7}`), &p)
		require.Error(t, err)

		assert.Equal(t, map[string]string{"prompt": "must be of type string"}, v.ParseError(err))
	})

	t.Run("anything else", func(t *testing.T) {
		got := v.ParseError(errors.New("unexpected EOF"))
		assert.Contains(t, got, "body")
	})
}

func TestNewIsShared(t *testing.T) {
	assert.Same(t, New(), New())
}
