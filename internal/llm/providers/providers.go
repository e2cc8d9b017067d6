// Package providers links every built-in provider factory into the binary.
package providers

import (
	_ "github.com/nulzo/model-bridge/internal/llm/anthropic"
	_ "github.com/nulzo/model-bridge/internal/llm/custom"
	_ "github.com/nulzo/model-bridge/internal/llm/google"
	_ "github.com/nulzo/model-bridge/internal/llm/ollama"
	_ "github.com/nulzo/model-bridge/internal/llm/openai"
)
