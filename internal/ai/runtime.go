package ai

import "context"

// Runtime is a minimal interface implemented by AI backends
// such as OpenRouter, Google AI Studio and a local Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used in configuration.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)
