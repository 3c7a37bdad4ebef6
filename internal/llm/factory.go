package llm

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds a Client for the configured provider. "openai" covers any
// OpenAI-compatible endpoint, local or hosted.
func New(ctx context.Context, opts Options) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "gemini":
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider: %s", opts.Provider)
	}
}
