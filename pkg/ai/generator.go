package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (Gemini, Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider names accepted by NewTextGenerator.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and configures the single provider used by the process.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	// Timeout bounds one generation call. Zero means no limit.
	Timeout time.Duration
}

// NewTextGenerator builds the configured provider.
// The returned generator may also implement io.Closer.
func NewTextGenerator(ctx context.Context, cfg Config) (TextGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGemini
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.Timeout)
	case ProviderOllama:
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL, cfg.Timeout), cfg.Model), nil
	case ProviderOpenAI, "openai-compat":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base URL required")
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
