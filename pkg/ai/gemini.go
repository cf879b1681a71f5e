package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no generation model is configured.
const DefaultGeminiModel = "gemini-1.5-pro"

// ErrGeminiAPIKeyMissing is returned by every call when the generator was
// built without a key. The key is not checked at startup.
var ErrGeminiAPIKeyMissing = errors.New("gemini api key not configured (set GEMINI_API_KEY)")

// GeminiGenerator calls the Gemini API through the official Go SDK.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiGenerator constructs a generator for model. An empty apiKey yields
// a generator whose calls fail with ErrGeminiAPIKeyMissing.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, opts ...option.ClientOption) (*GeminiGenerator, error) {
	model = normalizeModel(model)
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &GeminiGenerator{model: model, timeout: timeout}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Model returns the model name used for generation.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// GenerateText implements TextGenerator using Gemini generateContent.
// SDK errors are returned unwrapped so callers see the provider's message.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.client == nil {
		return "", ErrGeminiAPIKeyMissing
	}
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// Close releases the underlying SDK client.
func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from gemini")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return sb.String(), nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}
