// Package grounded wraps a web-search-enabled LLM completion: the
// "grounded search" collaborator spec.md §4.6 Stage 2 calls out as an
// opaque external tool. The concrete implementation uses Gemini's
// built-in Google Search grounding tool (GEMINI_API_KEY /
// GOOGLE_API_KEY, per spec.md §6's env var list), grounded in the
// google.golang.org/genai dependency both Tangerg/lynx/models and
// ternarybob-quaero carry.
package grounded

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrUnavailable mirrors llm.ErrUnavailable: an infrastructure failure
// talking to the grounded-search provider. Per spec.md §4.6, any such
// failure is caught by the caller (grader package) and falls back to
// the RAG answer — it must never reach the controller as a hard error.
var ErrUnavailable = errors.New("grounded: provider unavailable")

// Client issues a single grounded completion for a prompt and returns
// the model's text.
type Client interface {
	Search(ctx context.Context, prompt string) (string, error)
}

// GeminiClient is the production Client.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// GeminiClientConfig configures GeminiClient.
type GeminiClientConfig struct {
	APIKey string
	Model  string
}

// NewGeminiClient builds a Client. An empty APIKey is a configuration
// error; callers that don't have grounded-search credentials should
// treat C6 Stage 2 as permanently unavailable rather than retry.
func NewGeminiClient(ctx context.Context, cfg GeminiClientConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("grounded: GEMINI_API_KEY or GOOGLE_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("grounded: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Search issues prompt to Gemini with Google Search grounding enabled,
// demanding trusted financial sources and citations per spec.md §4.6
// Stage 2's prompt requirements.
func (c *GeminiClient) Search(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty grounded response", ErrUnavailable)
	}
	return text, nil
}
