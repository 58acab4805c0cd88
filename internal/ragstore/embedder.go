package ragstore

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder is the production Embedder QdrantBackend indexes and
// searches with, grounded in Tangerg/lynx's
// ai/extensions/models/openai EmbeddingModel wiring of the same
// openai-go Embeddings endpoint — reduced here to the single
// text-in/vector-out shape Embedder needs, since this module has no
// multi-provider embedding abstraction to preserve.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// OpenAIEmbedderConfig configures OpenAIEmbedder. It shares
// AGENT_LLM_API_KEY / AGENT_BASE_URL with the core chat LLM, since both
// talk to the same OpenAI-protocol endpoint.
type OpenAIEmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIEmbedder builds an Embedder from config.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ragstore: AGENT_LLM_API_KEY is required for embeddings")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}

	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}, nil
}

// Embed satisfies Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})
	if err != nil {
		return nil, fmt.Errorf("ragstore: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("ragstore: embed: empty response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
