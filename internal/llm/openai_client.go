package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClientConfig configures OpenAIClient. APIKey and BaseURL come
// from AGENT_LLM_API_KEY / AGENT_BASE_URL (spec.md §6 "Persisted
// state" env var list) — BaseURL lets this point at a self-hosted or
// proxied OpenAI-protocol endpoint instead of the public API.
type OpenAIClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIClient is the production Client, backed by the OpenAI Go SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a Client from config. An empty APIKey is a
// configuration error the caller should surface before the controller
// ever starts (spec.md §7 taxonomy: "Configuration ... surfaced
// immediately; the controller does not start").
func NewOpenAIClient(cfg OpenAIClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: AGENT_LLM_API_KEY is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4o
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete sends messages as a single chat completion request and
// returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
