package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Provider selects which LLM backend a client talks to. All supported
// backends speak the OpenAI chat-completion protocol.
type Provider string

const (
	ProviderDeepseek Provider = "deepseek"
	ProviderOpenAI   Provider = "openai"
	ProviderGroq     Provider = "groq"
)

const systemPrompt = "You are a staff engineer who is amazing at making deployment ready applications."

// Client is one reusable handle to an LLM backend.
type Client interface {
	// CallModel sends a prompt and returns the model's response with any
	// embedded JSON already extracted from markdown fences.
	CallModel(ctx context.Context, prompt string) (string, error)
}

// Config holds per-provider connection settings.
type Config struct {
	Provider Provider
	APIKey   string
}

type chatClient struct {
	api      *openai.Client
	provider Provider
	model    string
}

// NewClient constructs a client for the configured provider. Clients are
// safe for concurrent use but are pooled so that parallel batch analyses
// get dedicated handles.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}

	var (
		apiCfg openai.ClientConfig
		model  string
	)

	switch cfg.Provider {
	case ProviderDeepseek:
		apiCfg = openai.DefaultConfig(cfg.APIKey)
		apiCfg.BaseURL = "https://api.deepseek.com/v1"
		model = "deepseek-chat"
	case ProviderOpenAI:
		apiCfg = openai.DefaultConfig(cfg.APIKey)
		model = openai.GPT4o
	case ProviderGroq:
		apiCfg = openai.DefaultConfig(cfg.APIKey)
		apiCfg.BaseURL = "https://api.groq.com/openai/v1"
		model = "llama-3.1-8b-instant"
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	return &chatClient{
		api:      openai.NewClientWithConfig(apiCfg),
		provider: cfg.Provider,
		model:    model,
	}, nil
}

func (c *chatClient) CallModel(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		slog.Error("LLM call failed", "provider", c.provider, "model", c.model, "error", err)
		return "", fmt.Errorf("calling %s: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.provider)
	}

	return ExtractJSON(resp.Choices[0].Message.Content), nil
}
