package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/teamcheckmate/chaekcheck/internal/config"
	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// Client wraps Genkit model calls with a fixed temperature, bounded retry,
// and rate limiting. Every pipeline stage that talks to the language model
// goes through one Client so tuning applies uniformly.
type Client struct {
	g           *genkit.Genkit
	provider    string
	modelName   string
	temperature float32
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// ClientConfig configures a model client.
type ClientConfig struct {
	Genkit      *genkit.Genkit
	Provider    string // config.ProviderGoogleAI, ProviderOllama, ProviderOpenAI
	ModelName   string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Temperature float32
	Retry       RetryConfig    // zero value = DefaultRetryConfig()
	Limiter     *rate.Limiter  // nil = no rate limiting
	Logger      *slog.Logger   // nil = slog.Default()
}

func (cfg *ClientConfig) validate() error {
	if cfg.Genkit == nil {
		return fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", cfg.Temperature)
	}
	return nil
}

// NewClient creates a model client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		g:           cfg.Genkit,
		provider:    cfg.Provider,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		retryConfig: cfg.Retry,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
	}, nil
}

// Complete generates a completion for a bare prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.withRetry(ctx, func() (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g,
			ai.WithModelName(c.modelName),
			ai.WithPrompt(prompt),
			c.configOption(),
		)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// CompleteChat generates a completion for a system prompt, prior turns, and
// the current user message.
func (c *Client) CompleteChat(ctx context.Context, system string, history []session.Turn, user string) (string, error) {
	messages := make([]*ai.Message, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case session.RoleAssistant:
			messages = append(messages, ai.NewModelTextMessage(t.Content))
		default:
			messages = append(messages, ai.NewUserTextMessage(t.Content))
		}
	}

	resp, err := c.withRetry(ctx, func() (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g,
			ai.WithModelName(c.modelName),
			ai.WithSystem(system),
			ai.WithMessages(messages...),
			ai.WithPrompt(user),
			c.configOption(),
		)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// configOption builds the provider-specific generation config.
// The googlegenai plugin takes the genai SDK config type; other plugins take
// Genkit's common config.
func (c *Client) configOption() ai.GenerateOption {
	if c.provider == config.ProviderGoogleAI {
		return ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(c.temperature),
		})
	}
	return ai.WithConfig(&ai.GenerationCommonConfig{
		Temperature: float64(c.temperature),
	})
}

// stripCodeFences removes ```json ... ``` wrapping from LLM output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
