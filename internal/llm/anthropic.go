package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Client for Anthropic's Claude models
type AnthropicClient struct {
	client anthropic.Client
	config *Config
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(config *Config, apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(config.BaseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Chat sends a Messages API request. Claude has no JSON mode, so JSON
// requests rely on the prompt contract and ExtractJSON.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	model, temperature, maxTokens, err := resolveSettings(c.config, req)
	if err != nil {
		return "", err
	}

	system, turns := splitSystem(req.Messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: m.Content},
			}},
			Role: role,
		})
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", NewProviderError(ProviderAnthropic, anthropicStatus(err), fmt.Errorf("failed to call Claude API: %w", err))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude response")
	}
	return sb.String(), nil
}

// GetModel returns the model name for a tier
func (c *AnthropicClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Provider returns ProviderAnthropic
func (c *AnthropicClient) Provider() Provider {
	return ProviderAnthropic
}

// Close is a no-op for the HTTP-based SDK.
func (c *AnthropicClient) Close() error {
	return nil
}

func anthropicStatus(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
