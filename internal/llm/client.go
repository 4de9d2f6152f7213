package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role is the author of a chat message
type Role string

// Chat roles understood by every provider
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a provider-neutral chat completion request.
// Zero Temperature and MaxTokens fall back to the client configuration.
type ChatRequest struct {
	Messages    []Message
	Tier        ModelTier
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported
	JSON bool
}

// Client is an abstraction over LLM providers
type Client interface {
	// Chat sends messages and returns the assistant's text
	Chat(ctx context.Context, req ChatRequest) (string, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	// Provider names the backing provider
	Provider() Provider
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// Conversation builds a system + user message pair.
func Conversation(system, user string) []Message {
	var msgs []Message
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	return append(msgs, Message{Role: RoleUser, Content: user})
}

// GenerateJSON issues a JSON-mode chat and strips wrappers from the answer.
func GenerateJSON(ctx context.Context, c Client, messages []Message, tier ModelTier) (string, error) {
	text, err := c.Chat(ctx, ChatRequest{Messages: messages, Tier: tier, JSON: true})
	if err != nil {
		return "", err
	}
	return ExtractJSON(text), nil
}

// splitSystem separates system messages, which most providers take out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func resolveSettings(cfg *Config, req ChatRequest) (model string, temperature float32, maxTokens int, err error) {
	model = cfg.GetModel(req.Tier)
	if model == "" {
		return "", 0, 0, fmt.Errorf("no model configured for tier %s", req.Tier)
	}
	temperature = req.Temperature
	if temperature == 0 {
		temperature = cfg.Temperature
	}
	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(req.Messages) == 0 {
		return "", 0, 0, fmt.Errorf("chat request has no messages")
	}
	return model, temperature, maxTokens, nil
}
