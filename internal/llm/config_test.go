package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{},
	}

	// Empty config should return empty string
	assert.Equal(t, "", config.GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithModel(TierAdvanced, "custom-model")

	// Original should be unchanged
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))

	// New config should have custom model
	assert.Equal(t, "custom-model", newConfig.GetModel(TierAdvanced))

	// Other tiers should be copied
	assert.Equal(t, "gemini-2.5-flash-lite", newConfig.GetModel(TierLite))
}

func TestModelTierConstants(t *testing.T) {
	assert.Equal(t, ModelTier("lite"), TierLite)
	assert.Equal(t, ModelTier("standard"), TierStandard)
	assert.Equal(t, ModelTier("advanced"), TierAdvanced)
}

func TestProviderConstants(t *testing.T) {
	assert.Equal(t, Provider("gemini"), ProviderGemini)
	assert.Equal(t, Provider("openai"), ProviderOpenAI)
	assert.Equal(t, Provider("anthropic"), ProviderAnthropic)
}

func TestDefaultConfigFor(t *testing.T) {
	tests := []struct {
		provider Provider
		advanced string
	}{
		{ProviderGemini, "gemini-2.5-pro"},
		{ProviderOpenAI, "gpt-4o"},
		{ProviderAnthropic, "claude-sonnet-4-20250514"},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			cfg := DefaultConfigFor(tt.provider)
			assert.Equal(t, tt.provider, cfg.Provider)
			assert.Equal(t, tt.advanced, cfg.GetModel(TierAdvanced))
			assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("anthropic")
	assert.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p)

	_, err = ParseProvider("mistral")
	assert.Error(t, err)
}

func TestWithModel_PreservesSettings(t *testing.T) {
	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = "http://localhost:8080/v1"
	cfg.Temperature = 0.7

	next := cfg.WithModel(TierLite, "small")
	assert.Equal(t, "http://localhost:8080/v1", next.BaseURL)
	assert.Equal(t, float32(0.7), next.Temperature)
}
