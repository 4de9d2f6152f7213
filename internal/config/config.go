// Package config loads the optimizer configuration from an optional file,
// RESUME_OPTIMIZER_* environment variables and a few well-known keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/embedding"
	"github.com/TedTes/genres-sub000/internal/gap"
	"github.com/TedTes/genres-sub000/internal/guardrails"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/retry"
	"github.com/TedTes/genres-sub000/internal/scoring"
	"github.com/TedTes/genres-sub000/internal/storage"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "RESUME_OPTIMIZER"

// Config is the full optimizer configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Repair     RepairConfig     `mapstructure:"repair"`
	Gap        GapConfig        `mapstructure:"gap"`
	Scoring    scoring.Weights  `mapstructure:"scoring"`
	Guardrails GuardrailsConfig `mapstructure:"guardrails"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    storage.Config   `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// LLMConfig selects the chat provider. Empty model names fall back to the
// provider defaults.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Models      ModelsConfig  `mapstructure:"models"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ModelsConfig names a model per tier.
type ModelsConfig struct {
	Lite     string `mapstructure:"lite"`
	Standard string `mapstructure:"standard"`
	Advanced string `mapstructure:"advanced"`
}

// EmbeddingConfig selects the embedder. The API key defaults to the key of
// the matching chat provider.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// RepairConfig bounds the schema repair loop per stage.
type RepairConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type GapConfig struct {
	StrongThreshold    float64 `mapstructure:"strong_threshold"`
	WeakThreshold      float64 `mapstructure:"weak_threshold"`
	MaxRecommendations int     `mapstructure:"max_recommendations"`
}

type GuardrailsConfig struct {
	GraduationYearThreshold int `mapstructure:"graduation_year_threshold"`
	ExperienceYearsCap      int `mapstructure:"experience_years_cap"`
}

type CacheConfig struct {
	Backend      string        `mapstructure:"backend"`
	RedisURL     string        `mapstructure:"redis_url"`
	Prefix       string        `mapstructure:"prefix"`
	LRUSize      int           `mapstructure:"lru_size"`
	ResultTTL    time.Duration `mapstructure:"result_ttl"`
	EmbeddingTTL time.Duration `mapstructure:"embedding_ttl"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	AuthEnabled        bool          `mapstructure:"auth_enabled"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpirationHours int           `mapstructure:"jwt_expiration_hours"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RateLimit          RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit is a per-client token bucket. Zero RPS disables limiting.
type RateLimit struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
	// Whitelist is a comma-separated list of exempt client IPs
	Whitelist string `mapstructure:"whitelist"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored and existing variables win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads path (when non-empty), otherwise looks for config.{yaml,json}
// in the working directory, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyWellKnownEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults are plain values and always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// providerKeyEnv maps providers to their conventional key variables.
var providerKeyEnv = map[string]string{
	string(llm.ProviderGemini):    "GEMINI_API_KEY",
	string(llm.ProviderOpenAI):    "OPENAI_API_KEY",
	string(llm.ProviderAnthropic): "ANTHROPIC_API_KEY",
}

func (c *Config) applyWellKnownEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(providerKeyEnv[c.LLM.Provider])
	}
	if c.Embedding.APIKey == "" {
		if c.Embedding.Provider == c.LLM.Provider {
			c.Embedding.APIKey = c.LLM.APIKey
		} else if name, ok := providerKeyEnv[c.Embedding.Provider]; ok {
			c.Embedding.APIKey = os.Getenv(name)
		}
	}
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv("DATABASE_URL")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("REDIS_URL")
	}
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = os.Getenv("JWT_SECRET")
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := llm.ParseProvider(c.LLM.Provider); err != nil {
		return fmt.Errorf("llm.provider: %w", err)
	}
	switch c.Embedding.Provider {
	case embedding.ProviderGemini, embedding.ProviderOpenAI, embedding.ProviderLocal:
	default:
		return fmt.Errorf("embedding.provider: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry intervals are invalid: initial %s, max %s", c.Retry.InitialInterval, c.Retry.MaxInterval)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1, got %v", c.Retry.Multiplier)
	}
	if c.Breaker.MaxFailures < 1 {
		return fmt.Errorf("breaker.max_failures must be at least 1")
	}
	if c.Repair.MaxAttempts < 1 {
		return fmt.Errorf("repair.max_attempts must be at least 1, got %d", c.Repair.MaxAttempts)
	}
	if err := c.GapConfig().Validate(); err != nil {
		return fmt.Errorf("gap: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	switch c.Cache.Backend {
	case cache.BackendAuto, cache.BackendRedis, cache.BackendMemory:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.ResultTTL <= 0 || c.Cache.EmbeddingTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	switch c.Storage.Backend {
	case storage.BackendLocal, storage.BackendGCS:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == storage.BackendGCS && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the gcs backend")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.AuthEnabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required when auth is enabled")
	}
	return nil
}

// LLMClientConfig resolves provider defaults and per-tier overrides.
func (c *Config) LLMClientConfig() (*llm.Config, error) {
	p, err := llm.ParseProvider(c.LLM.Provider)
	if err != nil {
		return nil, err
	}
	out := llm.DefaultConfigFor(p)
	for tier, model := range map[llm.ModelTier]string{
		llm.TierLite:     c.LLM.Models.Lite,
		llm.TierStandard: c.LLM.Models.Standard,
		llm.TierAdvanced: c.LLM.Models.Advanced,
	} {
		if model != "" {
			out = out.WithModel(tier, model)
		}
	}
	if c.LLM.Temperature > 0 {
		out.Temperature = c.LLM.Temperature
	}
	if c.LLM.MaxTokens > 0 {
		out.MaxTokens = c.LLM.MaxTokens
	}
	out.BaseURL = c.LLM.BaseURL
	return out, nil
}

// RetryPolicy builds the shared retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.InitialInterval = c.Retry.InitialInterval
	p.MaxInterval = c.Retry.MaxInterval
	p.Multiplier = c.Retry.Multiplier
	return p
}

// Resilience bounds chat calls.
func (c *Config) Resilience() llm.ResilienceConfig {
	return llm.ResilienceConfig{
		Timeout:            c.LLM.Timeout,
		Retry:              c.RetryPolicy(),
		BreakerMaxFailures: c.Breaker.MaxFailures,
		BreakerOpenTimeout: c.Breaker.OpenTimeout,
	}
}

// EmbeddingResilience bounds embedding calls.
func (c *Config) EmbeddingResilience() llm.ResilienceConfig {
	r := c.Resilience()
	r.Timeout = c.Embedding.Timeout
	return r
}

func (c *Config) EmbedderConfig() embedding.Config {
	return embedding.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		BaseURL:   c.Embedding.BaseURL,
	}
}

func (c *Config) GapConfig() gap.Config {
	return gap.Config{
		StrongThreshold:    c.Gap.StrongThreshold,
		WeakThreshold:      c.Gap.WeakThreshold,
		MaxRecommendations: c.Gap.MaxRecommendations,
	}
}

func (c *Config) GuardrailsConfig() guardrails.Config {
	return guardrails.Config{
		GraduationYearThreshold: c.Guardrails.GraduationYearThreshold,
		ExperienceYearsCap:      c.Guardrails.ExperienceYearsCap,
	}
}

func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:  c.Cache.Backend,
		RedisURL: c.Cache.RedisURL,
		Prefix:   c.Cache.Prefix,
		LRUSize:  c.Cache.LRUSize,
	}
}

// JWT returns the token settings for the HTTP surface.
func (c *Config) JWT() (*JWTConfig, error) {
	cfg := &JWTConfig{
		Secret:          c.Server.JWTSecret,
		ExpirationHours: c.Server.JWTExpirationHours,
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
