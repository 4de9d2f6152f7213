package config

import (
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

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(llm.ProviderGemini))
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.models.lite", "")
	v.SetDefault("llm.models.standard", "")
	v.SetDefault("llm.models.advanced", "")
	v.SetDefault("llm.temperature", llm.DefaultTemperature)
	v.SetDefault("llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)

	v.SetDefault("embedding.provider", embedding.ProviderLocal)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimension", embedding.DefaultHashingDimension)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", "30s")

	policy := retry.DefaultPolicy()
	v.SetDefault("retry.max_attempts", policy.MaxAttempts)
	v.SetDefault("retry.initial_interval", policy.InitialInterval)
	v.SetDefault("retry.max_interval", policy.MaxInterval)
	v.SetDefault("retry.multiplier", policy.Multiplier)

	resilience := llm.DefaultResilienceConfig()
	v.SetDefault("breaker.max_failures", resilience.BreakerMaxFailures)
	v.SetDefault("breaker.open_timeout", resilience.BreakerOpenTimeout)

	v.SetDefault("repair.max_attempts", 2)

	g := gap.DefaultConfig()
	v.SetDefault("gap.strong_threshold", g.StrongThreshold)
	v.SetDefault("gap.weak_threshold", g.WeakThreshold)
	v.SetDefault("gap.max_recommendations", g.MaxRecommendations)

	w := scoring.DefaultWeights()
	v.SetDefault("scoring.keyword_coverage", w.KeywordCoverage)
	v.SetDefault("scoring.semantic_similarity", w.SemanticSimilarity)
	v.SetDefault("scoring.experience_relevance", w.ExperienceRelevance)
	v.SetDefault("scoring.skills_alignment", w.SkillsAlignment)
	v.SetDefault("scoring.completeness", w.Completeness)

	gr := guardrails.DefaultConfig()
	v.SetDefault("guardrails.graduation_year_threshold", gr.GraduationYearThreshold)
	v.SetDefault("guardrails.experience_years_cap", gr.ExperienceYearsCap)

	v.SetDefault("cache.backend", cache.BackendAuto)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "ro:")
	v.SetDefault("cache.lru_size", 1024)
	v.SetDefault("cache.result_ttl", cache.DefaultResultTTL)
	v.SetDefault("cache.embedding_ttl", cache.DefaultEmbeddingTTL)

	v.SetDefault("storage.backend", storage.BackendLocal)
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.public_base_url", "")

	v.SetDefault("database.url", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.auth_enabled", false)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.jwt_expiration_hours", 24)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.rate_limit.rps", 2.0)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("server.rate_limit.whitelist", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "resume-optimizer")
}
