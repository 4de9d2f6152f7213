package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/config"
	"github.com/TedTes/genres-sub000/internal/db"
	"github.com/TedTes/genres-sub000/internal/embedding"
	"github.com/TedTes/genres-sub000/internal/explain"
	"github.com/TedTes/genres-sub000/internal/fetch"
	"github.com/TedTes/genres-sub000/internal/gap"
	"github.com/TedTes/genres-sub000/internal/guardrails"
	"github.com/TedTes/genres-sub000/internal/ingestion"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/rewriting"
	"github.com/TedTes/genres-sub000/internal/scoring"
	"github.com/TedTes/genres-sub000/internal/storage"
	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Seams replaced in tests.
var (
	newChatClient = llm.NewClient
	newEmbedder   = embedding.New
)

// app is the fully wired optimizer and everything it owns.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	optimizer *pipeline.Optimizer
	cache     *cache.Cache
	db        *db.DB
	chat      *llm.Resilient

	closers []func(context.Context) error
}

// newApp builds every stage from cfg. Redis and the database are optional:
// an unreachable Redis falls back to memory in auto mode, and no database
// URL means results are not persisted.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger, registry: observability.NewRegistry()}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	shutdownTracing, err := observability.SetupTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Writer:      os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	llmCfg, err := cfg.LLMClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := newChatClient(ctx, llmCfg, cfg.LLM.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", llmCfg.Provider, err)
	}
	a.chat = llm.NewResilient(client, cfg.Resilience(), logger)
	a.closers = append(a.closers, func(context.Context) error { return a.chat.Close() })

	backend, err := cache.Open(ctx, cfg.CacheOptions(), logger)
	if err != nil {
		return nil, err
	}
	a.cache = cache.New(backend, logger, cache.NewMetrics(a.registry))
	a.closers = append(a.closers, func(context.Context) error { return a.cache.Close() })
	keys := cache.NewKeyBuilder("")

	baseEmbedder, err := newEmbedder(ctx, cfg.EmbedderConfig(), cfg.Embedding.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder := embedding.NewCached(
		embedding.NewResilient(baseEmbedder, cfg.EmbeddingResilience(), logger),
		a.cache, keys, cfg.Cache.EmbeddingTTL)

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL != "" {
		a.db, err = db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { a.db.Close(); return nil })
		if err := a.db.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	metrics := observability.NewPipelineMetrics(a.registry)
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Retry = cfg.RetryPolicy()

	deps := pipeline.Deps{
		Ingester: ingestion.New(pipeline.Instrument(a.chat, pipeline.StageIngestion, metrics), logger, ingestion.Options{
			MaxRepairs: cfg.Repair.MaxAttempts,
			Fetch:      fetchOpts,
		}),
		Analyzer: gap.NewAnalyzer(taxonomy.Default(), embedder, cfg.GapConfig(), logger),
		Rewriter: rewriting.NewEngine(pipeline.Instrument(a.chat, pipeline.StageRewrite, metrics), logger, rewriting.Options{
			MaxRepairs: cfg.Repair.MaxAttempts,
		}),
		Explainer: explain.NewEngine(pipeline.Instrument(a.chat, pipeline.StageExplanation, metrics), logger, explain.Options{
			MaxRepairs: cfg.Repair.MaxAttempts,
		}),
		Guardrails: guardrails.New(cfg.GuardrailsConfig(), logger),
		Scorer:     scorer,
		Cache:      a.cache,
		Keys:       keys,
		Store:      store,
		Model:      modelMetadata(llmCfg, embedder),
		ResultTTL:  cfg.Cache.ResultTTL,
		RunTimeout: cfg.Server.RequestTimeout,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     observability.Tracer(),
	}
	if a.db != nil {
		deps.Runs = a.db
	}

	a.optimizer, err = pipeline.NewOptimizer(deps)
	if err != nil {
		return nil, err
	}

	logger.Info("optimizer ready",
		zap.String("llm_provider", string(llmCfg.Provider)),
		zap.String("embedder", embedder.Name()),
		zap.String("cache_backend", backend.Name()),
		zap.String("storage", store.Name()),
		zap.Bool("persistence", a.db != nil))
	return a, nil
}

// modelMetadata names the models that shape a result, one per tier.
func modelMetadata(llmCfg *llm.Config, e embedding.Embedder) types.ModelMetadata {
	embProvider, embModel, ok := strings.Cut(e.Name(), "/")
	if !ok {
		embModel = embProvider
	}
	return types.ModelMetadata{
		Provider:          string(llmCfg.Provider),
		ChatModel:         llmCfg.GetModel(llm.TierAdvanced),
		StandardModel:     llmCfg.GetModel(llm.TierStandard),
		LiteModel:         llmCfg.GetModel(llm.TierLite),
		EmbeddingProvider: embProvider,
		EmbeddingModel:    embModel,
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
