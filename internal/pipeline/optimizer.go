// Package pipeline orchestrates one resume optimization: ingestion, gap
// analysis, rewrite, explanation, guardrails, scoring and artifact storage,
// fronted by a content-addressed result cache.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/explain"
	"github.com/TedTes/genres-sub000/internal/fetch"
	"github.com/TedTes/genres-sub000/internal/gap"
	"github.com/TedTes/genres-sub000/internal/guardrails"
	"github.com/TedTes/genres-sub000/internal/ingestion"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/rendering"
	"github.com/TedTes/genres-sub000/internal/rewriting"
	"github.com/TedTes/genres-sub000/internal/scoring"
	"github.com/TedTes/genres-sub000/internal/storage"
	"github.com/TedTes/genres-sub000/internal/types"
)

// DefaultRunTimeout bounds a run that outlives the request that started it.
const DefaultRunTimeout = 10 * time.Minute

// RunStore persists finished results.
type RunStore interface {
	SaveRun(ctx context.Context, res *types.OptimizationResult) (uuid.UUID, error)
}

// Deps are the collaborators of an Optimizer. Ingester, Analyzer, Rewriter,
// Explainer, Guardrails, Scorer and Cache are required.
type Deps struct {
	Ingester   *ingestion.Ingester
	Analyzer   *gap.Analyzer
	Rewriter   *rewriting.Engine
	Explainer  *explain.Engine
	Guardrails *guardrails.Engine
	Scorer     *scoring.Engine
	Cache      *cache.Cache
	Keys       cache.KeyBuilder

	// Store receives rendered artifacts; nil skips artifact storage
	Store storage.Store
	// Formatters by extension; nil uses DOCX and PDF
	Formatters map[string]rendering.Formatter
	// Runs persists results; nil disables persistence
	Runs RunStore

	Model     types.ModelMetadata
	ResultTTL time.Duration
	// RunTimeout bounds one pipeline run; zero uses DefaultRunTimeout
	RunTimeout time.Duration

	Logger  *zap.Logger
	Metrics *observability.PipelineMetrics
	Tracer  trace.Tracer
	Now     func() time.Time
}

// Optimizer runs the optimization pipeline and is safe for concurrent use.
// Concurrent requests with the same cache key share one run.
type Optimizer struct {
	deps     Deps
	logger   *zap.Logger
	tracer   trace.Tracer
	settings keySettings

	flightsMu sync.Mutex
	flights   map[string]*flight
}

// NewOptimizer validates deps and fills defaults.
func NewOptimizer(deps Deps) (*Optimizer, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"ingester":   deps.Ingester != nil,
		"analyzer":   deps.Analyzer != nil,
		"rewriter":   deps.Rewriter != nil,
		"explainer":  deps.Explainer != nil,
		"guardrails": deps.Guardrails != nil,
		"scorer":     deps.Scorer != nil,
		"cache":      deps.Cache != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("optimizer is missing dependencies: %s", strings.Join(missing, ", "))
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.Tracer()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ResultTTL <= 0 {
		deps.ResultTTL = cache.DefaultResultTTL
	}
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = DefaultRunTimeout
	}
	if deps.Keys.Namespace == "" {
		deps.Keys = cache.NewKeyBuilder("")
	}
	if deps.Formatters == nil {
		docx, err := rendering.NewDOCXFormatter()
		if err != nil {
			return nil, fmt.Errorf("failed to create docx formatter: %w", err)
		}
		deps.Formatters = map[string]rendering.Formatter{
			docx.Extension(): docx,
			"pdf":            rendering.NewPDFFormatter(),
		}
	}

	return &Optimizer{
		deps:     deps,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		settings: settingsOf(deps),
		flights:  map[string]*flight{},
	}, nil
}

// Optimize runs the pipeline for one request. Identical requests are served
// from the cache without any provider call. Every failure is a *StageError
// and no partial result is returned or cached.
func (o *Optimizer) Optimize(ctx context.Context, resume types.ResumeInput, jd types.JobDescriptionInput, opts types.OptimizationOptions, requesterID string) (*types.OptimizationResult, error) {
	return o.OptimizeWithProgress(ctx, resume, jd, opts, requesterID, nil)
}

// OptimizeWithProgress is Optimize with a per-stage progress callback.
func (o *Optimizer) OptimizeWithProgress(ctx context.Context, resume types.ResumeInput, jd types.JobDescriptionInput, opts types.OptimizationOptions, requesterID string, progress ProgressCallback) (*types.OptimizationResult, error) {
	start := o.deps.Now()

	if err := validateInputs(resume, jd, opts); err != nil {
		o.deps.Metrics.CountRequest("error")
		return nil, newStageError(StageValidate, err)
	}

	jdText := o.cleanJobDescription(jd.Text)
	if hits := guardrails.DetectInjection(jdText); len(hits) > 0 {
		o.logger.Warn("job description contains instruction-like text",
			zap.String("requester_id", requesterID),
			zap.Strings("patterns", hits))
	}

	key, err := o.resultKey(resume, jdText, opts)
	if err != nil {
		o.deps.Metrics.CountRequest("error")
		return nil, newStageError(StageCacheLookup, err)
	}

	requestID := uuid.NewString()

	if cached, ok := o.lookup(ctx, key); ok {
		cached.RequestID = requestID
		cached.RequesterID = requesterID
		o.deps.Metrics.CountRequest("cache_hit")
		o.logger.Info("serving cached result",
			zap.String("request_id", requestID),
			zap.String("requester_id", requesterID),
			zap.String("cache_key", key),
			zap.Duration("duration", o.deps.Now().Sub(start)))
		progress.emit(ProgressEvent{
			Stage:     StageCacheLookup,
			Step:      TotalSteps,
			Total:     TotalSteps,
			Status:    StatusCacheHit,
			Message:   "Returning cached result",
			RequestID: requestID,
		})
		o.persist(ctx, cached)
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		o.deps.Metrics.CountRequest("aborted")
		return nil, newStageError(StageCacheLookup, err)
	}

	f, id, shared := o.join(ctx, runInput{
		key:         key,
		resume:      resume,
		jdText:      jdText,
		opts:        opts,
		requesterID: requesterID,
		start:       start,
		progress:    progress,
	}, requestID)
	if shared {
		o.logger.Info("request collapsed onto in-flight run",
			zap.String("request_id", requestID),
			zap.String("requester_id", requesterID),
			zap.String("cache_key", key))
	}

	select {
	case <-ctx.Done():
		o.leave(key, f, id)
		o.deps.Metrics.CountRequest("aborted")
		return nil, newStageError(StageFinalize, ctx.Err())
	case <-f.done:
		o.leave(key, f, id)
	}

	if f.err != nil {
		o.deps.Metrics.CountRequest("error")
		return nil, f.err
	}

	res := *f.res
	res.RequestID = requestID
	res.RequesterID = requesterID
	o.persist(ctx, &res)
	o.deps.Metrics.CountRequest("ok")
	return &res, nil
}

// CacheStats reports the result cache counters.
func (o *Optimizer) CacheStats() cache.Stats {
	return o.deps.Cache.Stats()
}

type runInput struct {
	key         string
	requestID   string
	resume      types.ResumeInput
	jdText      string
	opts        types.OptimizationOptions
	requesterID string
	start       time.Time
	progress    ProgressCallback
}

// runState carries per-request bookkeeping through the stages.
type runState struct {
	runInput
	step    int
	timings map[string]int64
}

func (o *Optimizer) execute(ctx context.Context, in runInput) (*types.OptimizationResult, error) {
	st := &runState{runInput: in, timings: map[string]int64{}}

	ctx, span := o.tracer.Start(ctx, "pipeline.optimize", trace.WithAttributes(
		attribute.String("request_id", st.requestID),
		attribute.String("input_type", string(in.resume.InputType())),
	))
	defer span.End()

	var (
		normalized *types.NormalizedResume
		report     *types.GapReport
		optimized  *types.OptimizedResume
		rationale  *types.Rationale
		violations []types.PolicyViolation
		breakdown  types.ScoreBreakdown
		artifacts  artifactOutcome
	)

	stages := []struct {
		name    string
		message string
		run     func(ctx context.Context) error
	}{
		{StageIngestion, "Ingesting resume", func(ctx context.Context) (err error) {
			normalized, err = o.deps.Ingester.Ingest(ctx, in.resume)
			return err
		}},
		{StageGapAnalysis, "Analyzing gaps against the job description", func(ctx context.Context) (err error) {
			report, err = o.deps.Analyzer.Analyze(ctx, normalized, in.jdText)
			return err
		}},
		{StageRewrite, "Rewriting resume", func(ctx context.Context) (err error) {
			optimized, err = o.deps.Rewriter.Rewrite(ctx, rewriting.Request{
				Resume:         normalized,
				JobDescription: in.jdText,
				Gap:            report,
				Options:        in.opts,
			})
			return err
		}},
		{StageExplanation, "Explaining changes", func(ctx context.Context) error {
			rationale = o.deps.Explainer.Explain(ctx, explain.Request{
				Original:       normalized,
				Optimized:      optimized,
				JobDescription: in.jdText,
				Gap:            report,
			})
			return nil
		}},
		{StageGuardrails, "Applying policy guardrails", func(ctx context.Context) error {
			violations = applyGuardrails(o.deps.Guardrails, optimized)
			return nil
		}},
		{StageScoring, "Scoring match", func(ctx context.Context) error {
			breakdown = o.deps.Scorer.Score(report, optimized)
			return nil
		}},
		{StageArtifacts, "Rendering and storing artifacts", func(ctx context.Context) error {
			artifacts = o.storeArtifacts(ctx, st.requestID, optimized, in.opts.IncludePDF)
			return nil
		}},
	}

	for _, s := range stages {
		if err := o.runStage(ctx, st, s.name, s.message, s.run); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	res := &types.OptimizationResult{
		RequestID:        st.requestID,
		CacheKey:         in.key,
		MatchScore:       breakdown.Overall,
		Grade:            breakdown.Grade,
		ScoreBreakdown:   breakdown,
		MissingKeywords:  nonNil(report.MissingKeywords),
		WeakKeywords:     nonNil(report.WeakKeywords),
		GapReport:        report,
		OptimizedResume:  *optimized,
		Rationale:        *rationale,
		PolicyViolations: violations,
		Artifacts:        artifacts.locations,
		ArtifactError:    artifacts.errMessage(),
		Model:            o.deps.Model,
		StageTimingsMS:   st.timings,
		InputType:        in.resume.InputType(),
		RequesterID:      in.requesterID,
		CreatedAt:        o.deps.Now().UTC(),
	}
	res.ProcessingTimeMS = o.deps.Now().Sub(in.start).Milliseconds()

	// A run every caller abandoned keeps its result out of the cache.
	if err := o.runStage(ctx, st, StageFinalize, "Saving result", func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.deps.Cache.SetJSON(ctx, in.key, res, o.deps.ResultTTL)
		return nil
	}); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Float64("match_score", res.MatchScore), attribute.String("grade", res.Grade))
	o.logger.Info("optimization completed",
		zap.String("request_id", res.RequestID),
		zap.String("requester_id", res.RequesterID),
		zap.Float64("match_score", res.MatchScore),
		zap.String("grade", res.Grade),
		zap.Int("policy_violations", len(res.PolicyViolations)),
		zap.Int64("processing_time_ms", res.ProcessingTimeMS))
	return res, nil
}

// runStage executes one stage inside its own span, with timing, logging,
// metrics and progress events. Errors come back as *StageError.
func (o *Optimizer) runStage(ctx context.Context, st *runState, stage, message string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return newStageError(stage, err)
	}

	st.step++
	st.progress.emit(ProgressEvent{
		Stage:     stage,
		Step:      st.step,
		Total:     TotalSteps,
		Status:    StatusStarted,
		Message:   message,
		RequestID: st.requestID,
	})

	ctx, span := o.tracer.Start(ctx, "pipeline."+stage)
	defer span.End()

	started := o.deps.Now()
	err := fn(ctx)
	elapsed := o.deps.Now().Sub(started)
	st.timings[stage] = elapsed.Milliseconds()

	fields := []zap.Field{
		zap.String("request_id", st.requestID),
		zap.String("requester_id", st.requesterID),
		zap.String("stage", stage),
		zap.Duration("duration", elapsed),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.deps.Metrics.ObserveStage(stage, "error", elapsed)
		o.logger.Error("stage failed", append(fields, zap.Error(err))...)
		st.progress.emit(ProgressEvent{
			Stage:      stage,
			Step:       st.step,
			Total:      TotalSteps,
			Status:     StatusFailed,
			Message:    message,
			RequestID:  st.requestID,
			DurationMS: elapsed.Milliseconds(),
			Error:      err.Error(),
		})
		return newStageError(stage, err)
	}

	o.deps.Metrics.ObserveStage(stage, "ok", elapsed)
	o.logger.Info("stage completed", fields...)
	st.progress.emit(ProgressEvent{
		Stage:      stage,
		Step:       st.step,
		Total:      TotalSteps,
		Status:     StatusCompleted,
		Message:    message,
		RequestID:  st.requestID,
		DurationMS: elapsed.Milliseconds(),
	})
	return nil
}

func validateInputs(resume types.ResumeInput, jd types.JobDescriptionInput, opts types.OptimizationOptions) error {
	if err := resume.Validate(); err != nil {
		return err
	}
	if err := jd.Validate(); err != nil {
		return err
	}
	return types.ValidateOptions(opts)
}

// cleanJobDescription reduces pasted HTML postings to text.
func (o *Optimizer) cleanJobDescription(text string) string {
	if !fetch.LooksLikeHTML(text) {
		return strings.TrimSpace(text)
	}
	cleaned, err := fetch.HTMLToText(text)
	if err != nil || strings.TrimSpace(cleaned) == "" {
		o.logger.Warn("failed to convert job description html, using raw text", zap.Error(err))
		return strings.TrimSpace(text)
	}
	return cleaned
}

func (o *Optimizer) resultKey(resume types.ResumeInput, jdText string, opts types.OptimizationOptions) (string, error) {
	marker, err := ingestion.SourceMarker(resume)
	if err != nil {
		return "", err
	}
	return o.deps.Keys.ResultKey(cache.ResultKeyInput{
		ResumeSource:   marker,
		JobDescription: jdText,
		Options:        opts,
		ModelIdentity:  o.deps.Model.Identity(),
		Settings:       o.settings,
	})
}

// keySettings are the tunables that change a result for identical inputs
// and models.
type keySettings struct {
	Weights                 scoring.Weights `json:"weights"`
	StrongThreshold         float64         `json:"strong_threshold"`
	WeakThreshold           float64         `json:"weak_threshold"`
	MaxRecommendations      int             `json:"max_recommendations"`
	GraduationYearThreshold int             `json:"graduation_year_threshold"`
	ExperienceYearsCap      int             `json:"experience_years_cap"`
}

func settingsOf(deps Deps) keySettings {
	gapCfg := deps.Analyzer.Config()
	guardCfg := deps.Guardrails.Config()
	return keySettings{
		Weights:                 deps.Scorer.Weights(),
		StrongThreshold:         gapCfg.StrongThreshold,
		WeakThreshold:           gapCfg.WeakThreshold,
		MaxRecommendations:      gapCfg.MaxRecommendations,
		GraduationYearThreshold: guardCfg.GraduationYearThreshold,
		ExperienceYearsCap:      guardCfg.ExperienceYearsCap,
	}
}

// lookup returns the cached result marked as a hit. Decode failures are misses.
func (o *Optimizer) lookup(ctx context.Context, key string) (*types.OptimizationResult, bool) {
	var res types.OptimizationResult
	if !o.deps.Cache.GetJSON(ctx, key, &res) {
		return nil, false
	}
	res.CacheHit = true
	return &res, true
}

// applyGuardrails scrubs age signals, then re-normalizes every bullet the
// scrub changed so it keeps its action verb and word bounds. Bullets scrubbed
// to nothing are dropped.
func applyGuardrails(g *guardrails.Engine, r *types.OptimizedResume) []types.PolicyViolation {
	before := make([][]string, len(r.Experience))
	for i := range r.Experience {
		before[i] = slices.Clone(r.Experience[i].Responsibilities)
	}

	violations := g.Apply(r)

	for i := range r.Experience {
		exp := &r.Experience[i]
		kept := exp.Responsibilities[:0]
		for j, b := range exp.Responsibilities {
			if b != before[i][j] {
				b = rewriting.NormalizeBullet(b, exp.Role)
			}
			if b != "" {
				kept = append(kept, b)
			}
		}
		exp.Responsibilities = kept
	}
	return violations
}

// persist stores the run record. Failures are logged only.
func (o *Optimizer) persist(ctx context.Context, res *types.OptimizationResult) {
	if o.deps.Runs == nil {
		return
	}
	if _, err := o.deps.Runs.SaveRun(ctx, res); err != nil {
		o.logger.Warn("failed to persist optimization run",
			zap.String("request_id", res.RequestID),
			zap.Error(err))
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
