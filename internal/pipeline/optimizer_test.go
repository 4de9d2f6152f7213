package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/embedding"
	"github.com/TedTes/genres-sub000/internal/explain"
	"github.com/TedTes/genres-sub000/internal/gap"
	"github.com/TedTes/genres-sub000/internal/guardrails"
	"github.com/TedTes/genres-sub000/internal/ingestion"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/rewriting"
	"github.com/TedTes/genres-sub000/internal/scoring"
	"github.com/TedTes/genres-sub000/internal/storage"
	"github.com/TedTes/genres-sub000/internal/types"
)

const normalizedJSON = `{
  "contact": {"name": "Jane Doe", "email": "jane@example.com"},
  "summary": "Backend developer building web services.",
  "experience": [{
    "role": "Software Engineer",
    "company": "Acme",
    "start_date": "2019-01",
    "end_date": "Present",
    "responsibilities": ["Built Flask APIs in Python serving two million requests a day for internal teams"]
  }],
  "education": [{"institution": "State University", "degree": "BSc", "graduation_date": "2018"}],
  "skills": {"core_competencies": [], "tools": ["Python", "Flask"], "methodologies": []}
}`

const optimizedJSON = `{
  "contact": {"name": "Jane Doe"},
  "summary": "Backend developer building Python and Flask web services.",
  "experience": [{
    "role": "Software Engineer",
    "company": "Acme",
    "start_date": "2019-01",
    "end_date": "Present",
    "responsibilities": ["Built Flask APIs in Python serving two million requests a day for internal teams"]
  }],
  "education": [{"institution": "State University", "degree": "BSc"}],
  "skills": {"core_competencies": [], "tools": ["Python", "Flask"], "methodologies": []},
  "skills_to_add": ["Docker"]
}`

const rationaleJSON = `{"changes": [{"change": "Emphasized Flask API work", "reason": "The role centers on Python web services."}]}`

// fakeChat answers by tier: standard for ingestion, advanced for rewrite,
// lite for explanation.
// A tier with a gate blocks until the gate closes or the call is cancelled.
type fakeChat struct {
	mu        sync.Mutex
	calls     map[llm.ModelTier]int
	errs      map[llm.ModelTier]error
	gates     map[llm.ModelTier]chan struct{}
	cancelled int
	requests  []llm.ChatRequest
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		calls: map[llm.ModelTier]int{},
		errs:  map[llm.ModelTier]error{},
		gates: map[llm.ModelTier]chan struct{}{},
	}
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Tier]++
	f.requests = append(f.requests, req)
	err, gate := f.errs[req.Tier], f.gates[req.Tier]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelled++
			f.mu.Unlock()
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	switch req.Tier {
	case llm.TierStandard:
		return normalizedJSON, nil
	case llm.TierAdvanced:
		return optimizedJSON, nil
	default:
		return rationaleJSON, nil
	}
}

func (f *fakeChat) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeChat) callsTo(tier llm.ModelTier) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tier]
}

func (f *fakeChat) cancelledCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeChat) lastRequest(tier llm.ModelTier) llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Tier == tier {
			return f.requests[i]
		}
	}
	return llm.ChatRequest{}
}

type failingStore struct{}

func (failingStore) Store(ctx context.Context, data []byte, key, contentType string) (string, error) {
	return "", &storage.StorageError{Backend: "fake", Key: key, Cause: errors.New("bucket unavailable")}
}
func (failingStore) Name() string { return "fake" }

type recordingRuns struct {
	mu    sync.Mutex
	saved []*types.OptimizationResult
	err   error
}

func (r *recordingRuns) SaveRun(ctx context.Context, res *types.OptimizationResult) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, res)
	return uuid.New(), r.err
}

type fixture struct {
	chat    *fakeChat
	cache   *cache.Cache
	store   storage.Store
	runs    *recordingRuns
	metrics *observability.PipelineMetrics
	opt     *Optimizer
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	chat := newFakeChat()

	backend, err := cache.NewMemoryBackend(32)
	require.NoError(t, err)
	c := cache.New(backend, logger, nil)

	store, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	scorer, err := scoring.New(scoring.DefaultWeights())
	require.NoError(t, err)

	metrics := observability.NewPipelineMetrics(prometheus.NewRegistry())
	runs := &recordingRuns{}

	deps := Deps{
		Ingester:   ingestion.New(Instrument(chat, StageIngestion, metrics), logger, ingestion.Options{}),
		Analyzer:   gap.NewAnalyzer(nil, embedding.NewHashingEmbedder(256), gap.DefaultConfig(), logger),
		Rewriter:   rewriting.NewEngine(Instrument(chat, StageRewrite, metrics), logger, rewriting.Options{}),
		Explainer:  explain.NewEngine(Instrument(chat, StageExplanation, metrics), logger, explain.Options{}),
		Guardrails: guardrails.New(guardrails.DefaultConfig(), logger),
		Scorer:     scorer,
		Cache:      c,
		Store:      store,
		Runs:       runs,
		Model: types.ModelMetadata{
			Provider:          "fake",
			ChatModel:         "fake-chat",
			EmbeddingProvider: "local",
			EmbeddingModel:    "hashing-256",
		},
		Logger:  logger,
		Metrics: metrics,
	}
	for _, m := range mutate {
		m(&deps)
	}

	opt, err := NewOptimizer(deps)
	require.NoError(t, err)
	return &fixture{chat: chat, cache: c, store: deps.Store, runs: runs, metrics: metrics, opt: opt}
}

func inputs(t *testing.T, jdText string, opts ...types.Option) (types.ResumeInput, types.JobDescriptionInput, types.OptimizationOptions) {
	t.Helper()
	resume, err := types.NewResumeInput("Jane Doe\nSoftware Engineer at Acme\nSkills: Python, Flask", "", "")
	require.NoError(t, err)
	jd, err := types.NewJobDescriptionInput(jdText, "Backend Engineer", "Initech")
	require.NoError(t, err)
	o, err := types.NewOptions(opts...)
	require.NoError(t, err)
	return resume, jd, o
}

const pythonJD = "Backend engineer.\nRequirements:\n- Python, Flask, Docker, AWS, CI/CD"

func TestOptimize_FullRunThenCacheHit(t *testing.T) {
	f := newFixture(t)
	resume, jd, opts := inputs(t, pythonJD)

	var events []ProgressEvent
	first, err := f.opt.OptimizeWithProgress(context.Background(), resume, jd, opts, "user-1", func(e ProgressEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 3, f.chat.total(), "one call each for ingestion, rewrite and explanation")

	assert.Subset(t, first.MissingKeywords, []string{"Docker", "AWS", "CI/CD"})
	assert.Less(t, first.MatchScore, 0.7)
	assert.Equal(t, first.ScoreBreakdown.Overall, first.MatchScore)
	assert.Len(t, first.ScoreBreakdown.Components, 5)
	assert.Equal(t, types.InputTypeText, first.InputType)
	assert.Equal(t, "user-1", first.RequesterID)
	assert.NotEmpty(t, first.Rationale.Entries)
	assert.NotNil(t, first.PolicyViolations)

	require.NotNil(t, first.Artifacts.DOCX)
	assert.Nil(t, first.Artifacts.PDF, "pdf is opt-in")
	_, statErr := os.Stat(*first.Artifacts.DOCX)
	assert.NoError(t, statErr)
	assert.Empty(t, first.ArtifactError)

	for _, stage := range []string{StageIngestion, StageGapAnalysis, StageRewrite, StageExplanation, StageGuardrails, StageScoring, StageArtifacts} {
		assert.Contains(t, first.StageTimingsMS, stage)
	}

	var started []int
	for _, e := range events {
		if e.Status == StatusStarted {
			started = append(started, e.Step)
			assert.Equal(t, TotalSteps, e.Total)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, started)

	require.Len(t, f.runs.saved, 1)
	assert.Equal(t, first.RequestID, f.runs.saved[0].RequestID)

	second, err := f.opt.Optimize(context.Background(), resume, jd, opts, "user-2")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 3, f.chat.total(), "a cache hit makes no provider calls")
	assert.Equal(t, first.MatchScore, second.MatchScore)
	assert.Equal(t, first.CacheKey, second.CacheKey)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, "user-2", second.RequesterID)
	assert.Equal(t, "user-1", first.RequesterID)

	require.Len(t, f.runs.saved, 2)
	assert.Equal(t, second.RequestID, f.runs.saved[1].RequestID)
	assert.Equal(t, "user-2", f.runs.saved[1].RequesterID)
	assert.True(t, f.runs.saved[1].CacheHit)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProviderCalls.WithLabelValues(StageRewrite)))
}

func TestOptimize_DifferentOptionsMissCache(t *testing.T) {
	f := newFixture(t)
	resume, jd, aggressive := inputs(t, pythonJD, types.WithTone(types.ToneAggressive))
	_, _, conservative := inputs(t, pythonJD, types.WithTone(types.ToneConservative))

	a, err := f.opt.Optimize(context.Background(), resume, jd, aggressive, "")
	require.NoError(t, err)
	c, err := f.opt.Optimize(context.Background(), resume, jd, conservative, "")
	require.NoError(t, err)

	assert.False(t, c.CacheHit)
	assert.NotEqual(t, a.CacheKey, c.CacheKey)
	assert.Equal(t, 6, f.chat.total())
}

func TestOptimize_InvalidInputFailsBeforeAnyStage(t *testing.T) {
	f := newFixture(t)
	_, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), types.ResumeInput{Text: "a", PDFRef: "b.pdf"}, jd, opts, "")
	require.Error(t, err)

	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, StageValidate, se.Stage)
	assert.False(t, se.Retryable)
	assert.True(t, types.IsInputValidation(err))
	assert.Zero(t, f.chat.total())
}

func TestOptimize_FatalStageIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.chat.errs[llm.TierAdvanced] = &llm.ServiceUnavailableError{Provider: llm.ProviderOpenAI, Attempts: 3, Cause: errors.New("timeout")}
	resume, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.Error(t, err)

	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, StageRewrite, se.Stage)
	assert.True(t, se.Retryable)
	assert.True(t, llm.IsServiceUnavailable(err))

	assert.Zero(t, f.cache.Stats().Writes)
	assert.Empty(t, f.runs.saved)
}

func TestOptimize_SchemaFailureNamesStage(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Ingester = ingestion.New(repairOnly{`{"summary": "no structure"}`}, nil, ingestion.Options{MaxRepairs: 1})
	})
	resume, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.Error(t, err)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, StageIngestion, se.Stage)
	assert.True(t, repair.IsSchemaValidation(err))
}

// repairOnly always answers with the same document.
type repairOnly struct{ doc string }

func (r repairOnly) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return r.doc, nil
}

func TestOptimize_ExplanationFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.chat.errs[llm.TierLite] = errors.New("quota exceeded")
	resume, jd, opts := inputs(t, pythonJD)

	res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)

	var fallback int
	for _, e := range res.Rationale.Entries {
		assert.NotEqual(t, types.RationaleFromModel, e.Source)
		if e.Source == types.RationaleFromFallback {
			fallback++
		}
	}
	assert.Equal(t, len(res.MissingKeywords), fallback)
}

func TestOptimize_StorageFailureKeepsResult(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Store = failingStore{} })
	resume, jd, opts := inputs(t, pythonJD, types.WithIncludePDF(true))

	res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	assert.Nil(t, res.Artifacts.DOCX)
	assert.Nil(t, res.Artifacts.PDF)
	assert.Contains(t, res.ArtifactError, "bucket unavailable")
	assert.NotEmpty(t, res.Grade)
}

func TestOptimize_IncludePDF(t *testing.T) {
	f := newFixture(t)
	resume, jd, opts := inputs(t, pythonJD, types.WithIncludePDF(true))

	res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	require.NotNil(t, res.Artifacts.PDF)
	assert.True(t, strings.HasSuffix(*res.Artifacts.PDF, "resume.pdf"))
}

func TestOptimize_PersistenceFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.runs.err = errors.New("connection refused")
	resume, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	assert.Len(t, f.runs.saved, 1)
}

func TestOptimize_AbortedRequestIsNotCached(t *testing.T) {
	f := newFixture(t)
	resume, jd, opts := inputs(t, pythonJD)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.opt.Optimize(ctx, resume, jd, opts, "")
	require.Error(t, err)
	assert.True(t, IsAborted(err))
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.True(t, se.Retryable)
	assert.Zero(t, f.cache.Stats().Writes)
}

func TestOptimize_HTMLJobDescriptionIsCleaned(t *testing.T) {
	f := newFixture(t)
	html := "<html><body><div><h2>Backend engineer</h2><ul><li>Required: Python, Flask, Docker, AWS, CI/CD</li></ul></div></body></html>"
	resume, jd, opts := inputs(t, html)

	res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	assert.Contains(t, res.MissingKeywords, "Docker")

	prompt := f.chat.lastRequest(llm.TierAdvanced).Messages
	require.NotEmpty(t, prompt)
	user := prompt[len(prompt)-1].Content
	assert.NotContains(t, user, "<li>")
	assert.Contains(t, user, "Required: Python, Flask, Docker, AWS, CI/CD")
}

func TestOptimize_BrokenCacheDoesNotFailRequests(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Cache = cache.New(brokenBackend{}, nil, nil) })
	resume, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 6, f.chat.total())
}

type brokenBackend struct{}

var errBroken = errors.New("connection refused")

func (brokenBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errBroken
}
func (brokenBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errBroken
}
func (brokenBackend) Delete(ctx context.Context, key string) error         { return errBroken }
func (brokenBackend) Exists(ctx context.Context, key string) (bool, error) { return false, errBroken }
func (brokenBackend) Name() string                                         { return "broken" }
func (brokenBackend) Close() error                                         { return nil }

func TestNewOptimizer_MissingDeps(t *testing.T) {
	_, err := NewOptimizer(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer, cache, explainer")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"input validation", &types.InputValidationError{Field: "resume"}, false},
		{"canceled", context.Canceled, true},
		{"service unavailable", &llm.ServiceUnavailableError{Provider: llm.ProviderGemini}, true},
		{"schema", &repair.SchemaValidationError{}, true},
		{"extraction", &ingestion.ExtractionError{Format: types.InputTypePDF, Cause: errors.New("corrupt")}, false},
		{"unknown", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("boom")
	err := newStageError(StageRewrite, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "rewrite stage failed: boom", err.Error())
	assert.Same(t, err, newStageError(StageFinalize, err), "existing stage errors are kept")
	assert.Nil(t, newStageError(StageRewrite, nil))
}

// waiting counts the callers attached to in-flight runs.
func (o *Optimizer) waiting() int {
	o.flightsMu.Lock()
	defer o.flightsMu.Unlock()
	n := 0
	for _, f := range o.flights {
		f.mu.Lock()
		n += f.waiters
		f.mu.Unlock()
	}
	return n
}

type outcome struct {
	res *types.OptimizationResult
	err error
}

func await(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("optimization did not return")
		return outcome{}
	}
}

func TestOptimize_CollapsedRequestOutlivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.chat.gates[llm.TierAdvanced] = gate
	resume, jd, opts := inputs(t, pythonJD)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := f.opt.Optimize(firstCtx, resume, jd, opts, "user-1")
		firstDone <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return f.chat.callsTo(llm.TierAdvanced) == 1 }, 5*time.Second, 5*time.Millisecond)

	var mu sync.Mutex
	var events []ProgressEvent
	secondDone := make(chan outcome, 1)
	go func() {
		res, err := f.opt.OptimizeWithProgress(context.Background(), resume, jd, opts, "user-2", func(e ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		})
		secondDone <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return f.opt.waiting() == 2 }, 5*time.Second, 5*time.Millisecond)

	cancelFirst()
	first := await(t, firstDone)
	require.Error(t, first.err)
	assert.True(t, IsAborted(first.err))
	assert.Equal(t, 1, f.opt.waiting())

	close(gate)
	second := await(t, secondDone)
	require.NoError(t, second.err)
	assert.Equal(t, "user-2", second.res.RequesterID)
	assert.False(t, second.res.CacheHit)
	assert.Equal(t, 1, f.chat.callsTo(llm.TierAdvanced), "the shared run is not restarted")
	assert.Zero(t, f.chat.cancelledCalls())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("ok")))

	mu.Lock()
	var started []int
	for _, e := range events {
		assert.Equal(t, second.res.RequestID, e.RequestID)
		if e.Status == StatusStarted {
			started = append(started, e.Step)
		}
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, started, "missed events are replayed")
	assert.Equal(t, StageFinalize, last.Stage)
	assert.Equal(t, StatusCompleted, last.Status)

	require.Len(t, f.runs.saved, 1, "only the caller that waited is recorded")
	assert.Equal(t, "user-2", f.runs.saved[0].RequesterID)
	assert.Equal(t, second.res.RequestID, f.runs.saved[0].RequestID)

	third, err := f.opt.Optimize(context.Background(), resume, jd, opts, "user-3")
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.Equal(t, "user-3", third.RequesterID)
}

func TestOptimize_CollapsedCallersGetTheirOwnResult(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.chat.gates[llm.TierAdvanced] = gate
	resume, jd, opts := inputs(t, pythonJD)

	requesters := []string{"user-1", "user-2", "user-3"}
	done := make([]chan outcome, len(requesters))
	for i, id := range requesters {
		done[i] = make(chan outcome, 1)
		go func() {
			res, err := f.opt.Optimize(context.Background(), resume, jd, opts, id)
			done[i] <- outcome{res, err}
		}()
	}
	require.Eventually(t, func() bool { return f.opt.waiting() == len(requesters) }, 5*time.Second, 5*time.Millisecond)
	close(gate)

	seen := map[string]bool{}
	for i, id := range requesters {
		got := await(t, done[i])
		require.NoError(t, got.err)
		assert.Equal(t, id, got.res.RequesterID)
		assert.False(t, seen[got.res.RequestID], "request IDs are unique")
		seen[got.res.RequestID] = true
	}
	assert.Equal(t, 3, f.chat.total(), "one run serves every caller")
	assert.Len(t, f.runs.saved, len(requesters))
	assert.Equal(t, int64(1), f.cache.Stats().Writes)
}

func TestOptimize_AbandonedRunIsCancelledAndNotCached(t *testing.T) {
	f := newFixture(t)
	f.chat.gates[llm.TierAdvanced] = make(chan struct{})
	resume, jd, opts := inputs(t, pythonJD)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		res, err := f.opt.Optimize(ctx, resume, jd, opts, "user-1")
		done <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return f.chat.callsTo(llm.TierAdvanced) == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	got := await(t, done)
	require.Error(t, got.err)
	assert.True(t, IsAborted(got.err))

	require.Eventually(t, func() bool { return f.chat.cancelledCalls() == 1 }, 5*time.Second, 5*time.Millisecond,
		"the detached run stops once nobody waits for it")
	assert.Zero(t, f.opt.waiting())
	assert.Zero(t, f.cache.Stats().Writes)
	assert.Empty(t, f.runs.saved)
}

func TestOptimize_RunTimeoutBoundsDetachedRun(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RunTimeout = 20 * time.Millisecond })
	f.chat.gates[llm.TierAdvanced] = make(chan struct{})
	resume, jd, opts := inputs(t, pythonJD)

	_, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, StageRewrite, se.Stage)
	assert.True(t, se.Retryable)
	assert.Zero(t, f.cache.Stats().Writes)
}

func TestOptimize_SettingsChangeTheCacheKey(t *testing.T) {
	base := newFixture(t)
	resume, jd, opts := inputs(t, pythonJD)
	first, err := base.opt.Optimize(context.Background(), resume, jd, opts, "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"scoring weights", func(d *Deps) {
			w := scoring.DefaultWeights()
			w.KeywordCoverage, w.SemanticSimilarity = 0.25, 0.35
			scorer, serr := scoring.New(w)
			require.NoError(t, serr)
			d.Scorer = scorer
		}},
		{"gap thresholds", func(d *Deps) {
			cfg := gap.DefaultConfig()
			cfg.StrongThreshold = 0.8
			d.Analyzer = gap.NewAnalyzer(nil, embedding.NewHashingEmbedder(256), cfg, nil)
		}},
		{"guardrails", func(d *Deps) {
			d.Guardrails = guardrails.New(guardrails.Config{ExperienceYearsCap: 25}, nil)
		}},
		{"tier models", func(d *Deps) { d.Model.LiteModel = "fake-lite" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(d *Deps) { d.Cache = base.cache }, tt.mutate)
			res, err := f.opt.Optimize(context.Background(), resume, jd, opts, "")
			require.NoError(t, err)
			assert.False(t, res.CacheHit)
			assert.NotEqual(t, first.CacheKey, res.CacheKey)
		})
	}
}

func TestApplyGuardrails_RenormalizesScrubbedBullets(t *testing.T) {
	original := &types.NormalizedResume{
		Experience: []types.ExperienceItem{{
			Role:    "Staff Engineer",
			Company: "Acme",
			Responsibilities: []string{
				"Led Python platform team after I joined Acme in 2001",
				"Led Flask teams with 25+ years of experience in backend delivery",
				"Built Flask APIs in Python serving two million requests a day",
			},
		}},
	}
	optimized := &types.OptimizedResume{Experience: append([]types.ExperienceItem(nil), original.Experience...)}
	opts, err := types.NewOptions()
	require.NoError(t, err)

	processed := rewriting.PostProcess(optimized, original, opts)
	untouched := processed.Experience[0].Responsibilities[2]

	g := guardrails.New(guardrails.Config{
		Now: func() time.Time { return time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC) },
	}, nil)
	violations := applyGuardrails(g, processed)
	require.Len(t, violations, 2)

	bullets := processed.Experience[0].Responsibilities
	require.Len(t, bullets, 3)
	for _, b := range bullets {
		n := rewriting.WordCount(b)
		assert.GreaterOrEqual(t, n, rewriting.MinBulletWords, b)
		assert.LessOrEqual(t, n, rewriting.MaxBulletWords, b)
		assert.True(t, rewriting.StartsWithActionVerb(b), b)
	}
	assert.True(t, strings.HasPrefix(bullets[0], "Led Python platform team after I joined Acme"), bullets[0])
	assert.NotContains(t, bullets[0], "2001")
	assert.NotContains(t, bullets[1], "25+")
	assert.Contains(t, bullets[1], "extensive experience")
	assert.Equal(t, untouched, bullets[2])
}
