package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/config"
	"github.com/TedTes/genres-sub000/internal/db"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/server/middleware"
	"github.com/TedTes/genres-sub000/internal/server/ratelimit"
	"github.com/TedTes/genres-sub000/internal/types"
)

type optimizeCall struct {
	resume      types.ResumeInput
	jd          types.JobDescriptionInput
	opts        types.OptimizationOptions
	requesterID string
}

type fakeOptimizer struct {
	mu    sync.Mutex
	calls []optimizeCall
	err   error
}

func (f *fakeOptimizer) OptimizeWithProgress(_ context.Context, resume types.ResumeInput, jd types.JobDescriptionInput, opts types.OptimizationOptions, requesterID string, progress pipeline.ProgressCallback) (*types.OptimizationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, optimizeCall{resume, jd, opts, requesterID})
	f.mu.Unlock()

	if progress != nil {
		progress(pipeline.ProgressEvent{Stage: pipeline.StageIngestion, Step: 1, Total: pipeline.TotalSteps, Status: pipeline.StatusStarted, Message: "Ingesting resume"})
		progress(pipeline.ProgressEvent{Stage: pipeline.StageIngestion, Step: 1, Total: pipeline.TotalSteps, Status: pipeline.StatusCompleted, Message: "Ingesting resume"})
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.OptimizationResult{
		RequestID:   "req-1",
		MatchScore:  0.62,
		Grade:       "C",
		RequesterID: requesterID,
	}, nil
}

func (f *fakeOptimizer) CacheStats() cache.Stats {
	return cache.Stats{Backend: "memory", Hits: 3, Misses: 1, HitRate: 0.75}
}

func (f *fakeOptimizer) lastCall(t *testing.T) optimizeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeRuns struct {
	runs      map[uuid.UUID]*db.Run
	lastLimit int
	err       error
}

func (f *fakeRuns) GetRun(_ context.Context, id uuid.UUID) (*db.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	run, ok := f.runs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return run, nil
}

func (f *fakeRuns) ListRunsByRequester(_ context.Context, requesterID string, limit int) ([]db.Run, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []db.Run
	for _, r := range f.runs {
		if r.RequesterID == requesterID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, cfg Config, opt *fakeOptimizer, runs RunReader) *Server {
	t.Helper()
	deps := Deps{Optimizer: opt, Logger: zaptest.NewLogger(t), Gatherer: prometheus.NewRegistry()}
	if runs != nil {
		deps.Runs = runs
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.RemoteAddr = "192.0.2.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

const validBody = `{
	"resume": {"text": "Jane Doe\nBackend engineer with Go and PostgreSQL."},
	"job_description": {"text": "We need Go, Docker and AWS.", "title": "Backend Engineer"},
	"options": {"include_pdf": true}
}`

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNew_RequiresOptimizer(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)

	_, err = New(Config{AuthEnabled: true}, Deps{Optimizer: &fakeOptimizer{}})
	assert.Error(t, err, "auth without JWT config")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOptimizer{}, nil)
	w := do(t, s, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","cache":"memory"}`, w.Body.String())
}

func TestOptimize_Success(t *testing.T) {
	opt := &fakeOptimizer{}
	s := newTestServer(t, Config{}, opt, nil)

	w := do(t, s, http.MethodPost, "/optimize", validBody, map[string]string{middleware.RequesterHeader: "alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res types.OptimizationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "alice", res.RequesterID)

	call := opt.lastCall(t)
	assert.Equal(t, "alice", call.requesterID)
	assert.Equal(t, "Backend Engineer", call.jd.Title)
	assert.True(t, call.opts.IncludePDF)
	// omitted options keep their defaults
	assert.Equal(t, types.ToneProfessional, call.opts.Tone)
	assert.Equal(t, 5, call.opts.MaxBulletsPerRole)
}

func TestOptimize_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"resume":`},
		{"unknown field", `{"resume":{"text":"x"},"job_description":{"text":"y"},"extra":1}`},
		{"no resume source", `{"resume":{},"job_description":{"text":"y"}}`},
		{"two resume sources", `{"resume":{"text":"x","pdf_ref":"https://example.com/cv.pdf"},"job_description":{"text":"y"}}`},
		{"local file reference", `{"resume":{"docx_ref":"/etc/passwd"},"job_description":{"text":"y"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := &fakeOptimizer{}
			s := newTestServer(t, Config{}, opt, nil)

			w := do(t, s, http.MethodPost, "/optimize", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeError(t, w).Error)
			assert.Empty(t, opt.calls)
		})
	}
}

func TestOptimize_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantStage  string
		retryable  bool
	}{
		{
			name:       "invalid job description",
			err:        &pipeline.StageError{Stage: pipeline.StageValidate, Cause: &types.InputValidationError{Field: "job_description.text", Message: "required"}},
			wantStatus: http.StatusBadRequest,
			wantStage:  pipeline.StageValidate,
		},
		{
			name:       "schema failure",
			err:        &pipeline.StageError{Stage: pipeline.StageRewrite, Retryable: true, Cause: &repair.SchemaValidationError{Contract: "optimized_resume", Attempts: 3, Last: fmt.Errorf("missing summary")}},
			wantStatus: http.StatusBadGateway,
			wantStage:  pipeline.StageRewrite,
			retryable:  true,
		},
		{
			name:       "unexpected",
			err:        &pipeline.StageError{Stage: pipeline.StageScoring, Cause: fmt.Errorf("boom")},
			wantStatus: http.StatusInternalServerError,
			wantStage:  pipeline.StageScoring,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{}, &fakeOptimizer{err: tt.err}, nil)
			w := do(t, s, http.MethodPost, "/optimize", validBody, nil)

			require.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.Equal(t, tt.retryable, resp.Retryable)
		})
	}
}

func TestOptimizeStream(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOptimizer{}, nil)
	w := do(t, s, http.MethodPost, "/optimize/stream", validBody, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: progress\n"))
	assert.Contains(t, body, `"status":"started"`)
	assert.Contains(t, body, "event: result\n")
	assert.Contains(t, body, `"request_id":"req-1"`)
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: result"))
}

func TestOptimizeStream_Error(t *testing.T) {
	err := &pipeline.StageError{Stage: pipeline.StageIngestion, Retryable: true, Cause: fmt.Errorf("provider down")}
	s := newTestServer(t, Config{}, &fakeOptimizer{err: err}, nil)
	w := do(t, s, http.MethodPost, "/optimize/stream", validBody, nil)

	body := w.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, `"stage":"ingestion"`)
	assert.Contains(t, body, `"retryable":true`)
	assert.NotContains(t, body, "event: result")
}

func TestCacheStats(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOptimizer{}, nil)
	w := do(t, s, http.MethodGet, "/cache/stats", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, 0.75, stats.HitRate)
}

func TestRuns(t *testing.T) {
	aliceRun := &db.Run{ID: uuid.New(), RequesterID: "alice", MatchScore: 0.8, Grade: "B", CreatedAt: time.Now()}
	bobRun := &db.Run{ID: uuid.New(), RequesterID: "bob", MatchScore: 0.5, Grade: "D", CreatedAt: time.Now()}
	runs := &fakeRuns{runs: map[uuid.UUID]*db.Run{aliceRun.ID: aliceRun, bobRun.ID: bobRun}}
	s := newTestServer(t, Config{}, &fakeOptimizer{}, runs)

	t.Run("get", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/runs/"+aliceRun.ID.String(), "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got db.Run
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, aliceRun.ID, got.ID)
		assert.Equal(t, "B", got.Grade)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/runs/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/requesters/alice/runs?limit=5", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got RunsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got.Runs, 1)
		assert.Equal(t, aliceRun.ID, got.Runs[0].ID)
		assert.Equal(t, 5, runs.lastLimit)
	})

	t.Run("list empty", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/requesters/nobody/runs", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"runs":[]`)
		assert.Equal(t, db.DefaultListLimit, runs.lastLimit)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/requesters/alice/runs?limit=zero", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRuns_Errors(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOptimizer{}, nil)
	w := do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	s = newTestServer(t, Config{}, &fakeOptimizer{}, &fakeRuns{err: fmt.Errorf("connection refused")})
	w = do(t, s, http.MethodGet, "/runs/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestAuth(t *testing.T) {
	jwtCfg := &config.JWTConfig{Secret: testSecret, ExpirationHours: 1}
	aliceRun := &db.Run{ID: uuid.New(), RequesterID: "alice"}
	runs := &fakeRuns{runs: map[uuid.UUID]*db.Run{aliceRun.ID: aliceRun}}
	opt := &fakeOptimizer{}
	s := newTestServer(t, Config{AuthEnabled: true, JWT: jwtCfg}, opt, runs)

	alice, err := NewJWTService(jwtCfg).GenerateToken("alice")
	require.NoError(t, err)
	bob, err := NewJWTService(jwtCfg).GenerateToken("bob")
	require.NoError(t, err)
	bearer := func(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

	w := do(t, s, http.MethodPost, "/optimize", validBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the header is ignored when tokens are required
	w = do(t, s, http.MethodPost, "/optimize", validBody, map[string]string{middleware.RequesterHeader: "alice"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodPost, "/optimize", validBody, bearer(alice))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", opt.lastCall(t).requesterID)

	w = do(t, s, http.MethodGet, "/runs/"+aliceRun.ID.String(), "", bearer(alice))
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/runs/"+aliceRun.ID.String(), "", bearer(bob))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/requesters/alice/runs", "", bearer(bob))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	rl := &ratelimit.Config{
		Enabled:         true,
		DefaultRPS:      100,
		DefaultBurst:    100,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(0.001, 2),
	}
	s := newTestServer(t, Config{RateLimit: rl}, &fakeOptimizer{}, nil)

	for i := 0; i < 2; i++ {
		w := do(t, s, http.MethodPost, "/optimize", validBody, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(t, s, http.MethodPost, "/optimize", validBody, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	// health is never limited
	w = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsAndCORS(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOptimizer{}, nil)

	w := do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodOptions, "/optimize", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, Config{Port: 0}, &fakeOptimizer{}, nil)
	s.httpServer.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
