// Package server provides the HTTP API for the resume optimizer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/config"
	"github.com/TedTes/genres-sub000/internal/db"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/server/middleware"
	"github.com/TedTes/genres-sub000/internal/server/ratelimit"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Optimizer is the pipeline surface the server drives.
type Optimizer interface {
	OptimizeWithProgress(ctx context.Context, resume types.ResumeInput, jd types.JobDescriptionInput, opts types.OptimizationOptions, requesterID string, progress pipeline.ProgressCallback) (*types.OptimizationResult, error)
	CacheStats() cache.Stats
}

// RunReader reads persisted runs.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
	ListRunsByRequester(ctx context.Context, requesterID string, limit int) ([]db.Run, error)
}

// Config holds server configuration
type Config struct {
	Port int
	// RequestTimeout bounds a single optimization, 0 means none
	RequestTimeout time.Duration
	AuthEnabled    bool
	JWT            *config.JWTConfig
	RateLimit      *ratelimit.Config
}

// Deps are the collaborators behind the routes. Runs and Gatherer are optional.
type Deps struct {
	Optimizer Optimizer
	Runs      RunReader
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         Config
	optimizer   Optimizer
	runs        RunReader
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	logger      *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Optimizer == nil {
		return nil, fmt.Errorf("server requires an optimizer")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:         cfg,
		optimizer:   deps.Optimizer,
		runs:        deps.Runs,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:      deps.Logger,
	}

	if cfg.AuthEnabled {
		if cfg.JWT == nil {
			return nil, fmt.Errorf("auth is enabled but no JWT configuration was given")
		}
		s.jwtService = NewJWTService(cfg.JWT)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /optimize", s.withIdentity(s.handleOptimize))
	mux.Handle("POST /optimize/stream", s.withIdentity(s.handleOptimizeStream))
	mux.Handle("GET /cache/stats", s.withIdentity(s.handleCacheStats))
	mux.Handle("GET /runs/{id}", s.withIdentity(s.handleGetRun))
	mux.Handle("GET /requesters/{id}/runs", s.withIdentity(s.handleListRuns))
	mux.HandleFunc("GET /health", s.handleHealth)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams and long optimizations are bounded by RequestTimeout
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withIdentity attaches the requester identity: a verified token subject
// when auth is on, the X-Requester-ID header otherwise.
func (s *Server) withIdentity(h http.HandlerFunc) http.Handler {
	if s.jwtService != nil {
		return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
	}
	return middleware.HeaderIdentity(h)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.RequesterHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes a bare error message
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// failure maps a pipeline error to its status and body.
func (s *Server) failure(w http.ResponseWriter, err error) {
	s.jsonResponse(w, HTTPStatus(err), NewErrorResponse(err))
}

// extractClientID keys rate limits by remote IP.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"retryable": true,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Info("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
