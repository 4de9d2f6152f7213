package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/retry"
)

// Resilient bounds embedding calls with a timeout, retries and a breaker.
type Resilient struct {
	next    Embedder
	cfg     llm.ResilienceConfig
	breaker *gobreaker.CircuitBreaker[[][]float32]
	logger  *zap.Logger
}

// NewResilient wraps next with the same resilience settings used for chat.
func NewResilient(next Embedder, cfg llm.ResilienceConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("embedding-%s", next.Name()),
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !llm.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Resilient{
		next:    next,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[[][]float32](settings),
		logger:  logger,
	}
}

// Name is the wrapped embedder's identity
func (r *Resilient) Name() string {
	return r.next.Name()
}

// Embed retries transient failures under the configured policy.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	policy := r.cfg.Retry
	policy.Retryable = llm.IsTransient
	policy.Notify = func(err error, wait time.Duration) {
		r.logger.Warn("retrying embedding call",
			zap.String("embedder", r.next.Name()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var out [][]float32
	attempts, err := policy.Attempts(ctx, func(ctx context.Context) error {
		vectors, err := r.breaker.Execute(func() ([][]float32, error) {
			callCtx := ctx
			if r.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
				defer cancel()
			}
			return r.next.Embed(callCtx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Permanent(err)
			}
			return err
		}
		out = vectors
		return nil
	})
	if err == nil {
		return out, nil
	}
	if llm.IsTransient(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &llm.ServiceUnavailableError{Provider: llm.Provider(r.next.Name()), Attempts: attempts, Cause: err}
	}
	return nil, err
}
