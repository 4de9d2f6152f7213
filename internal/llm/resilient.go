package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/retry"
)

// ResilienceConfig bounds every provider call in time and attempts.
type ResilienceConfig struct {
	Timeout time.Duration
	Retry   retry.Policy
	// BreakerMaxFailures consecutive transient failures open the breaker
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before probing
	BreakerOpenTimeout time.Duration
}

// DefaultResilienceConfig returns a 90s timeout, the default retry policy and
// a breaker that opens after 5 consecutive failures for 30s.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:            DefaultTimeout,
		Retry:              retry.DefaultPolicy(),
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Resilient decorates a Client with a per-call timeout, bounded retries on
// transient errors and a circuit breaker.
type Resilient struct {
	next    Client
	cfg     ResilienceConfig
	breaker *gobreaker.CircuitBreaker[string]
	logger  *zap.Logger
}

// NewResilient wraps next. A nil logger disables logging.
func NewResilient(next Client, cfg ResilienceConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}
	maxFailures := cfg.BreakerMaxFailures

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("llm-%s", next.Provider()),
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Resilient{
		next:    next,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[string](settings),
		logger:  logger,
	}
}

// Chat retries transient failures. When the budget is spent or the breaker
// is open the error is a ServiceUnavailableError.
func (r *Resilient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	policy := r.cfg.Retry
	policy.Retryable = IsTransient
	policy.Notify = func(err error, wait time.Duration) {
		r.logger.Warn("retrying provider call",
			zap.String("provider", string(r.next.Provider())),
			zap.String("tier", string(req.Tier)),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var out string
	attempts, err := policy.Attempts(ctx, func(ctx context.Context) error {
		text, err := r.breaker.Execute(func() (string, error) {
			callCtx := ctx
			if r.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
				defer cancel()
			}
			return r.next.Chat(callCtx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Permanent(err)
			}
			return err
		}
		out = text
		return nil
	})
	if err == nil {
		return out, nil
	}

	if IsTransient(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", &ServiceUnavailableError{Provider: r.next.Provider(), Attempts: attempts, Cause: err}
	}
	return "", err
}

// GetModel delegates to the wrapped client
func (r *Resilient) GetModel(tier ModelTier) string {
	return r.next.GetModel(tier)
}

// Provider delegates to the wrapped client
func (r *Resilient) Provider() Provider {
	return r.next.Provider()
}

// Close closes the wrapped client
func (r *Resilient) Close() error {
	return r.next.Close()
}

// BreakerState exposes the breaker state for health reporting.
func (r *Resilient) BreakerState() string {
	return r.breaker.State().String()
}
