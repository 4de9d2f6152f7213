// Package ratelimit provides per-client token bucket rate limiting.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client and endpoint.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	config   *Config
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
// A nil config disables limiting.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}

	l := &Limiter{
		entries: make(map[string]*entry),
		config:  config,
		done:    make(chan struct{}),
		now:     time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupRoutine(config.CleanupInterval)
	}
	return l
}

// Allow checks if a request from the given client is allowed for the specified endpoint.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec == nil {
		ec = &EndpointConfig{RPS: l.config.DefaultRPS, Burst: l.config.DefaultBurst}
	}
	if ec.RPS <= 0 {
		return true, Info{Allowed: true}
	}
	burst := ec.Burst
	if burst < 1 {
		burst = 1
	}

	// buckets are keyed by the matched pattern so /runs/a and /runs/b share one
	path := ec.Path
	if path == "" {
		path = endpoint
	}
	lim := l.limiter(clientID+":"+method+":"+path, rate.Limit(ec.RPS), burst)

	now := l.now()
	info := Info{Limit: burst}
	if lim.AllowN(now, 1) {
		info.Allowed = true
	} else {
		r := lim.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}

	tokens := lim.TokensAt(now)
	info.Remaining = max(0, int(math.Floor(tokens)))
	missing := float64(burst) - tokens
	info.ResetTime = now
	if missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / ec.RPS * float64(time.Second)))
	}
	return info.Allowed, info
}

func (l *Limiter) limiter(key string, r rate.Limit, burst int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(r, burst)}
		l.entries[key] = e
	}
	e.lastSeen = l.now()
	return e.limiter
}

// Size returns the number of live buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

// cleanup removes buckets idle for longer than IdleTTL.
func (l *Limiter) cleanup() {
	cutoff := l.now().Add(-l.config.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
