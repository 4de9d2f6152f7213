package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default TTLs
const (
	DefaultResultTTL    = 24 * time.Hour
	DefaultEmbeddingTTL = 7 * 24 * time.Hour
)

// Stats is a snapshot of cache traffic since start.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Writes  int64   `json:"writes"`
	HitRate float64 `json:"hit_rate"`
}

// Cache fronts a Backend. Its operations log backend failures and report
// them as misses, so a broken cache never fails a request.
type Cache struct {
	backend Backend
	logger  *zap.Logger
	metrics *Metrics

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
	writes atomic.Int64
}

// New wraps backend. Logger and metrics may be nil.
func New(backend Backend, logger *zap.Logger, metrics *Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{backend: backend, logger: logger, metrics: metrics}
}

// Get returns the value under key, or false on a miss or backend failure.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := c.backend.Get(ctx, key)
	switch {
	case err != nil:
		c.fail("get", key, err)
		c.lookup("error")
		return nil, false
	case !ok:
		c.misses.Add(1)
		c.lookup("miss")
		return nil, false
	default:
		c.hits.Add(1)
		c.lookup("hit")
		return val, true
	}
}

// Set stores value and reports whether the write succeeded.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.fail("set", key, err)
		c.write("error")
		return false
	}
	c.writes.Add(1)
	c.write("ok")
	return true
}

// Delete removes key; failures are logged only.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.fail("delete", key, err)
	}
}

// Exists reports whether key is present; failures read as absent.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	ok, err := c.backend.Exists(ctx, key)
	if err != nil {
		c.fail("exists", key, err)
		return false
	}
	return ok
}

// GetJSON decodes the value under key into v. Undecodable entries are deleted.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.fail("decode", key, err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.fail("encode", key, err)
		return false
	}
	return c.Set(ctx, key, data, ttl)
}

// Stats returns traffic counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Backend: c.backend.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Writes:  c.writes.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Backend returns the active backend name.
func (c *Cache) Backend() string {
	return c.backend.Name()
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

func (c *Cache) fail(op, key string, err error) {
	c.errors.Add(1)
	cerr := &Error{Op: op, Backend: c.backend.Name(), Cause: err}
	c.logger.Warn("cache operation failed", zap.String("key", key), zap.Error(cerr))
}

func (c *Cache) lookup(result string) {
	if c.metrics != nil {
		c.metrics.Lookups.WithLabelValues(c.backend.Name(), result).Inc()
	}
}

func (c *Cache) write(result string) {
	if c.metrics != nil {
		c.metrics.Writes.WithLabelValues(c.backend.Name(), result).Inc()
	}
}
