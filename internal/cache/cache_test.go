package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

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

func TestCache_StatsAndMetrics(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(8)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := New(backend, zaptest.NewLogger(t), metrics)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	_, ok = c.Get(ctx, "k")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "k")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, BackendMemory, stats.Backend)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Writes)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Lookups.WithLabelValues(BackendMemory, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Lookups.WithLabelValues(BackendMemory, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Writes.WithLabelValues(BackendMemory, "ok")))
}

func TestCache_BackendFailuresAreNonFatal(t *testing.T) {
	ctx := context.Background()
	c := New(brokenBackend{}, zaptest.NewLogger(t), NewMetrics(nil))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	assert.False(t, c.Exists(ctx, "k"))
	c.Delete(ctx, "k")

	stats := c.Stats()
	assert.Equal(t, int64(4), stats.Errors)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestCache_JSON(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(8)
	require.NoError(t, err)
	c := New(backend, nil, nil)

	type payload struct {
		Score float64 `json:"score"`
	}
	require.True(t, c.SetJSON(ctx, "p", payload{Score: 0.42}, time.Hour))

	var got payload
	require.True(t, c.GetJSON(ctx, "p", &got))
	assert.Equal(t, 0.42, got.Score)

	require.True(t, c.Set(ctx, "bad", []byte("{not json"), time.Hour))
	assert.False(t, c.GetJSON(ctx, "bad", &got))
	assert.False(t, c.Exists(ctx, "bad"), "undecodable entries are dropped")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, b.Name())

	b, err = Open(ctx, Options{Backend: BackendAuto, RedisURL: "redis://127.0.0.1:1"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, b.Name(), "auto falls back when redis is unreachable")

	_, err = Open(ctx, Options{Backend: BackendRedis}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "memcached"}, nil)
	assert.Error(t, err)
}
