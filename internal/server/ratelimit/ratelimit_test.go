package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slow refills so tests never see a token come back
const slow = 0.001

func testConfig(rps float64, burst int) *Config {
	return &Config{
		Enabled:      true,
		DefaultRPS:   rps,
		DefaultBurst: burst,
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(testConfig(slow, 3))
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := limiter.Allow("127.0.0.1", "/test", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.True(t, info.ResetTime.After(time.Now()))
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	limiter := NewLimiter(testConfig(slow, 1))
	defer limiter.Stop()

	allowed, _ := limiter.Allow("10.0.0.1", "/test", "GET")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("10.0.0.1", "/test", "GET")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow("10.0.0.2", "/test", "GET")
	assert.True(t, allowed)
}

func TestLimiter_Whitelist(t *testing.T) {
	cfg := testConfig(slow, 1)
	cfg.Whitelist = ParseIPList("127.0.0.1, ::1")
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/test", "GET")
		require.True(t, allowed)
	}
	assert.Equal(t, 0, limiter.Size())
}

func TestLimiter_Blacklist(t *testing.T) {
	cfg := testConfig(100, 100)
	cfg.Blacklist = map[string]bool{"192.168.1.1": true}
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	allowed, info := limiter.Allow("192.168.1.1", "/test", "GET")
	assert.False(t, allowed)
	assert.False(t, info.Allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"nil":      nil,
		"disabled": {Enabled: false},
		"zero rps": NewConfig(0, 5),
	} {
		t.Run(name, func(t *testing.T) {
			limiter := NewLimiter(cfg)
			defer limiter.Stop()
			for i := 0; i < 20; i++ {
				allowed, _ := limiter.Allow("127.0.0.1", "/optimize", "POST")
				require.True(t, allowed)
			}
		})
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	cfg := testConfig(100, 100)
	cfg.EndpointConfigs = DefaultEndpointConfigs(slow, 2)
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	for i := 0; i < 2; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/optimize", "POST")
		require.True(t, allowed)
	}
	allowed, info := limiter.Allow("127.0.0.1", "/optimize", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 2, info.Limit)

	// the stream endpoint and reads have their own buckets
	allowed, _ = limiter.Allow("127.0.0.1", "/optimize/stream", "POST")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("127.0.0.1", "/cache/stats", "GET")
	assert.True(t, allowed)
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter := NewLimiter(testConfig(slow, 1))
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("127.0.0.1", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = limiter.Allow("127.0.0.1", "/metrics", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(testConfig(slow, 50))
	defer limiter.Stop()

	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("127.0.0.1", "/test", "GET"); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), granted.Load())
}

func TestLimiter_Cleanup(t *testing.T) {
	cfg := testConfig(slow, 1)
	cfg.IdleTTL = time.Minute
	limiter := NewLimiter(cfg)
	defer limiter.Stop()

	clock := time.Now()
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("10.0.0.%d", i), "/test", "GET")
	}
	require.Equal(t, 3, limiter.Size())

	clock = clock.Add(30 * time.Second)
	limiter.Allow("10.0.0.9", "/test", "GET")

	clock = clock.Add(45 * time.Second)
	limiter.cleanup()
	assert.Equal(t, 1, limiter.Size(), "only the recent bucket survives")
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.CleanupInterval = time.Millisecond
	limiter := NewLimiter(cfg)
	limiter.Stop()
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/optimize", Method: "POST", RPS: 1},
		{Path: "/runs/", Method: "GET", RPS: 5},
	}

	tests := []struct {
		path, method string
		wantPath     string
		wantNil      bool
	}{
		{"/optimize", "POST", "/optimize", false},
		{"/optimize", "GET", "", true},
		{"/runs/abc", "GET", "/runs/", false},
		{"/health", "GET", "/health", false},
		{"/unknown", "GET", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantPath, got.Path)
		})
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(2, 5)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 20.0, cfg.DefaultRPS)
	assert.Equal(t, 50, cfg.DefaultBurst)
	require.Len(t, cfg.EndpointConfigs, 2)
	assert.Equal(t, "/optimize", cfg.EndpointConfigs[0].Path)
	assert.Equal(t, 5, cfg.EndpointConfigs[0].Burst)

	assert.Equal(t, map[string]bool{"1.2.3.4": true}, ParseIPList(" 1.2.3.4 ,, "))
}
