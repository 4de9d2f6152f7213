package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options select and configure a backend at startup.
type Options struct {
	Backend  string
	RedisURL string
	Prefix   string
	LRUSize  int
}

// Open builds the configured backend. With BackendAuto, Redis is used when a
// URL is set and reachable; otherwise the in-process LRU takes over.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ro:"
	}

	switch opts.Backend {
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis cache backend requires a redis url")
		}
		return NewRedisBackend(ctx, opts.RedisURL, prefix)
	case BackendMemory:
		return NewMemoryBackend(opts.LRUSize)
	case BackendAuto, "":
		if opts.RedisURL != "" {
			backend, err := NewRedisBackend(ctx, opts.RedisURL, prefix)
			if err == nil {
				return backend, nil
			}
			logger.Warn("redis unavailable, falling back to in-process cache", zap.Error(err))
		}
		return NewMemoryBackend(opts.LRUSize)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
