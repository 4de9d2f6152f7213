// Package cache provides the content-addressed result cache that sits in
// front of the optimization pipeline. Backends are pluggable; callers only
// see Cache, whose operations never fail the request.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend is a byte-oriented key/value store with per-entry TTL.
// Get reports a miss as (nil, false, nil).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Name() string
	Close() error
}

// Backend names
const (
	BackendAuto   = "auto"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Error wraps a backend failure. It is only ever logged.
type Error struct {
	Op      string
	Backend string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s on %s failed: %v", e.Op, e.Backend, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
