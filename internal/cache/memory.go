package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize bounds the in-process cache
const DefaultLRUSize = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a bounded in-process LRU with per-entry expiry.
type MemoryBackend struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryBackend creates an LRU holding at most size entries.
func NewMemoryBackend(size int) (*MemoryBackend, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryBackend{entries: entries, now: time.Now}, nil
}

// Get returns a copy of the stored value; expired entries are evicted on read.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.expired(entry) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries.Add(key, entry)
	return nil
}

// Delete removes key
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Exists reports whether key holds an unexpired value
func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	entry, ok := m.entries.Peek(key)
	if !ok {
		return false, nil
	}
	if m.expired(entry) {
		m.entries.Remove(key)
		return false, nil
	}
	return true, nil
}

// Len returns the number of stored entries, including not yet evicted expired ones.
func (m *MemoryBackend) Len() int {
	return m.entries.Len()
}

// Name returns BackendMemory
func (m *MemoryBackend) Name() string { return BackendMemory }

// Close drops every entry
func (m *MemoryBackend) Close() error {
	m.entries.Purge()
	return nil
}

func (m *MemoryBackend) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
