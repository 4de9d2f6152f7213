// Package storage persists rendered artifacts and returns where they can be
// downloaded from. A local directory and Google Cloud Storage are supported.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Backend names
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Store writes an artifact under key and returns its URL or path.
type Store interface {
	Store(ctx context.Context, data []byte, key, contentType string) (string, error)
	Name() string
}

// StorageError wraps any failure to write an artifact
type StorageError struct {
	Backend string
	Key     string
	Cause   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s) for %q: %v", e.Backend, e.Key, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Config selects and configures a backend.
type Config struct {
	Backend       string `mapstructure:"backend"`
	LocalDir      string `mapstructure:"local_dir"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// Open builds the configured Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	case BackendGCS:
		return NewGCS(ctx, cfg.Bucket, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ArtifactKey is the object key of one rendered artifact.
func ArtifactKey(requestID, ext string) string {
	return path.Join("artifacts", requestID, "resume."+strings.TrimPrefix(ext, "."))
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	cleaned := path.Clean("/" + key)[1:]
	if key == "" || cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
