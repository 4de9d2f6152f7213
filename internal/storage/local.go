package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes artifacts below a directory.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocal creates the directory if needed. With a public base URL the
// returned location is a URL, otherwise an absolute file path.
func NewLocal(dir, publicBaseURL string) (*LocalStore, error) {
	if dir == "" {
		dir = "artifacts"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, &StorageError{Backend: BackendLocal, Key: abs, Cause: err}
	}
	return &LocalStore{dir: abs, baseURL: publicBaseURL}, nil
}

// Name returns "local"
func (s *LocalStore) Name() string { return BackendLocal }

// Dir returns the root directory.
func (s *LocalStore) Dir() string { return s.dir }

// Store writes data atomically through a temp file in the target directory.
func (s *LocalStore) Store(ctx context.Context, data []byte, key, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}
	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", &StorageError{Backend: BackendLocal, Key: key, Cause: err}
	}

	if s.baseURL != "" {
		return joinURL(s.baseURL, clean), nil
	}
	return target, nil
}
