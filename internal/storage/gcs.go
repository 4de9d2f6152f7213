package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore uploads artifacts to a Google Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCS creates a client with application default credentials unless opts
// say otherwise.
func NewGCS(ctx context.Context, bucket, publicBaseURL string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage requires a bucket")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, &StorageError{Backend: BackendGCS, Key: bucket, Cause: err}
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: publicBaseURL}, nil
}

// Name returns "gcs"
func (s *GCSStore) Name() string { return BackendGCS }

// Store uploads data and returns the object's public URL.
func (s *GCSStore) Store(ctx context.Context, data []byte, key, contentType string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", &StorageError{Backend: BackendGCS, Key: key, Cause: err}
	}

	w := s.client.Bucket(s.bucket).Object(clean).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", &StorageError{Backend: BackendGCS, Key: key, Cause: err}
	}
	if err := w.Close(); err != nil {
		return "", &StorageError{Backend: BackendGCS, Key: key, Cause: err}
	}
	return s.objectURL(clean), nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectURL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}
