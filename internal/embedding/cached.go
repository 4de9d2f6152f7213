package embedding

import (
	"context"
	"time"

	"github.com/TedTes/genres-sub000/internal/cache"
)

// VectorStore is the subset of cache.Cache used to persist vectors.
type VectorStore interface {
	GetJSON(ctx context.Context, key string, v any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) bool
}

// Cached serves vectors from a store and only embeds the texts it has not
// seen under the same embedder identity.
type Cached struct {
	next  Embedder
	store VectorStore
	keys  cache.KeyBuilder
	ttl   time.Duration
}

// NewCached wraps next; ttl <= 0 uses cache.DefaultEmbeddingTTL.
func NewCached(next Embedder, store VectorStore, keys cache.KeyBuilder, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = cache.DefaultEmbeddingTTL
	}
	return &Cached{next: next, store: store, keys: keys, ttl: ttl}
}

// Name is the wrapped embedder's identity
func (c *Cached) Name() string {
	return c.next.Name()
}

// Embed returns cached vectors and embeds the rest in one batch.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, t := range texts {
		var vec []float32
		if c.store.GetJSON(ctx, c.keys.EmbeddingKey(c.next.Name(), t), &vec) && len(vec) > 0 {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(c.next.Name(), missing, vectors); err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		c.store.SetJSON(ctx, c.keys.EmbeddingKey(c.next.Name(), missing[j]), vec, c.ttl)
	}
	return out, nil
}
