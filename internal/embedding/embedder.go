// Package embedding turns text into vectors for semantic gap analysis.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Embedder converts a batch of texts into vectors of one fixed dimension.
type Embedder interface {
	// Name identifies provider and model, e.g. "openai/text-embedding-3-small"
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Config selects and configures an embedder.
type Config struct {
	Provider  string
	Model     string
	Dimension int
	BaseURL   string
}

// New builds the configured embedder.
func New(ctx context.Context, cfg Config, apiKey string) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg, apiKey)
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg, apiKey)
	case ProviderLocal, "":
		return NewHashingEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero or
// the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// checkBatch verifies a provider answered every text with same-dimension vectors.
func checkBatch(name string, texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%s returned %d vectors for %d texts", name, len(vectors), len(texts))
	}
	dim := -1
	for i, v := range vectors {
		if dim == -1 {
			dim = len(v)
		}
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("%s returned vector %d with dimension %d, want %d", name, i, len(v), dim)
		}
	}
	return nil
}
