package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/TedTes/genres-sub000/internal/llm"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder uses the Gemini batch embedding API
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a Gemini embedder
func NewGeminiEmbedder(ctx context.Context, cfg Config, apiKey string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

// Name returns "gemini/<model>"
func (e *GeminiEmbedder) Name() string {
	return ProviderGemini + "/" + e.model
}

// Embed embeds texts in one batch call
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		status := 0
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			status = gerr.Code
		}
		return nil, llm.NewProviderError(llm.ProviderGemini, status, fmt.Errorf("batch embedding failed: %w", err))
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		out = append(out, emb.Values)
	}
	if err := checkBatch(e.Name(), texts, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the client
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
