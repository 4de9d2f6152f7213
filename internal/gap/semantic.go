package gap

import (
	"context"
	"fmt"

	"github.com/TedTes/genres-sub000/internal/embedding"
	"github.com/TedTes/genres-sub000/internal/types"
)

// semanticSimilarity embeds the job description and every chunk in one batch
// and classifies each chunk against the thresholds.
func semanticSimilarity(ctx context.Context, emb embedding.Embedder, chunks []types.DocumentChunk, jd string, cfg Config) (types.SemanticAnalysis, error) {
	sa := types.SemanticAnalysis{
		SectionSimilarity: map[types.Section]float64{},
		TotalChunks:       len(chunks),
		Chunks:            make([]types.ChunkSimilarity, 0, len(chunks)),
	}
	if len(chunks) == 0 {
		sa.Available = true
		return sa, nil
	}

	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, jd)
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return sa, err
	}
	if len(vectors) != len(texts) {
		return sa, fmt.Errorf("embedder %s returned %d vectors for %d texts", emb.Name(), len(vectors), len(texts))
	}

	jdVec := vectors[0]
	sums := map[types.Section]float64{}
	counts := map[types.Section]int{}
	var total float64
	for i, c := range chunks {
		sim := clamp01(embedding.Cosine(jdVec, vectors[i+1]))
		strength := classify(sim, cfg)
		switch strength {
		case types.MatchStrong:
			sa.StrongMatches++
		case types.MatchWeak:
			sa.WeakMatches++
		}
		sa.Chunks = append(sa.Chunks, types.ChunkSimilarity{
			Section:    c.Section,
			Index:      c.Index,
			Similarity: sim,
			Strength:   strength,
		})
		sums[c.Section] += sim
		counts[c.Section]++
		total += sim
	}
	for section, sum := range sums {
		sa.SectionSimilarity[section] = sum / float64(counts[section])
	}
	sa.OverallSimilarity = total / float64(len(chunks))
	sa.Available = true
	return sa, nil
}

// classify applies the strong and weak floors; the weak band is
// [weak, strong).
func classify(sim float64, cfg Config) types.MatchStrength {
	switch {
	case sim >= cfg.StrongThreshold:
		return types.MatchStrong
	case sim >= cfg.WeakThreshold:
		return types.MatchWeak
	default:
		return types.MatchNone
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
