package pipeline

import (
	"context"

	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/repair"
)

type countingGenerator struct {
	next    repair.Generator
	stage   string
	metrics *observability.PipelineMetrics
}

// Instrument counts every provider call gen makes on behalf of stage.
func Instrument(gen repair.Generator, stage string, metrics *observability.PipelineMetrics) repair.Generator {
	if gen == nil || metrics == nil {
		return gen
	}
	return &countingGenerator{next: gen, stage: stage, metrics: metrics}
}

func (g *countingGenerator) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	g.metrics.CountProviderCall(g.stage)
	return g.next.Chat(ctx, req)
}
