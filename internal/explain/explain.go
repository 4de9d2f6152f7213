// Package explain builds the rationale attached to an optimization result:
// model-summarized changes followed by a deterministic keyword diff.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/guardrails"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/prompts"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/schemas"
	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// DefaultMaxChanges caps model-generated entries
const DefaultMaxChanges = 6

// Request is the input of one explanation.
type Request struct {
	Original       *types.NormalizedResume
	Optimized      *types.OptimizedResume
	JobDescription string
	Gap            *types.GapReport
}

// Options configures an Engine.
type Options struct {
	// Tier defaults to the lite tier
	Tier       llm.ModelTier
	MaxRepairs int
	MaxChanges int
}

// Engine produces rationales. It never fails.
type Engine struct {
	gen    repair.Generator
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an explanation Engine. A nil generator skips the model
// call and always uses the fallback entries.
func NewEngine(gen repair.Generator, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierLite
	}
	if opts.MaxChanges <= 0 {
		opts.MaxChanges = DefaultMaxChanges
	}
	return &Engine{gen: gen, opts: opts, logger: logger}
}

type modelRationale struct {
	Changes []struct {
		Change string `json:"change"`
		Reason string `json:"reason"`
	} `json:"changes"`
}

// Explain returns model entries (or the per-keyword fallback when the model
// cannot produce a valid answer) followed by the keyword diff entries.
func (e *Engine) Explain(ctx context.Context, req Request) *types.Rationale {
	rationale := &types.Rationale{Entries: []types.RationaleEntry{}}
	keywords := targetKeywords(req.Gap)

	entries, err := e.modelEntries(ctx, req)
	if err != nil {
		e.logger.Warn("explanation generation failed, using fallback rationale",
			zap.Int("keywords", len(keywords)),
			zap.Error(err))
		entries = Fallback(missingKeywords(req.Gap))
	}
	rationale.Append(entries...)

	if req.Original != nil && req.Optimized != nil {
		rationale.Append(KeywordDiff(req.Original.FullText(), req.Optimized.FullText(), keywords)...)
	}
	return rationale
}

func (e *Engine) modelEntries(ctx context.Context, req Request) ([]types.RationaleEntry, error) {
	if e.gen == nil {
		return nil, fmt.Errorf("no explanation model configured")
	}
	if req.Original == nil || req.Optimized == nil {
		return nil, fmt.Errorf("explanation requires both resumes")
	}
	messages, err := e.buildMessages(req)
	if err != nil {
		return nil, err
	}

	out, err := repair.Decode[modelRationale](ctx, e.gen, repair.Request{
		Contract:   schemas.ContractRationale,
		Messages:   messages,
		Tier:       e.opts.Tier,
		MaxRepairs: e.opts.MaxRepairs,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]types.RationaleEntry, 0, len(out.Changes))
	for _, c := range out.Changes {
		change, reason := strings.TrimSpace(c.Change), strings.TrimSpace(c.Reason)
		if change == "" || reason == "" {
			continue
		}
		entries = append(entries, types.RationaleEntry{Change: change, Reason: reason, Source: types.RationaleFromModel})
		if len(entries) == e.opts.MaxChanges {
			break
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("explanation contained no usable changes")
	}
	return entries, nil
}

func (e *Engine) buildMessages(req Request) ([]llm.Message, error) {
	system, err := prompts.Get(prompts.Explanation, prompts.KeySystem)
	if err != nil {
		return nil, err
	}
	schema, err := schemas.Source(schemas.ContractRationale)
	if err != nil {
		return nil, err
	}
	original, err := json.MarshalIndent(req.Original.AsOptimized(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode original resume: %w", err)
	}
	optimized, err := json.MarshalIndent(req.Optimized, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode optimized resume: %w", err)
	}

	user, err := prompts.Render(prompts.Explanation, prompts.KeyExplainChanges, map[string]string{
		"MaxChanges":     strconv.Itoa(e.opts.MaxChanges),
		"Schema":         schema,
		"JobDescription": guardrails.QuoteExternal(req.JobDescription, "job description"),
		"Original":       string(original),
		"Optimized":      string(optimized),
	})
	if err != nil {
		return nil, err
	}
	return llm.Conversation(system, user), nil
}

// Fallback returns one fixed entry per missing keyword.
func Fallback(missing []string) []types.RationaleEntry {
	out := make([]types.RationaleEntry, 0, len(missing))
	for _, kw := range missing {
		out = append(out, types.RationaleEntry{
			Change:  fmt.Sprintf("Targeted the keyword %q", kw),
			Reason:  fmt.Sprintf("The job description asks for %s, which the original resume did not mention. Related experience was reframed to surface it where it exists.", kw),
			Source:  types.RationaleFromFallback,
			Keyword: kw,
		})
	}
	return out
}

func missingKeywords(g *types.GapReport) []string {
	if g == nil {
		return nil
	}
	return g.MissingKeywords
}

func targetKeywords(g *types.GapReport) []string {
	if g == nil {
		return nil
	}
	return taxonomy.DedupePreserveOrder(append(append([]string(nil), g.MissingKeywords...), g.WeakKeywords...))
}
