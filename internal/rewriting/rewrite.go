// Package rewriting produces an OptimizedResume from a NormalizedResume and a
// gap report with one model call, then enforces bullet and integrity rules
// deterministically.
package rewriting

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
	"github.com/TedTes/genres-sub000/internal/types"
)

// Request is the input of one rewrite.
type Request struct {
	Resume         *types.NormalizedResume
	JobDescription string
	Gap            *types.GapReport
	Options        types.OptimizationOptions
}

// Options configures an Engine.
type Options struct {
	// Tier defaults to the advanced tier
	Tier       llm.ModelTier
	MaxRepairs int
}

// Engine rewrites resumes through a repair-validated model call.
type Engine struct {
	gen    repair.Generator
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a rewrite Engine.
func NewEngine(gen repair.Generator, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierAdvanced
	}
	return &Engine{gen: gen, opts: opts, logger: logger}
}

// Rewrite returns the post-processed optimized resume. Exhausted repairs
// surface as repair.SchemaValidationError.
func (e *Engine) Rewrite(ctx context.Context, req Request) (*types.OptimizedResume, error) {
	if req.Resume == nil {
		return nil, fmt.Errorf("rewrite requires a normalized resume")
	}

	messages, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	res, err := repair.Run[types.OptimizedResume](ctx, e.gen, repair.Request{
		Contract:   schemas.ContractOptimizedResume,
		Messages:   messages,
		Tier:       e.opts.Tier,
		MaxRepairs: e.opts.MaxRepairs,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}

	optimized := PostProcess(res.Value, req.Resume, req.Options)
	e.logger.Info("resume rewritten",
		zap.String("tone", string(req.Options.Tone)),
		zap.Int("repairs", res.Repairs),
		zap.Int("experience", len(optimized.Experience)),
		zap.Int("skills_to_add", len(optimized.SkillsToAdd)),
		zap.Int("unquantified_bullets", countUnquantified(optimized)))
	return optimized, nil
}

// countUnquantified counts experience bullets that carry no number or metric.
func countUnquantified(r *types.OptimizedResume) int {
	n := 0
	for _, item := range r.Experience {
		for _, b := range item.Responsibilities {
			if !checkQuantifiedImpact(b) {
				n++
			}
		}
	}
	return n
}

func buildMessages(req Request) ([]llm.Message, error) {
	system, err := prompts.Get(prompts.Rewriting, prompts.KeySystem)
	if err != nil {
		return nil, err
	}
	tone, err := prompts.Get(prompts.Rewriting, prompts.ToneKey(string(req.Options.Tone)))
	if err != nil {
		tone, err = prompts.Get(prompts.Rewriting, prompts.ToneKey(string(types.ToneProfessional)))
		if err != nil {
			return nil, err
		}
	}
	schema, err := schemas.Source(schemas.ContractOptimizedResume)
	if err != nil {
		return nil, err
	}
	resumeJSON, err := json.MarshalIndent(resumeForPrompt(req.Resume), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode resume for prompt: %w", err)
	}

	var missing, weak []string
	if req.Gap != nil {
		missing, weak = req.Gap.MissingKeywords, req.Gap.WeakKeywords
	}

	user, err := prompts.Render(prompts.Rewriting, prompts.KeyRewriteResume, map[string]string{
		"Tone":            string(req.Options.Tone) + ". " + tone,
		"Locale":          req.Options.Locale,
		"MaxBullets":      strconv.Itoa(req.Options.MaxBulletsPerRole),
		"IncludeSkills":   strconv.FormatBool(req.Options.IncludeSkills),
		"ATSOptimize":     strconv.FormatBool(req.Options.ATSOptimize),
		"MissingKeywords": bulletList(missing),
		"WeakKeywords":    bulletList(weak),
		"Schema":          schema,
		"JobDescription":  guardrails.QuoteExternal(req.JobDescription, "job description"),
		"Resume":          string(resumeJSON),
	})
	if err != nil {
		return nil, err
	}
	return llm.Conversation(system, user), nil
}

// resumeForPrompt strips bookkeeping fields the model should not echo.
func resumeForPrompt(r *types.NormalizedResume) *types.OptimizedResume {
	return r.AsOptimized()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "- " + strings.Join(items, "\n- ")
}
