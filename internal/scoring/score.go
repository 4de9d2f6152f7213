package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Component names
const (
	ComponentKeywordCoverage     = "keyword_coverage"
	ComponentSemanticSimilarity  = "semantic_similarity"
	ComponentExperienceRelevance = "experience_relevance"
	ComponentSkillsAlignment     = "skills_alignment"
	ComponentCompleteness        = "completeness"

	// weakMatchCredit is how much a weak chunk match counts toward experience relevance
	weakMatchCredit = 0.3
	// maxAdvice caps the advice lines in a breakdown
	maxAdvice = 5
)

// Engine computes score breakdowns.
type Engine struct {
	weights Weights
}

// New validates the weights and creates an Engine.
func New(w Weights) (*Engine, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// Weights returns the configured weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Score always emits every component. An empty gap report scores 0 and F.
func (e *Engine) Score(gap *types.GapReport, r *types.OptimizedResume) types.ScoreBreakdown {
	var raw [5]float64
	if !gap.IsEmpty() {
		raw = [5]float64{
			clamp(gap.CoverageScore),
			semanticScore(gap),
			ExperienceRelevance(gap.Semantic),
			skillsAlignment(gap, r),
			Completeness(r.Presence()),
		}
	}

	w := e.weights
	components := []types.ScoreComponent{
		component(ComponentKeywordCoverage, raw[0], w.KeywordCoverage, "Weighted share of job-description keywords found in the resume"),
		component(ComponentSemanticSimilarity, raw[1], w.SemanticSimilarity, "Mean embedding similarity between resume sections and the job description"),
		component(ComponentExperienceRelevance, raw[2], w.ExperienceRelevance, "Strong and weak semantic matches per resume chunk"),
		component(ComponentSkillsAlignment, raw[3], w.SkillsAlignment, "Share of requested skills listed or suggested in the skills section"),
		component(ComponentCompleteness, raw[4], w.Completeness, "Presence of required and optional resume sections"),
	}

	overall := 0.0
	for _, c := range components {
		overall += c.WeightedScore
	}
	overall = round(overall)
	grade := Grade(overall)

	return types.ScoreBreakdown{
		Overall:        overall,
		Grade:          grade,
		Interpretation: Interpret(grade),
		Advice:         advice(gap, components),
		Components:     components,
	}
}

func component(name string, raw, weight float64, description string) types.ScoreComponent {
	return types.ScoreComponent{
		Name:          name,
		RawScore:      round(raw),
		Weight:        weight,
		WeightedScore: round(raw * weight),
		Description:   description,
	}
}

func semanticScore(gap *types.GapReport) float64 {
	if !gap.Semantic.Available {
		return 0
	}
	return clamp(gap.Semantic.OverallSimilarity)
}

// ExperienceRelevance is (strong + 0.3 x weak) / total chunks, capped at 1.
func ExperienceRelevance(s types.SemanticAnalysis) float64 {
	if !s.Available || s.TotalChunks == 0 {
		return 0
	}
	return math.Min(1, (float64(s.StrongMatches)+weakMatchCredit*float64(s.WeakMatches))/float64(s.TotalChunks))
}

// Completeness is 0.8 x required/3 + 0.2 x optional/3, required being
// summary, experience and skills.
func Completeness(p types.SectionPresence) float64 {
	required := count(p.Summary, p.Experience, p.Skills)
	optional := count(p.Education, p.Certifications, p.Projects)
	return 0.8*float64(required)/3 + 0.2*float64(optional)/3
}

// skillsAlignment is the share of job keywords present in the optimized
// skills section, counting suggested additions.
func skillsAlignment(gap *types.GapReport, r *types.OptimizedResume) float64 {
	keywords := gap.Keyword.JobKeywords
	if len(keywords) == 0 {
		return 0
	}
	if r == nil {
		return 0
	}
	tax := taxonomy.Default()
	listed := make(map[string]bool)
	for _, s := range append(r.Skills.All(), r.SkillsToAdd...) {
		listed[strings.ToLower(tax.Canonical(s))] = true
	}
	hits := 0
	for _, k := range keywords {
		if listed[strings.ToLower(tax.Canonical(k))] {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func advice(gap *types.GapReport, components []types.ScoreComponent) []string {
	out := []string{}
	if gap.IsEmpty() {
		return append(out, "Provide a resume and a job description with concrete requirements to get a meaningful score.")
	}
	for _, rec := range gap.Recommendations {
		if len(out) == maxAdvice {
			return out
		}
		out = append(out, rec.Message)
	}
	for _, c := range components {
		if len(out) == maxAdvice {
			break
		}
		if c.Name == ComponentSemanticSimilarity && !gap.Semantic.Available {
			out = append(out, "Semantic similarity could not be computed; the score relies on keyword coverage alone.")
			continue
		}
		if c.Name == ComponentCompleteness && c.RawScore < 0.8 {
			out = append(out, fmt.Sprintf("Complete the missing resume sections (completeness %.0f%%).", c.RawScore*100))
		}
	}
	return out
}

func count(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
