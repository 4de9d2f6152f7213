// Package scoring turns a gap report and an optimized resume into a
// transparent, weighted match score.
package scoring

import (
	"fmt"
	"math"
)

// Weights for each score component. They must sum to 1.
type Weights struct {
	KeywordCoverage     float64 `mapstructure:"keyword_coverage" json:"keyword_coverage"`
	SemanticSimilarity  float64 `mapstructure:"semantic_similarity" json:"semantic_similarity"`
	ExperienceRelevance float64 `mapstructure:"experience_relevance" json:"experience_relevance"`
	SkillsAlignment     float64 `mapstructure:"skills_alignment" json:"skills_alignment"`
	Completeness        float64 `mapstructure:"completeness" json:"completeness"`
}

// DefaultWeights returns 0.35/0.25/0.20/0.15/0.05.
func DefaultWeights() Weights {
	return Weights{
		KeywordCoverage:     0.35,
		SemanticSimilarity:  0.25,
		ExperienceRelevance: 0.20,
		SkillsAlignment:     0.15,
		Completeness:        0.05,
	}
}

// Sum adds every weight.
func (w Weights) Sum() float64 {
	return w.KeywordCoverage + w.SemanticSimilarity + w.ExperienceRelevance + w.SkillsAlignment + w.Completeness
}

// Validate rejects negative weights and weights that do not sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"keyword_coverage":     w.KeywordCoverage,
		"semantic_similarity":  w.SemanticSimilarity,
		"experience_relevance": w.ExperienceRelevance,
		"skills_alignment":     w.SkillsAlignment,
		"completeness":         w.Completeness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("scoring weight %s must be within [0,1], got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	return nil
}
