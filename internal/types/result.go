package types

import "time"

// RationaleSource says where a rationale entry came from
type RationaleSource string

const (
	RationaleFromModel       RationaleSource = "model"
	RationaleFromKeywordDiff RationaleSource = "keyword_diff"
	RationaleFromFallback    RationaleSource = "fallback"
)

// RationaleEntry is one (change, reason) pair
type RationaleEntry struct {
	Change  string          `json:"change"`
	Reason  string          `json:"reason"`
	Source  RationaleSource `json:"source"`
	Keyword string          `json:"keyword,omitempty"`
}

// Rationale is an append-only, ordered list of explanations.
type Rationale struct {
	Entries []RationaleEntry `json:"entries"`
}

// Append adds entries to the end, preserving order.
func (r *Rationale) Append(entries ...RationaleEntry) {
	r.Entries = append(r.Entries, entries...)
}

// Len returns the number of entries.
func (r *Rationale) Len() int {
	return len(r.Entries)
}

// ScoreComponent is one weighted term of the composite score
type ScoreComponent struct {
	Name          string  `json:"name"`
	RawScore      float64 `json:"raw_score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	Description   string  `json:"description"`
}

// ScoreBreakdown is the composite match score with every component.
type ScoreBreakdown struct {
	Overall        float64          `json:"overall"`
	Grade          string           `json:"grade"`
	Interpretation string           `json:"interpretation"`
	Advice         []string         `json:"advice"`
	Components     []ScoreComponent `json:"components"`
}

// ArtifactLocations holds download locations. Nil means the artifact was not stored.
type ArtifactLocations struct {
	DOCX *string `json:"docx_url"`
	PDF  *string `json:"pdf_url"`
}

// ModelMetadata identifies which providers produced the result. ChatModel
// writes the optimized resume; StandardModel normalizes the input and
// LiteModel explains the changes.
type ModelMetadata struct {
	Provider          string `json:"provider"`
	ChatModel         string `json:"chat_model"`
	StandardModel     string `json:"standard_model,omitempty"`
	LiteModel         string `json:"lite_model,omitempty"`
	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
}

// Identity is the provider/model string that participates in cache keys.
// Every tier model is part of it.
func (m ModelMetadata) Identity() string {
	return m.Provider + "/" + m.ChatModel + "," + m.StandardModel + "," + m.LiteModel +
		"|" + m.EmbeddingProvider + "/" + m.EmbeddingModel
}

// OptimizationResult is the single externally visible output of the pipeline.
// It is never mutated after construction.
type OptimizationResult struct {
	RequestID        string            `json:"request_id"`
	CacheKey         string            `json:"cache_key"`
	MatchScore       float64           `json:"match_score"`
	Grade            string            `json:"grade"`
	ScoreBreakdown   ScoreBreakdown    `json:"score_breakdown"`
	MissingKeywords  []string          `json:"missing_keywords"`
	WeakKeywords     []string          `json:"weak_keywords"`
	GapReport        *GapReport        `json:"gap_report,omitempty"`
	OptimizedResume  OptimizedResume   `json:"optimized_resume"`
	Rationale        Rationale         `json:"rationale"`
	PolicyViolations []PolicyViolation `json:"policy_violations"`
	Artifacts        ArtifactLocations `json:"artifacts"`
	ArtifactError    string            `json:"artifact_error,omitempty"`
	Model            ModelMetadata     `json:"model"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	StageTimingsMS   map[string]int64  `json:"stage_timings_ms"`
	CacheHit         bool              `json:"cache_hit"`
	InputType        InputType         `json:"input_type"`
	RequesterID      string            `json:"requester_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
