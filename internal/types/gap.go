package types

// Section tags a chunk of resume content
type Section string

const (
	SectionSummary    Section = "summary"
	SectionExperience Section = "experience"
	SectionEducation  Section = "education"
	SectionSkills     Section = "skills"
)

// DocumentChunk is the unit of embedding and similarity comparison.
// Chunks are built once per request and dropped after gap analysis.
type DocumentChunk struct {
	Section    Section `json:"section"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	TokenCount int     `json:"token_count"`
}

// Importance is the requirement level of a job-description keyword
type Importance string

const (
	ImportanceCritical   Importance = "critical"
	ImportanceImportant  Importance = "important"
	ImportanceNiceToHave Importance = "nice_to_have"
)

// Weight returns the coverage weight for the importance level.
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceCritical:
		return 3
	case ImportanceImportant:
		return 2
	case ImportanceNiceToHave:
		return 1
	default:
		return 0
	}
}

// Rank orders importance levels, higher is more important.
func (i Importance) Rank() int {
	switch i {
	case ImportanceCritical:
		return 3
	case ImportanceImportant:
		return 2
	case ImportanceNiceToHave:
		return 1
	default:
		return 0
	}
}

// MatchStrength classifies a chunk's similarity to the job description
type MatchStrength string

const (
	MatchStrong MatchStrength = "strong"
	MatchWeak   MatchStrength = "weak"
	MatchNone   MatchStrength = "none"
)

// KeywordAnalysis is the taxonomy-based coverage signal.
type KeywordAnalysis struct {
	JobKeywords   []string              `json:"job_keywords"`
	Matched       []string              `json:"matched"`
	Missing       []string              `json:"missing"`
	Weak          []string              `json:"weak"`
	Importance    map[string]Importance `json:"importance"`
	MatchedWeight float64               `json:"matched_weight"`
	TotalWeight   float64               `json:"total_weight"`
	CoverageScore float64               `json:"coverage_score"`
}

// ChunkSimilarity is the cosine similarity of one chunk to the job description.
type ChunkSimilarity struct {
	Section    Section       `json:"section"`
	Index      int           `json:"index"`
	Similarity float64       `json:"similarity"`
	Strength   MatchStrength `json:"strength"`
}

// SemanticAnalysis is the embedding-based signal. Available is false when
// the embedding provider could not be reached.
type SemanticAnalysis struct {
	Available         bool                `json:"available"`
	OverallSimilarity float64             `json:"overall_similarity"`
	SectionSimilarity map[Section]float64 `json:"section_similarity"`
	StrongMatches     int                 `json:"strong_matches"`
	WeakMatches       int                 `json:"weak_matches"`
	TotalChunks       int                 `json:"total_chunks"`
	Chunks            []ChunkSimilarity   `json:"chunks,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// ExperienceAnalysis summarizes how the work history supports the target role.
type ExperienceAnalysis struct {
	Roles                int `json:"roles"`
	RolesWithEvidence    int `json:"roles_with_evidence"`
	Bullets              int `json:"bullets"`
	QuantifiedBullets    int `json:"quantified_bullets"`
	KeywordsInExperience int `json:"keywords_in_experience"`
	KeywordsOnlyInSkills int `json:"keywords_only_in_skills"`
}

// CategoryDepth counts required and present skills in one taxonomy category.
type CategoryDepth struct {
	Required int `json:"required"`
	Present  int `json:"present"`
}

// SkillDepthAnalysis breaks coverage down by skill category.
type SkillDepthAnalysis struct {
	ByCategory map[string]CategoryDepth `json:"by_category"`
	ListedOnly []string                 `json:"listed_only"`
}

// Recommendation is one prioritized improvement, 1 is most urgent.
type Recommendation struct {
	Priority int    `json:"priority"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// GapReport merges the keyword and semantic signals.
type GapReport struct {
	MissingKeywords []string           `json:"missing_keywords"`
	WeakKeywords    []string           `json:"weak_keywords"`
	CoverageScore   float64            `json:"coverage_score"`
	Keyword         KeywordAnalysis    `json:"keyword_analysis"`
	Semantic        SemanticAnalysis   `json:"semantic_analysis"`
	Experience      ExperienceAnalysis `json:"experience_analysis"`
	SkillDepth      SkillDepthAnalysis `json:"skill_depth_analysis"`
	Recommendations []Recommendation   `json:"recommendations"`
	ChunkCount      int                `json:"chunk_count"`
	Degraded        bool               `json:"degraded"`
}

// IsEmpty reports whether there was nothing to compare.
func (g *GapReport) IsEmpty() bool {
	return g == nil || (len(g.Keyword.JobKeywords) == 0 && g.ChunkCount == 0)
}
