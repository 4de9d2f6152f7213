package gap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/embedding"
	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Config holds the similarity floors. They are product defaults, not
// derived constants.
type Config struct {
	StrongThreshold    float64
	WeakThreshold      float64
	MaxRecommendations int
}

// DefaultConfig returns strong ≥ 0.7, weak ≥ 0.3 and at most 8 recommendations.
func DefaultConfig() Config {
	return Config{StrongThreshold: 0.7, WeakThreshold: 0.3, MaxRecommendations: 8}
}

// Validate checks 0 ≤ weak < strong ≤ 1.
func (c Config) Validate() error {
	if c.WeakThreshold < 0 || c.StrongThreshold > 1 || c.WeakThreshold >= c.StrongThreshold {
		return fmt.Errorf("invalid similarity thresholds: weak=%.2f strong=%.2f", c.WeakThreshold, c.StrongThreshold)
	}
	return nil
}

// Analyzer produces GapReports. A nil embedder always yields degraded,
// keyword-only reports.
type Analyzer struct {
	tax      *taxonomy.Taxonomy
	embedder embedding.Embedder
	cfg      Config
	logger   *zap.Logger
}

// NewAnalyzer creates an Analyzer. A nil taxonomy uses the default catalog.
func NewAnalyzer(tax *taxonomy.Taxonomy, embedder embedding.Embedder, cfg Config, logger *zap.Logger) *Analyzer {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{tax: tax, embedder: embedder, cfg: cfg, logger: logger}
}

// Config returns the thresholds in use.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze compares resume with the job description text. The only error it
// returns is context cancellation; an unavailable embedder degrades the report.
func (a *Analyzer) Analyze(ctx context.Context, resume *types.NormalizedResume, jd string) (*types.GapReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resume == nil {
		resume = &types.NormalizedResume{}
	}

	chunks := BuildChunks(resume)
	ev := collectEvidence(a.tax, resume)
	ka := keywordCoverage(a.tax, ev, jd)

	sa := types.SemanticAnalysis{SectionSimilarity: map[types.Section]float64{}, TotalChunks: len(chunks)}
	if a.embedder == nil {
		sa.Error = "no embedding provider configured"
	} else {
		start := time.Now()
		var err error
		sa, err = semanticSimilarity(ctx, a.embedder, chunks, jd, a.cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.logger.Warn("semantic similarity unavailable, continuing with keyword coverage only",
				zap.String("embedder", a.embedder.Name()),
				zap.Error(err))
			sa = types.SemanticAnalysis{
				SectionSimilarity: map[types.Section]float64{},
				TotalChunks:       len(chunks),
				Error:             err.Error(),
			}
		} else {
			a.logger.Debug("semantic similarity computed",
				zap.String("embedder", a.embedder.Name()),
				zap.Int("chunks", len(chunks)),
				zap.Duration("duration", time.Since(start)))
		}
	}

	ea := experienceAnalysis(a.tax, resume, ka, ev)
	report := &types.GapReport{
		MissingKeywords: ka.Missing,
		WeakKeywords:    ka.Weak,
		CoverageScore:   ka.CoverageScore,
		Keyword:         ka,
		Semantic:        sa,
		Experience:      ea,
		SkillDepth:      skillDepth(a.tax, ka, ev),
		Recommendations: recommendations(resume, ka, sa, ea, a.cfg),
		ChunkCount:      len(chunks),
		Degraded:        !sa.Available,
	}

	a.logger.Info("gap analysis complete",
		zap.Int("job_keywords", len(ka.JobKeywords)),
		zap.Int("missing", len(ka.Missing)),
		zap.Float64("coverage", ka.CoverageScore),
		zap.Bool("degraded", report.Degraded))
	return report, nil
}
