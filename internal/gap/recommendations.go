package gap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TedTes/genres-sub000/internal/types"
)

// maxListed caps the keywords named in one recommendation.
const maxListed = 5

func recommendations(r *types.NormalizedResume, ka types.KeywordAnalysis, sa types.SemanticAnalysis, ea types.ExperienceAnalysis, cfg Config) []types.Recommendation {
	var recs []types.Recommendation
	add := func(priority int, category, msg string) {
		recs = append(recs, types.Recommendation{Priority: priority, Category: category, Message: msg})
	}

	byLevel := map[types.Importance][]string{}
	for _, k := range ka.Missing {
		byLevel[ka.Importance[k]] = append(byLevel[ka.Importance[k]], k)
	}
	if missing := byLevel[types.ImportanceCritical]; len(missing) > 0 {
		add(1, "keywords", fmt.Sprintf("Add evidence of required skills: %s.", list(missing)))
	}
	if missing := byLevel[types.ImportanceImportant]; len(missing) > 0 {
		add(2, "keywords", fmt.Sprintf("Mention these skills where you have used them: %s.", list(missing)))
	}
	if len(ka.Weak) > 0 {
		add(2, "keywords", fmt.Sprintf("Show these skills in your experience bullets, not only the skills list: %s.", list(ka.Weak)))
	}
	if sa.Available && sa.TotalChunks > 0 && sa.OverallSimilarity < cfg.WeakThreshold {
		add(2, "relevance", "Reframe your summary and recent roles around the responsibilities in the job description.")
	}
	if ea.Bullets > 0 && float64(ea.QuantifiedBullets)/float64(ea.Bullets) < 0.5 {
		add(3, "impact", fmt.Sprintf("Quantify more achievements: %d of %d bullets include a number.", ea.QuantifiedBullets, ea.Bullets))
	}
	if strings.TrimSpace(r.Summary) == "" {
		add(3, "structure", "Add a short professional summary targeted at this role.")
	}
	if r.Skills.IsEmpty() {
		add(3, "structure", "Add a skills section listing the tools and methods you use.")
	}
	if missing := byLevel[types.ImportanceNiceToHave]; len(missing) > 0 {
		add(4, "keywords", fmt.Sprintf("If you have them, mention these preferred skills: %s.", list(missing)))
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority < recs[j].Priority })
	if cfg.MaxRecommendations > 0 && len(recs) > cfg.MaxRecommendations {
		recs = recs[:cfg.MaxRecommendations]
	}
	if recs == nil {
		recs = []types.Recommendation{}
	}
	return recs
}

func list(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:maxListed], ", "), len(items)-maxListed)
}
