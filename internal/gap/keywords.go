package gap

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

var quantified = regexp.MustCompile(`\d|%|\$|€|£`)

// evidence counts where each canonical skill appears in the resume.
type evidence struct {
	total      map[string]int
	experience map[string]int
	skillsOnly map[string]bool
}

func collectEvidence(tax *taxonomy.Taxonomy, r *types.NormalizedResume) evidence {
	ev := evidence{total: map[string]int{}, experience: map[string]int{}, skillsOnly: map[string]bool{}}
	for _, m := range tax.Extract(r.FullText()) {
		ev.total[m.Skill] = m.Count
	}

	var narrative strings.Builder
	narrative.WriteString(r.Summary + "\n")
	for _, e := range r.Experience {
		narrative.WriteString(strings.Join(e.Responsibilities, "\n") + "\n")
		narrative.WriteString(strings.Join(e.Tools, ", ") + "\n")
		narrative.WriteString(strings.Join(e.Metrics, "\n") + "\n")
	}
	for _, p := range r.Projects {
		narrative.WriteString(p.Description + "\n" + strings.Join(p.Technologies, ", ") + "\n")
	}
	for _, m := range tax.Extract(narrative.String()) {
		ev.experience[m.Skill] = m.Count
	}

	for _, m := range tax.Extract(strings.Join(r.Skills.All(), ", ")) {
		if ev.experience[m.Skill] == 0 {
			ev.skillsOnly[m.Skill] = true
		}
	}
	return ev
}

// keywordCoverage computes the weighted coverage signal. A job keyword is
// weak when the resume only lists it as a skill, or mentions it once while
// the job description stresses it three or more times.
func keywordCoverage(tax *taxonomy.Taxonomy, ev evidence, jd string) types.KeywordAnalysis {
	jobMentions := tax.Extract(jd)
	importance := tax.ClassifyImportance(jd)

	ka := types.KeywordAnalysis{
		JobKeywords: make([]string, 0, len(jobMentions)),
		Matched:     []string{},
		Missing:     []string{},
		Weak:        []string{},
		Importance:  make(map[string]types.Importance, len(jobMentions)),
	}

	jdCount := make(map[string]int, len(jobMentions))
	for _, m := range jobMentions {
		level, ok := importance[m.Skill]
		if !ok {
			level = types.ImportanceImportant
		}
		ka.JobKeywords = append(ka.JobKeywords, m.Skill)
		ka.Importance[m.Skill] = level
		jdCount[m.Skill] = m.Count

		weight := level.Weight()
		ka.TotalWeight += weight
		if ev.total[m.Skill] > 0 {
			ka.Matched = append(ka.Matched, m.Skill)
			ka.MatchedWeight += weight
		} else {
			ka.Missing = append(ka.Missing, m.Skill)
		}
	}

	for _, skill := range ka.Matched {
		if ev.skillsOnly[skill] || (ev.total[skill] == 1 && jdCount[skill] >= 3) {
			ka.Weak = append(ka.Weak, skill)
		}
	}

	if ka.TotalWeight > 0 {
		ka.CoverageScore = ka.MatchedWeight / ka.TotalWeight
	}

	// most important gaps first, job description order within a level
	sort.SliceStable(ka.Missing, func(i, j int) bool {
		return ka.Importance[ka.Missing[i]].Rank() > ka.Importance[ka.Missing[j]].Rank()
	})
	sort.SliceStable(ka.Weak, func(i, j int) bool {
		return ka.Importance[ka.Weak[i]].Rank() > ka.Importance[ka.Weak[j]].Rank()
	})
	return ka
}

func experienceAnalysis(tax *taxonomy.Taxonomy, r *types.NormalizedResume, ka types.KeywordAnalysis, ev evidence) types.ExperienceAnalysis {
	jobSet := make(map[string]bool, len(ka.JobKeywords))
	for _, k := range ka.JobKeywords {
		jobSet[k] = true
	}

	var ea types.ExperienceAnalysis
	ea.Roles = len(r.Experience)
	for _, e := range r.Experience {
		text := strings.Join(append(append([]string{e.Role}, e.Responsibilities...), e.Tools...), "\n")
		for _, m := range tax.Extract(text) {
			if jobSet[m.Skill] {
				ea.RolesWithEvidence++
				break
			}
		}
		for _, b := range e.Responsibilities {
			if strings.TrimSpace(b) == "" {
				continue
			}
			ea.Bullets++
			if quantified.MatchString(b) {
				ea.QuantifiedBullets++
			}
		}
	}
	for _, k := range ka.Matched {
		if ev.experience[k] > 0 {
			ea.KeywordsInExperience++
		}
		if ev.skillsOnly[k] {
			ea.KeywordsOnlyInSkills++
		}
	}
	return ea
}

func skillDepth(tax *taxonomy.Taxonomy, ka types.KeywordAnalysis, ev evidence) types.SkillDepthAnalysis {
	sd := types.SkillDepthAnalysis{ByCategory: map[string]types.CategoryDepth{}, ListedOnly: []string{}}
	for _, k := range ka.JobKeywords {
		category := "other"
		if s, ok := tax.Lookup(k); ok {
			category = string(s.Category)
		}
		d := sd.ByCategory[category]
		d.Required++
		if ev.total[k] > 0 {
			d.Present++
		}
		sd.ByCategory[category] = d
	}
	for _, k := range ka.Matched {
		if ev.skillsOnly[k] {
			sd.ListedOnly = append(sd.ListedOnly, k)
		}
	}
	return sd
}
