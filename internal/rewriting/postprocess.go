package rewriting

import (
	"strings"

	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// PostProcess enforces what the model may get wrong. Contact, credentials,
// employers, roles and dates come from the original resume; experience items
// at unknown companies are dropped and roles the model left out are kept
// with their original bullets. Every bullet then starts with an action verb
// and is clamped to [MinBulletWords, MaxBulletWords] words.
func PostProcess(optimized *types.OptimizedResume, original *types.NormalizedResume, opts types.OptimizationOptions) *types.OptimizedResume {
	out := *optimized
	out.Contact = original.Contact
	out.Education = append([]types.EducationItem(nil), original.Education...)
	out.Certifications = append([]types.Certification(nil), original.Certifications...)
	out.Experience = restoreExperience(optimized.Experience, original.Experience)
	out.Projects = restoreProjects(optimized.Projects, original.Projects)

	if strings.TrimSpace(out.Summary) == "" {
		out.Summary = original.Summary
	}
	if out.Skills.IsEmpty() {
		out.Skills = original.Skills
	}

	for i := range out.Experience {
		exp := &out.Experience[i]
		exp.Responsibilities = processBullets(exp.Responsibilities, exp.Role, opts)
	}
	if opts.ATSOptimize {
		out.Summary = StripDecorations(out.Summary)
	}

	if opts.IncludeSkills {
		out.SkillsToAdd = skillsToAdd(out.SkillsToAdd, out.Skills)
	} else {
		out.SkillsToAdd = []string{}
	}

	out.FillDefaults()
	return &out
}

func processBullets(bullets []string, role string, opts types.OptimizationOptions) []string {
	out := make([]string, 0, len(bullets))
	seen := make(map[string]bool, len(bullets))
	for _, b := range bullets {
		if opts.ATSOptimize {
			b = StripDecorations(b)
		}
		b = NormalizeBullet(b, role)
		key := strings.ToLower(b)
		if b == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	if opts.MaxBulletsPerRole > 0 && len(out) > opts.MaxBulletsPerRole {
		out = out[:opts.MaxBulletsPerRole]
	}
	return out
}

// restoreExperience pairs each rewritten item with an original one, first by
// index when the company matches, then by the first unused original with the
// same company. The result follows the original order.
func restoreExperience(rewritten, original []types.ExperienceItem) []types.ExperienceItem {
	assigned := make([]*types.ExperienceItem, len(original))

	match := func(i int, company string) int {
		if i < len(original) && assigned[i] == nil && sameCompany(original[i].Company, company) {
			return i
		}
		for j := range original {
			if assigned[j] == nil && sameCompany(original[j].Company, company) {
				return j
			}
		}
		return -1
	}

	for i := range rewritten {
		item := rewritten[i]
		j := match(i, item.Company)
		if j < 0 {
			continue
		}
		src := original[j]
		item.Company = src.Company
		item.Role = src.Role
		item.Location = src.Location
		item.StartDate = src.StartDate
		item.EndDate = src.EndDate
		if len(item.Responsibilities) == 0 {
			item.Responsibilities = append([]string(nil), src.Responsibilities...)
		}
		if len(item.Tools) == 0 {
			item.Tools = src.Tools
		}
		item.Metrics = src.Metrics
		assigned[j] = &item
	}

	out := make([]types.ExperienceItem, 0, len(original))
	for j, src := range original {
		if assigned[j] != nil {
			out = append(out, *assigned[j])
			continue
		}
		src.Responsibilities = append([]string(nil), src.Responsibilities...)
		out = append(out, src)
	}
	return out
}

func restoreProjects(rewritten, original []types.Project) []types.Project {
	byName := make(map[string]types.Project, len(original))
	for _, p := range original {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}
	out := make([]types.Project, 0, len(original))
	seen := map[string]bool{}
	for _, p := range rewritten {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		src, ok := byName[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		p.Name = src.Name
		p.URL = src.URL
		if strings.TrimSpace(p.Description) == "" {
			p.Description = src.Description
		}
		out = append(out, p)
	}
	for _, p := range original {
		if !seen[strings.ToLower(strings.TrimSpace(p.Name))] {
			out = append(out, p)
		}
	}
	return out
}

// skillsToAdd dedupes suggestions in order and drops skills already listed.
func skillsToAdd(suggested []string, skills types.SkillsTaxonomy) []string {
	tax := taxonomy.Default()
	listed := make(map[string]bool)
	for _, s := range skills.All() {
		listed[strings.ToLower(tax.Canonical(s))] = true
	}
	out := make([]string, 0, len(suggested))
	for _, s := range taxonomy.DedupePreserveOrder(suggested) {
		if listed[strings.ToLower(tax.Canonical(s))] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func sameCompany(a, b string) bool {
	return normalizeCompany(a) == normalizeCompany(b) && normalizeCompany(a) != ""
}

func normalizeCompany(name string) string {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	for _, suffix := range []string{", inc.", " inc.", " inc", ", llc", " llc", " ltd.", " ltd", " corp.", " corp", " gmbh"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}
