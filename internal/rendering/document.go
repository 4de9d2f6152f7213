package rendering

import (
	"sort"
	"strings"

	"github.com/TedTes/genres-sub000/internal/types"
)

// Document is the format-neutral view of a resume that every formatter
// renders. Text is unescaped.
type Document struct {
	Name           string
	ContactLine    string
	Summary        string
	Companies      []CompanySection
	Education      []string
	Skills         []SkillLine
	Certifications []string
	Projects       []ProjectLine
}

// CompanySection represents a company with one or more roles
type CompanySection struct {
	Company string
	Roles   []RoleSection
}

// RoleSection represents a role within a company with merged date ranges
type RoleSection struct {
	Role       string
	DateRanges string // e.g. "2019-01 - 2020-06, 2021-03 - Present"
	Bullets    []string
}

// SkillLine is one labelled group of skills
type SkillLine struct {
	Label string
	Items string
}

// ProjectLine is one project entry
type ProjectLine struct {
	Name        string
	Description string
}

type dateRange struct {
	StartDate string
	EndDate   string
}

type roleKey struct {
	Company string
	Role    string
}

// BuildDocument flattens r for rendering. Contact comes from contact so
// formatters never depend on the rewritten contact block.
func BuildDocument(r *types.OptimizedResume, contact types.ContactInfo) *Document {
	doc := &Document{
		Name:        strings.TrimSpace(contact.Name),
		ContactLine: joinNonEmpty(" | ", contact.Email, contact.Phone, contact.Location, contact.LinkedIn, contact.Website),
		Summary:     strings.TrimSpace(r.Summary),
		Companies:   groupByCompanyAndRole(r.Experience),
	}

	for _, e := range r.Education {
		degree := joinNonEmpty(", ", e.Degree, e.Field)
		line := joinNonEmpty(" - ", degree, e.Institution)
		if e.GraduationDate != "" {
			line += " (" + e.GraduationDate + ")"
		}
		if len(e.Honors) > 0 {
			line += "; " + strings.Join(e.Honors, ", ")
		}
		doc.Education = append(doc.Education, line)
	}

	addSkills := func(label string, items []string) {
		if len(items) > 0 {
			doc.Skills = append(doc.Skills, SkillLine{Label: label, Items: strings.Join(items, ", ")})
		}
	}
	addSkills("Core Competencies", r.Skills.CoreCompetencies)
	addSkills("Tools", r.Skills.Tools)
	addSkills("Methodologies", r.Skills.Methodologies)
	cats := make([]string, 0, len(r.Skills.Specialized))
	for cat := range r.Skills.Specialized {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		addSkills(cat, r.Skills.Specialized[cat])
	}

	for _, c := range r.Certifications {
		line := joinNonEmpty(", ", c.Name, c.Issuer)
		if c.Date != "" {
			line += " (" + c.Date + ")"
		}
		doc.Certifications = append(doc.Certifications, line)
	}
	for _, p := range r.Projects {
		doc.Projects = append(doc.Projects, ProjectLine{Name: p.Name, Description: p.Description})
	}
	return doc
}

// groupByCompanyAndRole groups experience by company, then by role, in the
// order they first appear, merging date ranges of repeated roles.
func groupByCompanyAndRole(items []types.ExperienceItem) []CompanySection {
	var companyOrder []string
	companyRoleOrder := make(map[string][]string)
	bullets := make(map[roleKey][]string)
	ranges := make(map[roleKey][]dateRange)
	seenCompanies := make(map[string]bool)
	seenRoles := make(map[roleKey]bool)

	for _, exp := range items {
		key := roleKey{Company: exp.Company, Role: exp.Role}
		if !seenCompanies[exp.Company] {
			seenCompanies[exp.Company] = true
			companyOrder = append(companyOrder, exp.Company)
		}
		if !seenRoles[key] {
			seenRoles[key] = true
			companyRoleOrder[exp.Company] = append(companyRoleOrder[exp.Company], exp.Role)
		}
		bullets[key] = append(bullets[key], exp.Responsibilities...)
		ranges[key] = append(ranges[key], dateRange{StartDate: exp.StartDate, EndDate: exp.EndDate})
	}

	companies := make([]CompanySection, 0, len(companyOrder))
	for _, company := range companyOrder {
		section := CompanySection{Company: company}
		for _, role := range companyRoleOrder[company] {
			key := roleKey{Company: company, Role: role}
			section.Roles = append(section.Roles, RoleSection{
				Role:       role,
				DateRanges: mergeDateRanges(ranges[key]),
				Bullets:    bullets[key],
			})
		}
		companies = append(companies, section)
	}
	return companies
}

// mergeDateRanges dedupes ranges, sorts them by start date and joins them.
func mergeDateRanges(in []dateRange) string {
	seen := make(map[dateRange]bool)
	var ranges []dateRange
	for _, r := range in {
		if (r.StartDate == "" && r.EndDate == "") || seen[r] {
			continue
		}
		seen[r] = true
		ranges = append(ranges, r)
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].StartDate < ranges[j].StartDate
	})

	parts := make([]string, len(ranges))
	for i, r := range ranges {
		end := r.EndDate
		if strings.EqualFold(end, types.DatePresent) {
			end = types.DatePresent
		}
		parts[i] = joinNonEmpty(" - ", r.StartDate, end)
	}
	return strings.Join(parts, ", ")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
