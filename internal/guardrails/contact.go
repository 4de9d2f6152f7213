package guardrails

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/TedTes/genres-sub000/internal/types"
)

var (
	profileURLRe = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+|\b(?:linkedin\.com|github\.com|gitlab\.com|behance\.net|dribbble\.com)/\S*`)

	contactPatterns = []struct {
		kind string
		re   *regexp.Regexp
	}{
		{"email address", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
		{"phone number", regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`)},
		{"street address", regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl)\b\.?`)},
	}
)

// contactWarnings reports contact details outside the contact block. They are
// not rewritten: profile links and similar content are legitimate.
func contactWarnings(r *types.OptimizedResume) []types.PolicyViolation {
	var out []types.PolicyViolation
	check := func(location, text string) {
		stripped := profileURLRe.ReplaceAllString(text, " ")
		for _, p := range contactPatterns {
			for _, m := range p.re.FindAllString(stripped, -1) {
				out = append(out, types.PolicyViolation{
					Type:     types.ViolationContactPlacement,
					Severity: types.SeverityWarning,
					Location: location,
					Original: m,
					Reason:   fmt.Sprintf("%s found outside the contact section", p.kind),
				})
			}
		}
	}

	check("summary", r.Summary)
	for i, exp := range r.Experience {
		for j, b := range exp.Responsibilities {
			check(fmt.Sprintf("experience[%d].responsibilities[%d]", i, j), b)
		}
	}
	for i, p := range r.Projects {
		check(fmt.Sprintf("projects[%d].description", i), p.Description)
	}
	for _, key := range sortedSectionKeys(r.AdditionalSections) {
		for j, line := range r.AdditionalSections[key] {
			check(fmt.Sprintf("additional_sections.%s[%d]", key, j), line)
		}
	}
	return out
}

func sortedSectionKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
