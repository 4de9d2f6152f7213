package taxonomy

import (
	"regexp"
	"strings"

	"github.com/TedTes/genres-sub000/internal/types"
)

var (
	criticalMarker = regexp.MustCompile(`(?i)\b(required|requirements?|must[- ]haves?|must|essential|mandatory|minimum qualifications?|basic qualifications?|you (will )?need|what you.ll need|proven|expert(ise)? in)\b`)
	niceMarker     = regexp.MustCompile(`(?i)\b(preferred|nice[- ]to[- ]haves?|bonus|a plus|desired|desirable|ideally|familiarity|exposure to|good to have|optional)\b`)
	headingLine    = regexp.MustCompile(`^\s*(#+\s*)?[A-Za-z][A-Za-z '’/&()-]{0,60}:?\s*$`)
	sentenceSplit  = regexp.MustCompile(`[.;!?]\s+|\n`)
)

// ClassifyImportance assigns every taxonomy skill in a job description a
// requirement level. A sentence's own wording ("required", "preferred") wins
// over the section heading it sits under; skills with no signal are
// important. When a skill appears several times the highest level is kept.
func (t *Taxonomy) ClassifyImportance(jd string) map[string]types.Importance {
	out := make(map[string]types.Importance)
	section := types.Importance("")

	for _, line := range strings.Split(strings.ReplaceAll(jd, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if headingLine.MatchString(trimmed) && len(t.Extract(trimmed)) == 0 {
			section = headingLevel(trimmed)
			continue
		}

		for _, sentence := range sentenceSplit.Split(trimmed, -1) {
			level := sentenceLevel(sentence)
			if level == "" {
				level = section
			}
			if level == "" {
				level = types.ImportanceImportant
			}
			for _, m := range t.Extract(sentence) {
				if cur, ok := out[m.Skill]; !ok || level.Rank() > cur.Rank() {
					out[m.Skill] = level
				}
			}
		}
	}
	return out
}

// ClassifyImportance uses the default catalog.
func ClassifyImportance(jd string) map[string]types.Importance {
	return Default().ClassifyImportance(jd)
}

// headingLevel maps a section heading to the level of the lines under it.
// Headings without a signal reset the section to no signal.
func headingLevel(heading string) types.Importance {
	switch {
	case niceMarker.MatchString(heading):
		return types.ImportanceNiceToHave
	case criticalMarker.MatchString(heading), strings.Contains(strings.ToLower(heading), "qualifications"):
		return types.ImportanceCritical
	default:
		return ""
	}
}

func sentenceLevel(sentence string) types.Importance {
	// a sentence carrying both markers counts as nice-to-have
	switch {
	case niceMarker.MatchString(sentence):
		return types.ImportanceNiceToHave
	case criticalMarker.MatchString(sentence):
		return types.ImportanceCritical
	default:
		return ""
	}
}
