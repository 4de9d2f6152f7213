package explain

import (
	"fmt"
	"strings"

	"github.com/TedTes/genres-sub000/internal/taxonomy"
	"github.com/TedTes/genres-sub000/internal/types"
)

// DiffOutcome classifies a keyword after rewriting
type DiffOutcome string

const (
	OutcomeAdded        DiffOutcome = "added"
	OutcomeStrengthened DiffOutcome = "strengthened"
	OutcomeNotAdded     DiffOutcome = "not_added"
	OutcomeUnchanged    DiffOutcome = "unchanged"
)

// Classify compares keyword frequency before and after rewriting.
func Classify(before, after int) DiffOutcome {
	switch {
	case before == 0 && after > 0:
		return OutcomeAdded
	case after > before:
		return OutcomeStrengthened
	case after == 0:
		return OutcomeNotAdded
	default:
		return OutcomeUnchanged
	}
}

// KeywordDiff explains, per target keyword, whether the rewrite added it,
// strengthened it or left it out. Sentences are fixed templates.
func KeywordDiff(original, optimized string, keywords []string) []types.RationaleEntry {
	tax := taxonomy.Default()
	out := make([]types.RationaleEntry, 0, len(keywords))
	for _, kw := range keywords {
		before, after := countKeyword(tax, original, kw), countKeyword(tax, optimized, kw)
		entry := types.RationaleEntry{Source: types.RationaleFromKeywordDiff, Keyword: kw}
		switch Classify(before, after) {
		case OutcomeAdded:
			entry.Change = fmt.Sprintf("Added %s", kw)
			entry.Reason = fmt.Sprintf("%s is requested by the job description and now appears in the resume.", kw)
		case OutcomeStrengthened:
			entry.Change = fmt.Sprintf("Strengthened %s (mentions: %d to %d)", kw, before, after)
			entry.Reason = fmt.Sprintf("%s was only weakly evidenced, so more of the existing experience now shows it.", kw)
		case OutcomeNotAdded:
			entry.Change = fmt.Sprintf("Did not add %s", kw)
			entry.Reason = fmt.Sprintf("%s is not supported by the existing experience and was not invented.", kw)
		default:
			entry.Change = fmt.Sprintf("Kept %s as written", kw)
			entry.Reason = fmt.Sprintf("%s was already present and its evidence did not change.", kw)
		}
		out = append(out, entry)
	}
	return out
}

func countKeyword(tax *taxonomy.Taxonomy, text, keyword string) int {
	if skill, ok := tax.Lookup(keyword); ok {
		return tax.Count(text, skill.Name)
	}
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return 0
	}
	return strings.Count(strings.ToLower(text), kw)
}
