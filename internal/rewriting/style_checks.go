package rewriting

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinBulletWords is the shortest bullet kept after post-processing
	MinBulletWords = 10
	// MaxBulletWords is the longest bullet kept after post-processing
	MaxBulletWords = 24
	// DefaultLeadVerb is prepended to bullets that do not start with an action verb
	DefaultLeadVerb = "Delivered"
	ellipsis        = "..."
)

// actionVerbs is the fixed set every rewritten bullet must start with.
var actionVerbs = map[string]bool{
	"accelerated": true, "achieved": true, "administered": true, "advised": true,
	"analyzed": true, "architected": true, "automated": true, "built": true,
	"championed": true, "coached": true, "collaborated": true, "completed": true,
	"conducted": true, "consolidated": true, "contributed": true, "coordinated": true,
	"created": true, "cut": true, "defined": true, "delivered": true,
	"deployed": true, "designed": true, "developed": true, "directed": true,
	"drove": true, "eliminated": true, "enabled": true, "engineered": true,
	"established": true, "evaluated": true, "expanded": true, "facilitated": true,
	"generated": true, "grew": true, "guided": true, "handled": true,
	"identified": true, "implemented": true, "improved": true, "increased": true,
	"initiated": true, "integrated": true, "introduced": true, "launched": true,
	"led": true, "maintained": true, "managed": true, "mentored": true,
	"migrated": true, "modernized": true, "monitored": true, "negotiated": true,
	"optimized": true, "orchestrated": true, "organized": true, "overhauled": true,
	"owned": true, "partnered": true, "pioneered": true, "planned": true,
	"prepared": true, "presented": true, "produced": true, "programmed": true,
	"provided": true, "reduced": true, "redesigned": true, "refactored": true,
	"resolved": true, "restructured": true, "revamped": true, "saved": true,
	"scaled": true, "secured": true, "shipped": true, "simplified": true,
	"spearheaded": true, "standardized": true, "streamlined": true, "strengthened": true,
	"supervised": true, "supported": true, "tested": true, "trained": true,
	"transformed": true, "upgraded": true, "wrote": true,
}

// weakLeadIns are replaced by an action verb rather than prefixed.
var weakLeadIns = []struct {
	prefix string
	verb   string
}{
	{"was responsible for", "Managed"},
	{"responsible for", "Managed"},
	{"worked on", "Developed"},
	{"worked with", "Collaborated with"},
	{"helped to", "Supported"},
	{"helped", "Supported"},
	{"assisted with", "Supported"},
	{"assisted in", "Supported"},
	{"assisted", "Supported"},
	{"participated in", "Contributed to"},
	{"involved in", "Contributed to"},
	{"tasked with", "Handled"},
	{"duties included", "Handled"},
	{"in charge of", "Directed"},
}

var (
	leadingMarker = regexp.MustCompile(`^\s*(?:[-*•·▪◦●■►▸‣⁃]+\s*|\d+[.)]\s+)`)
	quantifier    = regexp.MustCompile(`\d|%|\$|€|£`)
)

// IsActionVerb reports whether word belongs to the fixed action-verb set.
func IsActionVerb(word string) bool {
	return actionVerbs[strings.ToLower(strings.Trim(word, ".,;:!?()\"'"))]
}

// StartsWithActionVerb reports whether the first word of bullet is an action verb.
func StartsWithActionVerb(bullet string) bool {
	words := strings.Fields(bullet)
	return len(words) > 0 && IsActionVerb(words[0])
}

// EnsureActionVerb makes bullet start with a verb from the fixed set. Known
// weak lead-ins ("responsible for") are replaced; anything else gets
// DefaultLeadVerb prepended.
func EnsureActionVerb(bullet string) string {
	b := strings.TrimSpace(leadingMarker.ReplaceAllString(bullet, ""))
	if b == "" {
		return ""
	}
	if StartsWithActionVerb(b) {
		return capitalizeFirst(b)
	}

	lower := strings.ToLower(b)
	for _, w := range weakLeadIns {
		if strings.HasPrefix(lower, w.prefix+" ") {
			return w.verb + " " + strings.TrimSpace(b[len(w.prefix):])
		}
	}

	return DefaultLeadVerb + " " + lowerFirstWord(b)
}

// ClampBullet bounds bullet to [MinBulletWords, MaxBulletWords] words. Short
// bullets are extended with a role-context clause; long ones are cut at a
// word boundary and end with an ellipsis.
func ClampBullet(bullet, role string) string {
	words := strings.Fields(bullet)
	if len(words) == 0 {
		return ""
	}

	if len(words) < MinBulletWords {
		last := len(words) - 1
		if words[last] = strings.TrimRight(words[last], ".;,"); words[last] == "" {
			words = words[:last]
		}
		words = append(words, strings.Fields(contextClause(role))...)
		words[len(words)-1] += "."
	}

	if len(words) > MaxBulletWords {
		words = words[:MaxBulletWords]
		last := len(words) - 1
		words[last] = strings.TrimRight(words[last], ".,;:-") + ellipsis
	}
	return strings.Join(words, " ")
}

// contextClause is at least MinBulletWords-1 words long so one padding
// always reaches the floor.
func contextClause(role string) string {
	role = strings.Join(strings.Fields(role), " ")
	if role == "" {
		return "supporting team objectives and the delivery of measurable business results"
	}
	return "as " + role + ", supporting team objectives and the delivery of business results"
}

// NormalizeBullet applies EnsureActionVerb then ClampBullet.
func NormalizeBullet(bullet, role string) string {
	return ClampBullet(EnsureActionVerb(bullet), role)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// checkQuantifiedImpact checks if text contains numbers or metrics
func checkQuantifiedImpact(text string) bool {
	return quantifier.MatchString(text)
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// lowerFirstWord lowercases a plain capitalized first word but leaves
// acronyms and names like "AWS" or "GraphQL" alone.
func lowerFirstWord(s string) string {
	first, rest, _ := strings.Cut(s, " ")
	upper := 0
	for _, r := range first {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if upper == 1 && len(first) > 1 && unicode.IsUpper([]rune(first)[0]) {
		first = strings.ToLower(first[:1]) + first[1:]
	}
	if rest == "" {
		return first
	}
	return first + " " + rest
}
