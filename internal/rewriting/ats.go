package rewriting

import (
	"strings"
	"unicode"
)

var atsReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "“", `"`, "”", `"`,
	"–", "-", "—", "-", "…", "...", "\u00a0", " ",
	"→", "->", "×", "x",
)

// StripDecorations makes text safe for applicant tracking systems: smart
// punctuation becomes ASCII and symbols, emoji and bullet glyphs are removed.
// Accented letters are kept.
func StripDecorations(text string) string {
	text = atsReplacer.Replace(text)
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r < 0x80:
			sb.WriteRune(r)
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			sb.WriteRune(r)
		case unicode.Is(unicode.Sc, r):
			// currency signs carry meaning in metrics
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
