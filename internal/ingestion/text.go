// Package ingestion turns raw resume text, DOCX or PDF documents into a
// NormalizedResume.
package ingestion

import (
	"regexp"
	"strings"
)

var (
	multiSpace  = regexp.MustCompile(`\s+`)
	blankRun    = regexp.MustCompile(`\n\n\n+`)
	glyphBullet = regexp.MustCompile(`^[•·▪◦●■►▸‣⁃–]\s*`)
)

// CleanText cleans and normalizes text content while preserving structure
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	// Normalize line endings (CRLF → LF) and drop NULs some PDF producers emit
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\x00", "")
	content = strings.ReplaceAll(content, "\u00a0", " ")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")
	result = removeExcessiveBlankLines(result)
	return strings.TrimSpace(result)
}

// cleanLine cleans a single line while preserving structure
func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if strings.TrimSpace(line) == "" {
		return ""
	}

	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "#") {
		return trimmed
	}

	indent := len(line) - len(trimmed)
	pad := ""
	if indent > 0 {
		pad = strings.Repeat(" ", indent)
	}

	// Word and PDF bullets become Markdown bullets
	if isBulletLine(trimmed) {
		if glyphBullet.MatchString(trimmed) {
			trimmed = "- " + glyphBullet.ReplaceAllString(trimmed, "")
		}
		return pad + trimmed
	}

	return pad + multiSpace.ReplaceAllString(strings.TrimSpace(trimmed), " ")
}

// isBulletLine checks if a line is a bullet list item
func isBulletLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
		glyphBullet.MatchString(trimmed)
}

// removeExcessiveBlankLines reduces consecutive blank lines to max 2
func removeExcessiveBlankLines(content string) string {
	return blankRun.ReplaceAllString(content, "\n\n")
}
