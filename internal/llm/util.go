// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// CleanJSONBlock removes markdown code fences, conversational preambles and
// trailing chatter around a JSON object or array.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.ContainsAny(firstLine, "{[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var extracted string
	if text[start] == '{' {
		extracted = extractJSONObject(text[start:])
	} else {
		extracted = extractJSONArray(text[start:])
	}
	if extracted != "" {
		return extracted
	}
	return strings.TrimSpace(text[start:])
}

// ExtractJSON returns the first well-formed JSON value found in a
// model response, or the cleaned text when none parses.
func ExtractJSON(text string) string {
	cleaned := CleanJSONBlock(text)
	if gjson.Valid(cleaned) {
		return cleaned
	}
	// Models sometimes emit bracketed notes before the payload.
	for i := 0; i < len(text); i++ {
		var candidate string
		switch text[i] {
		case '{':
			candidate = extractJSONObject(text[i:])
		case '[':
			candidate = extractJSONArray(text[i:])
		default:
			continue
		}
		if candidate != "" && gjson.Valid(candidate) {
			return candidate
		}
	}
	return cleaned
}

// extractJSONObject returns the balanced object s starts with, or "".
func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// extractJSONArray returns the balanced array s starts with, or "".
func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced honours string literals and escapes while counting depth.
func extractBalanced(s string, open, closing byte) string {
	if s == "" || s[0] != open {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
