package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fenced normalized resume",
			input:    "```json\n{\"contact\": {\"name\": \"Jane Doe\"}}\n```",
			expected: `{"contact": {"name": "Jane Doe"}}`,
		},
		{
			name:     "fence without language",
			input:    "```\n{\"grade\": \"B\"}\n```",
			expected: `{"grade": "B"}`,
		},
		{
			name:     "fence never closed",
			input:    "```json\n{\"grade\": \"B\"}",
			expected: `{"grade": "B"}`,
		},
		{
			name:     "preamble before resume",
			input:    "Here is the normalized resume:\n\n{\"summary\": \"Backend developer\"}",
			expected: `{"summary": "Backend developer"}`,
		},
		{
			name:     "trailing chatter after resume",
			input:    "{\"summary\": \"Backend developer\"}\nLet me know if you want a more aggressive tone.",
			expected: `{"summary": "Backend developer"}`,
		},
		{
			name:     "braces inside a bullet",
			input:    `{"responsibilities": ["Cut p99 latency {from 800ms} to 120ms"]} hope this helps`,
			expected: `{"responsibilities": ["Cut p99 latency {from 800ms} to 120ms"]}`,
		},
		{
			name:     "escaped quotes inside a summary",
			input:    `{"summary": "Led \"Project Atlas\" migration"} done`,
			expected: `{"summary": "Led \"Project Atlas\" migration"}`,
		},
		{
			name:     "rationale array",
			input:    "Changes:\n[{\"change\": \"Emphasized Flask\"}]",
			expected: `[{"change": "Emphasized Flask"}]`,
		},
		{
			name:     "truncated output is returned as is",
			input:    "  {\"contact\": {\"name\": \"Jane\"}, \"experience\": [  ",
			expected: `{"contact": {"name": "Jane"}, "experience": [`,
		},
		{
			name:     "refusal without json",
			input:    "I cannot help with that.",
			expected: "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		wantValid bool
	}{
		{
			name:      "envelope-wrapped resume is kept whole",
			input:     "```json\n{\"resume\": {\"contact\": {\"name\": \"Jane\"}}}\n```",
			expected:  `{"resume": {"contact": {"name": "Jane"}}}`,
			wantValid: true,
		},
		{
			name:      "bracketed note before the payload",
			input:     `[draft] {"summary": "Backend developer"}`,
			expected:  `{"summary": "Backend developer"}`,
			wantValid: true,
		},
		{
			name:      "braced prose before the payload",
			input:     `Note {tone adjusted}: {"summary": "Backend developer"}`,
			expected:  `{"summary": "Backend developer"}`,
			wantValid: true,
		},
		{
			name:      "first of two documents",
			input:     `{"grade": "A"} {"grade": "B"}`,
			expected:  `{"grade": "A"}`,
			wantValid: true,
		},
		{
			name:     "truncated resume stays invalid for repair",
			input:    `{"contact": {"name": "Jane"`,
			expected: `{"contact": {"name": "Jane"`,
		},
		{
			name:     "no json at all",
			input:    "sorry, I cannot help",
			expected: "sorry, I cannot help",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.wantValid, json.Valid([]byte(got)))
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	assert.Equal(t, `{"a": "}"}`, extractJSONObject(`{"a": "}"} tail`))
	assert.Equal(t, `[1, [2]]`, extractJSONArray(`[1, [2]], 3`))
	assert.Empty(t, extractJSONObject(`{"a": 1`))
	assert.Empty(t, extractJSONObject(`x{"a": 1}`))
	assert.Empty(t, extractJSONArray(""))
}
