// Package prompts holds the model prompts of each pipeline stage. Prompt sets
// are JSON files embedded at compile time; templates use {{.Name}}
// placeholders that must all be filled before a prompt reaches a model.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Set names one embedded prompt file.
type Set string

// Prompt sets, one per model-backed stage.
const (
	Ingestion   Set = "ingestion.json"
	Rewriting   Set = "rewriting.json"
	Explanation Set = "explanation.json"
	Repair      Set = "repair.json"
)

// Sets lists every prompt set.
var Sets = []Set{Ingestion, Rewriting, Explanation, Repair}

// Prompt keys
const (
	KeySystem          = "system"
	KeyNormalizeResume = "normalize-resume"
	KeyRewriteResume   = "rewrite-resume"
	KeyExplainChanges  = "explain-changes"
	KeyRepairJSON      = "repair-json"
)

// ToneKey is the rewriting prompt fragment for a tone.
func ToneKey(tone string) string {
	return "tone-" + tone
}

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// MissingValuesError reports template placeholders that had no value.
type MissingValuesError struct {
	Names []string
}

func (e *MissingValuesError) Error() string {
	return fmt.Sprintf("prompt template has unfilled placeholders: %s", strings.Join(e.Names, ", "))
}

var loadSets = sync.OnceValues(func() (map[Set]map[string]string, error) {
	sets := make(map[Set]map[string]string, len(Sets))
	for _, set := range Sets {
		data, err := promptFiles.ReadFile(string(set))
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt set %s: %w", set, err)
		}
		var prompts map[string]string
		if err := json.Unmarshal(data, &prompts); err != nil {
			return nil, fmt.Errorf("failed to parse prompt set %s: %w", set, err)
		}
		sets[set] = prompts
	}
	return sets, nil
})

// Get returns the raw template under key in set.
func Get(set Set, key string) (string, error) {
	sets, err := loadSets()
	if err != nil {
		return "", err
	}
	prompts, ok := sets[set]
	if !ok {
		return "", fmt.Errorf("unknown prompt set %q", set)
	}
	prompt, ok := prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, set)
	}
	return prompt, nil
}

// Render loads a template and fills it with values.
func Render(set Set, key string, values map[string]string) (string, error) {
	template, err := Get(set, key)
	if err != nil {
		return "", err
	}
	out, err := Format(template, values)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", set, key, err)
	}
	return out, nil
}

// Format fills every {{.Name}} placeholder of template in a single pass, so
// placeholder-like text inside values is left alone. A placeholder without a
// value yields *MissingValuesError.
func Format(template string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := values[name]
		if !ok {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return match
		}
		return v
	})
	if len(missing) > 0 {
		return "", &MissingValuesError{Names: missing}
	}
	return out, nil
}

// Placeholders lists the distinct placeholder names of template in order of
// first appearance.
func Placeholders(template string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
