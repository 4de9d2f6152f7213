// Package taxonomy is the curated skill allowlist used for keyword coverage:
// canonical names, aliases, categories and requirement-importance
// classification of job descriptions.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

//go:embed catalog.json
var catalogJSON []byte

// Category groups related skills
type Category string

// Skill is one canonical entry of the taxonomy.
type Skill struct {
	Name     string   `json:"name"`
	Category Category `json:"-"`
	// Aliases match case-insensitively
	Aliases []string `json:"aliases"`
	// Exact aliases match case-sensitively, for names that are also common words
	Exact []string `json:"exact"`
}

// Mention is a canonical skill found in a text.
type Mention struct {
	Skill    string
	Category Category
	// Offset is the byte offset of the first occurrence
	Offset int
	Count  int
}

type alias struct {
	text      string
	skill     int
	sensitive bool
}

// Taxonomy matches skill mentions in free text. It is immutable and safe for
// concurrent use.
type Taxonomy struct {
	skills  []Skill
	aliases []alias
	byName  map[string]int
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded catalog.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := Parse(catalogJSON)
		if err != nil {
			panic(fmt.Sprintf("embedded skill catalog is invalid: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// Parse builds a taxonomy from a catalog document: an object of category
// name to skill list.
func Parse(data []byte) (*Taxonomy, error) {
	var doc map[string][]Skill
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse skill catalog: %w", err)
	}
	categories := make([]string, 0, len(doc))
	for c := range doc {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var skills []Skill
	for _, c := range categories {
		for _, s := range doc[c] {
			s.Category = Category(c)
			skills = append(skills, s)
		}
	}
	return New(skills)
}

// New builds a taxonomy from explicit skills. Names must be unique.
func New(skills []Skill) (*Taxonomy, error) {
	t := &Taxonomy{byName: make(map[string]int, len(skills))}
	for _, s := range skills {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("skill with empty name")
		}
		key := strings.ToLower(name)
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("duplicate skill %q", name)
		}
		idx := len(t.skills)
		t.skills = append(t.skills, s)
		t.byName[key] = idx

		seen := map[string]bool{}
		add := func(text string, sensitive bool) {
			if text == "" || seen[text] {
				return
			}
			seen[text] = true
			t.aliases = append(t.aliases, alias{text: text, skill: idx, sensitive: sensitive})
		}
		if len(s.Exact) == 0 {
			add(key, false)
		}
		for _, a := range s.Aliases {
			add(strings.ToLower(strings.TrimSpace(a)), false)
		}
		for _, a := range s.Exact {
			add(strings.TrimSpace(a), true)
		}
	}
	return t, nil
}

// Skills returns every skill in catalog order.
func (t *Taxonomy) Skills() []Skill {
	return append([]Skill(nil), t.skills...)
}

// Lookup resolves a canonical name or alias.
func (t *Taxonomy) Lookup(name string) (Skill, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if idx, ok := t.byName[key]; ok {
		return t.skills[idx], true
	}
	for _, a := range t.aliases {
		if (a.sensitive && a.text == strings.TrimSpace(name)) || (!a.sensitive && a.text == key) {
			return t.skills[a.skill], true
		}
	}
	return Skill{}, false
}

// Canonical returns the taxonomy name for a skill, or a tidied version of the
// input when it is not in the catalog.
func (t *Taxonomy) Canonical(name string) string {
	if s, ok := t.Lookup(name); ok {
		return s.Name
	}
	return NormalizeSkillName(name)
}

// Extract returns one Mention per canonical skill found in text, ordered by
// first occurrence.
func (t *Taxonomy) Extract(text string) []Mention {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	found := make(map[int]*Mention)
	for _, a := range t.aliases {
		haystack := lower
		if a.sensitive {
			haystack = text
		}
		offsets := findAll(haystack, a.text)
		if len(offsets) == 0 {
			continue
		}
		m, ok := found[a.skill]
		if !ok {
			s := t.skills[a.skill]
			m = &Mention{Skill: s.Name, Category: s.Category, Offset: offsets[0]}
			found[a.skill] = m
		}
		if offsets[0] < m.Offset {
			m.Offset = offsets[0]
		}
		m.Count += len(offsets)
	}

	out := make([]Mention, 0, len(found))
	for _, m := range found {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}

// Names returns the canonical names of mentions, in order.
func Names(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Skill
	}
	return out
}

// Count returns how often a canonical skill is mentioned in text.
func (t *Taxonomy) Count(text, skill string) int {
	for _, m := range t.Extract(text) {
		if strings.EqualFold(m.Skill, skill) {
			return m.Count
		}
	}
	return 0
}

// findAll returns the offsets of needle in haystack that sit on token
// boundaries, so "java" does not match inside "javascript".
func findAll(haystack, needle string) []int {
	var offsets []int
	start := 0
	for start <= len(haystack)-len(needle) {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			break
		}
		pos := start + i
		end := pos + len(needle)
		if boundaryBefore(haystack, pos) && boundaryAfter(haystack, end) {
			offsets = append(offsets, pos)
		}
		start = pos + 1
	}
	return offsets
}

func boundaryBefore(s string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:pos])
	return !isTokenRune(r) && r != '.'
}

func boundaryAfter(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, size := utf8.DecodeRuneInString(s[end:])
	if r == '.' {
		// trailing sentence period, but not "node.js"
		if end+size >= len(s) {
			return true
		}
		next, _ := utf8.DecodeRuneInString(s[end+size:])
		return !isTokenRune(next)
	}
	return !isTokenRune(r)
}

// isTokenRune treats + # & as word characters so "c" never matches "c++".
func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '&' || r == '_'
}
