// Package gap compares a normalized resume with a job description using two
// independent signals: taxonomy keyword coverage and embedding similarity.
package gap

import (
	"strings"

	"github.com/TedTes/genres-sub000/internal/types"
)

// maxChunkWords splits long experience items so one chunk stays within a
// typical embedding window.
const maxChunkWords = 180

// BuildChunks splits a resume into section-tagged chunks. Projects count as
// experience and certifications as education. Index is global and stable for
// a given resume.
func BuildChunks(r *types.NormalizedResume) []types.DocumentChunk {
	if r == nil {
		return nil
	}
	var chunks []types.DocumentChunk
	add := func(section types.Section, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, types.DocumentChunk{
			Section:    section,
			Index:      len(chunks),
			Text:       text,
			TokenCount: CountTokens(text),
		})
	}

	add(types.SectionSummary, r.Summary)

	for _, exp := range r.Experience {
		header := strings.Join(nonEmpty(exp.Role, exp.Company), " at ")
		for _, group := range groupBullets(exp.Responsibilities, maxChunkWords) {
			add(types.SectionExperience, header+". "+strings.Join(group, " "))
		}
		if len(exp.Responsibilities) == 0 {
			add(types.SectionExperience, header)
		}
		if len(exp.Tools) > 0 {
			add(types.SectionExperience, header+". Tools: "+strings.Join(exp.Tools, ", "))
		}
	}
	for _, p := range r.Projects {
		text := p.Name + ". " + p.Description
		if len(p.Technologies) > 0 {
			text += " Technologies: " + strings.Join(p.Technologies, ", ")
		}
		add(types.SectionExperience, text)
	}

	for _, edu := range r.Education {
		add(types.SectionEducation, strings.Join(nonEmpty(edu.Degree, edu.Field, edu.Institution), ", "))
	}
	for _, c := range r.Certifications {
		add(types.SectionEducation, strings.Join(nonEmpty(c.Name, c.Issuer), ", "))
	}

	if skills := r.Skills.All(); len(skills) > 0 {
		add(types.SectionSkills, "Skills: "+strings.Join(skills, ", "))
	}
	return chunks
}

// CountTokens approximates tokens by whitespace-separated words.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// groupBullets packs bullets into groups of at most limit words. A single
// bullet longer than limit forms its own group.
func groupBullets(bullets []string, limit int) [][]string {
	var (
		groups [][]string
		cur    []string
		words  int
	)
	for _, b := range bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if !strings.HasSuffix(b, ".") {
			b += "."
		}
		n := CountTokens(b)
		if len(cur) > 0 && words+n > limit {
			groups = append(groups, cur)
			cur, words = nil, 0
		}
		cur = append(cur, b)
		words += n
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
