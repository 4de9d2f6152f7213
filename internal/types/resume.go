package types

import (
	"sort"
	"strings"
	"time"
)

// DatePresent marks an ongoing role or program
const DatePresent = "Present"

// ContactInfo holds the candidate's contact block
type ContactInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

// ExperienceItem is one role in the work history
type ExperienceItem struct {
	Role             string   `json:"role"`
	Company          string   `json:"company"`
	Location         string   `json:"location,omitempty"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Responsibilities []string `json:"responsibilities"`
	Tools            []string `json:"tools"`
	Metrics          []string `json:"metrics"`
}

// EducationItem is one degree, diploma or program
type EducationItem struct {
	Institution    string   `json:"institution"`
	Degree         string   `json:"degree"`
	Field          string   `json:"field,omitempty"`
	GraduationDate string   `json:"graduation_date"`
	Honors         []string `json:"honors,omitempty"`
}

// SkillsTaxonomy is the flexible, industry-agnostic skills block
type SkillsTaxonomy struct {
	CoreCompetencies []string            `json:"core_competencies"`
	Tools            []string            `json:"tools"`
	Methodologies    []string            `json:"methodologies"`
	Specialized      map[string][]string `json:"specialized,omitempty"`
}

// All returns every listed skill, first occurrence wins, case-insensitive.
func (s SkillsTaxonomy) All() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(items []string) {
		for _, item := range items {
			item = strings.TrimSpace(item)
			key := strings.ToLower(item)
			if item == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	add(s.CoreCompetencies)
	add(s.Tools)
	add(s.Methodologies)
	for _, cat := range sortedKeys(s.Specialized) {
		add(s.Specialized[cat])
	}
	return out
}

// IsEmpty reports whether no skill is listed in any category.
func (s SkillsTaxonomy) IsEmpty() bool {
	return len(s.All()) == 0
}

// Certification is a professional certification or license
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
}

// Project is a notable project outside (or alongside) employment
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// NormalizedResume is the canonical representation every stage reads.
type NormalizedResume struct {
	Contact            ContactInfo         `json:"contact"`
	Summary            string              `json:"summary"`
	Experience         []ExperienceItem    `json:"experience"`
	Education          []EducationItem     `json:"education"`
	Skills             SkillsTaxonomy      `json:"skills"`
	Certifications     []Certification     `json:"certifications"`
	Projects           []Project           `json:"projects"`
	AdditionalSections map[string][]string `json:"additional_sections,omitempty"`
	ParsedAt           time.Time           `json:"parsed_at"`
	SourceFormat       InputType           `json:"source_format"`
}

// OptimizedResume is the rewritten resume plus suggested skills.
type OptimizedResume struct {
	Contact            ContactInfo         `json:"contact"`
	Summary            string              `json:"summary"`
	Experience         []ExperienceItem    `json:"experience"`
	Education          []EducationItem     `json:"education"`
	Skills             SkillsTaxonomy      `json:"skills"`
	Certifications     []Certification     `json:"certifications"`
	Projects           []Project           `json:"projects"`
	AdditionalSections map[string][]string `json:"additional_sections,omitempty"`
	SkillsToAdd        []string            `json:"skills_to_add"`
}

// SectionPresence reports which sections of a resume carry content.
type SectionPresence struct {
	Summary        bool
	Experience     bool
	Skills         bool
	Education      bool
	Certifications bool
	Projects       bool
}

// Presence returns section presence for an optimized resume.
func (r *OptimizedResume) Presence() SectionPresence {
	if r == nil {
		return SectionPresence{}
	}
	return SectionPresence{
		Summary:        strings.TrimSpace(r.Summary) != "",
		Experience:     len(r.Experience) > 0,
		Skills:         !r.Skills.IsEmpty(),
		Education:      len(r.Education) > 0,
		Certifications: len(r.Certifications) > 0,
		Projects:       len(r.Projects) > 0,
	}
}

// FullText joins every free-text field, used for keyword frequency checks.
func (r *NormalizedResume) FullText() string {
	if r == nil {
		return ""
	}
	return joinResumeText(r.Summary, r.Experience, r.Education, r.Skills, r.Certifications, r.Projects, r.AdditionalSections)
}

// FullText joins every free-text field of the optimized resume.
func (r *OptimizedResume) FullText() string {
	if r == nil {
		return ""
	}
	return joinResumeText(r.Summary, r.Experience, r.Education, r.Skills, r.Certifications, r.Projects, r.AdditionalSections)
}

// AsOptimized copies a normalized resume into the optimized shape.
func (r *NormalizedResume) AsOptimized() *OptimizedResume {
	out := &OptimizedResume{
		Contact:        r.Contact,
		Summary:        r.Summary,
		Experience:     make([]ExperienceItem, len(r.Experience)),
		Education:      append([]EducationItem(nil), r.Education...),
		Skills:         r.Skills,
		Certifications: append([]Certification(nil), r.Certifications...),
		Projects:       append([]Project(nil), r.Projects...),
		SkillsToAdd:    []string{},
	}
	for i, exp := range r.Experience {
		exp.Responsibilities = append([]string(nil), exp.Responsibilities...)
		out.Experience[i] = exp
	}
	if len(r.AdditionalSections) > 0 {
		out.AdditionalSections = make(map[string][]string, len(r.AdditionalSections))
		for k, v := range r.AdditionalSections {
			out.AdditionalSections[k] = append([]string(nil), v...)
		}
	}
	return out
}

func joinResumeText(summary string, exp []ExperienceItem, edu []EducationItem, skills SkillsTaxonomy, certs []Certification, projects []Project, extra map[string][]string) string {
	var sb strings.Builder
	write := func(parts ...string) {
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				sb.WriteString(p)
				sb.WriteString("\n")
			}
		}
	}
	write(summary)
	for _, e := range exp {
		write(e.Role, e.Company)
		write(e.Responsibilities...)
		write(e.Tools...)
		write(e.Metrics...)
	}
	for _, e := range edu {
		write(e.Degree, e.Field, e.Institution)
	}
	write(skills.All()...)
	for _, c := range certs {
		write(c.Name)
	}
	for _, p := range projects {
		write(p.Name, p.Description)
		write(p.Technologies...)
	}
	for _, k := range sortedKeys(extra) {
		write(extra[k]...)
	}
	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FillDefaults replaces nil slices with empty ones so the resume marshals
// without nulls.
func (r *NormalizedResume) FillDefaults() {
	if r.Experience == nil {
		r.Experience = []ExperienceItem{}
	}
	if r.Education == nil {
		r.Education = []EducationItem{}
	}
	if r.Certifications == nil {
		r.Certifications = []Certification{}
	}
	if r.Projects == nil {
		r.Projects = []Project{}
	}
	fillExperience(r.Experience)
	fillSkills(&r.Skills)
}

// FillDefaults replaces nil slices with empty ones.
func (r *OptimizedResume) FillDefaults() {
	if r.Experience == nil {
		r.Experience = []ExperienceItem{}
	}
	if r.Education == nil {
		r.Education = []EducationItem{}
	}
	if r.Certifications == nil {
		r.Certifications = []Certification{}
	}
	if r.Projects == nil {
		r.Projects = []Project{}
	}
	if r.SkillsToAdd == nil {
		r.SkillsToAdd = []string{}
	}
	fillExperience(r.Experience)
	fillSkills(&r.Skills)
}

func fillExperience(items []ExperienceItem) {
	for i := range items {
		if items[i].Responsibilities == nil {
			items[i].Responsibilities = []string{}
		}
		if items[i].Tools == nil {
			items[i].Tools = []string{}
		}
		if items[i].Metrics == nil {
			items[i].Metrics = []string{}
		}
	}
}

func fillSkills(s *SkillsTaxonomy) {
	if s.CoreCompetencies == nil {
		s.CoreCompetencies = []string{}
	}
	if s.Tools == nil {
		s.Tools = []string{}
	}
	if s.Methodologies == nil {
		s.Methodologies = []string{}
	}
}
