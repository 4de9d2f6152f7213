// Package guardrails applies deterministic compliance rules to rewritten
// resumes. Age signals are scrubbed and recorded; contact details outside the
// contact block are reported as warnings. No external calls are made.
package guardrails

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/types"
)

const (
	// DefaultGraduationYearThreshold is how many years back a graduation year becomes an age signal
	DefaultGraduationYearThreshold = 15
	// DefaultExperienceYearsCap is the largest "N+ years" claim left as written
	DefaultExperienceYearsCap = 20

	extensive = "extensive"
)

// Config tunes the age-signal rules.
type Config struct {
	GraduationYearThreshold int
	ExperienceYearsCap      int
	// Now defaults to time.Now
	Now func() time.Time
}

// DefaultConfig returns the 15-year graduation threshold and the 20-year experience cap.
func DefaultConfig() Config {
	return Config{
		GraduationYearThreshold: DefaultGraduationYearThreshold,
		ExperienceYearsCap:      DefaultExperienceYearsCap,
		Now:                     time.Now,
	}
}

// Engine applies the guardrail rules.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Engine. Zero config values take the defaults.
func New(cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.GraduationYearThreshold <= 0 {
		cfg.GraduationYearThreshold = def.GraduationYearThreshold
	}
	if cfg.ExperienceYearsCap <= 0 {
		cfg.ExperienceYearsCap = def.ExperienceYearsCap
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

var (
	yearPattern = `((?:19|20)\d{2})`

	graduationRe = regexp.MustCompile(`(?i)\b(?:graduated|graduating|graduation|class\s+of|alumn(?:us|a|i))\b[^.;\n\d]{0,60}?\b` + yearPattern + `\b`)
	sinceRe      = regexp.MustCompile(`(?i)\b(?:ever\s+)?since\s+` + yearPattern + `\b`)
	milestoneRe  = regexp.MustCompile(`(?i)\b((?:career|started|starting|began|beginning|joined|entered)[^.;\n\d]{0,40}?)\s+in\s+` + yearPattern + `\b`)
	yearsRe      = regexp.MustCompile(`(?i)\b(?:(?:over|more\s+than|nearly|almost|about|approximately)\s+)?(\d{1,3})\s*\+?\s*(?:years?|yrs\.?)\s+(?:of\s+)?((?:[a-z-]+\s+){0,2}?)experience\b`)
	trailingPrep = regexp.MustCompile(`(?i)[\s,]*\b(?:in|of|from)?\s*$`)
	spaceFixer   = strings.NewReplacer(" ,", ",", " .", ".", " ;", ";")
)

// Apply scrubs age signals from r in place and returns every finding, fixed
// or not. The slice is never nil.
func (e *Engine) Apply(r *types.OptimizedResume) []types.PolicyViolation {
	violations := []types.PolicyViolation{}
	if r == nil {
		return violations
	}
	current := e.cfg.Now().Year()

	scrub := func(location, text string) string {
		var found []types.PolicyViolation
		text, found = e.scrubGraduation(location, text, current)
		violations = append(violations, found...)
		text, found = e.scrubMilestones(location, text, current)
		violations = append(violations, found...)
		text, found = e.scrubExperienceYears(location, text)
		violations = append(violations, found...)
		return text
	}

	r.Summary = scrub("summary", r.Summary)
	for i := range r.Experience {
		for j, b := range r.Experience[i].Responsibilities {
			r.Experience[i].Responsibilities[j] = scrub(fmt.Sprintf("experience[%d].responsibilities[%d]", i, j), b)
		}
	}
	for i := range r.Education {
		edu := &r.Education[i]
		if year, ok := leadingYear(edu.GraduationDate); ok && current-year > e.cfg.GraduationYearThreshold {
			violations = append(violations, types.PolicyViolation{
				Type:     types.ViolationGraduationYear,
				Severity: types.SeverityHigh,
				Location: fmt.Sprintf("education[%d].graduation_date", i),
				Original: edu.GraduationDate,
				Fix:      "",
				Reason:   e.graduationReason(),
			})
			edu.GraduationDate = ""
		}
	}

	violations = append(violations, contactWarnings(r)...)

	if len(violations) > 0 {
		e.logger.Info("guardrails applied", zap.Int("violations", len(violations)))
	}
	return violations
}

func (e *Engine) graduationReason() string {
	return fmt.Sprintf("graduation years more than %d years ago can signal age", e.cfg.GraduationYearThreshold)
}

func (e *Engine) scrubGraduation(location, text string, current int) (string, []types.PolicyViolation) {
	var out []types.PolicyViolation
	fixed := graduationRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := graduationRe.FindStringSubmatch(match)
		year, _ := strconv.Atoi(sub[1])
		if current-year <= e.cfg.GraduationYearThreshold {
			return match
		}
		replacement := ""
		if !strings.HasPrefix(strings.ToLower(match), "class") {
			replacement = trailingPrep.ReplaceAllString(strings.TrimSuffix(match, sub[1]), "")
		}
		out = append(out, types.PolicyViolation{
			Type:     types.ViolationGraduationYear,
			Severity: types.SeverityHigh,
			Location: location,
			Original: match,
			Fix:      replacement,
			Reason:   e.graduationReason(),
		})
		return replacement
	})
	return tidy(text, fixed), out
}

func (e *Engine) scrubMilestones(location, text string, current int) (string, []types.PolicyViolation) {
	var out []types.PolicyViolation
	old := func(y string) bool {
		year, _ := strconv.Atoi(y)
		return current-year > e.cfg.GraduationYearThreshold
	}
	reason := "career start years reveal the length of a career and can signal age"

	fixed := sinceRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := sinceRe.FindStringSubmatch(match)
		if !old(sub[1]) {
			return match
		}
		replacement := "for many years"
		out = append(out, types.PolicyViolation{
			Type:     types.ViolationCareerMilestone,
			Severity: types.SeverityMedium,
			Location: location,
			Original: match,
			Fix:      replacement,
			Reason:   reason,
		})
		return replacement
	})
	fixed = milestoneRe.ReplaceAllStringFunc(fixed, func(match string) string {
		sub := milestoneRe.FindStringSubmatch(match)
		if !old(sub[2]) {
			return match
		}
		out = append(out, types.PolicyViolation{
			Type:     types.ViolationCareerMilestone,
			Severity: types.SeverityMedium,
			Location: location,
			Original: match,
			Fix:      sub[1],
			Reason:   reason,
		})
		return sub[1]
	})
	return tidy(text, fixed), out
}

func (e *Engine) scrubExperienceYears(location, text string) (string, []types.PolicyViolation) {
	var out []types.PolicyViolation
	fixed := yearsRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := yearsRe.FindStringSubmatch(match)
		n, _ := strconv.Atoi(sub[1])
		if n <= e.cfg.ExperienceYearsCap {
			return match
		}
		replacement := extensive + " " + sub[2] + "experience"
		out = append(out, types.PolicyViolation{
			Type:     types.ViolationExperienceYears,
			Severity: types.SeverityMedium,
			Location: location,
			Original: match,
			Fix:      replacement,
			Reason:   fmt.Sprintf("claims above %d years of experience can signal age", e.cfg.ExperienceYearsCap),
		})
		return replacement
	})
	return tidy(text, fixed), out
}

// tidy cleans whitespace left by a removal. Unchanged text is returned as is.
func tidy(before, after string) string {
	if before == after {
		return before
	}
	after = strings.Join(strings.Fields(after), " ")
	return strings.TrimSpace(spaceFixer.Replace(after))
}

// leadingYear reads the year of a normalized date (YYYY, YYYY-MM, YYYY-MM-DD).
func leadingYear(date string) (int, bool) {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year < 1900 {
		return 0, false
	}
	return year, true
}

// AgeSignalCount counts age-pattern matches in text regardless of thresholds.
func AgeSignalCount(text string) int {
	n := 0
	for _, re := range []*regexp.Regexp{graduationRe, sinceRe, milestoneRe, yearsRe} {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}
