package types

// Policy violation types
const (
	ViolationGraduationYear   = "graduation_year"
	ViolationExperienceYears  = "experience_years"
	ViolationCareerMilestone  = "career_milestone_year"
	ViolationContactPlacement = "contact_info_placement"
)

// Severity levels. Fixed violations were rewritten; warnings were left in place.
const (
	SeverityHigh    = "high"
	SeverityMedium  = "medium"
	SeverityWarning = "warning"
)

// PolicyViolation records a single guardrail finding for audit
type PolicyViolation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Location string `json:"location"`
	Original string `json:"original"`
	Fix      string `json:"fix,omitempty"`
	Reason   string `json:"reason"`
}

// Fixed reports whether the guardrail rewrote the content.
func (v PolicyViolation) Fixed() bool {
	return v.Severity != SeverityWarning
}
