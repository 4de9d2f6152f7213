package scoring

// Grade thresholds, highest first
var gradeThresholds = []struct {
	min   float64
	grade string
}{
	{0.9, "A"},
	{0.8, "B+"},
	{0.7, "B"},
	{0.6, "C+"},
	{0.5, "C"},
	{0.4, "D"},
}

// Grade maps an overall score to a letter grade.
func Grade(score float64) string {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return "F"
}

// Interpret describes what a grade means for the candidate.
func Interpret(grade string) string {
	switch grade {
	case "A":
		return "Excellent match. The resume covers the role's requirements with strong supporting experience."
	case "B+":
		return "Strong match. A few targeted additions would make the resume stand out."
	case "B":
		return "Good match. Core requirements are covered but some keywords or evidence are thin."
	case "C+":
		return "Fair match. Several requirements are missing or weakly supported."
	case "C":
		return "Partial match. The resume needs substantial tailoring for this role."
	case "D":
		return "Weak match. Most requirements are not reflected in the resume."
	default:
		return "Poor match. The resume does not reflect this role's requirements."
	}
}
