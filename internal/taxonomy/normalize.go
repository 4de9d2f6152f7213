package taxonomy

import (
	"strings"
)

// skillNormalizations maps common skill name variants that are not catalog
// aliases to canonical names
var skillNormalizations = map[string]string{
	"golanglang":   "Go",
	"k8":           "Kubernetes",
	"postgre":      "PostgreSQL",
	"psql":         "PostgreSQL",
	"mssql":        "SQL Server",
	"sql server":   "SQL Server",
	"gcloud":       "GCP",
	"ec2":          "AWS EC2",
	"s3":           "AWS S3",
	"reactnative":  "React Native",
	"react native": "React Native",
}

// NormalizeSkillName normalizes a skill name to its canonical form
func NormalizeSkillName(skillName string) string {
	normalized := strings.Join(strings.Fields(skillName), " ")
	if normalized == "" {
		return ""
	}

	lower := strings.ToLower(normalized)
	if canonical, ok := skillNormalizations[lower]; ok {
		return canonical
	}

	// All-caps single words that aren't short acronyms get a leading capital only
	if normalized == strings.ToUpper(normalized) && len(normalized) > 4 && !strings.Contains(lower, " ") {
		return strings.ToUpper(normalized[:1]) + strings.ToLower(normalized[1:])
	}

	// Mixed case is kept as written
	if normalized != strings.ToUpper(normalized) && normalized != lower {
		return normalized
	}

	// If all lowercase and single word, capitalize first letter
	if normalized == lower && !strings.Contains(normalized, " ") {
		return strings.ToUpper(normalized[:1]) + normalized[1:]
	}

	return normalized
}

// DedupePreserveOrder drops case-insensitive duplicates and blanks, keeping
// the first spelling.
func DedupePreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}
