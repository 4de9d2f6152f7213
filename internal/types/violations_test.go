package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyViolation_JSONMarshaling(t *testing.T) {
	violation := PolicyViolation{
		Type:     ViolationExperienceYears,
		Severity: SeverityMedium,
		Location: "summary",
		Original: "25+ years experience",
		Fix:      "extensive experience",
		Reason:   "Years-of-experience counts above the cap signal age",
	}

	jsonBytes, err := json.MarshalIndent(violation, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"type": "experience_years"`)
	assert.Contains(t, string(jsonBytes), `"severity": "medium"`)
	assert.Contains(t, string(jsonBytes), `"location": "summary"`)
	assert.Contains(t, string(jsonBytes), `"fix": "extensive experience"`)

	var unmarshaled PolicyViolation
	require.NoError(t, json.Unmarshal(jsonBytes, &unmarshaled))
	assert.Equal(t, violation, unmarshaled)
}

func TestPolicyViolation_Fixed(t *testing.T) {
	assert.True(t, PolicyViolation{Severity: SeverityHigh}.Fixed())
	assert.True(t, PolicyViolation{Severity: SeverityMedium}.Fixed())
	assert.False(t, PolicyViolation{Severity: SeverityWarning}.Fixed())
}

func TestPolicyViolation_WarningOmitsFix(t *testing.T) {
	jsonBytes, err := json.Marshal(PolicyViolation{Type: ViolationContactPlacement, Severity: SeverityWarning})
	require.NoError(t, err)
	assert.NotContains(t, string(jsonBytes), `"fix"`)
}
