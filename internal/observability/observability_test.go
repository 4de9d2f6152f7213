package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/types"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc...", TruncateForLog("abcdef", 3))
	assert.Equal(t, "abc", TruncateForLog("  abc ", 10))
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "ééé...", TruncateForLog("éééé", 3))
}

func TestPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveStage("rewrite", "ok", 120*time.Millisecond)
	m.CountRequest("cache_hit")
	m.CountRequest("cache_hit")
	m.CountProviderCall("ingestion")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("cache_hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("ingestion")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))

	var nilMetrics *PipelineMetrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveStage("x", "ok", time.Second)
		nilMetrics.CountRequest("ok")
		nilMetrics.CountProviderCall("x")
	})
}

func TestNewRegistry(t *testing.T) {
	families, err := NewRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSetupTracing(t *testing.T) {
	shutdown, err := SetupTracing(TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	var buf bytes.Buffer
	shutdown, err = SetupTracing(TracingConfig{Enabled: true, ServiceName: "test", Writer: &buf})
	require.NoError(t, err)
	_, span := Tracer().Start(context.Background(), "stage")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"stage"`)
}

func sampleResult() *types.OptimizationResult {
	docx := "/tmp/artifacts/resume.docx"
	return &types.OptimizationResult{
		RequestID: "req-1",
		ScoreBreakdown: types.ScoreBreakdown{
			Overall:        0.62,
			Grade:          "C+",
			Interpretation: "Fair match",
			Advice:         []string{"Add Docker"},
			Components: []types.ScoreComponent{
				{Name: "keyword_coverage", RawScore: 0.5, Weight: 0.35, WeightedScore: 0.175},
			},
		},
		GapReport: &types.GapReport{
			MissingKeywords: []string{"Docker", "AWS"},
			CoverageScore:   0.5,
		},
		Rationale: types.Rationale{Entries: []types.RationaleEntry{
			{Change: "Added Docker", Reason: "The job lists Docker."},
		}},
		PolicyViolations: []types.PolicyViolation{
			{Type: types.ViolationGraduationYear, Severity: types.SeverityHigh, Location: "summary"},
			{Type: types.ViolationContactPlacement, Severity: types.SeverityWarning, Location: "experience[0].responsibilities[1]"},
		},
		Artifacts:        types.ArtifactLocations{DOCX: &docx},
		ProcessingTimeMS: 1234,
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintResult(sampleResult())
	out := buf.String()

	for _, want := range []string{
		"MATCH SCORE", "0.62 (C+)", "keyword_coverage", "Add Docker",
		"GAP ANALYSIS", "Semantic match:   unavailable", "AWS",
		"CHANGES", "Added Docker",
		"POLICY GUARDRAILS", "✓ fixed graduation_year", "⚠ warning contact_info_placement",
		"ARTIFACTS", "/tmp/artifacts/resume.docx", "(not stored)", "1234 ms",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintResult(nil)
	assert.Empty(t, buf.String())
}

func TestPrintViolations_None(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintViolations(nil)
	assert.Contains(t, buf.String(), "NO POLICY VIOLATIONS")
}

func TestPrintCacheStats(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCacheStats(cache.Stats{Backend: "memory", Hits: 3, Misses: 1, HitRate: 0.75})
	assert.Contains(t, buf.String(), "memory")
	assert.Contains(t, buf.String(), "75.0%")
}

func TestPrintBox_ClipsLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("T", strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
}
