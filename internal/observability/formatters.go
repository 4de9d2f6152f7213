// Package observability provides logging, metrics, tracing and formatted
// CLI output for the resume optimizer.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/TedTes/genres-sub000/internal/cache"
	"github.com/TedTes/genres-sub000/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes, ending in "..." when cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// writeList appends up to limit items as bullet lines.
func writeList(sb *strings.Builder, items []string, limit int) {
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

// PrintResult outputs the score, gap, rationale, violations and artifacts of a result.
func (p *Printer) PrintResult(res *types.OptimizationResult) {
	if res == nil {
		return
	}
	p.PrintScore(res.ScoreBreakdown)
	p.PrintGapReport(res.GapReport)
	p.PrintRationale(res.Rationale)
	p.PrintViolations(res.PolicyViolations)
	p.PrintArtifacts(res)
}

// PrintScore outputs the composite score with every component.
func (p *Printer) PrintScore(score types.ScoreBreakdown) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:  %.2f (%s)\n", score.Overall, score.Grade))
	if score.Interpretation != "" {
		sb.WriteString(score.Interpretation + "\n")
	}
	sb.WriteString("\n")
	for _, c := range score.Components {
		sb.WriteString(fmt.Sprintf("%-22s %.2f × %.2f = %.3f\n", c.Name, c.RawScore, c.Weight, c.WeightedScore))
	}
	if len(score.Advice) > 0 {
		sb.WriteString("\nAdvice:\n")
		writeList(&sb, score.Advice, maxItemsToShow)
	}
	p.printBox("MATCH SCORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGapReport outputs missing and weak keywords and the semantic summary.
func (p *Printer) PrintGapReport(gap *types.GapReport) {
	if gap == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Keyword coverage: %.2f\n", gap.CoverageScore))
	if gap.Semantic.Available {
		sb.WriteString(fmt.Sprintf("Semantic match:   %.2f (%d strong, %d weak of %d chunks)\n",
			gap.Semantic.OverallSimilarity, gap.Semantic.StrongMatches, gap.Semantic.WeakMatches, gap.Semantic.TotalChunks))
	} else {
		sb.WriteString("Semantic match:   unavailable\n")
	}
	sb.WriteString("\n")

	if len(gap.MissingKeywords) > 0 {
		sb.WriteString("Missing:\n")
		writeList(&sb, gap.MissingKeywords, maxItemsToShow)
	}
	if len(gap.WeakKeywords) > 0 {
		sb.WriteString("Weak:\n")
		writeList(&sb, gap.WeakKeywords, 3)
	}

	p.printBox("GAP ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRationale outputs the first few change explanations.
func (p *Printer) PrintRationale(r types.Rationale) {
	if len(r.Entries) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(r.Entries), maxItemsToShow)
	for i := 0; i < count; i++ {
		e := r.Entries[i]
		sb.WriteString(fmt.Sprintf("• %s\n", e.Change))
		sb.WriteString(fmt.Sprintf("  %s\n", e.Reason))
	}
	if len(r.Entries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more changes", len(r.Entries)-maxItemsToShow))
	}

	p.printBox("CHANGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintViolations outputs guardrail findings.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintViolations(violations []types.PolicyViolation) {
	if len(violations) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO POLICY VIOLATIONS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d findings:\n\n", len(violations)))

	for i, v := range violations {
		marker := "✓ fixed"
		if !v.Fixed() {
			marker = "⚠ warning"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", marker, v.Type))
		sb.WriteString(fmt.Sprintf("  at %s\n", v.Location))
		if i < len(violations)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("POLICY GUARDRAILS", sb.String())
}

// PrintArtifacts outputs artifact locations, timing and cache status.
func (p *Printer) PrintArtifacts(res *types.OptimizationResult) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Request:  %s\n", res.RequestID))
	sb.WriteString(fmt.Sprintf("DOCX:     %s\n", locationOrNone(res.Artifacts.DOCX)))
	sb.WriteString(fmt.Sprintf("PDF:      %s\n", locationOrNone(res.Artifacts.PDF)))
	if res.ArtifactError != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", res.ArtifactError))
	}
	sb.WriteString(fmt.Sprintf("Time:     %d ms (cache hit: %t)", res.ProcessingTimeMS, res.CacheHit))
	p.printBox("ARTIFACTS", sb.String())
}

// PrintCacheStats outputs cache traffic counters.
func (p *Printer) PrintCacheStats(stats cache.Stats) {
	content := fmt.Sprintf("Backend:  %s\nHits:     %d\nMisses:   %d\nErrors:   %d\nWrites:   %d\nHit rate: %.1f%%",
		stats.Backend, stats.Hits, stats.Misses, stats.Errors, stats.Writes, stats.HitRate*100)
	p.printBox("CACHE STATS", content)
}

func locationOrNone(loc *string) string {
	if loc == nil {
		return "(not stored)"
	}
	return *loc
}
