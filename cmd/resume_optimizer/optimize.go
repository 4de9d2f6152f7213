package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TedTes/genres-sub000/internal/fetch"
	"github.com/TedTes/genres-sub000/internal/ingestion"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/pipeline"
	"github.com/TedTes/genres-sub000/internal/types"
)

var (
	optResume     string
	optJob        string
	optJobText    string
	optTitle      string
	optCompany    string
	optTone       string
	optLocale     string
	optMaxBullets int
	optNoSkills   bool
	optNoATS      bool
	optPDF        bool
	optRequester  string
	optJSON       bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a resume for a job description",
	Long: `Run the full pipeline: ingest the resume, analyze gaps against the job
description, rewrite, explain each change, apply guardrails, score the match
and store the DOCX/PDF artifacts.

The resume may be a plain-text file, a .docx or .pdf file, or an http(s) URL
to a .docx or .pdf document.`,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVarP(&optResume, "resume", "r", "", "Resume file or URL (.txt, .md, .docx, .pdf)")
	optimizeCmd.Flags().StringVarP(&optJob, "job", "j", "", "Job description file or URL")
	optimizeCmd.Flags().StringVar(&optJobText, "job-text", "", "Job description text")
	optimizeCmd.Flags().StringVar(&optTitle, "title", "", "Job title")
	optimizeCmd.Flags().StringVar(&optCompany, "company", "", "Company name")
	optimizeCmd.Flags().StringVar(&optTone, "tone", string(types.ToneProfessional), "Rewrite tone: professional, aggressive, conservative, balanced")
	optimizeCmd.Flags().StringVar(&optLocale, "locale", "en-US", "Output locale")
	optimizeCmd.Flags().IntVar(&optMaxBullets, "max-bullets", 5, "Maximum bullets per role")
	optimizeCmd.Flags().BoolVar(&optNoSkills, "no-skills", false, "Do not suggest skills to add")
	optimizeCmd.Flags().BoolVar(&optNoATS, "no-ats", false, "Disable ATS-friendly formatting")
	optimizeCmd.Flags().BoolVar(&optPDF, "pdf", false, "Also render a PDF artifact")
	optimizeCmd.Flags().StringVar(&optRequester, "requester", "", "Requester ID recorded with persisted runs")
	optimizeCmd.Flags().BoolVar(&optJSON, "json", false, "Print the result as JSON")

	_ = optimizeCmd.MarkFlagRequired("resume")
	optimizeCmd.MarkFlagsMutuallyExclusive("job", "job-text")
	optimizeCmd.MarkFlagsOneRequired("job", "job-text")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	resume, err := resumeInputFromFlag(optResume)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	jdText := optJobText
	if optJob != "" {
		if jdText, err = readJobDescription(ctx, optJob); err != nil {
			return err
		}
	}
	jd, err := types.NewJobDescriptionInput(jdText, optTitle, optCompany)
	if err != nil {
		return err
	}

	opts, err := types.NewOptions(
		types.WithLocale(optLocale),
		types.WithTone(types.Tone(optTone)),
		types.WithMaxBulletsPerRole(optMaxBullets),
		types.WithIncludeSkills(!optNoSkills),
		types.WithATSOptimize(!optNoATS),
		types.WithIncludePDF(optPDF),
	)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background()) //nolint:errcheck

	out := cmd.OutOrStdout()
	var progress pipeline.ProgressCallback
	if !optJSON {
		progress = printProgress(cmd.ErrOrStderr())
	}

	res, err := a.optimizer.OptimizeWithProgress(ctx, resume, jd, opts, optRequester, progress)
	if err != nil {
		return err
	}

	if optJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "\nRequest %s", res.RequestID)
	if res.CacheHit {
		fmt.Fprint(out, " (cached)")
	}
	fmt.Fprintln(out)
	observability.NewPrinter(out).PrintResult(res)
	return nil
}

// printProgress reports stage transitions one line each.
func printProgress(w io.Writer) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		switch e.Status {
		case pipeline.StatusStarted:
			fmt.Fprintf(w, "Step %d/%d: %s...\n", e.Step, e.Total, e.Message)
		case pipeline.StatusCompleted:
			fmt.Fprintf(w, "  done (%dms)\n", e.DurationMS)
		case pipeline.StatusCacheHit:
			fmt.Fprintf(w, "Cache hit: %s\n", e.Message)
		case pipeline.StatusFailed:
			fmt.Fprintf(w, "  failed: %s\n", e.Error)
		}
	}
}

// resumeInputFromFlag maps a resume argument to an input. Documents are
// picked by extension; anything else local is read as text.
func resumeInputFromFlag(ref string) (types.ResumeInput, error) {
	switch strings.ToLower(filepath.Ext(stripQuery(ref))) {
	case ".docx":
		return types.NewResumeInput("", ref, "")
	case ".pdf":
		return types.NewResumeInput("", "", ref)
	}
	if ingestion.IsRemote(ref) {
		return types.ResumeInput{}, &types.InputValidationError{Field: "resume", Message: "remote resumes must be .docx or .pdf"}
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return types.ResumeInput{}, fmt.Errorf("failed to read resume: %w", err)
	}
	return types.NewResumeInput(string(data), "", "")
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// readJobDescription loads a job description from a file or URL. HTML pages
// are reduced to the posting's main text.
func readJobDescription(ctx context.Context, ref string) (string, error) {
	var data []byte
	if ingestion.IsRemote(ref) {
		dl, err := fetch.ToTemp(ctx, ref, "job-*.html", fetch.DefaultOptions())
		if err != nil {
			return "", fmt.Errorf("failed to fetch job description: %w", err)
		}
		defer dl.Cleanup() //nolint:errcheck
		if data, err = os.ReadFile(dl.Path); err != nil {
			return "", err
		}
	} else {
		var err error
		if data, err = os.ReadFile(ref); err != nil {
			return "", fmt.Errorf("failed to read job description: %w", err)
		}
	}

	text := string(data)
	if fetch.LooksLikeHTML(text) {
		return fetch.HTMLToText(text)
	}
	return text, nil
}
