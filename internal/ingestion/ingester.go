package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/fetch"
	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/prompts"
	"github.com/TedTes/genres-sub000/internal/repair"
	"github.com/TedTes/genres-sub000/internal/schemas"
	"github.com/TedTes/genres-sub000/internal/types"
)

// Options configures an Ingester.
type Options struct {
	// Tier is the model tier used for normalization (default standard)
	Tier llm.ModelTier
	// MaxRepairs is passed to the repair loop; zero means the loop default
	MaxRepairs int
	// Fetch configures remote document downloads
	Fetch *fetch.Options
	// Extractors overrides the per-format extractors
	Extractors map[types.InputType]Extractor
	Now        func() time.Time
}

// Ingester converts a ResumeInput into a NormalizedResume.
type Ingester struct {
	gen        repair.Generator
	opts       Options
	extractors map[types.InputType]Extractor
	logger     *zap.Logger
}

// New creates an Ingester backed by gen.
func New(gen repair.Generator, logger *zap.Logger, opts Options) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	if opts.Fetch == nil {
		opts.Fetch = fetch.DefaultOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	extractors := map[types.InputType]Extractor{
		types.InputTypeDOCX: DOCXExtractor{},
		types.InputTypePDF:  PDFExtractor{},
	}
	for k, v := range opts.Extractors {
		extractors[k] = v
	}
	return &Ingester{gen: gen, opts: opts, extractors: extractors, logger: logger}
}

// Ingest extracts text from the input and asks the model for a
// schema-conforming NormalizedResume. It returns either a complete resume or
// an error; a repair.SchemaValidationError means the model never conformed.
func (i *Ingester) Ingest(ctx context.Context, input types.ResumeInput) (*types.NormalizedResume, error) {
	text, err := i.ExtractText(ctx, input)
	if err != nil {
		return nil, err
	}

	resume, err := i.Normalize(ctx, text)
	if err != nil {
		return nil, err
	}
	resume.SourceFormat = input.InputType()
	return resume, nil
}

// ExtractText returns the cleaned plain text of the input. Remote documents
// are downloaded to a temporary file that is removed before returning.
func (i *Ingester) ExtractText(ctx context.Context, input types.ResumeInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	kind := input.InputType()
	if kind == types.InputTypeText {
		text := CleanText(input.Text)
		if text == "" {
			return "", &types.InputValidationError{Field: "resume.text", Message: "resume text is empty"}
		}
		return text, nil
	}

	extractor, ok := i.extractors[kind]
	if !ok {
		return "", fmt.Errorf("no extractor registered for %s", kind)
	}

	ref := input.Reference()
	path := ref
	if IsRemote(ref) {
		dl, err := fetch.ToTemp(ctx, ref, "resume-*."+string(kind), i.opts.Fetch)
		if err != nil {
			return "", err
		}
		defer func() {
			if err := dl.Cleanup(); err != nil {
				i.logger.Warn("failed to remove downloaded resume", zap.String("path", dl.Path), zap.Error(err))
			}
		}()
		path = dl.Path
		i.logger.Debug("downloaded resume", zap.String("url", ref), zap.Int64("bytes", dl.Size))
	} else if _, err := os.Stat(path); err != nil {
		return "", &ExtractionError{Format: kind, Path: path, Cause: err}
	}

	raw, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	text := CleanText(raw)
	if text == "" {
		return "", &ExtractionError{Format: kind, Path: filepath.Base(path), Cause: fmt.Errorf("document contains no text")}
	}
	return text, nil
}

// modelResume shadows fields the model must not control.
type modelResume struct {
	types.NormalizedResume
	ParsedAt     any `json:"parsed_at,omitempty"`
	SourceFormat any `json:"source_format,omitempty"`
}

// Normalize runs the model normalization and the deterministic cleanup that
// follows it: date normalization, empty collections and the parse timestamp.
func (i *Ingester) Normalize(ctx context.Context, text string) (*types.NormalizedResume, error) {
	system, err := prompts.Get(prompts.Ingestion, prompts.KeySystem)
	if err != nil {
		return nil, err
	}
	schema, err := schemas.Source(schemas.ContractNormalizedResume)
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render(prompts.Ingestion, prompts.KeyNormalizeResume, map[string]string{
		"Schema":     schema,
		"ResumeText": text,
	})
	if err != nil {
		return nil, err
	}

	decoded, err := repair.Decode[modelResume](ctx, i.gen, repair.Request{
		Contract:   schemas.ContractNormalizedResume,
		Messages:   llm.Conversation(system, user),
		Tier:       i.opts.Tier,
		MaxRepairs: i.opts.MaxRepairs,
		Logger:     i.logger,
	})
	if err != nil {
		return nil, err
	}

	resume := decoded.NormalizedResume
	resume.FillDefaults()
	normalizeDates(&resume)
	trimResume(&resume)
	resume.ParsedAt = i.opts.Now().UTC()
	resume.SourceFormat = types.InputTypeText

	i.logger.Info("normalized resume",
		zap.Int("experience", len(resume.Experience)),
		zap.Int("education", len(resume.Education)),
		zap.Int("skills", len(resume.Skills.All())))
	return &resume, nil
}

// trimResume drops blank bullets and surrounding whitespace left by the model.
func trimResume(r *types.NormalizedResume) {
	r.Summary = strings.TrimSpace(r.Summary)
	for idx := range r.Experience {
		e := &r.Experience[idx]
		e.Role = strings.TrimSpace(e.Role)
		e.Company = strings.TrimSpace(e.Company)
		e.Responsibilities = compact(e.Responsibilities)
		e.Tools = compact(e.Tools)
		e.Metrics = compact(e.Metrics)
	}
	r.Skills.CoreCompetencies = compact(r.Skills.CoreCompetencies)
	r.Skills.Tools = compact(r.Skills.Tools)
	r.Skills.Methodologies = compact(r.Skills.Methodologies)
	for k, v := range r.Skills.Specialized {
		r.Skills.Specialized[k] = compact(v)
	}
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
