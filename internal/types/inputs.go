// Package types provides type definitions for structured data used throughout the resume optimizer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputType identifies which source a ResumeInput was built from
type InputType string

const (
	// InputTypeText is raw pasted resume text
	InputTypeText InputType = "text"
	// InputTypeDOCX is a Word document reference (local path or URL)
	InputTypeDOCX InputType = "docx"
	// InputTypePDF is a PDF document reference (local path or URL)
	InputTypePDF InputType = "pdf"
)

// InputValidationError indicates a malformed request input. It is never retried.
type InputValidationError struct {
	Field   string
	Message string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("input validation error: %s: %s", e.Field, e.Message)
}

// IsInputValidation reports whether err is (or wraps) an InputValidationError.
func IsInputValidation(err error) bool {
	var ive *InputValidationError
	return errors.As(err, &ive)
}

// ResumeInput holds exactly one resume source.
type ResumeInput struct {
	Text    string `json:"text,omitempty"`
	DOCXRef string `json:"docx_ref,omitempty"`
	PDFRef  string `json:"pdf_ref,omitempty"`
}

// NewResumeInput builds a ResumeInput and rejects zero or multiple sources.
func NewResumeInput(text, docxRef, pdfRef string) (ResumeInput, error) {
	in := ResumeInput{Text: text, DOCXRef: docxRef, PDFRef: pdfRef}
	if err := in.Validate(); err != nil {
		return ResumeInput{}, err
	}
	return in, nil
}

// Validate checks the exactly-one-source invariant.
func (r ResumeInput) Validate() error {
	set := 0
	for _, v := range []string{r.Text, r.DOCXRef, r.PDFRef} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return &InputValidationError{Field: "resume", Message: "exactly one of text, docx_ref or pdf_ref must be set, got none"}
	case set > 1:
		return &InputValidationError{Field: "resume", Message: fmt.Sprintf("exactly one of text, docx_ref or pdf_ref must be set, got %d", set)}
	}
	return nil
}

// InputType returns the source kind. Only meaningful on a validated input.
func (r ResumeInput) InputType() InputType {
	switch {
	case strings.TrimSpace(r.DOCXRef) != "":
		return InputTypeDOCX
	case strings.TrimSpace(r.PDFRef) != "":
		return InputTypePDF
	default:
		return InputTypeText
	}
}

// Reference returns the document reference for file inputs, or "" for text.
func (r ResumeInput) Reference() string {
	switch r.InputType() {
	case InputTypeDOCX:
		return strings.TrimSpace(r.DOCXRef)
	case InputTypePDF:
		return strings.TrimSpace(r.PDFRef)
	default:
		return ""
	}
}

// JobDescriptionInput is the target job posting.
type JobDescriptionInput struct {
	Text    string `json:"text"`
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
}

// NewJobDescriptionInput builds a JobDescriptionInput, rejecting empty text.
func NewJobDescriptionInput(text, title, company string) (JobDescriptionInput, error) {
	jd := JobDescriptionInput{
		Text:    text,
		Title:   strings.TrimSpace(title),
		Company: strings.TrimSpace(company),
	}
	if err := jd.Validate(); err != nil {
		return JobDescriptionInput{}, err
	}
	return jd, nil
}

// Validate checks that the job text is present.
func (j JobDescriptionInput) Validate() error {
	if strings.TrimSpace(j.Text) == "" {
		return &InputValidationError{Field: "job_description.text", Message: "job description text is required"}
	}
	return nil
}

// Tone controls how assertively the rewrite frames existing experience
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneAggressive   Tone = "aggressive"
	ToneConservative Tone = "conservative"
	ToneBalanced     Tone = "balanced"
)

// OptimizationOptions tunes a single optimization request.
// Values are copied on construction; there are no setters.
type OptimizationOptions struct {
	Locale            string `json:"locale" validate:"required,min=2,max=16"`
	Tone              Tone   `json:"tone" validate:"required,oneof=professional aggressive conservative balanced"`
	MaxBulletsPerRole int    `json:"max_bullets_per_role" validate:"min=1,max=10"`
	IncludeSkills     bool   `json:"include_skills"`
	ATSOptimize       bool   `json:"ats_optimize"`
	IncludePDF        bool   `json:"include_pdf"`
}

// Option customizes OptimizationOptions at construction time.
type Option func(*OptimizationOptions)

// WithLocale sets the output locale (e.g. "en-US").
func WithLocale(locale string) Option {
	return func(o *OptimizationOptions) { o.Locale = locale }
}

// WithTone sets the rewrite tone.
func WithTone(tone Tone) Option {
	return func(o *OptimizationOptions) { o.Tone = tone }
}

// WithMaxBulletsPerRole caps bullets per experience item.
func WithMaxBulletsPerRole(n int) Option {
	return func(o *OptimizationOptions) { o.MaxBulletsPerRole = n }
}

// WithIncludeSkills toggles skills_to_add suggestions.
func WithIncludeSkills(v bool) Option {
	return func(o *OptimizationOptions) { o.IncludeSkills = v }
}

// WithATSOptimize toggles ATS-friendly output.
func WithATSOptimize(v bool) Option {
	return func(o *OptimizationOptions) { o.ATSOptimize = v }
}

// WithIncludePDF toggles the PDF artifact.
func WithIncludePDF(v bool) Option {
	return func(o *OptimizationOptions) { o.IncludePDF = v }
}

// DefaultOptions returns the defaults used when a request omits options.
func DefaultOptions() OptimizationOptions {
	return OptimizationOptions{
		Locale:            "en-US",
		Tone:              ToneProfessional,
		MaxBulletsPerRole: 5,
		IncludeSkills:     true,
		ATSOptimize:       true,
		IncludePDF:        false,
	}
}

// NewOptions applies opts over the defaults and validates the result.
func NewOptions(opts ...Option) (OptimizationOptions, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidateOptions(o); err != nil {
		return OptimizationOptions{}, err
	}
	return o, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateOptions runs struct-tag validation and reports the first failing field.
func ValidateOptions(o OptimizationOptions) error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &InputValidationError{
				Field:   "options." + fe.Field(),
				Message: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &InputValidationError{Field: "options", Message: err.Error()}
	}
	return nil
}
