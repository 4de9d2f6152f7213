// Package rendering formats optimized resumes as downloadable DOCX and PDF
// documents.
package rendering

import "fmt"

// TemplateError represents an error parsing or executing a document template
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("template error: %s", e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError represents a general rendering failure
type RenderError struct {
	Format  string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error (%s): %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("render error (%s): %s", e.Format, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
