package rendering

import (
	"fmt"

	"github.com/TedTes/genres-sub000/internal/types"
)

// Formatter renders an optimized resume to document bytes.
type Formatter interface {
	Format(r *types.OptimizedResume, contact types.ContactInfo) ([]byte, error)
	// Extension is the file extension without a dot
	Extension() string
	ContentType() string
}

// Content types of the supported formats
const (
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
)

// ForFormat returns the formatter for "docx" or "pdf".
func ForFormat(format string) (Formatter, error) {
	switch format {
	case "docx":
		return NewDOCXFormatter()
	case "pdf":
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
}
