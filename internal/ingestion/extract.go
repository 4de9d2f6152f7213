package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/TedTes/genres-sub000/internal/types"
)

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 32 << 20

// ExtractionError reports a document that could not be turned into text.
type ExtractionError struct {
	Format types.InputType
	Path   string
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s text from %s: %v", e.Format, e.Path, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Extractor returns the plain text of a local document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DOCXExtractor reads paragraph text from word/document.xml.
type DOCXExtractor struct{}

// Extract implements Extractor.
func (DOCXExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", &ExtractionError{Format: types.InputTypeDOCX, Path: path, Cause: err}
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", &ExtractionError{Format: types.InputTypeDOCX, Path: path, Cause: err}
		}
		defer func() { _ = rc.Close() }()

		text, err := docxText(io.LimitReader(rc, maxDocumentXML))
		if err != nil {
			return "", &ExtractionError{Format: types.InputTypeDOCX, Path: path, Cause: err}
		}
		return text, nil
	}
	return "", &ExtractionError{Format: types.InputTypeDOCX, Path: path, Cause: fmt.Errorf("word/document.xml not found")}
}

// docxText walks WordprocessingML tokens. Numbered or bulleted paragraphs
// are emitted as "- " lines so bullets survive into the model prompt.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
		listed bool
	)
	flush := func() {
		line := strings.TrimSpace(para.String())
		if line != "" {
			if listed {
				out.WriteString("- ")
			}
			out.WriteString(line)
		}
		out.WriteString("\n")
		para.Reset()
		listed = false
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br", "cr":
				para.WriteString("\n")
			case "numPr":
				listed = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if para.Len() > 0 {
		flush()
	}
	return out.String(), nil
}

// PDFExtractor reads the text layer of a PDF. Scanned PDFs without a text
// layer yield an ExtractionError.
type PDFExtractor struct{}

// Extract implements Extractor.
func (PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{Format: types.InputTypePDF, Path: path, Cause: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", &ExtractionError{Format: types.InputTypePDF, Path: path, Cause: err}
	}
	defer func() { _ = f.Close() }()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Format: types.InputTypePDF, Path: path, Cause: err}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", &ExtractionError{Format: types.InputTypePDF, Path: path, Cause: err}
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", &ExtractionError{Format: types.InputTypePDF, Path: path, Cause: fmt.Errorf("no text layer")}
	}
	return buf.String(), nil
}
