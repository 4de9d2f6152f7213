package rendering

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/TedTes/genres-sub000/internal/types"
)

const (
	pdfFont         = "Helvetica"
	pdfLineHeight   = 5.0
	pdfBulletIndent = 5.0
)

// PDFFormatter renders a single-column Letter PDF with core fonts.
type PDFFormatter struct{}

// NewPDFFormatter creates a PDFFormatter.
func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

// Extension returns "pdf"
func (f *PDFFormatter) Extension() string { return "pdf" }

// ContentType returns "application/pdf"
func (f *PDFFormatter) ContentType() string { return ContentTypePDF }

// Format renders r. Text outside cp1252 is transliterated by fpdf's translator.
func (f *PDFFormatter) Format(r *types.OptimizedResume, contact types.ContactInfo) ([]byte, error) {
	if r == nil {
		return nil, &RenderError{Format: "pdf", Message: "no resume to render"}
	}
	doc := BuildDocument(r, contact)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 16, 18)
	pdf.SetAutoPageBreak(true, 16)
	pdf.SetCreationDate(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	pdf.SetTitle(doc.Name, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(pdfFont, "B", 18)
	pdf.CellFormat(0, 9, tr(doc.Name), "", 1, "C", false, 0, "")
	if doc.ContactLine != "" {
		pdf.SetFont(pdfFont, "", 9)
		pdf.CellFormat(0, pdfLineHeight, tr(doc.ContactLine), "", 1, "C", false, 0, "")
	}

	heading := func(title string) {
		pdf.Ln(3)
		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(0, 6, tr(title), "B", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont(pdfFont, "", 10)
	}
	paragraph := func(text string) {
		pdf.MultiCell(0, pdfLineHeight, tr(text), "", "L", false)
	}
	bullet := func(text string) {
		left, _, _, _ := pdf.GetMargins()
		pdf.SetX(left)
		pdf.CellFormat(pdfBulletIndent, pdfLineHeight, "-", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, pdfLineHeight, tr(text), "", "L", false)
	}

	if doc.Summary != "" {
		heading("Summary")
		paragraph(doc.Summary)
	}
	if len(doc.Companies) > 0 {
		heading("Experience")
		for _, company := range doc.Companies {
			for _, role := range company.Roles {
				pdf.Ln(1)
				pdf.SetFont(pdfFont, "B", 10)
				pdf.CellFormat(120, pdfLineHeight, tr(role.Role+", "+company.Company), "", 0, "L", false, 0, "")
				pdf.SetFont(pdfFont, "I", 9)
				pdf.CellFormat(0, pdfLineHeight, tr(role.DateRanges), "", 1, "R", false, 0, "")
				pdf.SetFont(pdfFont, "", 10)
				for _, b := range role.Bullets {
					bullet(b)
				}
			}
		}
	}
	if len(doc.Skills) > 0 {
		heading("Skills")
		for _, s := range doc.Skills {
			paragraph(s.Label + ": " + s.Items)
		}
	}
	if len(doc.Education) > 0 {
		heading("Education")
		for _, e := range doc.Education {
			paragraph(e)
		}
	}
	if len(doc.Certifications) > 0 {
		heading("Certifications")
		for _, c := range doc.Certifications {
			bullet(c)
		}
	}
	if len(doc.Projects) > 0 {
		heading("Projects")
		for _, p := range doc.Projects {
			paragraph(joinNonEmpty(": ", p.Name, p.Description))
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, &RenderError{Format: "pdf", Message: "failed to write document", Cause: err}
	}
	return out.Bytes(), nil
}
