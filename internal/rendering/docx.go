package rendering

import (
	"archive/zip"
	"bytes"
	_ "embed"
	"text/template"
	"time"

	"github.com/TedTes/genres-sub000/internal/types"
)

//go:embed templates/document.xml.tmpl
var documentTemplate string

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>
</Types>`

	docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>
</Relationships>`

	docxNumbering = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="-"/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="360" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>
<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>
</w:numbering>`
)

// DOCXFormatter writes a minimal WordprocessingML package.
type DOCXFormatter struct {
	tmpl *template.Template
}

// NewDOCXFormatter parses the embedded document template.
func NewDOCXFormatter() (*DOCXFormatter, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		"escape": EscapeXML,
	}).Parse(documentTemplate)
	if err != nil {
		return nil, &TemplateError{Message: "failed to parse document template", Cause: err}
	}
	return &DOCXFormatter{tmpl: tmpl}, nil
}

// Extension returns "docx"
func (f *DOCXFormatter) Extension() string { return "docx" }

// ContentType returns the DOCX MIME type
func (f *DOCXFormatter) ContentType() string { return ContentTypeDOCX }

// Format renders r. The archive carries fixed timestamps so identical input
// yields identical bytes.
func (f *DOCXFormatter) Format(r *types.OptimizedResume, contact types.ContactInfo) ([]byte, error) {
	if r == nil {
		return nil, &RenderError{Format: "docx", Message: "no resume to render"}
	}

	var body bytes.Buffer
	if err := f.tmpl.Execute(&body, BuildDocument(r, contact)); err != nil {
		return nil, &TemplateError{Message: "failed to execute document template", Cause: err}
	}

	parts := []struct {
		name    string
		content []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRootRels)},
		{"word/_rels/document.xml.rels", []byte(docxDocumentRels)},
		{"word/numbering.xml", []byte(docxNumbering)},
		{"word/document.xml", body.Bytes()},
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	modified := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, &RenderError{Format: "docx", Message: "failed to add " + p.name, Cause: err}
		}
		if _, err := w.Write(p.content); err != nil {
			return nil, &RenderError{Format: "docx", Message: "failed to write " + p.name, Cause: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &RenderError{Format: "docx", Message: "failed to finish archive", Cause: err}
	}
	return out.Bytes(), nil
}
