package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

const (
	minimalContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	minimalPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>`
	// A4 portrait, 30 mm left and 15 mm right margins
	documentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1134" w:right="850" w:bottom="1134" w:left="1701" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`
)

// NewTemplate builds a minimal .docx with one paragraph per argument.
func NewTemplate(paragraphs ...string) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(documentHead)
	for _, p := range paragraphs {
		doc.WriteString("<w:p>")
		writeRun(&doc, p, false, false, 0)
		doc.WriteString("</w:p>")
	}
	doc.WriteString(documentTail)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []part{
		{name: contentTypesPart, data: []byte(minimalContentTypes)},
		{name: "_rels/.rels", data: []byte(minimalPackageRels)},
		{name: documentPart, data: []byte(doc.String())},
		{name: documentRelsPart, data: []byte(emptyRelationships)},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close package: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultTemplate is used when no template is uploaded: a title, the reporting period
// and every section in order.
func DefaultTemplate() ([]byte, error) {
	return NewTemplate(
		"{{report_title}}",
		"Period: {{start_date}} to {{end_date}}",
		"{{report_body}}",
	)
}
