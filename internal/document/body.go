package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"strings"
)

const (
	imageRelType       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	emptyRelationships = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	emuPerMM = 36000
)

// Body is an ordered list of block elements bound to one placeholder.
type Body struct {
	elems []element
}

type element interface {
	appendXML(sb *strings.Builder, r *renderer)
}

// NewBody returns an empty body.
func NewBody() *Body {
	return &Body{}
}

// Empty reports whether nothing was added.
func (b *Body) Empty() bool {
	return b == nil || len(b.elems) == 0
}

// Append adds the elements of other after the current ones.
func (b *Body) Append(other *Body) {
	if other.Empty() {
		return
	}
	b.elems = append(b.elems, other.elems...)
}

// Heading adds a bold paragraph. Level 1 is the largest.
func (b *Body) Heading(level int, text string) {
	size := 32
	switch {
	case level == 2:
		size = 28
	case level >= 3:
		size = 24
	}
	b.elems = append(b.elems, paragraph{text: text, bold: true, size: size, spaceBefore: 240})
}

// Paragraph adds a plain paragraph.
func (b *Body) Paragraph(text string) {
	b.elems = append(b.elems, paragraph{text: text})
}

// Caption adds a centered italic paragraph.
func (b *Body) Caption(text string) {
	b.elems = append(b.elems, paragraph{text: text, italic: true, center: true})
}

// Image adds a centered PNG scaled to widthMM, keeping its aspect ratio.
func (b *Body) Image(png []byte, widthMM float64) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("%w: failed to decode image: %v", ErrBinding, err)
	}
	if format != "png" || cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: unsupported image %s %dx%d", ErrBinding, format, cfg.Width, cfg.Height)
	}
	cx := int64(widthMM * emuPerMM)
	cy := cx * int64(cfg.Height) / int64(cfg.Width)
	b.elems = append(b.elems, picture{data: png, cx: cx, cy: cy})
	return nil
}

// Table adds a bordered table with a bold header row.
func (b *Body) Table(header []string, rows [][]string) {
	b.elems = append(b.elems, table{header: header, rows: rows})
}

type mediaFile struct {
	relID  string
	target string
	data   []byte
}

type renderer struct {
	media []mediaFile
	// drawing ids are allocated above this value
	docPrBase int
}

func (r *renderer) renderBody(b *Body) string {
	var sb strings.Builder
	for _, e := range b.elems {
		e.appendXML(&sb, r)
	}
	return sb.String()
}

func (r *renderer) addMedia(data []byte) (relID string, n int) {
	n = len(r.media) + 1
	m := mediaFile{
		relID:  fmt.Sprintf("rIdReport%d", n),
		target: fmt.Sprintf("media/report_image%d.png", n),
		data:   data,
	}
	r.media = append(r.media, m)
	return m.relID, n
}

type paragraph struct {
	text        string
	bold        bool
	italic      bool
	center      bool
	size        int
	spaceBefore int
}

func (p paragraph) appendXML(sb *strings.Builder, _ *renderer) {
	sb.WriteString("<w:p>")
	if p.center || p.spaceBefore > 0 {
		sb.WriteString("<w:pPr>")
		if p.spaceBefore > 0 {
			fmt.Fprintf(sb, `<w:spacing w:before="%d" w:after="120"/>`, p.spaceBefore)
		}
		if p.center {
			sb.WriteString(`<w:jc w:val="center"/>`)
		}
		sb.WriteString("</w:pPr>")
	}
	writeRun(sb, p.text, p.bold, p.italic, p.size)
	sb.WriteString("</w:p>")
}

func writeRun(sb *strings.Builder, text string, bold, italic bool, size int) {
	sb.WriteString("<w:r>")
	if bold || italic || size > 0 {
		sb.WriteString("<w:rPr>")
		if bold {
			sb.WriteString("<w:b/>")
		}
		if italic {
			sb.WriteString("<w:i/>")
		}
		if size > 0 {
			fmt.Fprintf(sb, `<w:sz w:val="%d"/>`, size)
		}
		sb.WriteString("</w:rPr>")
	}
	sb.WriteString(`<w:t xml:space="preserve">`)
	sb.WriteString(escape(text))
	sb.WriteString("</w:t></w:r>")
}

type picture struct {
	data   []byte
	cx, cy int64
}

const pictureXML = `<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:drawing>` +
	`<wp:inline xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" distT="0" distB="0" distL="0" distR="0">` +
	`<wp:extent cx="%[1]d" cy="%[2]d"/><wp:docPr id="%[3]d" name="Picture %[3]d"/>` +
	`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>` +
	`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:nvPicPr><pic:cNvPr id="%[3]d" name="report_image%[4]d.png"/><pic:cNvPicPr/></pic:nvPicPr>` +
	`<pic:blipFill><a:blip xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" r:embed="%[5]s"/>` +
	`<a:stretch><a:fillRect/></a:stretch></pic:blipFill>` +
	`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[2]d"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>` +
	`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`

func (p picture) appendXML(sb *strings.Builder, r *renderer) {
	relID, n := r.addMedia(p.data)
	// docPr ids must be unique within the document
	fmt.Fprintf(sb, pictureXML, p.cx, p.cy, r.docPrBase+n, n, relID)
}

type table struct {
	header []string
	rows   [][]string
}

const tableBorders = `<w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`</w:tblBorders>`

func (t table) appendXML(sb *strings.Builder, _ *renderer) {
	cols := len(t.header)
	for _, row := range t.rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}
	sb.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>`)
	sb.WriteString(tableBorders)
	sb.WriteString(`</w:tblPr><w:tblGrid>`)
	for i := 0; i < cols; i++ {
		sb.WriteString("<w:gridCol/>")
	}
	sb.WriteString("</w:tblGrid>")
	if len(t.header) > 0 {
		writeRow(sb, t.header, cols, true)
	}
	for _, row := range t.rows {
		writeRow(sb, row, cols, false)
	}
	// Word needs a paragraph between a table and whatever follows it
	sb.WriteString("</w:tbl><w:p/>")
}

func writeRow(sb *strings.Builder, cells []string, cols int, bold bool) {
	sb.WriteString("<w:tr>")
	for i := 0; i < cols; i++ {
		text := ""
		if i < len(cells) {
			text = cells[i]
		}
		sb.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr><w:p>`)
		writeRun(sb, text, bold, false, 0)
		sb.WriteString("</w:p></w:tc>")
	}
	sb.WriteString("</w:tr>")
}
