// Package document binds values into .docx templates.
//
// A template is an ordinary Word document whose paragraphs carry {{name}} placeholders.
// A placeholder that is the only text of its paragraph may receive a block (headings,
// paragraphs, tables, images); anywhere else it receives plain text.
package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalid is returned for input that is not a readable .docx package.
	ErrInvalid = errors.New("invalid document")
	// ErrSyntax is returned for malformed placeholders.
	ErrSyntax = errors.New("malformed placeholder")
	// ErrBinding is returned when values cannot be bound to the template.
	ErrBinding = errors.New("template binding failed")
)

const (
	documentPart     = "word/document.xml"
	documentRelsPart = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
)

var (
	paragraphRe   = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/])?>.*?</w:p>`)
	textRunRe     = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	docPrRe       = regexp.MustCompile(`<wp:docPr\s[^>]*?\bid="(\d+)"`)
)

const minDocPrBase = 1000

type part struct {
	name string
	data []byte
}

// Template is a parsed .docx package. It is not modified by Render.
type Template struct {
	parts        []part
	doc          string
	placeholders []string
}

// Open reads a .docx package without validating placeholder syntax.
func Open(data []byte) (*Template, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	t := &Template{}
	found := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open %s: %v", ErrInvalid, f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalid, f.Name, err)
		}
		if f.Name == documentPart {
			t.doc = string(b)
			found = true
		}
		t.parts = append(t.parts, part{name: f.Name, data: b})
	}
	if !found {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalid, documentPart)
	}
	return t, nil
}

// Parse reads a .docx package and collects its placeholders. Unbalanced braces or
// placeholder names that are not identifiers fail with ErrSyntax.
func Parse(data []byte) (*Template, error) {
	t, err := Open(data)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, p := range paragraphRe.FindAllString(t.doc, -1) {
		text := paragraphText(p)
		rest := placeholderRe.ReplaceAllString(text, "")
		if strings.Contains(rest, "{{") || strings.Contains(rest, "}}") {
			return nil, fmt.Errorf("%w in paragraph %q", ErrSyntax, text)
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				t.placeholders = append(t.placeholders, m[1])
			}
		}
	}
	return t, nil
}

// Placeholders returns the placeholder names in order of first appearance.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Has reports whether the template contains the placeholder.
func (t *Template) Has(name string) bool {
	for _, p := range t.placeholders {
		if p == name {
			return true
		}
	}
	return false
}

// Text returns the text of every paragraph, one per line.
func (t *Template) Text() string {
	var sb strings.Builder
	for _, p := range paragraphRe.FindAllString(t.doc, -1) {
		sb.WriteString(paragraphText(p))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Media returns the names of the embedded media parts.
func (t *Template) Media() []string {
	var out []string
	for _, p := range t.parts {
		if strings.HasPrefix(p.name, "word/media/") {
			out = append(out, p.name)
		}
	}
	return out
}

// Tables returns the number of tables in the document body.
func (t *Template) Tables() int {
	return strings.Count(t.doc, "<w:tbl>")
}

func paragraphText(p string) string {
	var sb strings.Builder
	for _, m := range textRunRe.FindAllStringSubmatch(p, -1) {
		sb.WriteString(html.UnescapeString(m[1]))
	}
	return sb.String()
}

// Render binds text values and blocks and returns the new package. Block placeholders
// that receive no block are dropped with their paragraph; unknown text placeholders
// render empty.
func (t *Template) Render(text map[string]string, blocks map[string]*Body) ([]byte, error) {
	r := &renderer{docPrBase: docPrBase(t.doc)}
	var bindErr error
	doc := paragraphRe.ReplaceAllStringFunc(t.doc, func(p string) string {
		if bindErr != nil {
			return p
		}
		out, err := r.bindParagraph(p, text, blocks)
		if err != nil {
			bindErr = err
		}
		return out
	})
	if bindErr != nil {
		return nil, bindErr
	}
	return t.write(doc, r.media)
}

// docPrBase returns a base above every drawing id the template already uses.
func docPrBase(doc string) int {
	base := minDocPrBase
	for _, m := range docPrRe.FindAllStringSubmatch(doc, -1) {
		if id, err := strconv.Atoi(m[1]); err == nil && id > base {
			base = id
		}
	}
	return base
}

func (r *renderer) bindParagraph(p string, text map[string]string, blocks map[string]*Body) (string, error) {
	content := paragraphText(p)
	matches := placeholderRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return p, nil
	}
	if len(matches) == 1 && strings.TrimSpace(content) == matches[0][0] {
		name := matches[0][1]
		if body, ok := blocks[name]; ok {
			if body.Empty() {
				return "<w:p/>", nil
			}
			return r.renderBody(body), nil
		}
		if _, ok := text[name]; !ok {
			return "<w:p/>", nil
		}
	}
	for _, m := range matches {
		if _, ok := blocks[m[1]]; ok {
			return "", fmt.Errorf("%w: block %q must be the only text of its paragraph", ErrBinding, m[1])
		}
	}

	replaced := placeholderRe.ReplaceAllStringFunc(content, func(s string) string {
		return text[placeholderRe.FindStringSubmatch(s)[1]]
	})
	first := true
	return textRunRe.ReplaceAllStringFunc(p, func(string) string {
		if !first {
			return "<w:t></w:t>"
		}
		first = false
		return `<w:t xml:space="preserve">` + escape(replaced) + "</w:t>"
	}), nil
}

func (t *Template) write(doc string, media []mediaFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	put := func(name string, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	hasRels := false
	for _, p := range t.parts {
		data := p.data
		switch p.name {
		case documentPart:
			data = []byte(doc)
		case documentRelsPart:
			hasRels = true
			data = []byte(addRelationships(string(p.data), media))
		case contentTypesPart:
			if len(media) > 0 {
				data = []byte(addPNGContentType(string(p.data)))
			}
		}
		if err := put(p.name, data); err != nil {
			return nil, fmt.Errorf("%w: failed to write %s: %v", ErrBinding, p.name, err)
		}
	}
	if !hasRels && len(media) > 0 {
		if err := put(documentRelsPart, []byte(addRelationships(emptyRelationships, media))); err != nil {
			return nil, fmt.Errorf("%w: failed to write %s: %v", ErrBinding, documentRelsPart, err)
		}
	}
	for _, m := range media {
		if err := put("word/"+m.target, m.data); err != nil {
			return nil, fmt.Errorf("%w: failed to write %s: %v", ErrBinding, m.target, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to finish package: %v", ErrBinding, err)
	}
	return buf.Bytes(), nil
}

func addRelationships(rels string, media []mediaFile) string {
	if len(media) == 0 {
		return rels
	}
	var sb strings.Builder
	for _, m := range media {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s" Target="%s"/>`, m.relID, imageRelType, m.target)
	}
	i := strings.LastIndex(rels, "</Relationships>")
	if i < 0 {
		return rels
	}
	return rels[:i] + sb.String() + rels[i:]
}

func addPNGContentType(types string) string {
	if strings.Contains(strings.ToLower(types), `extension="png"`) {
		return types
	}
	i := strings.LastIndex(types, "</Types>")
	if i < 0 {
		return types
	}
	return types[:i] + `<Default Extension="png" ContentType="image/png"/>` + types[i:]
}

func escape(s string) string {
	return html.EscapeString(s)
}
