package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"
)

func mustTemplate(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	data, err := NewTemplate(paragraphs...)
	if err != nil {
		t.Fatalf("NewTemplate failed: %v", err)
	}
	return data
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestParse_Placeholders(t *testing.T) {
	tmpl, err := Parse(mustTemplate(t, "{{ report_title }}", "From {{start_date}} to {{end_date}}", "{{start_date}}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"report_title", "start_date", "end_date"}
	got := tmpl.Placeholders()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("placeholders = %v, want %v", got, want)
	}
	if !tmpl.Has("end_date") || tmpl.Has("report_body") {
		t.Error("Has returned the wrong answer")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"unclosed", mustTemplate(t, "{{report_title"), ErrSyntax},
		{"stray close", mustTemplate(t, "text }} more"), ErrSyntax},
		{"bad name", mustTemplate(t, "{{1st}}"), ErrSyntax},
		{"not a zip", []byte("hello"), ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParse_SplitRuns(t *testing.T) {
	// Word often splits a placeholder across runs
	doc := documentHead +
		`<w:p><w:r><w:t>Hello {{</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>name</w:t></w:r><w:r><w:t>}}!</w:t></w:r></w:p>` +
		documentTail
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create(documentPart)
	w.Write([]byte(doc))
	zw.Close()

	tmpl, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out, err := tmpl.Render(map[string]string{"name": "Ann & Bo"}, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	rendered, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(rendered.Text()); got != "Hello Ann & Bo!" {
		t.Errorf("text = %q", got)
	}
}

func TestRender_TextAndBlocks(t *testing.T) {
	tmpl, err := Parse(mustTemplate(t, "{{report_title}}", "intro", "{{report_body}}", "{{missing_block}}", "tail {{unknown}}"))
	if err != nil {
		t.Fatal(err)
	}
	body := NewBody()
	body.Heading(1, "Section")
	body.Paragraph("a < b")
	body.Table([]string{"Device", "kWh"}, [][]string{{"Press", "12.5"}, {"Pump"}})
	if err := body.Image(testPNG(t, 200, 100), 150); err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	body.Caption("Figure 1")

	out, err := tmpl.Render(map[string]string{"report_title": "Report"}, map[string]*Body{"report_body": body})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	rendered, err := Open(out)
	if err != nil {
		t.Fatal(err)
	}
	text := rendered.Text()
	for _, want := range []string{"Report\n", "intro\n", "Section\n", "a < b\n", "Press\n", "Figure 1\n", "tail \n"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered text missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "{{") {
		t.Errorf("placeholders left in output:\n%s", text)
	}
	if rendered.Tables() != 1 {
		t.Errorf("tables = %d, want 1", rendered.Tables())
	}
	if media := rendered.Media(); len(media) != 1 || media[0] != "word/media/report_image1.png" {
		t.Errorf("media = %v", media)
	}

	doc := readPart(t, out, documentPart)
	// 150 mm wide, half as high
	if !strings.Contains(doc, `cx="5400000" cy="2700000"`) {
		t.Error("image extent not scaled to 150 mm")
	}
	if !strings.Contains(readPart(t, out, documentRelsPart), `Id="rIdReport1"`) {
		t.Error("image relationship missing")
	}
	if !strings.Contains(readPart(t, out, contentTypesPart), `Extension="png"`) {
		t.Error("png content type missing")
	}
}

func TestRender_Deterministic(t *testing.T) {
	tmpl, err := Parse(mustTemplate(t, "{{report_title}}", "{{report_body}}"))
	if err != nil {
		t.Fatal(err)
	}
	render := func() []byte {
		body := NewBody()
		if err := body.Image(testPNG(t, 10, 10), 100); err != nil {
			t.Fatal(err)
		}
		out, err := tmpl.Render(map[string]string{"report_title": "x"}, map[string]*Body{"report_body": body})
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	if !bytes.Equal(render(), render()) {
		t.Error("rendering the same input twice produced different packages")
	}
}

func TestRender_DrawingIDsAboveTemplate(t *testing.T) {
	base, err := Open(mustTemplate(t, "{{report_title}}", "{{report_body}}"))
	if err != nil {
		t.Fatal(err)
	}
	logo := `<w:p><w:r><w:drawing><wp:inline><wp:docPr id="1001" name="Logo"/></wp:inline></w:drawing></w:r></w:p>` +
		`<w:p><w:r><w:drawing><wp:inline><wp:docPr name="Stamp" id="1500"/></wp:inline></w:drawing></w:r></w:p>`
	data, err := base.write(strings.Replace(base.doc, "<w:body>", "<w:body>"+logo, 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	body := NewBody()
	for i := 0; i < 2; i++ {
		if err := body.Image(testPNG(t, 10, 10), 100); err != nil {
			t.Fatal(err)
		}
	}
	out, err := tmpl.Render(map[string]string{"report_title": "x"}, map[string]*Body{"report_body": body})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	ids := docPrRe.FindAllStringSubmatch(readPart(t, out, documentPart), -1)
	if len(ids) != 4 {
		t.Fatalf("found %d drawings, want 4", len(ids))
	}
	seen := make(map[string]bool)
	for _, m := range ids {
		if seen[m[1]] {
			t.Errorf("drawing id %s used twice", m[1])
		}
		seen[m[1]] = true
	}
	if !seen["1501"] || !seen["1502"] {
		t.Errorf("report drawings not numbered after 1500: %v", seen)
	}
}

func TestRender_BlockMustStandAlone(t *testing.T) {
	tmpl, err := Parse(mustTemplate(t, "see {{report_body}} here"))
	if err != nil {
		t.Fatal(err)
	}
	body := NewBody()
	body.Paragraph("x")
	if _, err := tmpl.Render(nil, map[string]*Body{"report_body": body}); !errors.Is(err, ErrBinding) {
		t.Errorf("Render error = %v, want ErrBinding", err)
	}
}

func TestBody_ImageRejectsNonPNG(t *testing.T) {
	if err := NewBody().Image([]byte("not an image"), 150); !errors.Is(err, ErrBinding) {
		t.Errorf("Image error = %v, want ErrBinding", err)
	}
}

func TestDefaultTemplate(t *testing.T) {
	data, err := DefaultTemplate()
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := Parse(data)
	if err != nil {
		t.Fatalf("default template does not parse: %v", err)
	}
	for _, p := range []string{"report_title", "start_date", "end_date", "report_body"} {
		if !tmpl.Has(p) {
			t.Errorf("default template lacks %s", p)
		}
	}
}
