package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildDocx builds a minimal OOXML container holding the given document.xml.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	docx := buildDocx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`)

	tests := []struct {
		name     string
		data     []byte
		filename string
		want     Format
	}{
		{"pdf magic", []byte("%PDF-1.7\nrest"), "cv.pdf", FormatPDF},
		{"zip magic", docx, "cv.docx", FormatDocx},
		{"ole magic", append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 512)...), "cv.doc", FormatDoc},
		{"txt extension", []byte("plain resume text"), "cv.txt", FormatTXT},
		{"html extension", []byte("<p>hi</p>"), "cv.html", FormatHTML},
		{"html sniffed", []byte("<!DOCTYPE html><html><body>x</body></html>"), "download", FormatHTML},
		{"text sniffed", []byte("Jane Doe\nSoftware Engineer\n"), "noext", FormatTXT},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.data, tt.filename)
		if err != nil {
			t.Errorf("%s: DetectFormat: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: DetectFormat = %q, want %q", tt.name, got, tt.want)
		}
	}

	// A .pdf extension whose content is not a PDF must be malformed, not txt.
	if _, err := DetectFormat([]byte("not a pdf at all"), "cv.pdf"); !errors.Is(err, ErrMalformed) {
		t.Errorf("mismatched pdf extension: got %v, want ErrMalformed", err)
	}
	if _, err := DetectFormat([]byte{0x00, 0x01, 0x02, 0xFF}, "blob"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("binary blob: got %v, want ErrUnsupported", err)
	}
}

func TestExtractDocx(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t>Senior</w:t></w:r><w:r><w:t> Engineer</w:t></w:r></w:p>
    <w:p><w:r><w:t>Paris</w:t><w:tab/><w:t>France</w:t></w:r></w:p>
  </w:body>
</w:document>`

	c, err := Extract(buildDocx(t, docXML), "cv.docx")
	if err != nil {
		t.Fatal(err)
	}
	if c.Format != FormatDocx {
		t.Fatalf("format = %q, want docx", c.Format)
	}
	// WHAT: run texts inside a paragraph concatenate without inserted spaces.
	// WHY: downstream fragmentation metrics must see the file's own spacing.
	if !strings.Contains(c.FullText, "Senior Engineer") {
		t.Errorf("expected run texts joined as stored, got %q", c.FullText)
	}
	if !strings.Contains(c.FullText, "Paris\tFrance") {
		t.Errorf("expected tab preserved, got %q", c.FullText)
	}
	if c.TextPages != 1 || len(c.PageTextLens) != 1 {
		t.Errorf("TextPages=%d PageTextLens=%v, want one text page", c.TextPages, c.PageTextLens)
	}
}

func TestExtractDocxDrawings(t *testing.T) {
	docXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:drawing></w:drawing></w:r></w:p>
    <w:p><w:r><w:pict></w:pict></w:r></w:p>
  </w:body>
</w:document>`

	c, err := Extract(buildDocx(t, docXML), "cv.docx")
	if err != nil {
		t.Fatal(err)
	}
	if c.ImageCount != 2 {
		t.Errorf("ImageCount = %d, want 2", c.ImageCount)
	}
	if c.TextPages != 0 {
		t.Errorf("TextPages = %d, want 0 for image-only document", c.TextPages)
	}
}

func TestExtractDocxDepthGuard(t *testing.T) {
	// WHY: unbounded nesting in document.xml is a decompression attack vector.
	var sb strings.Builder
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)
	for i := 0; i < 150; i++ {
		sb.WriteString("<w:x>")
	}
	for i := 0; i < 150; i++ {
		sb.WriteString("</w:x>")
	}
	sb.WriteString(`</w:document>`)

	_, err := Extract(buildDocx(t, sb.String()), "cv.docx")
	if err == nil || !strings.Contains(err.Error(), "nesting depth") {
		t.Fatalf("expected nesting depth error, got %v", err)
	}
}

func TestExtractDocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("other.xml")
	f.Write([]byte("<x/>"))
	w.Close()

	_, err := Extract(buf.Bytes(), "cv.docx")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractTXT(t *testing.T) {
	c, err := Extract([]byte("Jane Doe\nEngineer"), "cv.txt")
	if err != nil {
		t.Fatal(err)
	}
	if c.FullText != "Jane Doe\nEngineer" {
		t.Errorf("text altered: %q", c.FullText)
	}
}

func TestExtractHTML(t *testing.T) {
	page := `<!DOCTYPE html><html><head><style>p{color:red}</style></head>
<body><script>var x=1;</script><h1>Jane Doe</h1><p>Engineer at <b>Acme</b></p><img src="p.png"></body></html>`

	c, err := Extract([]byte(page), "cv.html")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(c.FullText, "color:red") || strings.Contains(c.FullText, "var x") {
		t.Errorf("script/style leaked into text: %q", c.FullText)
	}
	if !strings.Contains(c.FullText, "Jane Doe") || !strings.Contains(c.FullText, "Acme") {
		t.Errorf("missing visible text: %q", c.FullText)
	}
	if c.ImageCount != 1 {
		t.Errorf("ImageCount = %d, want 1", c.ImageCount)
	}
}

func TestExtractDocGarbage(t *testing.T) {
	// OLE magic followed by junk: the CFB reader must fail cleanly.
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0x42}, 64)...)
	_, err := Extract(data, "cv.doc")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestSalvageText(t *testing.T) {
	// Single-byte text embedded between structure bytes.
	stream := append([]byte{0x01, 0x02, 0x03}, []byte("Professional experience")...)
	stream = append(stream, 0x00, 0xFE)
	got := salvageText(stream)
	if !strings.Contains(got, "Professional experience") {
		t.Errorf("single-byte salvage failed: %q", got)
	}

	// UTF-16LE text should win when it recovers more characters.
	var wide []byte
	for _, r := range "Expérience professionnelle chez Acme" {
		wide = append(wide, byte(r), byte(r>>8))
	}
	stream = append([]byte{0x01, 0x00, 0x02, 0x00}, wide...)
	got = salvageText(stream)
	if !strings.Contains(got, "Expérience professionnelle") {
		t.Errorf("utf-16 salvage failed: %q", got)
	}
}

func TestAssemblePageText(t *testing.T) {
	// Three runs on one line: "Jane" + "Doe" separated by a real word gap,
	// then "Engineer" on the next line. Widths give ~5pt glyphs.
	runs := []TextRun{
		{Page: 1, X: 10, Y: 700, W: 20, S: "Jane"},
		{Page: 1, X: 34, Y: 700, W: 15, S: "Doe"}, // gap 4pt > 0.3*5pt
		{Page: 1, X: 10, Y: 680, W: 40, S: "Engineer"},
	}
	got := assemblePageText(runs, 1)
	if got != "Jane Doe\nEngineer" {
		t.Fatalf("assemblePageText = %q", got)
	}
}

func TestAssemblePageTextGlyphRuns(t *testing.T) {
	// WHAT: glyph-per-run output with near-zero gaps concatenates into one word.
	// WHY: spacing comes from geometry, not from run boundaries.
	runs := []TextRun{
		{Page: 1, X: 10.0, Y: 700, W: 5, S: "J"},
		{Page: 1, X: 15.1, Y: 700, W: 5, S: "a"},
		{Page: 1, X: 20.2, Y: 700, W: 5, S: "n"},
		{Page: 1, X: 25.3, Y: 700, W: 5, S: "e"},
	}
	got := assemblePageText(runs, 1)
	if got != "Jane" {
		t.Fatalf("assemblePageText = %q, want %q", got, "Jane")
	}
}

func TestAssemblePageTextUnordered(t *testing.T) {
	// Runs arrive in content-stream order, not reading order.
	runs := []TextRun{
		{Page: 1, X: 10, Y: 650, W: 30, S: "second"},
		{Page: 1, X: 10, Y: 700, W: 25, S: "first"},
	}
	got := assemblePageText(runs, 1)
	if got != "first\nsecond" {
		t.Fatalf("assemblePageText = %q", got)
	}
}

// buildPDF assembles a structurally valid PDF with one text stream per page,
// computing the xref offsets as it goes.
func buildPDF(t *testing.T, pageTexts ...string) []byte {
	t.Helper()
	n := len(pageTexts)
	fontObj := 3 + 2*n
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}

	var buf bytes.Buffer
	var offsets []int
	obj := func(format string, args ...any) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, format, args...)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), n)
	for i := 0; i < n; i++ {
		obj("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			3+i, fontObj, 3+n+i)
	}
	for i, text := range pageTexts {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", 3+n+i, len(stream), stream)
	}
	obj("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj)

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFMultiPage(t *testing.T) {
	data := buildPDF(t,
		"Seasoned engineer with production experience",
		"Architect of several distributed systems")

	c, err := Extract(data, "cv.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if c.Format != FormatPDF || c.PageCount != 2 {
		t.Fatalf("format=%q pages=%d, want pdf/2", c.Format, c.PageCount)
	}
	if len(c.PageTextLens) != 2 {
		t.Fatalf("PageTextLens = %v, want two entries", c.PageTextLens)
	}
	if !strings.Contains(c.FullText, "engineer") || !strings.Contains(c.FullText, "distributed") {
		t.Errorf("missing page text: %q", c.FullText)
	}
	if c.TextPages != 2 {
		t.Errorf("TextPages = %d, want 2", c.TextPages)
	}
}

func TestCollectRunsRecovers(t *testing.T) {
	// WHAT: a panic inside one page's walk is contained to that page.
	// WHY: a single broken content stream must not void the whole document.
	runs, ok := collectRuns(func() []TextRun { panic("broken content stream") })
	if ok || runs != nil {
		t.Fatalf("panic not contained: ok=%v runs=%v", ok, runs)
	}

	runs, ok = collectRuns(func() []TextRun {
		return []TextRun{{Page: 1, X: 10, Y: 700, W: 5, S: "J"}}
	})
	if !ok || len(runs) != 1 {
		t.Fatalf("clean page mangled: ok=%v runs=%v", ok, runs)
	}
}

func TestFIBEncryptedFlag(t *testing.T) {
	stream := make([]byte, 64)
	stream[0x0B] = 0x01 // fEncrypted bit of the 16-bit flags at 0x0A
	if !fibEncrypted(stream) {
		t.Error("fEncrypted bit not detected")
	}
	stream[0x0B] = 0x00
	if fibEncrypted(stream) {
		t.Error("false positive on clear flags")
	}
}
