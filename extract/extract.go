// Package extract turns uploaded resume files (PDF, DOCX, legacy DOC, TXT,
// HTML) into a Content record: full text, page/image counts, producer
// metadata and positioned PDF text runs. It deliberately performs no
// whitespace repair; downstream quality checks depend on seeing the token
// stream exactly as the file yields it.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Extract sniffs the format of data and runs the matching extractor.
// The filename is only consulted when magic bytes are ambiguous (txt vs html).
func Extract(data []byte, filename string) (*Content, error) {
	format, err := DetectFormat(data, filename)
	if err != nil {
		return nil, err
	}
	return ExtractAs(data, format)
}

// ExtractAs runs the extractor for an already-known format.
func ExtractAs(data []byte, format Format) (*Content, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDocx:
		return extractDocx(data)
	case FormatDoc:
		return extractDoc(data)
	case FormatTXT:
		return extractTXT(data)
	case FormatHTML:
		return extractHTML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

// DetectFormat identifies the document type from magic bytes, falling back
// to the file extension for plain-text-like content. Content sniffing wins
// over the extension: a .docx that is really a PDF is treated as a PDF.
func DetectFormat(data []byte, filename string) (Format, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF, nil
	case bytes.HasPrefix(data, zipMagic):
		// Any OOXML container. word/document.xml presence is checked by
		// the docx extractor itself.
		return FormatDocx, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatDoc, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md":
		return FormatTXT, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".pdf", ".docx", ".doc":
		// Extension claims a binary format but the magic does not match.
		return "", fmt.Errorf("%w: %s content does not match its extension", ErrMalformed, filepath.Ext(filename))
	}

	if looksLikeHTML(data) {
		return FormatHTML, nil
	}
	if isMostlyText(data) {
		return FormatTXT, nil
	}
	return "", ErrUnsupported
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype html"))
}

// isMostlyText reports whether the first KB of data is printable text.
func isMostlyText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	printable := 0
	for _, b := range head {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b != 0x7F) {
			printable++
		}
	}
	return float64(printable)/float64(len(head)) > 0.9
}

func extractTXT(data []byte) (*Content, error) {
	text := strings.ToValidUTF8(string(data), "�")
	c := &Content{
		Format:    FormatTXT,
		FullText:  text,
		PageCount: 1,
	}
	if strings.TrimSpace(text) != "" {
		c.TextPages = 1
		c.PageTextLens = []int{len([]rune(text))}
	}
	return c, nil
}
