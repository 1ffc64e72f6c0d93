package extract

import "errors"

// Format identifies a supported resume document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
	FormatDoc  Format = "doc"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// Sentinel errors surfaced by the extractors. Callers match with errors.Is.
var (
	// ErrEncrypted means the document requires a password to read.
	ErrEncrypted = errors.New("document is encrypted")
	// ErrMalformed means the parser could not make sense of the file structure.
	ErrMalformed = errors.New("document is malformed")
	// ErrUnsupported means the format could not be identified.
	ErrUnsupported = errors.New("unsupported document format")
)

// TextRun is one positioned text-show operation from a PDF page.
// Coordinates are in PDF user space (origin bottom-left, Y grows upward).
type TextRun struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	Font string  `json:"font,omitempty"`
	Size float64 `json:"size,omitempty"`
	S    string  `json:"s"`
}

// Content is the result of extracting a document. FullText is assembled
// exactly as the parsers yielded it: run spacing comes from glyph geometry
// (PDF) or element boundaries (DOCX/HTML), never from whitespace repair.
type Content struct {
	Format       Format    `json:"format"`
	FullText     string    `json:"full_text"`
	PageCount    int       `json:"page_count"`
	TextPages    int       `json:"text_pages"`
	PageTextLens []int     `json:"page_text_lens,omitempty"`
	ImageCount   int       `json:"image_count"`
	Encrypted    bool      `json:"encrypted"`
	Producer     string    `json:"producer,omitempty"`
	Creator      string    `json:"creator,omitempty"`
	Runs         []TextRun `json:"-"`

	// LowConfidence marks best-effort extractions (legacy .doc) whose text
	// statistics should not trigger hard rejections on their own.
	LowConfidence bool `json:"low_confidence,omitempty"`
}
