package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxDocxXMLDepth bounds element nesting in word/document.xml. Legitimate
// Word output stays well under this; deeply nested payloads are a decompression
// attack vector.
const maxDocxXMLDepth = 100

// maxDocxXMLBytes bounds the decompressed size of word/document.xml (zip bombs).
const maxDocxXMLBytes = 64 * 1024 * 1024

// extractDocx reads word/document.xml out of the OOXML zip container and
// walks its tokens. Run texts inside a paragraph are concatenated exactly as
// stored; paragraphs are joined with newlines. Drawing and legacy picture
// containers are counted as images.
func extractDocx(data []byte) (*Content, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("docx: %w: %v", ErrMalformed, err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("docx: %w: word/document.xml not found in archive", ErrMalformed)
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("docx: %w: open document.xml: %v", ErrMalformed, err)
	}
	defer rc.Close()

	paragraphs, imageCount, err := walkDocumentXML(io.LimitReader(rc, maxDocxXMLBytes))
	if err != nil {
		return nil, fmt.Errorf("docx: %w: %v", ErrMalformed, err)
	}

	text := strings.Join(paragraphs, "\n")
	c := &Content{
		Format:     FormatDocx,
		FullText:   text,
		PageCount:  1,
		ImageCount: imageCount,
	}
	if strings.TrimSpace(text) != "" {
		c.TextPages = 1
		c.PageTextLens = []int{len([]rune(text))}
	}
	return c, nil
}

// walkDocumentXML streams tokens from document.xml, collecting paragraph
// texts and counting drawing/pict elements. Depth is tracked per element to
// reject pathological nesting.
func walkDocumentXML(r io.Reader) ([]string, int, error) {
	decoder := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	var inParagraph bool
	var inText bool
	depth := 0
	imageCount := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("xml decode: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxDocxXMLDepth {
				return nil, 0, errors.New("xml nesting depth exceeded")
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				if inParagraph {
					inText = true
				}
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if inParagraph {
					current.WriteByte('\n')
				}
			case "drawing", "pict":
				imageCount++
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					inParagraph = false
					if p := current.String(); strings.TrimSpace(p) != "" {
						paragraphs = append(paragraphs, p)
					}
				}
			}
		}
	}
	return paragraphs, imageCount, nil
}
