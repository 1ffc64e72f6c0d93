package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// extractDoc does best-effort text salvage from a legacy Word binary (CFB
// container). There is no full FIB/piece-table parse here; the WordDocument
// stream is scanned for printable runs in both CP1252-ish single-byte and
// UTF-16LE encodings, and the richer of the two wins. The result is always
// marked LowConfidence.
func extractDoc(data []byte) (*Content, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("doc: %w: %v", ErrMalformed, err)
	}

	var wordStream []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			// OOXML wrapped in a CFB envelope with agile encryption.
			return &Content{Format: FormatDoc, Encrypted: true}, fmt.Errorf("doc: %w", ErrEncrypted)
		case "WordDocument":
			wordStream, _ = io.ReadAll(entry)
		}
	}
	if wordStream == nil {
		return nil, fmt.Errorf("doc: %w: WordDocument stream not found", ErrMalformed)
	}

	if fibEncrypted(wordStream) {
		return &Content{Format: FormatDoc, Encrypted: true}, fmt.Errorf("doc: %w", ErrEncrypted)
	}

	text := salvageText(wordStream)
	c := &Content{
		Format:        FormatDoc,
		FullText:      text,
		PageCount:     1,
		LowConfidence: true,
	}
	if strings.TrimSpace(text) != "" {
		c.TextPages = 1
		c.PageTextLens = []int{len([]rune(text))}
	}
	return c, nil
}

// fibEncrypted checks the fEncrypted bit in the FIB base flags at offset 0x0A.
func fibEncrypted(stream []byte) bool {
	if len(stream) < 12 {
		return false
	}
	flags := binary.LittleEndian.Uint16(stream[0x0A:])
	return flags&0x0100 != 0
}

// salvageText extracts readable runs from the WordDocument stream, trying
// single-byte and UTF-16LE interpretations and keeping whichever recovers
// more characters.
func salvageText(stream []byte) string {
	ascii := salvageSingleByte(stream)
	wide := salvageUTF16(stream)
	if len([]rune(wide)) > len([]rune(ascii)) {
		return wide
	}
	return ascii
}

// minSalvageRun is the shortest printable run worth keeping. Shorter runs are
// overwhelmingly structure bytes that happen to be printable.
const minSalvageRun = 4

func salvageSingleByte(stream []byte) string {
	var sb strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minSalvageRun {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(run)
		}
		run = run[:0]
	}
	for _, b := range stream {
		if b == '\r' {
			b = '\n'
		}
		if b == '\n' || b == '\t' || (b >= 0x20 && b < 0x7F) {
			run = append(run, b)
		} else {
			flush()
		}
	}
	flush()
	return sb.String()
}

func salvageUTF16(stream []byte) string {
	var sb strings.Builder
	var run []uint16
	flush := func() {
		if len(run) >= minSalvageRun {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(string(utf16.Decode(run)))
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(stream); i += 2 {
		u := binary.LittleEndian.Uint16(stream[i:])
		if u == '\r' {
			u = '\n'
		}
		printable := u == '\n' || u == '\t' || (u >= 0x20 && u != 0x7F && u < 0xD800)
		if printable {
			run = append(run, u)
		} else {
			flush()
		}
	}
	flush()
	return sb.String()
}
