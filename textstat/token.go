// Package textstat computes the statistical signals used to judge whether
// extracted resume text is genuine prose: parallel token streams,
// fragmentation ratios, dictionary coverage, character-bigram plausibility
// and glyph gap statistics for positioned PDF runs.
package textstat

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Streams holds the two parallel token views of one text. Raw preserves the
// original characters; Normalized is NFKC-folded, lowercased and stripped of
// edge punctuation. Fragmentation behaves differently under normalization, so
// both views are always inspected.
type Streams struct {
	Raw        []string
	Normalized []string
}

// Tokenize splits text on whitespace and derives the normalized stream.
// Tokens that normalize to nothing (pure punctuation) are dropped from the
// normalized view only.
func Tokenize(text string) Streams {
	raw := strings.Fields(text)
	normalized := make([]string, 0, len(raw))
	for _, tok := range raw {
		if n := NormalizeToken(tok); n != "" {
			normalized = append(normalized, n)
		}
	}
	return Streams{Raw: raw, Normalized: normalized}
}

// NormalizeToken applies NFKC folding, lowercases and trims leading/trailing
// punctuation and symbols. Inner punctuation (hyphens, apostrophes) stays.
func NormalizeToken(tok string) string {
	t := norm.NFKC.String(tok)
	t = strings.ToLower(t)
	return strings.TrimFunc(t, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// NonSpaceLen counts non-whitespace runes in text.
func NonSpaceLen(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
