package textstat

import (
	"math"
	"strings"
	"unicode"
)

// Relative frequencies of the ~50 most common English letter bigrams
// (Norvig's Google books counts, rounded). Everything outside the table gets
// bigramEpsilon so a single rare pair cannot produce an infinite penalty.
var bigramFreq = map[string]float64{
	"th": 0.0356, "he": 0.0307, "in": 0.0243, "er": 0.0205, "an": 0.0199,
	"re": 0.0185, "on": 0.0176, "at": 0.0149, "en": 0.0145, "nd": 0.0135,
	"ti": 0.0134, "es": 0.0134, "or": 0.0128, "te": 0.0120, "of": 0.0117,
	"ed": 0.0117, "is": 0.0113, "it": 0.0112, "al": 0.0109, "ar": 0.0107,
	"st": 0.0105, "to": 0.0104, "nt": 0.0104, "ng": 0.0095, "se": 0.0093,
	"ha": 0.0093, "as": 0.0087, "ou": 0.0087, "io": 0.0083, "le": 0.0083,
	"ve": 0.0083, "co": 0.0079, "me": 0.0079, "de": 0.0076, "hi": 0.0076,
	"ri": 0.0073, "ro": 0.0073, "ic": 0.0070, "ne": 0.0069, "ea": 0.0069,
	"ra": 0.0069, "ce": 0.0065, "li": 0.0062, "ch": 0.0060, "ll": 0.0058,
	"be": 0.0058, "ma": 0.0057, "si": 0.0055, "om": 0.0055, "ur": 0.0054,
}

const bigramEpsilon = 1e-6

// BigramNLL scores the plausibility of letter adjacency in text. The text is
// folded to lowercase letters and single spaces; every adjacent letter pair
// contributes -log10 of its frequency, and the sum is averaged over the total
// folded character count. Genuine English prose lands around 2.5; scrambled
// or glyph-soup extraction climbs past 4. Returns 0 when the folded text is
// empty (nothing to judge).
func BigramNLL(text string) float64 {
	folded := foldToLetters(text)
	if len(folded) == 0 {
		return 0
	}

	nll := 0.0
	for i := 1; i < len(folded); i++ {
		a, b := folded[i-1], folded[i]
		if a == ' ' || b == ' ' {
			continue
		}
		p, ok := bigramFreq[string([]byte{a, b})]
		if !ok {
			p = bigramEpsilon
		}
		nll += -math.Log10(p)
	}
	return nll / float64(len(folded))
}

// foldToLetters lowercases, maps accented letters to their ASCII base where
// trivial, keeps a-z and collapses everything else to single spaces.
func foldToLetters(text string) []byte {
	var sb strings.Builder
	sb.Grow(len(text))
	prevSpace := true
	for _, r := range text {
		r = unicode.ToLower(r)
		if d, ok := accentFold[r]; ok {
			r = d
		}
		if r >= 'a' && r <= 'z' {
			sb.WriteByte(byte(r))
			prevSpace = false
			continue
		}
		if !prevSpace {
			sb.WriteByte(' ')
			prevSpace = true
		}
	}
	out := sb.String()
	out = strings.TrimSuffix(out, " ")
	return []byte(out)
}

// The accented letters that actually occur in French resumes. A full
// decomposition pass is overkill for a plausibility score.
var accentFold = map[rune]rune{
	'à': 'a', 'â': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'î': 'i', 'ï': 'i',
	'ô': 'o', 'ö': 'o',
	'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c',
}
