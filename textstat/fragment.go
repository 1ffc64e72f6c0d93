package textstat

import "unicode/utf8"

// Metrics is one fragmentation profile of a token stream. Deterministic and
// pure: the same stream always yields bit-identical values.
type Metrics struct {
	TokenCount         int     `json:"token_count"`
	ShortTokenRatio    float64 `json:"short_token_ratio"`
	SingleCharRatio    float64 `json:"single_char_ratio"`
	AdjacentShortRatio float64 `json:"adjacent_short_seq_ratio"`
	TokensPer100Chars  float64 `json:"tokens_per_100_chars"`
}

// Extremely common short words excluded from the short-token ratio. A resume
// saying "of the team at Acme" is not fragmented; isolated letter pairs from
// a shredded word are. Kept deliberately small.
var shortStopwords = map[string]struct{}{
	"a": {}, "an": {}, "in": {}, "to": {}, "of": {}, "at": {}, "by": {},
	"or": {}, "as": {}, "is": {}, "it": {}, "we": {}, "be": {}, "on": {},
	"i": {},
	// french resumes are first-class input here
	"à": {}, "de": {}, "du": {}, "et": {}, "le": {}, "la": {}, "en": {},
}

// ComputeMetrics profiles one token stream. nonSpaceChars is the
// non-whitespace rune count of the source text, shared between the raw and
// normalized views so their densities stay comparable.
func ComputeMetrics(tokens []string, nonSpaceChars int) Metrics {
	m := Metrics{TokenCount: len(tokens)}
	n := len(tokens)
	if n == 0 {
		return m
	}

	short := 0
	single := 0
	nonStop := 0
	for _, t := range tokens {
		rl := utf8.RuneCountInString(t)
		if rl == 1 {
			single++
		}
		if isStopword(t) {
			continue
		}
		nonStop++
		if rl <= 2 {
			short++
		}
	}
	if nonStop > 0 {
		m.ShortTokenRatio = float64(short) / float64(nonStop)
	}
	m.SingleCharRatio = float64(single) / float64(n)

	// Pairs need two tokens; shorter streams have ratio exactly 0.
	if n >= 2 {
		pairs := 0
		prevShort := utf8.RuneCountInString(tokens[0]) <= 2
		for i := 1; i < n; i++ {
			curShort := utf8.RuneCountInString(tokens[i]) <= 2
			if prevShort && curShort {
				pairs++
			}
			prevShort = curShort
		}
		m.AdjacentShortRatio = float64(pairs) / float64(n-1)
	}

	if nonSpaceChars > 0 {
		m.TokensPer100Chars = float64(n) / float64(nonSpaceChars) * 100
	}
	return m
}

func isStopword(t string) bool {
	_, ok := shortStopwords[NormalizeToken(t)]
	return ok
}
