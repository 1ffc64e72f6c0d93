package textstat

import (
	_ "embed"
	"strings"
	"unicode"
)

// words.txt is a few hundred common English words plus the French vocabulary
// that dominates resumes on this side of the product. One word per line,
// lowercase; # starts a comment.
//
//go:embed words.txt
var wordsFile string

var dictionary = func() map[string]struct{} {
	d := make(map[string]struct{}, 1024)
	for _, line := range strings.Split(wordsFile, "\n") {
		w := strings.TrimSpace(line)
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		d[w] = struct{}{}
	}
	return d
}()

// minDictWordLen is the shortest alphabetic run judged against the word list.
// Shorter runs carry no signal either way.
const minDictWordLen = 4

// DictionaryCoverage scans text for alphabetic runs of length >= 4 and
// returns the fraction found in the embedded word list, plus the number of
// candidate runs. With zero candidates the coverage is reported as 1.0 so the
// lock stays silent rather than rejecting on no evidence.
func DictionaryCoverage(text string) (ratio float64, candidates int) {
	found := 0
	var run []rune
	check := func() {
		if len(run) >= minDictWordLen {
			candidates++
			if _, ok := dictionary[strings.ToLower(string(run))]; ok {
				found++
			}
		}
		run = run[:0]
	}
	for _, r := range text {
		if unicode.IsLetter(r) {
			run = append(run, r)
		} else {
			check()
		}
	}
	check()

	if candidates == 0 {
		return 1.0, 0
	}
	return float64(found) / float64(candidates), candidates
}
