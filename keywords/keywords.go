// Package keywords compares an extracted resume text against a job
// description: which of the job's salient terms the resume already carries,
// which are missing, and suggested bullets for the gaps. It only ever runs
// on text the preflight gate accepted.
package keywords

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/hazyhaar/crible/textstat"
)

// maxKeywords caps how many job-description terms are considered.
const maxKeywords = 25

// minFuzzyLen is the shortest keyword eligible for fuzzy matching; below it
// one edit turns a word into a different word too easily.
const minFuzzyLen = 5

// Match is one job keyword found in the resume.
type Match struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
	Fuzzy   bool   `json:"fuzzy,omitempty"`
}

// Report is the outcome of one resume/job comparison.
type Report struct {
	Matched     []Match  `json:"matched"`
	Missing     []string `json:"missing"`
	Suggestions []string `json:"suggestions,omitempty"`
	Score       float64  `json:"score"`
}

// Function words carrying no keyword signal, english and french mixed.
var functionWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "you": {}, "your": {},
	"our": {}, "are": {}, "will": {}, "have": {}, "has": {}, "this": {},
	"that": {}, "from": {}, "into": {}, "not": {}, "all": {}, "can": {},
	"who": {}, "what": {}, "their": {}, "they": {}, "them": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "about": {}, "more": {},
	"other": {}, "such": {}, "than": {}, "then": {}, "these": {},
	"those": {}, "very": {}, "well": {}, "within": {}, "would": {},
	"should": {}, "must": {}, "may": {}, "also": {}, "its": {}, "his": {},
	"her": {}, "she": {}, "him": {}, "was": {}, "were": {}, "been": {},
	"being": {}, "but": {}, "had": {}, "how": {}, "out": {}, "per": {},
	"les": {}, "des": {}, "une": {}, "dans": {}, "pour": {}, "avec": {},
	"sur": {}, "par": {}, "est": {}, "sont": {}, "vous": {}, "nous": {},
	"notre": {}, "votre": {}, "nos": {}, "vos": {}, "aux": {}, "ses": {},
	"cette": {}, "ces": {}, "plus": {}, "tout": {}, "tous": {},
	"toute": {}, "toutes": {}, "ainsi": {}, "afin": {}, "dont": {},
	"être": {}, "avoir": {}, "faire": {}, "comme": {}, "entre": {},
	"chez": {}, "vers": {}, "sans": {}, "sous": {}, "selon": {},
}

// Analyze ranks the job description's terms by frequency and checks each
// against the resume's normalized tokens, exactly first, then within one
// edit for longer terms.
func Analyze(resumeText, jobText string) Report {
	jobKeywords := rankKeywords(jobText)

	resumeCounts := make(map[string]int)
	for _, tok := range textstat.Tokenize(resumeText).Normalized {
		resumeCounts[tok]++
	}

	var report Report
	for _, kw := range jobKeywords {
		if n, ok := resumeCounts[kw]; ok {
			report.Matched = append(report.Matched, Match{Keyword: kw, Count: n})
			continue
		}
		if utf8.RuneCountInString(kw) >= minFuzzyLen {
			if n := fuzzyCount(kw, resumeCounts); n > 0 {
				report.Matched = append(report.Matched, Match{Keyword: kw, Count: n, Fuzzy: true})
				continue
			}
		}
		report.Missing = append(report.Missing, kw)
	}

	if len(jobKeywords) > 0 {
		report.Score = float64(len(report.Matched)) / float64(len(jobKeywords))
	}
	report.Suggestions = suggestions(report.Missing)
	return report
}

// rankKeywords returns the job description's candidate terms, most frequent
// first, ties broken alphabetically for stable output.
func rankKeywords(jobText string) []string {
	counts := make(map[string]int)
	for _, tok := range textstat.Tokenize(jobText).Normalized {
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		if _, stop := functionWords[tok]; stop {
			continue
		}
		if !hasLetter(tok) {
			continue
		}
		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxKeywords {
		terms = terms[:maxKeywords]
	}
	return terms
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || r >= 0x80 {
			return true
		}
	}
	return false
}

func fuzzyCount(keyword string, counts map[string]int) int {
	total := 0
	for tok, n := range counts {
		if withinOneEdit(keyword, tok) {
			total += n
		}
	}
	return total
}

// withinOneEdit reports whether a and b differ by at most one insertion,
// deletion or substitution. Bounded scan, no full edit-distance matrix.
func withinOneEdit(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la > lb {
		ra, rb = rb, ra
		la, lb = lb, la
	}
	if lb-la > 1 {
		return false
	}

	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if ra[i] == rb[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if la == lb {
			i++ // substitution
		}
		j++ // insertion into the shorter string
	}
	edits += lb - j
	return edits <= 1
}

var bulletTemplates = []string{
	"Add a bullet showing hands-on experience with %q, ideally with a measurable result.",
	"Mention %q in your skills or experience section if you have worked with it.",
	"Describe a project where you used %q and what it changed for the team.",
}

func suggestions(missing []string) []string {
	out := make([]string, 0, len(missing))
	for i, kw := range missing {
		out = append(out, fmt.Sprintf(bulletTemplates[i%len(bulletTemplates)], kw))
	}
	return out
}
