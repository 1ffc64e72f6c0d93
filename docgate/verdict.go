// Package docgate decides whether an uploaded resume file contains genuine
// machine-readable text. It combines structural parsing, fragmentation
// metrics over two token streams, dictionary and bigram plausibility locks,
// PDF producer fingerprints and glyph gap statistics into a single
// accept/reject verdict. The engine never returns an error: every failure
// mode folds into a rejecting verdict.
package docgate

import (
	"github.com/hazyhaar/crible/extract"
	"github.com/hazyhaar/crible/textstat"
)

// Trigger names, stable identifiers for logs and threshold tuning. They are
// never shown to end users.
const (
	TriggerHashKillSwitch     = "hash_kill_switch"
	TriggerEncryptedPDF       = "encrypted_pdf"
	TriggerParserMalformed    = "parser_malformed"
	TriggerNoText             = "no_text"
	TriggerFragmentation      = "figma_like_fragmentation"
	TriggerLowDictionary      = "low_dictionary_coverage"
	TriggerImplausibleBigrams = "implausible_bigrams"
	TriggerProducerTool       = "producer_figma_canva"
	TriggerGapPattern         = "figma_gap_pattern"
	TriggerPreflightError     = "preflight_error"
)

// UserRejectMessage is the one canonical message shown to end users on any
// rejection. Internal metric values and trigger names stay out of it.
const UserRejectMessage = `We could not read the text of this file.

This usually happens when:
- the document is a scan or a photo without a real text layer,
- it was exported from a graphic design tool (Figma, Canva, ...) that turned the text into shapes,
- the file is password-protected or damaged.

Please export your resume again as a text-based PDF or DOCX (for example via "Save as PDF" in your word processor) and upload that version.`

// Details carries every computed signal for logging and threshold tuning.
// It is recorded in the decision log but never serialized into API responses.
type Details struct {
	SHA256     string            `json:"sha256"`
	Filename   string            `json:"filename,omitempty"`
	Format     extract.Format    `json:"format,omitempty"`
	TextLen    int               `json:"text_len"`
	PageCount  int               `json:"page_count,omitempty"`
	TextPages  int               `json:"text_pages,omitempty"`
	ImageCount int               `json:"image_count,omitempty"`
	Producer   string            `json:"producer,omitempty"`
	Creator    string            `json:"creator,omitempty"`
	DesignTool bool              `json:"design_tool,omitempty"`
	Raw        *textstat.Metrics `json:"raw,omitempty"`
	Normalized *textstat.Metrics `json:"normalized,omitempty"`

	DictCoverage   float64            `json:"dict_coverage,omitempty"`
	DictCandidates int                `json:"dict_candidates,omitempty"`
	BigramNLL      float64            `json:"bigram_nll,omitempty"`
	Gap            *textstat.GapStats `json:"gap,omitempty"`

	LowConfidence bool   `json:"low_confidence,omitempty"`
	ParseError    string `json:"parse_error,omitempty"`
	EvalMillis    int64  `json:"eval_ms"`
}

// Verdict is the preflight decision. OK means the file may proceed to
// keyword analysis. On rejection UserMessage holds the canonical text and
// Triggers lists every rule that fired, in policy order.
type Verdict struct {
	OK          bool     `json:"ok"`
	Triggers    []string `json:"-"`
	UserMessage string   `json:"user_message,omitempty"`
	Details     *Details `json:"-"`
}

func (v *Verdict) trigger(name string) {
	v.OK = false
	v.UserMessage = UserRejectMessage
	for _, t := range v.Triggers {
		if t == name {
			return
		}
	}
	v.Triggers = append(v.Triggers, name)
}

// Triggered reports whether the named rule fired.
func (v *Verdict) Triggered(name string) bool {
	for _, t := range v.Triggers {
		if t == name {
			return true
		}
	}
	return false
}
