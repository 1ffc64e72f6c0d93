package docgate

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hazyhaar/crible/extract"
	"github.com/hazyhaar/crible/textstat"
)

// Engine is the preflight gate. One instance is shared by all requests;
// evaluation is stateless, so it is safe for concurrent use.
type Engine struct {
	cfg  Config
	deny DenyList
	log  *slog.Logger
}

// New builds an engine, applying defaults and parsing the deny-list.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:  cfg,
		deny: ParseDenyList(cfg.DenyList),
		log:  cfg.Logger,
	}
}

// Thresholds returns the effective (defaulted, clamped) thresholds.
func (e *Engine) Thresholds() Thresholds { return e.cfg.Thresholds }

// Evaluate runs the full decision policy on one uploaded file. It never
// returns an error: panics and timeouts inside the analysis fold into a
// rejecting verdict with the preflight_error trigger. The same bytes always
// produce the same verdict and trigger set.
func (e *Engine) Evaluate(ctx context.Context, data []byte, filename string) Verdict {
	start := time.Now()
	details := &Details{
		SHA256:   HashBytes(data),
		Filename: filename,
	}

	// Operator override first: no content analysis, no exceptions.
	if e.deny.Contains(details.SHA256) {
		v := Verdict{Details: details}
		v.trigger(TriggerHashKillSwitch)
		details.EvalMillis = time.Since(start).Milliseconds()
		e.logDecision(&v)
		return v
	}

	done := make(chan Verdict, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("preflight panic",
					"sha256", details.SHA256,
					"panic", r,
					"stack", string(debug.Stack()))
				v := Verdict{Details: details}
				v.trigger(TriggerPreflightError)
				done <- v
			}
		}()
		done <- e.analyze(data, filename, details)
	}()

	var v Verdict
	timer := time.NewTimer(e.cfg.Timeout)
	defer timer.Stop()
	select {
	case v = <-done:
	case <-timer.C:
		e.log.Error("preflight timeout", "sha256", details.SHA256, "timeout", e.cfg.Timeout)
		v = Verdict{Details: details}
		v.trigger(TriggerPreflightError)
	case <-ctx.Done():
		e.log.Warn("preflight canceled", "sha256", details.SHA256, "cause", ctx.Err())
		v = Verdict{Details: details}
		v.trigger(TriggerPreflightError)
	}

	details.EvalMillis = time.Since(start).Milliseconds()
	e.logDecision(&v)
	return v
}

// analyze runs extraction and every content signal, appending triggers in
// policy order. Structural failures return early; everything after that
// point is computed even when an earlier rule already rejected, so the
// decision log always carries the full signal set for tuning.
func (e *Engine) analyze(data []byte, filename string, details *Details) Verdict {
	content, err := extract.Extract(data, filename)
	if err != nil {
		v := Verdict{Details: details}
		details.ParseError = err.Error()
		if content != nil {
			details.Format = content.Format
		}
		if errors.Is(err, extract.ErrEncrypted) {
			v.trigger(TriggerEncryptedPDF)
		} else {
			v.trigger(TriggerParserMalformed)
		}
		return v
	}
	return e.judge(content, details)
}

// judge applies the content rules to an already-extracted document.
func (e *Engine) judge(content *extract.Content, details *Details) Verdict {
	v := Verdict{OK: true, Details: details}
	th := e.cfg.Thresholds

	details.Format = content.Format
	details.PageCount = content.PageCount
	details.TextPages = content.TextPages
	details.ImageCount = content.ImageCount
	details.Producer = content.Producer
	details.Creator = content.Creator
	details.LowConfidence = content.LowConfidence
	details.DesignTool = IsDesignToolExport(content.Producer, content.Creator)

	text := content.FullText
	details.TextLen = len([]rune(strings.TrimSpace(text)))
	if details.TextLen < th.TextFloorChars {
		v.trigger(TriggerNoText)
		return v
	}

	streams := textstat.Tokenize(text)
	nonSpace := textstat.NonSpaceLen(text)
	raw := textstat.ComputeMetrics(streams.Raw, nonSpace)
	normalized := textstat.ComputeMetrics(streams.Normalized, nonSpace)
	details.Raw = &raw
	details.Normalized = &normalized

	// Two-of-N vote, each view judged on its own. One spiking ratio happens
	// on legitimate acronym-heavy resumes; two in the same view do not.
	if e.fragmentationVotes(raw) >= 2 || e.fragmentationVotes(normalized) >= 2 {
		v.trigger(TriggerFragmentation)
	}

	// Statistical locks need enough text to judge, and salvaged legacy-doc
	// text is too lossy for them to be fair.
	if details.TextLen >= th.StatsFloorChars && !content.LowConfidence {
		if !e.cfg.DisableDictionaryLock {
			cov, candidates := textstat.DictionaryCoverage(text)
			details.DictCoverage = cov
			details.DictCandidates = candidates
			if cov < th.MinDictCoverage {
				v.trigger(TriggerLowDictionary)
			}
		}
		if !e.cfg.DisableBigramLock {
			nll := textstat.BigramNLL(text)
			details.BigramNLL = nll
			if nll > th.MaxBigramNLL {
				v.trigger(TriggerImplausibleBigrams)
			}
		}
	}

	// Known design-export origin lowers the bar: any single relaxed
	// threshold hit in either view rejects.
	if details.DesignTool && (e.relaxedHit(raw) || e.relaxedHit(normalized)) {
		v.trigger(TriggerProducerTool)
	}

	if !e.cfg.DisableGapLock && content.Format == extract.FormatPDF && len(content.Runs) > 0 {
		gs := textstat.ComputeGapStats(statRuns(content.Runs), th.GapWideFactor)
		details.Gap = &gs
		if gs.RunCount >= th.GapMinRuns && gs.WideGapRatio > th.MaxWideGapRatio {
			v.trigger(TriggerGapPattern)
		}
	}

	return v
}

func (e *Engine) fragmentationVotes(m textstat.Metrics) int {
	th := e.cfg.Thresholds
	votes := 0
	if m.ShortTokenRatio >= th.ShortTokenRatio {
		votes++
	}
	if m.AdjacentShortRatio >= th.AdjacentShortRatio {
		votes++
	}
	if m.TokensPer100Chars >= th.TokensPer100Chars {
		votes++
	}
	if th.SingleCharRatio > 0 && m.SingleCharRatio >= th.SingleCharRatio {
		votes++
	}
	return votes
}

func (e *Engine) relaxedHit(m textstat.Metrics) bool {
	th := e.cfg.Thresholds
	return m.ShortTokenRatio >= th.ProducerShortTokenRatio ||
		m.AdjacentShortRatio >= th.ProducerAdjacentShortRatio ||
		m.TokensPer100Chars >= th.ProducerTokensPer100Chars
}

func statRuns(runs []extract.TextRun) []textstat.Run {
	out := make([]textstat.Run, len(runs))
	for i, r := range runs {
		out[i] = textstat.Run{X: r.X, Y: r.Y, W: r.W, S: r.S}
	}
	return out
}

func (e *Engine) logDecision(v *Verdict) {
	d := v.Details
	attrs := []any{
		"sha256", d.SHA256,
		"ok", v.OK,
		"format", string(d.Format),
		"text_len", d.TextLen,
		"ms", d.EvalMillis,
	}
	if len(v.Triggers) > 0 {
		attrs = append(attrs, "triggers", strings.Join(v.Triggers, ","))
	}
	e.log.Info("preflight decision", attrs...)

	if e.cfg.Debug {
		dbg := []any{"sha256", d.SHA256}
		if d.Raw != nil {
			dbg = append(dbg, "raw", *d.Raw, "normalized", *d.Normalized)
		}
		if d.Gap != nil {
			dbg = append(dbg, "gap", *d.Gap)
		}
		dbg = append(dbg,
			"dict_coverage", d.DictCoverage,
			"bigram_nll", d.BigramNLL,
			"design_tool", d.DesignTool,
			"producer", d.Producer)
		e.log.Debug("preflight metrics", dbg...)
	}
}
