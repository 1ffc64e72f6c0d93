package docgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/crible/extract"
	"github.com/hazyhaar/crible/textstat"
)

// cleanProse is ordinary resume prose, above the statistical floor, with
// normal word lengths and spacing.
const cleanProse = "Led the migration of the reporting platform to a managed cloud environment, reducing monthly costs and improving deployment reliability across three teams. " +
	"Designed and delivered customer facing services with strong attention to performance and security. " +
	"Mentored junior engineers and coordinated releases with product management and support teams across several international offices. " +
	"Wrote technical documentation and training material for new team members and presented results to stakeholders during quarterly planning. " +
	"Improved the quality of the testing process and reduced the number of production incidents through better monitoring and automation."

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return New(cfg)
}

func TestCleanProseAccepted(t *testing.T) {
	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), []byte(cleanProse), "cv.txt")
	if !v.OK {
		t.Fatalf("clean prose rejected, triggers=%v", v.Triggers)
	}
	if len(v.Triggers) != 0 || v.UserMessage != "" {
		t.Errorf("accept must carry no triggers or message: %+v", v)
	}
}

func TestLetterSpacedRejected(t *testing.T) {
	// Simulates a letter-fragmented design-tool export: one space between
	// every character of otherwise normal prose.
	var sb strings.Builder
	for _, r := range cleanProse {
		if r == ' ' {
			continue
		}
		sb.WriteRune(r)
		sb.WriteByte(' ')
	}

	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), []byte(sb.String()), "cv.txt")
	if v.OK {
		t.Fatal("letter-spaced text accepted")
	}
	if !v.Triggered(TriggerFragmentation) {
		t.Errorf("expected %s, got %v", TriggerFragmentation, v.Triggers)
	}
	if v.UserMessage != UserRejectMessage {
		t.Errorf("rejection must carry the canonical message")
	}
}

func TestKillSwitchOverridesContent(t *testing.T) {
	data := []byte(cleanProse)

	e := newTestEngine(t, Config{DenyList: HashBytes(data)})
	v := e.Evaluate(context.Background(), data, "cv.txt")
	if v.OK {
		t.Fatal("denied hash accepted")
	}
	// WHAT: the kill-switch fires even on pristine prose.
	// WHY: it is a content-independent operator override.
	if !reflect.DeepEqual(v.Triggers, []string{TriggerHashKillSwitch}) {
		t.Errorf("triggers = %v, want only %s", v.Triggers, TriggerHashKillSwitch)
	}
}

func TestUnderTextFloor(t *testing.T) {
	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), []byte("Jane Doe"), "cv.txt")
	if v.OK || !v.Triggered(TriggerNoText) {
		t.Fatalf("under-floor document: ok=%v triggers=%v", v.OK, v.Triggers)
	}
}

func TestStructuralGarbage(t *testing.T) {
	// Bytes with no recognizable signature must reject structurally, never
	// panic or fall through to content analysis.
	blob := []byte{0x00, 0xFF, 0x13, 0x37, 0x00, 0x01}
	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), blob, "payload.bin")
	if v.OK || !v.Triggered(TriggerParserMalformed) {
		t.Fatalf("garbage bytes: ok=%v triggers=%v", v.OK, v.Triggers)
	}
}

func TestIdempotence(t *testing.T) {
	data := []byte("x y z " + cleanProse)
	e := newTestEngine(t, Config{})
	v1 := e.Evaluate(context.Background(), data, "cv.txt")
	v2 := e.Evaluate(context.Background(), data, "cv.txt")
	if v1.OK != v2.OK || !reflect.DeepEqual(v1.Triggers, v2.Triggers) {
		t.Fatalf("verdict not stable: %v/%v vs %v/%v", v1.OK, v1.Triggers, v2.OK, v2.Triggers)
	}
}

func TestStatisticalLocksOnGlyphSoup(t *testing.T) {
	// Normal token lengths and spacing, so the fragmentation vote stays
	// quiet, but the letters are noise: only the dictionary and bigram
	// locks can catch this.
	soup := strings.Repeat("zqxv qzkx vqzx kxqz xvqk zkvq ", 25)

	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), []byte(soup), "cv.txt")
	if v.OK {
		t.Fatal("glyph soup accepted")
	}
	if !v.Triggered(TriggerLowDictionary) {
		t.Errorf("expected %s, got %v", TriggerLowDictionary, v.Triggers)
	}
	if !v.Triggered(TriggerImplausibleBigrams) {
		t.Errorf("expected %s, got %v", TriggerImplausibleBigrams, v.Triggers)
	}
	if v.Triggered(TriggerFragmentation) {
		t.Errorf("fragmentation should stay quiet on normal-length tokens: %v", v.Triggers)
	}
}

func TestStatsFloorGatesLocks(t *testing.T) {
	// The same soup below 600 chars is too short to judge statistically.
	soup := strings.Repeat("zqxv qzkx vqzx ", 6) // ~90 chars
	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), []byte(soup), "cv.txt")
	if v.Triggered(TriggerLowDictionary) || v.Triggered(TriggerImplausibleBigrams) {
		t.Errorf("locks fired under the stats floor: %v", v.Triggers)
	}
}

func TestProducerThresholdsClamped(t *testing.T) {
	// WHY: the relaxed bar must never sit above the unconditional one.
	e := newTestEngine(t, Config{Thresholds: Thresholds{
		ShortTokenRatio:         0.20,
		ProducerShortTokenRatio: 0.90,
	}})
	th := e.Thresholds()
	if th.ProducerShortTokenRatio > th.ShortTokenRatio {
		t.Errorf("producer threshold %v > unconditional %v", th.ProducerShortTokenRatio, th.ShortTokenRatio)
	}
	if th.ProducerAdjacentShortRatio > th.AdjacentShortRatio {
		t.Errorf("producer adjacent threshold not clamped")
	}
	if th.ProducerTokensPer100Chars > th.TokensPer100Chars {
		t.Errorf("producer density threshold not clamped")
	}
}

func TestFragmentationVoteNeedsTwo(t *testing.T) {
	e := newTestEngine(t, Config{})

	one := textstat.Metrics{ShortTokenRatio: 0.9}
	if got := e.fragmentationVotes(one); got != 1 {
		t.Errorf("votes = %d, want 1", got)
	}
	two := textstat.Metrics{ShortTokenRatio: 0.9, TokensPer100Chars: 80}
	if got := e.fragmentationVotes(two); got < 2 {
		t.Errorf("votes = %d, want >= 2", got)
	}
}

func TestRelaxedHitAnySingleMetric(t *testing.T) {
	e := newTestEngine(t, Config{})
	if !e.relaxedHit(textstat.Metrics{ShortTokenRatio: 0.16}) {
		t.Error("relaxed short-token hit missed")
	}
	if !e.relaxedHit(textstat.Metrics{TokensPer100Chars: 39}) {
		t.Error("relaxed density hit missed")
	}
	if e.relaxedHit(textstat.Metrics{ShortTokenRatio: 0.01, TokensPer100Chars: 10}) {
		t.Error("relaxed hit on clean metrics")
	}
}

func TestIsDesignToolExport(t *testing.T) {
	tests := []struct {
		producer, creator string
		want              bool
	}{
		{"Figma", "", true},
		{"", "Canva", true},
		{"Skia/PDF m108", "", true},
		{"HeadlessChrome/108.0", "", true},
		{"Microsoft Word", "Jane Doe", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := IsDesignToolExport(tt.producer, tt.creator); got != tt.want {
			t.Errorf("IsDesignToolExport(%q, %q) = %v", tt.producer, tt.creator, got)
		}
	}
}

func TestParseDenyList(t *testing.T) {
	h := HashBytes([]byte("x"))
	dl := ParseDenyList(h + ", not-a-hash,\n" + strings.ToUpper(HashBytes([]byte("y"))) + " ;zzz")
	if len(dl) != 2 {
		t.Fatalf("len = %d, want 2 (invalid entries dropped)", len(dl))
	}
	if !dl.Contains(h) || !dl.Contains(HashBytes([]byte("y"))) {
		t.Error("expected digests missing")
	}
}

func TestTimeoutFailsClosed(t *testing.T) {
	// A huge document with a 1ns budget: evaluation cannot finish in time
	// and must reject rather than hang or pass unchecked.
	big := []byte(strings.Repeat(cleanProse+" ", 2000))
	e := newTestEngine(t, Config{Timeout: time.Nanosecond})
	v := e.Evaluate(context.Background(), big, "cv.txt")
	if v.OK || !v.Triggered(TriggerPreflightError) {
		t.Fatalf("timeout: ok=%v triggers=%v", v.OK, v.Triggers)
	}
}

// buildOnePagePDF assembles a small valid PDF, computing xref offsets.
func buildOnePagePDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	stream := "BT /F1 12 Tf 72 720 Td (Seasoned engineer with production experience) Tj ET"
	obj(fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream))
	obj("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref))
	return buf.Bytes()
}

func TestEncryptedPDFRejected(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "plain.pdf")
	out := filepath.Join(dir, "locked.pdf")
	if err := os.WriteFile(in, buildOnePagePDF(t), 0o644); err != nil {
		t.Fatal(err)
	}
	conf := model.NewDefaultConfiguration()
	conf.UserPW = "secret"
	conf.OwnerPW = "secret"
	if err := api.EncryptFile(in, out, conf); err != nil {
		t.Fatalf("encrypt fixture: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, Config{})
	v := e.Evaluate(context.Background(), data, "cv.pdf")
	if v.OK || !v.Triggered(TriggerEncryptedPDF) {
		t.Fatalf("encrypted pdf: ok=%v triggers=%v", v.OK, v.Triggers)
	}
	// WHY: a password prompt is not corruption; the user message strategy
	// differs for operators reading the decision log.
	if v.Triggered(TriggerParserMalformed) {
		t.Errorf("encryption misread as corruption: %v", v.Triggers)
	}
	if v.UserMessage != UserRejectMessage {
		t.Errorf("rejection must carry the canonical message")
	}
}

func TestProducerRelaxedVoteRejects(t *testing.T) {
	// Every fifth token is a short technology abbreviation, never two in a
	// row: short-token ratio 0.20 sits between the relaxed bar (0.15) and
	// the unconditional one (0.25), so only the producer fingerprint can
	// tip the verdict.
	shorts := []string{"js", "ux", "qa", "db", "ci"}
	longs := []string{"engineering", "platform", "delivered", "customer",
		"projects", "reliable", "pipeline", "monitoring"}
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		if i%5 == 4 {
			sb.WriteString(shorts[(i/5)%len(shorts)])
		} else {
			sb.WriteString(longs[i%len(longs)])
		}
		sb.WriteByte(' ')
	}
	text := sb.String()

	e := newTestEngine(t, Config{})

	v := e.judge(&extract.Content{
		Format:    extract.FormatPDF,
		FullText:  text,
		PageCount: 1,
		TextPages: 1,
		Producer:  "Figma 1.0",
	}, &Details{})
	if v.OK {
		t.Fatal("design-tool export with relaxed hit accepted")
	}
	if !reflect.DeepEqual(v.Triggers, []string{TriggerProducerTool}) {
		t.Errorf("triggers = %v, want only %s", v.Triggers, TriggerProducerTool)
	}

	// The same text from an ordinary word processor passes: the metrics
	// alone never reach the unconditional thresholds.
	v = e.judge(&extract.Content{
		Format:    extract.FormatPDF,
		FullText:  text,
		PageCount: 1,
		TextPages: 1,
		Producer:  "Microsoft Word",
	}, &Details{})
	if !v.OK {
		t.Errorf("relaxed thresholds applied without a fingerprint: %v", v.Triggers)
	}
}

func TestGapPatternRejects(t *testing.T) {
	// Glyph-per-run geometry with wide regular spacing: each run is one
	// 5pt-wide character followed by a 7pt hole, well past 0.6x the median
	// glyph width.
	runs := make([]extract.TextRun, 0, 16)
	for i := 0; i < 16; i++ {
		runs = append(runs, extract.TextRun{Page: 1, X: float64(i) * 12, Y: 700, W: 5, S: "a"})
	}

	e := newTestEngine(t, Config{})
	v := e.judge(&extract.Content{
		Format:    extract.FormatPDF,
		FullText:  cleanProse,
		PageCount: 1,
		TextPages: 1,
		Runs:      runs,
	}, &Details{})
	if v.OK {
		t.Fatal("wide-gap glyph runs accepted")
	}
	if !reflect.DeepEqual(v.Triggers, []string{TriggerGapPattern}) {
		t.Errorf("triggers = %v, want only %s", v.Triggers, TriggerGapPattern)
	}

	// Comfortable spacing over the same text stays accepted.
	tight := make([]extract.TextRun, 0, 16)
	for i := 0; i < 16; i++ {
		tight = append(tight, extract.TextRun{Page: 1, X: float64(i) * 6, Y: 700, W: 5, S: "a"})
	}
	v = e.judge(&extract.Content{
		Format:    extract.FormatPDF,
		FullText:  cleanProse,
		PageCount: 1,
		TextPages: 1,
		Runs:      tight,
	}, &Details{})
	if !v.OK {
		t.Errorf("tight glyph runs rejected: %v", v.Triggers)
	}
}

func TestVerdictResponseShape(t *testing.T) {
	// WHY: trigger names and metric details are logging-only; the API body
	// exposes ok and the canonical message, nothing else.
	var v Verdict
	v.trigger(TriggerFragmentation)
	v.Details = &Details{SHA256: "abc"}

	out, err := json.Marshal(&v)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if strings.Contains(s, "figma") || strings.Contains(s, "abc") {
		t.Errorf("internal fields leaked: %s", s)
	}
	if !strings.Contains(s, "user_message") {
		t.Errorf("missing user message: %s", s)
	}
}
