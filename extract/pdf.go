package extract

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	ledong "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Vertical tolerance (points) under which two runs belong to the same line.
const pdfLineTolerance = 2.0

// Horizontal gap factor, relative to the previous run's mean glyph width,
// above which a space separates two runs. Below it the runs are adjacent
// glyphs of the same word and are concatenated as-is.
const pdfWordGapFactor = 0.3

// extractPDF combines two parsers: pdfcpu validates structure and yields
// page count, image objects and Info metadata; ledongthuc/pdf yields
// positioned text runs per page. Run spacing is reconstructed from glyph
// geometry only.
func extractPDF(data []byte) (*Content, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "password") || strings.Contains(low, "encrypt") {
			return &Content{Format: FormatPDF, Encrypted: true}, fmt.Errorf("pdf: %w", ErrEncrypted)
		}
		return nil, fmt.Errorf("pdf: %w: %v", ErrMalformed, err)
	}

	c := &Content{
		Format:    FormatPDF,
		PageCount: ctx.PageCount,
		Producer:  ctx.Producer,
		Creator:   ctx.Creator,
	}
	c.ImageCount = countImageObjects(ctx)

	runs, err := readTextRuns(data)
	if err != nil {
		return nil, fmt.Errorf("pdf text: %w: %v", ErrMalformed, err)
	}
	c.Runs = runs

	pages := c.PageCount
	for _, r := range runs {
		if r.Page > pages {
			pages = r.Page
		}
	}

	var full strings.Builder
	c.PageTextLens = make([]int, 0, pages)
	for pageNr := 1; pageNr <= pages; pageNr++ {
		pageText := assemblePageText(runs, pageNr)
		c.PageTextLens = append(c.PageTextLens, len([]rune(pageText)))
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		c.TextPages++
		if full.Len() > 0 {
			full.WriteByte(' ')
		}
		full.WriteString(pageText)
	}
	c.FullText = full.String()
	return c, nil
}

// countImageObjects counts distinct image XObjects referenced by any page.
func countImageObjects(ctx *model.Context) int {
	if ctx.Optimize == nil {
		return 0
	}
	seen := make(map[int]struct{})
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		for _, nr := range pdfcpu.ImageObjNrs(ctx, pageNr) {
			seen[nr] = struct{}{}
		}
	}
	return len(seen)
}

// readTextRuns walks every page's content via ledongthuc/pdf. The library
// panics on some malformed inputs, so the document open and each page walk
// are recover-wrapped separately: one bad page is skipped and the rest of
// the document still yields its text. Only a document where every page
// fails is an error.
func readTextRuns(data []byte) ([]TextRun, error) {
	r, pages, err := openTextReader(data)
	if err != nil {
		return nil, err
	}

	var runs []TextRun
	failed := 0
	for i := 1; i <= pages; i++ {
		pageNr := i
		pageRuns, ok := collectRuns(func() []TextRun {
			return pageTextRuns(r, pageNr)
		})
		if !ok {
			failed++
			continue
		}
		runs = append(runs, pageRuns...)
	}
	if pages > 0 && failed == pages {
		return nil, fmt.Errorf("pdf reader failed on all %d pages", pages)
	}
	return runs, nil
}

func openTextReader(data []byte) (r *ledong.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, pages = nil, 0
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	r, err = ledong.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

func pageTextRuns(r *ledong.Reader, pageNr int) []TextRun {
	p := r.Page(pageNr)
	if p.V.IsNull() {
		return nil
	}
	var runs []TextRun
	for _, t := range p.Content().Text {
		if t.S == "" {
			continue
		}
		runs = append(runs, TextRun{
			Page: pageNr,
			X:    t.X,
			Y:    t.Y,
			W:    t.W,
			Font: t.Font,
			Size: t.FontSize,
			S:    t.S,
		})
	}
	return runs
}

// collectRuns shields the per-page walk from parser panics.
func collectRuns(fn func() []TextRun) (runs []TextRun, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			runs, ok = nil, false
		}
	}()
	return fn(), true
}

// assemblePageText orders one page's runs top-to-bottom, left-to-right and
// joins them using geometry: a newline on line change, a space when the
// horizontal gap exceeds a fraction of the previous run's mean glyph width,
// nothing otherwise. No whitespace is merged or trimmed afterwards, so a
// glyph-per-run export keeps its fragmented shape.
func assemblePageText(runs []TextRun, pageNr int) string {
	var page []TextRun
	for _, r := range runs {
		if r.Page == pageNr {
			page = append(page, r)
		}
	}
	if len(page) == 0 {
		return ""
	}

	sort.SliceStable(page, func(i, j int) bool {
		if math.Abs(page[i].Y-page[j].Y) > pdfLineTolerance {
			return page[i].Y > page[j].Y // PDF Y grows upward
		}
		return page[i].X < page[j].X
	})

	var sb strings.Builder
	sb.WriteString(page[0].S)
	for i := 1; i < len(page); i++ {
		prev, cur := page[i-1], page[i]
		if math.Abs(cur.Y-prev.Y) > pdfLineTolerance {
			sb.WriteByte('\n')
			sb.WriteString(cur.S)
			continue
		}
		gap := cur.X - (prev.X + prev.W)
		if gap > wordGapThreshold(prev) {
			sb.WriteByte(' ')
		}
		sb.WriteString(cur.S)
	}
	return sb.String()
}

func wordGapThreshold(r TextRun) float64 {
	n := len([]rune(r.S))
	if n > 0 && r.W > 0 {
		return pdfWordGapFactor * (r.W / float64(n))
	}
	if r.Size > 0 {
		return pdfWordGapFactor * r.Size * 0.5
	}
	return 1.0
}
