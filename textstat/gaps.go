package textstat

import (
	"math"
	"sort"
	"unicode/utf8"
)

// Run is a positioned text run, the minimal slice of PDF glyph geometry the
// gap detector needs.
type Run struct {
	X float64
	Y float64
	W float64
	S string
}

// GapStats summarizes horizontal spacing between consecutive runs on the
// same visual line.
type GapStats struct {
	RunCount        int     `json:"run_count"`
	GapCount        int     `json:"gap_count"`
	MedianCharWidth float64 `json:"median_char_width"`
	WideGapRatio    float64 `json:"wide_gap_ratio"`
}

// Vertical tolerance under which two runs count as the same line.
const gapLineTolerance = 2.0

// ComputeGapStats sorts runs top-to-bottom then left-to-right, derives each
// run's mean glyph width from its bounding box, and measures the proportion
// of same-line gaps wider than wideFactor times the median glyph width.
// Letter-by-letter vector export shows up as a high proportion of such gaps:
// every glyph is its own run with wide regular spacing. Runs without usable
// width data are ignored.
func ComputeGapStats(runs []Run, wideFactor float64) GapStats {
	var usable []Run
	var widths []float64
	for _, r := range runs {
		n := utf8.RuneCountInString(r.S)
		if n == 0 || r.W <= 0 {
			continue
		}
		usable = append(usable, r)
		widths = append(widths, r.W/float64(n))
	}

	stats := GapStats{RunCount: len(usable)}
	if len(usable) < 2 {
		return stats
	}

	stats.MedianCharWidth = median(widths)
	if stats.MedianCharWidth <= 0 {
		return stats
	}

	order := make([]int, len(usable))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := usable[order[a]], usable[order[b]]
		if math.Abs(ra.Y-rb.Y) > gapLineTolerance {
			return ra.Y > rb.Y
		}
		return ra.X < rb.X
	})

	wide := 0
	for i := 1; i < len(order); i++ {
		prev, cur := usable[order[i-1]], usable[order[i]]
		if math.Abs(cur.Y-prev.Y) > gapLineTolerance {
			continue // line break, not a spacing gap
		}
		gap := cur.X - (prev.X + prev.W)
		if gap <= 0 {
			stats.GapCount++
			continue
		}
		stats.GapCount++
		if gap > wideFactor*stats.MedianCharWidth {
			wide++
		}
	}
	if stats.GapCount > 0 {
		stats.WideGapRatio = float64(wide) / float64(stats.GapCount)
	}
	return stats
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
