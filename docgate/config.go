package docgate

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds are the tunable cutoffs of the decision policy. Every value has
// a documented default; production tuning happens through the YAML threshold
// file, never through code changes.
type Thresholds struct {
	// TextFloorChars is the minimum trimmed text length below which the
	// document is treated as having no text layer at all.
	TextFloorChars int `yaml:"text_floor_chars" json:"text_floor_chars"`

	// StatsFloorChars gates the dictionary and bigram locks; shorter
	// documents are too noisy to judge statistically.
	StatsFloorChars int `yaml:"stats_floor_chars" json:"stats_floor_chars"`

	// Fragmentation vote, two-of-N per token-stream view.
	ShortTokenRatio    float64 `yaml:"short_token_ratio" json:"short_token_ratio"`
	AdjacentShortRatio float64 `yaml:"adjacent_short_seq_ratio" json:"adjacent_short_seq_ratio"`
	TokensPer100Chars  float64 `yaml:"tokens_per_100_chars" json:"tokens_per_100_chars"`
	// SingleCharRatio is an optional fourth voter; 0 disables it.
	SingleCharRatio float64 `yaml:"single_char_ratio" json:"single_char_ratio"`

	// Relaxed cutoffs applied when a design-tool fingerprint matched; any
	// single hit rejects. Clamped to at most the unconditional values.
	ProducerShortTokenRatio    float64 `yaml:"producer_short_token_ratio" json:"producer_short_token_ratio"`
	ProducerAdjacentShortRatio float64 `yaml:"producer_adjacent_short_seq_ratio" json:"producer_adjacent_short_seq_ratio"`
	ProducerTokensPer100Chars  float64 `yaml:"producer_tokens_per_100_chars" json:"producer_tokens_per_100_chars"`

	// Statistical locks.
	MinDictCoverage float64 `yaml:"min_dict_coverage" json:"min_dict_coverage"`
	MaxBigramNLL    float64 `yaml:"max_bigram_nll" json:"max_bigram_nll"`

	// Gap pattern (PDF only).
	GapWideFactor   float64 `yaml:"gap_wide_factor" json:"gap_wide_factor"`
	MaxWideGapRatio float64 `yaml:"max_wide_gap_ratio" json:"max_wide_gap_ratio"`
	GapMinRuns      int     `yaml:"gap_min_runs" json:"gap_min_runs"`
}

// Config configures the preflight engine.
type Config struct {
	Thresholds Thresholds `yaml:"thresholds"`

	// DenyList is a comma-separated list of SHA-256 hex digests rejected
	// unconditionally. Populated from CRIBLE_DENYLIST or a file.
	DenyList string `yaml:"deny_list"`

	// Lock toggles. Zero value keeps every lock active.
	DisableDictionaryLock bool `yaml:"disable_dictionary_lock"`
	DisableBigramLock     bool `yaml:"disable_bigram_lock"`
	DisableGapLock        bool `yaml:"disable_gap_lock"`

	// Timeout bounds one evaluation; exceeding it fails closed.
	Timeout time.Duration `yaml:"timeout"`

	// Debug enables verbose metric dumps in logs. Never changes the verdict.
	Debug bool `yaml:"debug"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

func (c *Config) defaults() {
	t := &c.Thresholds
	if t.TextFloorChars <= 0 {
		t.TextFloorChars = 40
	}
	if t.StatsFloorChars <= 0 {
		t.StatsFloorChars = 600
	}
	if t.ShortTokenRatio <= 0 {
		t.ShortTokenRatio = 0.25
	}
	if t.AdjacentShortRatio <= 0 {
		t.AdjacentShortRatio = 0.18
	}
	if t.TokensPer100Chars <= 0 {
		t.TokensPer100Chars = 45
	}
	if t.SingleCharRatio < 0 {
		t.SingleCharRatio = 0
	} else if t.SingleCharRatio == 0 {
		t.SingleCharRatio = 0.30
	}
	if t.ProducerShortTokenRatio <= 0 {
		t.ProducerShortTokenRatio = 0.15
	}
	if t.ProducerAdjacentShortRatio <= 0 {
		t.ProducerAdjacentShortRatio = 0.12
	}
	if t.ProducerTokensPer100Chars <= 0 {
		t.ProducerTokensPer100Chars = 38
	}
	if t.MinDictCoverage <= 0 {
		t.MinDictCoverage = 0.05
	}
	if t.MaxBigramNLL <= 0 {
		t.MaxBigramNLL = 3.1
	}
	if t.GapWideFactor <= 0 {
		t.GapWideFactor = 0.6
	}
	if t.MaxWideGapRatio <= 0 {
		t.MaxWideGapRatio = 0.35
	}
	if t.GapMinRuns <= 0 {
		t.GapMinRuns = 12
	}

	// The producer-conditioned bar must never be higher than the
	// unconditional one.
	if t.ProducerShortTokenRatio > t.ShortTokenRatio {
		t.ProducerShortTokenRatio = t.ShortTokenRatio
	}
	if t.ProducerAdjacentShortRatio > t.AdjacentShortRatio {
		t.ProducerAdjacentShortRatio = t.AdjacentShortRatio
	}
	if t.ProducerTokensPer100Chars > t.TokensPer100Chars {
		t.ProducerTokensPer100Chars = t.TokensPer100Chars
	}

	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LoadThresholds merges a YAML threshold file over cfg. Missing keys keep
// their current (or default) values.
func LoadThresholds(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse thresholds: %w", err)
	}
	return nil
}
