// Package extract implements the cascading multi-strategy extraction
// pipeline: per-modality extractors, quality gating, restart-section
// detection and the canonicalization passes that turn noisy page data
// into an ordered, deduplicated service record list.
package extract

import "time"

// QualityWeights weigh the three components of the composite quality
// score: unit+quantity completeness, item-code validity, and row-count
// plausibility against the page count.
type QualityWeights struct {
	UnitQuantity    float64
	ValidCode       float64
	RowPlausibility float64
}

// Config carries every tunable threshold of the pipeline. Thread it
// through calls explicitly; tests build their own instead of relying
// on globals.
type Config struct {
	// AcceptThreshold stops the cascade when a strategy scores at or
	// above it.
	AcceptThreshold float64

	// MergeThreshold keeps a strategy result as a partial candidate
	// when it scores in [MergeThreshold, AcceptThreshold).
	MergeThreshold float64

	Weights QualityWeights

	// Restart-section detection.
	RestartMinCodes   int // window size for a plausible restarted sequence
	RestartMinOverlap int // distinct codes shared with the primary section
	RestartDepth1Max  int // a depth-1 value at or below this can open a restart

	// Row-count plausibility band, per page.
	MinRowsPerPage int
	MaxRowsPerPage int

	// StrictCodes drops rows without a structurally valid item code
	// during filtering.
	StrictCodes bool

	// Vision escalation.
	VisionBatchPages int
	VisionTimeout    time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		AcceptThreshold: 0.75,
		MergeThreshold:  0.40,
		Weights: QualityWeights{
			UnitQuantity:    0.45,
			ValidCode:       0.35,
			RowPlausibility: 0.20,
		},
		RestartMinCodes:   4,
		RestartMinOverlap: 3,
		RestartDepth1Max:  2,
		MinRowsPerPage:    2,
		MaxRowsPerPage:    80,
		StrictCodes:       false,
		VisionBatchPages:  4,
		VisionTimeout:     2 * time.Minute,
	}
}
