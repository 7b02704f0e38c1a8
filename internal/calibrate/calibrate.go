// Package calibrate computes the turn's confidence score. It is pure
// arithmetic over three signals plus the answerability state: no I/O, no
// randomness, same inputs always give the same score.
package calibrate

import (
	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

const (
	floorScore = 0.05
	ceilScore  = 0.97
)

// answerBearingScore is the chunk score above which a chunk counts toward
// coverage.
const answerBearingScore = 0.5

// Calibrator blends the composer's self-reported confidence, the retrieval
// signal, and evidence coverage into one bounded scalar.
type Calibrator struct {
	cfg config.CalibratorConfig
}

func New(cfg config.CalibratorConfig) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// Score returns the calibrated confidence in [0.05, 0.97].
func (c *Calibrator) Score(plan turn.Plan, verdict turn.Verdict, evidence []turn.EvidenceChunk) float64 {
	blended := c.cfg.ModelWeight*clamp01(plan.Confidence) +
		c.cfg.RetrievalWeight*retrievalSignal(evidence) +
		c.cfg.CoverageWeight*coverageSignal(evidence)

	switch verdict.State {
	case turn.Direct:
		blended += c.cfg.DirectBonus
	case turn.Derivable:
		blended += c.cfg.DerivableBonus
	case turn.Insufficient:
		if blended > c.cfg.InsufficientCap {
			blended = c.cfg.InsufficientCap
		}
	}

	if blended < floorScore {
		return floorScore
	}
	if blended > ceilScore {
		return ceilScore
	}
	return blended
}

// retrievalSignal is the best top-1 similarity across the merged evidence.
func retrievalSignal(evidence []turn.EvidenceChunk) float64 {
	best := 0.0
	for _, c := range evidence {
		if c.Score > best {
			best = c.Score
		}
	}
	return clamp01(best)
}

// coverageSignal combines the fraction of answer-bearing chunks with source
// diversity. Both halves are in [0, 1]; diversity saturates at three distinct
// sources.
func coverageSignal(evidence []turn.EvidenceChunk) float64 {
	if len(evidence) == 0 {
		return 0
	}

	bearing := 0
	sources := map[string]bool{}
	for _, c := range evidence {
		if c.Score >= answerBearingScore {
			bearing++
		}
		sources[c.SourceID] = true
	}

	bearingRatio := float64(bearing) / float64(len(evidence))
	diversity := float64(len(sources)) / 3.0
	if diversity > 1 {
		diversity = 1
	}
	return 0.7*bearingRatio + 0.3*diversity
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
