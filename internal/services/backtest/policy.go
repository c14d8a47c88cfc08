package backtest

import (
	"time"

	"BoostLab/internal/domain/models"
)

// ThresholdPolicy maps a model score to a position: long above Long, short
// below Short when shorting is allowed, flat otherwise.
type ThresholdPolicy struct {
	Long       float64 `json:"long" yaml:"long"`
	Short      float64 `json:"short" yaml:"short"`
	AllowShort bool    `json:"allow_short" yaml:"allow_short"`
}

// DefaultPolicy centres thresholds on 0.5 for probabilities and 0 for
// predicted returns.
func DefaultPolicy(classification, allowShort bool) ThresholdPolicy {
	if classification {
		return ThresholdPolicy{Long: 0.5, Short: 0.5, AllowShort: allowShort}
	}
	return ThresholdPolicy{AllowShort: allowShort}
}

func (p ThresholdPolicy) Position(score float64) models.Position {
	switch {
	case score > p.Long:
		return models.Long
	case p.AllowShort && score < p.Short:
		return models.Short
	default:
		return models.Flat
	}
}

func (p ThresholdPolicy) Signals(ts []time.Time, scores []float64) []models.Signal {
	out := make([]models.Signal, len(scores))
	for i, s := range scores {
		out[i] = models.Signal{Timestamp: ts[i], Position: p.Position(s), Score: s}
	}
	return out
}

// Constant holds the same position on every bar.
func Constant(bars []models.PriceBar, pos models.Position) []models.Signal {
	out := make([]models.Signal, len(bars))
	for i, b := range bars {
		out[i] = models.Signal{Timestamp: b.Timestamp, Position: pos}
	}
	return out
}

// AlignBars picks the bars that dataset rows were built from.
func AlignBars(bars []models.PriceBar, barIndex []int) []models.PriceBar {
	out := make([]models.PriceBar, len(barIndex))
	for i, idx := range barIndex {
		out[i] = bars[idx]
	}
	return out
}
