package models

import "time"

// PriceBar is a single OHLCV observation. Prices are positive and timestamps
// strictly increase within a series.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    float64   `json:"volume" yaml:"volume"`
}

// Closes extracts the close column.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
