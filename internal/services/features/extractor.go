package features

import (
	"math"

	"BoostLab/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// LogReturns returns ln(C_t / C_{t-1}) for t = 1..n-1, or nil for fewer
// than two bars.
func LogReturns(bars []models.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		out[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
	}
	return out
}

// RealizedVolatility is the sample standard deviation of the last window
// returns scaled by sqrt(barsPerYear). Pass 1 for a per-bar figure.
func RealizedVolatility(returns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(returns) < window {
		return models.Undefined()
	}
	return stat.StdDev(returns[len(returns)-window:], nil) * math.Sqrt(barsPerYear)
}
