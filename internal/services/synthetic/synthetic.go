// Package synthetic generates deterministic OHLCV series for demos and tests.
package synthetic

import (
	"math"
	"math/rand"
	"time"

	"BoostLab/internal/domain/models"
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// RandomWalk returns n daily bars following a seeded geometric random walk.
func RandomWalk(n int, seed int64) []models.PriceBar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]models.PriceBar, n)
	price := 100.0
	for i := range bars {
		open := price
		price *= math.Exp(0.0002 + 0.01*rng.NormFloat64())
		hi := math.Max(open, price) * (1 + 0.005*math.Abs(rng.NormFloat64()))
		lo := math.Min(open, price) * (1 - 0.005*math.Abs(rng.NormFloat64()))
		bars[i] = models.PriceBar{
			Timestamp: epoch.AddDate(0, 0, i),
			Open:      open,
			High:      hi,
			Low:       lo,
			Close:     price,
			Volume:    1000 + 500*rng.Float64(),
		}
	}
	return bars
}

// Sine returns n daily bars whose close follows base + amp*sin(2*pi*i/period).
func Sine(n int, period, base, amp float64) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	prev := base
	for i := range bars {
		c := base + amp*math.Sin(2*math.Pi*float64(i)/period)
		bars[i] = models.PriceBar{
			Timestamp: epoch.AddDate(0, 0, i),
			Open:      prev,
			High:      math.Max(prev, c) * 1.001,
			Low:       math.Min(prev, c) * 0.999,
			Close:     c,
			Volume:    1000 + 100*math.Cos(2*math.Pi*float64(i)/period),
		}
		prev = c
	}
	return bars
}
