package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"BoostLab/internal/domain/models"
)

// Indicator computes one feature column. Value i may only read bars[0..i].
// Lookback is the first index at which the value is defined.
type Indicator struct {
	Name     string
	Lookback int
	Compute  func(bars []models.PriceBar) []float64
}

// DefaultIndicators is the full set, in output column order.
var DefaultIndicators = []string{
	"sma_5", "sma_20", "ema_12", "ema_26", "rsi_14", "macd", "macd_signal",
	"bb_upper", "bb_lower", "atr_14", "volume_sma_10", "price_change",
	"high_low_ratio", "volume_price_trend", "log_return", "realized_vol_20",
}

var registry = map[string]Indicator{
	"sma_5":              {"sma_5", 4, closeSeries(func(c []float64) []float64 { return sma(c, 5) })},
	"sma_20":             {"sma_20", 19, closeSeries(func(c []float64) []float64 { return sma(c, 20) })},
	"ema_12":             {"ema_12", 11, closeSeries(func(c []float64) []float64 { return ema(c, 12) })},
	"ema_26":             {"ema_26", 25, closeSeries(func(c []float64) []float64 { return ema(c, 26) })},
	"rsi_14":             {"rsi_14", 14, closeSeries(func(c []float64) []float64 { return rsi(c, 14) })},
	"macd":               {"macd", 25, closeSeries(macdLine)},
	"macd_signal":        {"macd_signal", 33, closeSeries(func(c []float64) []float64 { return ema(macdLine(c), 9) })},
	"bb_upper":           {"bb_upper", 19, closeSeries(func(c []float64) []float64 { return bollinger(c, 20, 2) })},
	"bb_lower":           {"bb_lower", 19, closeSeries(func(c []float64) []float64 { return bollinger(c, 20, -2) })},
	"atr_14":             {"atr_14", 14, func(b []models.PriceBar) []float64 { return atr(b, 14) }},
	"volume_sma_10":      {"volume_sma_10", 9, volumeSMA10},
	"price_change":       {"price_change", 1, closeSeries(priceChange)},
	"high_low_ratio":     {"high_low_ratio", 0, highLowRatio},
	"volume_price_trend": {"volume_price_trend", 1, volumePriceTrend},
	"log_return":         {"log_return", 1, logReturnSeries},
	"realized_vol_20":    {"realized_vol_20", 20, func(b []models.PriceBar) []float64 { return rollingVol(b, 20) }},
}

// Lookup returns the indicator registered under name.
func Lookup(name string) (Indicator, bool) {
	ind, ok := registry[name]
	return ind, ok
}

func closeSeries(fn func([]float64) []float64) func([]models.PriceBar) []float64 {
	return func(b []models.PriceBar) []float64 { return fn(models.Closes(b)) }
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func sma(x []float64, n int) []float64 {
	out := undefinedSeries(len(x))
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= n {
			sum -= x[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// ema is seeded with the SMA of the first n defined values; leading NaNs are skipped.
func ema(x []float64, n int) []float64 {
	out := undefinedSeries(len(x))
	start := 0
	for start < len(x) && math.IsNaN(x[start]) {
		start++
	}
	if len(x)-start < n {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seed := 0.0
	for i := start; i < start+n; i++ {
		seed += x[i]
	}
	prev := seed / float64(n)
	out[start+n-1] = prev
	for i := start + n; i < len(x); i++ {
		prev = alpha*x[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

func macdLine(c []float64) []float64 {
	fast, slow := ema(c, 12), ema(c, 26)
	out := make([]float64, len(c))
	for i := range c {
		out[i] = fast[i] - slow[i]
	}
	return out
}

// rsi uses Wilder smoothing over n price changes.
func rsi(c []float64, n int) []float64 {
	out := undefinedSeries(len(c))
	if len(c) <= n {
		return out
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= n; i++ {
		d := c[i] - c[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	out[n] = rsiValue(gain, loss)
	for i := n + 1; i < len(c); i++ {
		d := c[i] - c[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(n-1) + g) / float64(n)
		loss = (loss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

func bollinger(c []float64, n int, k float64) []float64 {
	out := undefinedSeries(len(c))
	for i := n - 1; i < len(c); i++ {
		mean, std := stat.PopMeanStdDev(c[i-n+1:i+1], nil)
		out[i] = mean + k*std
	}
	return out
}

func atr(b []models.PriceBar, n int) []float64 {
	out := undefinedSeries(len(b))
	if len(b) <= n {
		return out
	}
	tr := func(i int) float64 {
		prev := b[i-1].Close
		return math.Max(b[i].High-b[i].Low, math.Max(math.Abs(b[i].High-prev), math.Abs(b[i].Low-prev)))
	}
	sum := 0.0
	for i := 1; i <= n; i++ {
		sum += tr(i)
	}
	prev := sum / float64(n)
	out[n] = prev
	for i := n + 1; i < len(b); i++ {
		prev = (prev*float64(n-1) + tr(i)) / float64(n)
		out[i] = prev
	}
	return out
}

func volumeSMA10(b []models.PriceBar) []float64 {
	vol := make([]float64, len(b))
	for i, bar := range b {
		vol[i] = bar.Volume
	}
	return sma(vol, 10)
}

func priceChange(c []float64) []float64 {
	out := undefinedSeries(len(c))
	for i := 1; i < len(c); i++ {
		out[i] = c[i]/c[i-1] - 1
	}
	return out
}

func highLowRatio(b []models.PriceBar) []float64 {
	out := make([]float64, len(b))
	for i, bar := range b {
		out[i] = bar.High / bar.Low
	}
	return out
}

func volumePriceTrend(b []models.PriceBar) []float64 {
	out := undefinedSeries(len(b))
	acc := 0.0
	for i := 1; i < len(b); i++ {
		acc += b[i].Volume * (b[i].Close/b[i-1].Close - 1)
		out[i] = acc
	}
	return out
}

func logReturnSeries(b []models.PriceBar) []float64 {
	out := undefinedSeries(len(b))
	for i, r := range LogReturns(b) {
		out[i+1] = r
	}
	return out
}

func rollingVol(b []models.PriceBar, window int) []float64 {
	out := undefinedSeries(len(b))
	rets := LogReturns(b)
	for i := window; i < len(b); i++ {
		// returns[0..i-1] end at bar i
		out[i] = RealizedVolatility(rets[:i], window, 1)
	}
	return out
}
