package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"BoostLab/internal/domain/models"
)

// Returns derives per-bar returns from an equity curve, the first one
// relative to the starting capital.
func Returns(initial float64, curve []models.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	prev := initial
	for i, p := range curve {
		out[i] = p.Equity/prev - 1
		prev = p.Equity
	}
	return out
}

// stdDev is the sample deviation, zero for fewer than two points or when the
// spread is only rounding noise.
func stdDev(returns []float64) (mean, std float64) {
	if len(returns) < 2 {
		if len(returns) == 1 {
			return returns[0], 0
		}
		return 0, 0
	}
	mean, std = stat.MeanStdDev(returns, nil)
	if std <= 1e-12*math.Max(1, math.Abs(mean)) {
		std = 0
	}
	return mean, std
}

// SharpeRatio annualizes mean excess return over return volatility.
func SharpeRatio(returns []float64, riskFree, periodsPerYear float64) float64 {
	_, std := stdDev(returns)
	if std == 0 {
		return 0
	}
	excess := 0.0
	rf := riskFree / periodsPerYear
	for _, r := range returns {
		excess += r - rf
	}
	excess /= float64(len(returns))
	return excess / std * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the deepest peak-to-trough fall, as a non-positive fraction.
func MaxDrawdown(initial float64, curve []models.EquityPoint) float64 {
	peak := initial
	mdd := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := p.Equity/peak - 1; dd < mdd {
			mdd = dd
		}
	}
	return mdd
}

// AnnualizedReturn compounds the total return to a yearly rate.
func AnnualizedReturn(totalReturn float64, nBars int, periodsPerYear float64) float64 {
	switch {
	case nBars == 0:
		return 0
	case totalReturn <= -1:
		return -1
	}
	return math.Pow(1+totalReturn, periodsPerYear/float64(nBars)) - 1
}

func (e *Engine) fillMetrics(res *models.BacktestResult) {
	c := e.cfg
	rets := Returns(c.InitialCapital, res.EquityCurve)
	res.NBars = len(rets)
	res.TotalReturn = res.FinalEquity/c.InitialCapital - 1
	res.AnnualizedReturn = AnnualizedReturn(res.TotalReturn, res.NBars, c.PeriodsPerYear)
	_, std := stdDev(rets)
	res.Volatility = std * math.Sqrt(c.PeriodsPerYear)
	res.SharpeRatio = SharpeRatio(rets, c.RiskFreeRate, c.PeriodsPerYear)
	res.MaxDrawdown = MaxDrawdown(c.InitialCapital, res.EquityCurve)
	if res.MaxDrawdown < 0 {
		res.CalmarRatio = res.AnnualizedReturn / math.Abs(res.MaxDrawdown)
	}
	res.TotalTrades = len(res.Trades)
	for _, t := range res.Trades {
		if t.PnL > 0 {
			res.WinningTrades++
		} else {
			res.LosingTrades++
		}
	}
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.WinningTrades) / float64(res.TotalTrades)
	}
	res.FeeImpact = res.TotalFeesPaid / c.InitialCapital
}
