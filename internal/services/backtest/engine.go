// Package backtest replays position signals against realized prices with
// transaction costs and reports performance statistics.
package backtest

import (
	"fmt"
	"math"

	"BoostLab/internal/domain/models"
)

const stage = "backtest"

type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	FeeRate        float64 `yaml:"fee_rate" json:"fee_rate"`
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year"`
	AllowShort     bool    `yaml:"allow_short" json:"allow_short"`
}

func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		FeeRate:        0.001,
		RiskFreeRate:   0.02,
		PeriodsPerYear: 252,
	}
}

func (c Config) Validate() error {
	if !(c.InitialCapital > 0) {
		return fmt.Errorf("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 {
		return fmt.Errorf("fee_rate must be in [0, 1), got %v", c.FeeRate)
	}
	if !(c.PeriodsPerYear > 0) {
		return fmt.Errorf("periods_per_year must be positive, got %v", c.PeriodsPerYear)
	}
	return nil
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// position is the open leg: qty units entered at entry price.
type position struct {
	side       models.Position
	qty        float64
	entryPrice float64
	entryIndex int
	equityIn   float64
	fees       float64
}

// Run simulates one position at a time. Signal t is acted on at close of bar t.
// Opening charges fee_rate times the equity committed; closing charges fee_rate
// times the position value at exit. Short signals are treated as flat unless
// the engine allows shorting.
func (e *Engine) Run(signals []models.Signal, bars []models.PriceBar) (*models.BacktestResult, error) {
	if err := validatePrices(bars); err != nil {
		return nil, err
	}
	res := &models.BacktestResult{
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    e.cfg.InitialCapital,
		EquityCurve:    []models.EquityPoint{},
		Trades:         []models.Trade{},
	}
	if len(signals) == 0 {
		return res, nil
	}
	if len(signals) != len(bars) {
		return nil, &models.SchemaValidationError{Field: "signals", Index: -1,
			Reason: fmt.Sprintf("%d signals for %d bars", len(signals), len(bars))}
	}

	cash := e.cfg.InitialCapital
	var open *position

	mark := func(price float64) float64 {
		if open == nil {
			return cash
		}
		return cash + float64(open.side)*open.qty*(price-open.entryPrice)
	}
	closePos := func(i int) {
		price := bars[i].Close
		cash = mark(price)
		fee := e.cfg.FeeRate * open.qty * price
		cash -= fee
		open.fees += fee
		res.TotalFeesPaid += fee
		res.Trades = append(res.Trades, models.Trade{
			Side:       open.side,
			EntryTime:  bars[open.entryIndex].Timestamp,
			ExitTime:   bars[i].Timestamp,
			EntryPrice: open.entryPrice,
			ExitPrice:  price,
			Notional:   open.qty * open.entryPrice,
			Fees:       open.fees,
			PnL:        cash - open.equityIn,
		})
		open = nil
	}

	for i, sig := range signals {
		if !sig.Timestamp.IsZero() && !sig.Timestamp.Equal(bars[i].Timestamp) {
			return nil, &models.SchemaValidationError{Field: "signals", Index: i, Timestamp: sig.Timestamp,
				Reason: "signal timestamp does not match bar " + bars[i].Timestamp.String()}
		}
		want := sig.Position
		if want == models.Short && !e.cfg.AllowShort {
			want = models.Flat
		}
		held := models.Flat
		if open != nil {
			held = open.side
		}
		last := i == len(signals)-1
		if want != held {
			if open != nil {
				closePos(i)
			}
			// No new leg on the final bar.
			if want != models.Flat && !last {
				price := bars[i].Close
				fee := e.cfg.FeeRate * cash
				open = &position{
					side:       want,
					qty:        cash / price,
					entryPrice: price,
					entryIndex: i,
					equityIn:   cash,
					fees:       fee,
				}
				cash -= fee
				res.TotalFeesPaid += fee
			}
		}
		if last && open != nil {
			closePos(i)
		}
		res.EquityCurve = append(res.EquityCurve, models.EquityPoint{Timestamp: bars[i].Timestamp, Equity: mark(bars[i].Close)})
	}

	res.FinalEquity = res.EquityCurve[len(res.EquityCurve)-1].Equity
	e.fillMetrics(res)
	return res, nil
}

func validatePrices(bars []models.PriceBar) error {
	for i, b := range bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return &models.SchemaValidationError{Field: "price", Index: i, Timestamp: b.Timestamp,
					Reason: fmt.Sprintf("non-positive or invalid price %v", v)}
			}
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return &models.SchemaValidationError{Field: "timestamp", Index: i, Timestamp: b.Timestamp,
				Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}
