package models

import "time"

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Equity    float64   `json:"equity" yaml:"equity"`
}

// Trade is a closed round trip. PnL is net of both fees.
type Trade struct {
	Side       Position  `json:"side" yaml:"side"`
	EntryTime  time.Time `json:"entry_time" yaml:"entry_time"`
	ExitTime   time.Time `json:"exit_time" yaml:"exit_time"`
	EntryPrice float64   `json:"entry_price" yaml:"entry_price"`
	ExitPrice  float64   `json:"exit_price" yaml:"exit_price"`
	Notional   float64   `json:"notional" yaml:"notional"`
	Fees       float64   `json:"fees" yaml:"fees"`
	PnL        float64   `json:"pnl" yaml:"pnl"`
}

type BacktestResult struct {
	EquityCurve      []EquityPoint `json:"equity_curve" yaml:"equity_curve"`
	InitialCapital   float64       `json:"initial_capital" yaml:"initial_capital"`
	FinalEquity      float64       `json:"final_equity" yaml:"final_equity"`
	TotalReturn      float64       `json:"total_return" yaml:"total_return"`
	AnnualizedReturn float64       `json:"annualized_return" yaml:"annualized_return"`
	Volatility       float64       `json:"volatility" yaml:"volatility"`
	SharpeRatio      float64       `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	MaxDrawdown      float64       `json:"max_drawdown" yaml:"max_drawdown"`
	CalmarRatio      float64       `json:"calmar_ratio" yaml:"calmar_ratio"`
	WinRate          float64       `json:"win_rate" yaml:"win_rate"`
	TotalTrades      int           `json:"total_trades" yaml:"total_trades"`
	WinningTrades    int           `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades     int           `json:"losing_trades" yaml:"losing_trades"`
	TotalFeesPaid    float64       `json:"total_fees_paid" yaml:"total_fees_paid"`
	FeeImpact        float64       `json:"fee_impact" yaml:"fee_impact"`
	NBars            int           `json:"n_bars" yaml:"n_bars"`
	Trades           []Trade       `json:"trades" yaml:"trades"`
}

// BacktestReport wraps a result with run context for publishing.
type BacktestReport struct {
	ArtifactID  string         `json:"artifact_id" yaml:"artifact_id"`
	Symbol      string         `json:"symbol" yaml:"symbol"`
	Mode        string         `json:"mode" yaml:"mode"`
	AllowShort  bool           `json:"allow_short" yaml:"allow_short"`
	Result      BacktestResult `json:"result" yaml:"result"`
	Commentary  string         `json:"commentary,omitempty" yaml:"commentary,omitempty"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
}
