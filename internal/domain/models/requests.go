package models

// Requests for model HTTP endpoints. Defined in domain for consistency and reuse.

type ModelIDRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type PredictRequest struct {
	ID   string      `param:"id" json:"-" validate:"required"`
	Rows [][]float64 `json:"rows" validate:"required,min=1,max=10000"`
}

// Nil pointer fields fall back to the configured backtest settings.
type BacktestRequest struct {
	ID             string   `param:"id" json:"-" validate:"required"`
	Symbol         string   `query:"symbol" json:"symbol"`
	Timeframe      string   `query:"tf" json:"timeframe" validate:"omitempty,oneof=1m 5m 15m 1h 4h 1d"`
	From           string   `query:"from" json:"from" validate:"omitempty,timestr"`
	To             string   `query:"to" json:"to" validate:"omitempty,timestr"`
	AllowShort     *bool    `query:"allow_short" json:"allow_short"`
	LongThreshold  *float64 `query:"long_threshold" json:"long_threshold"`
	ShortThreshold *float64 `query:"short_threshold" json:"short_threshold"`
	FeeRate        *float64 `query:"fee_rate" json:"fee_rate" validate:"omitempty,gte=0,lt=1"`
	Commentary     bool     `query:"commentary" json:"commentary"`
}

type WalkForwardRequest struct {
	BacktestRequest
	TrainWindow int `query:"train_window" json:"train_window" default:"252" validate:"gte=10,lte=100000"`
	Step        int `query:"step" json:"step" default:"21" validate:"gte=1,lte=10000"`
}

type ExplainRequest struct {
	ID     string `param:"id" json:"-" validate:"required"`
	Top    int    `query:"top" json:"top" default:"10" validate:"gte=1,lte=200"`
	Method string `query:"method" json:"method" default:"mean_abs" validate:"oneof=mean_abs mean std"`
}

type TrainRequest struct {
	ModelType  string `json:"model_type" validate:"omitempty,oneof=lightgbm xgboost"`
	TargetType string `json:"target_type" validate:"omitempty,oneof=direction returns volatility"`
	Horizon    int    `json:"horizon" validate:"gte=0,lte=1000"`
	Trials     int    `json:"trials" validate:"gte=0,lte=10000"`
	Symbol     string `json:"symbol"`
	RequestID  string `json:"request_id"`
}
