package repository

import (
	"context"
	"time"

	"BoostLab/internal/domain/models"
)

// Timeframe represents bar resolution.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// PriceSeriesSource provides read-only, chronologically ordered OHLCV bars.
type PriceSeriesSource interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.PriceBar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.PriceBar, error)
}
