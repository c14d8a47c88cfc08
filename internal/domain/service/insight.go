package service

import (
	"context"

	"BoostLab/internal/domain/models"
)

// TextInsightService turns precomputed backtest metrics into commentary.
type TextInsightService interface {
	Commentary(ctx context.Context, report *models.BacktestReport) (string, error)
	Enabled() bool
}
