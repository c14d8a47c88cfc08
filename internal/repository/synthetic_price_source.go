package repository

import (
	"context"
	"time"

	"BoostLab/internal/domain/models"
	domrepo "BoostLab/internal/domain/repository"
	"BoostLab/internal/services/synthetic"
)

// SyntheticPriceSource serves a seeded random walk, for demos and smoke runs.
type SyntheticPriceSource struct {
	bars []models.PriceBar
}

var _ domrepo.PriceSeriesSource = (*SyntheticPriceSource)(nil)

func NewSyntheticPriceSource(n int, seed int64) *SyntheticPriceSource {
	return &SyntheticPriceSource{bars: synthetic.RandomWalk(n, seed)}
}

// NewStaticPriceSource serves a fixed series regardless of symbol.
func NewStaticPriceSource(bars []models.PriceBar) *SyntheticPriceSource {
	return &SyntheticPriceSource{bars: bars}
}

func (s *SyntheticPriceSource) GetBars(ctx context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.PriceBar, 0, len(s.bars))
	for _, b := range s.bars {
		if (from.IsZero() || !b.Timestamp.Before(from)) && (to.IsZero() || !b.Timestamp.After(to)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *SyntheticPriceSource) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.PriceBar, error) {
	bars, err := s.GetBars(ctx, symbol, time.Time{}, time.Time{}, tf)
	if err != nil || n <= 0 || len(bars) <= n {
		return bars, err
	}
	return bars[len(bars)-n:], nil
}
