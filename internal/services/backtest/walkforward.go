package backtest

import (
	"context"
	"fmt"

	"BoostLab/internal/domain/models"
)

// FitFunc trains on a window and returns a scoring function for new rows.
type FitFunc func(ctx context.Context, train *models.Dataset) (func([][]float64) []float64, error)

// WalkForward retrains on a sliding window and predicts the following step.
// Purge drops the last rows of each window whose labels reach into the
// predicted block; set it to the label horizon.
type WalkForward struct {
	TrainWindow int
	Step        int
	Purge       int
}

// Segment is one retrain-and-predict block.
type Segment struct {
	Train models.IndexRange `json:"train" yaml:"train"`
	Test  models.IndexRange `json:"test" yaml:"test"`
}

func (w WalkForward) Segments(n int) ([]Segment, error) {
	if w.TrainWindow <= w.Purge || w.Step < 1 {
		return nil, fmt.Errorf("walk-forward needs train_window > purge and step >= 1")
	}
	if n <= w.TrainWindow {
		return nil, &models.InsufficientDataError{Stage: stage, Need: w.TrainWindow + 1, Have: n}
	}
	var out []Segment
	for start := w.TrainWindow; start < n; start += w.Step {
		end := start + w.Step
		if end > n {
			end = n
		}
		out = append(out, Segment{
			Train: models.IndexRange{Start: start - w.TrainWindow, End: start - w.Purge},
			Test:  models.IndexRange{Start: start, End: end},
		})
	}
	return out, nil
}

// Signals produces out-of-sample signals for every row after the first window.
// The returned indexes locate each signal's row in ds.
func (w WalkForward) Signals(ctx context.Context, ds *models.Dataset, fit FitFunc, policy ThresholdPolicy) ([]models.Signal, []int, error) {
	segs, err := w.Segments(ds.Len())
	if err != nil {
		return nil, nil, err
	}
	var signals []models.Signal
	var rows []int
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		score, err := fit(ctx, ds.Range(seg.Train))
		if err != nil {
			return nil, nil, &models.StageError{Stage: stage, Index: seg.Test.Start,
				Timestamp: ds.Timestamps[seg.Test.Start], Err: fmt.Errorf("walk-forward fit: %w", err)}
		}
		test := ds.Range(seg.Test)
		signals = append(signals, policy.Signals(test.Timestamps, score(test.X))...)
		for i := seg.Test.Start; i < seg.Test.End; i++ {
			rows = append(rows, i)
		}
	}
	return signals, rows, nil
}
