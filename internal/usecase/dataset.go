package usecase

import (
	"context"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	"BoostLab/internal/services/features"
	"BoostLab/internal/services/target"
	"BoostLab/pkg/util"
)

// window is the slice of history one run reads.
type window struct {
	Symbol    string
	Timeframe drepo.Timeframe
	From      time.Time
	To        time.Time
}

func parseWindow(symbol, tf, from, to string) (window, error) {
	w := window{Symbol: symbol, Timeframe: drepo.NormalizeTimeframe(tf)}
	if tf != "" && !drepo.IsValidTimeframe(drepo.Timeframe(tf)) {
		return w, &models.SchemaValidationError{Field: "timeframe", Index: -1, Reason: fmt.Sprintf("unsupported timeframe %q", tf)}
	}
	var ok bool
	if from != "" {
		if w.From, ok = util.ParseTime(from); !ok {
			return w, &models.SchemaValidationError{Field: "from", Index: -1, Reason: fmt.Sprintf("cannot parse %q", from)}
		}
	}
	if to != "" {
		if w.To, ok = util.ParseTime(to); !ok {
			return w, &models.SchemaValidationError{Field: "to", Index: -1, Reason: fmt.Sprintf("cannot parse %q", to)}
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return w, &models.SchemaValidationError{Field: "from", Index: -1, Reason: "must be before to"}
	}
	return w, nil
}

func loadBars(ctx context.Context, src drepo.PriceSeriesSource, w window) ([]models.PriceBar, error) {
	bars, err := src.GetBars(ctx, w.Symbol, w.From, w.To, w.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load bars %s/%s: %w", w.Symbol, w.Timeframe, err)
	}
	if len(bars) == 0 {
		return nil, &models.InsufficientDataError{Stage: "load", Need: 1, Have: 0}
	}
	return bars, nil
}

// periodsPerYear keeps the configured value for daily bars and derives it
// from the bar length otherwise.
func periodsPerYear(configured float64, tf drepo.Timeframe) float64 {
	if tf == drepo.TF1d && configured > 0 {
		return configured
	}
	return tf.BarsPerYear()
}

// scoringRows are the complete feature rows, the only ones a model can score.
type scoringRows struct {
	X          [][]float64
	Timestamps []time.Time
	BarIndex   []int
}

func completeRows(frame *models.FeatureFrame) scoringRows {
	var out scoringRows
	for i := 0; i < frame.Len(); i++ {
		if !frame.Complete(i) {
			continue
		}
		out.X = append(out.X, frame.Rows[i])
		out.Timestamps = append(out.Timestamps, frame.Timestamps[i])
		out.BarIndex = append(out.BarIndex, frame.BarIndex[i])
	}
	return out
}

// featureRows rebuilds the feature matrix in a saved column order.
func featureRows(bars []models.PriceBar, names []string) (scoringRows, error) {
	eng, err := features.NewEngineer(names)
	if err != nil {
		return scoringRows{}, err
	}
	frame, err := eng.Transform(bars)
	if err != nil {
		return scoringRows{}, err
	}
	rows := completeRows(frame)
	if len(rows.X) == 0 {
		return rows, &models.InsufficientDataError{Stage: "features", Need: eng.WarmUp() + 1, Have: len(bars)}
	}
	return rows, nil
}

// labeledDataset runs features then target for one configuration.
func labeledDataset(bars []models.PriceBar, names []string, kind models.TargetType, horizon int, threshold float64) (*models.Dataset, error) {
	eng, err := features.NewEngineer(names)
	if err != nil {
		return nil, err
	}
	frame, err := eng.Transform(bars)
	if err != nil {
		return nil, err
	}
	tb, err := target.New(kind, horizon, threshold)
	if err != nil {
		return nil, err
	}
	return tb.Build(bars, frame)
}
