// Package target turns forward price behaviour into supervised labels.
package target

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"BoostLab/internal/domain/models"
)

const stage = "target"

type Builder struct {
	kind      models.TargetType
	horizon   int
	threshold float64
}

// New returns a builder for the given target type and horizon (bars forward).
// threshold only applies to direction labels.
func New(kind models.TargetType, horizon int, threshold float64) (*Builder, error) {
	if _, err := models.ParseTargetType(string(kind)); err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be >= 1, got %d", horizon)
	}
	return &Builder{kind: kind, horizon: horizon, threshold: threshold}, nil
}

func (b *Builder) Type() models.TargetType { return b.kind }

func (b *Builder) Horizon() int { return b.horizon }

// Labels returns one label per bar. Label i reads only bars (i, i+H] plus
// close[i] as the base; bars without a full horizon are NaN.
func (b *Builder) Labels(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = models.Undefined()
		j := i + b.horizon
		if j >= len(bars) {
			continue
		}
		base := bars[i].Close
		switch b.kind {
		case models.TargetDirection:
			if bars[j].Close/base-1 > b.threshold {
				out[i] = 1
			} else {
				out[i] = 0
			}
		case models.TargetReturns:
			out[i] = bars[j].Close/base - 1
		case models.TargetVolatility:
			rets := make([]float64, 0, b.horizon)
			prev := base
			for k := i + 1; k <= j; k++ {
				rets = append(rets, bars[k].Close/prev-1)
				prev = bars[k].Close
			}
			_, out[i] = stat.PopMeanStdDev(rets, nil)
		}
	}
	return out
}

// Build joins a feature frame with labels. Rows with any undefined feature or
// without a label are excluded; order is preserved.
func (b *Builder) Build(bars []models.PriceBar, frame *models.FeatureFrame) (*models.Dataset, error) {
	labels := b.Labels(bars)
	ds := &models.Dataset{
		FeatureNames: frame.Names,
		Target:       b.kind,
	}
	for r := 0; r < frame.Len(); r++ {
		idx := frame.BarIndex[r]
		if idx < 0 || idx >= len(bars) {
			return nil, &models.StageError{Stage: stage, Index: idx, Timestamp: frame.Timestamps[r],
				Err: fmt.Errorf("feature row refers to missing bar")}
		}
		if !frame.Complete(r) || !models.Defined(labels[idx]) {
			continue
		}
		ds.Timestamps = append(ds.Timestamps, frame.Timestamps[r])
		ds.BarIndex = append(ds.BarIndex, idx)
		ds.X = append(ds.X, frame.Rows[r])
		ds.Y = append(ds.Y, labels[idx])
	}
	if ds.Len() == 0 {
		return nil, &models.InsufficientDataError{Stage: stage, Need: b.horizon + 1, Have: len(bars)}
	}
	return ds, nil
}
