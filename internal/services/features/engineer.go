package features

import (
	"fmt"
	"math"
	"time"

	"BoostLab/internal/domain/models"
)

const stage = "features"

// Engineer turns OHLCV bars into a causal feature frame.
type Engineer struct {
	indicators []Indicator
	names      []string
	warmUp     int
}

// NewEngineer selects indicators by name. An empty list selects DefaultIndicators.
func NewEngineer(names []string) (*Engineer, error) {
	if len(names) == 0 {
		names = DefaultIndicators
	}
	e := &Engineer{}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		ind, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown indicator %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate indicator %q", name)
		}
		seen[name] = true
		e.indicators = append(e.indicators, ind)
		e.names = append(e.names, name)
		if ind.Lookback > e.warmUp {
			e.warmUp = ind.Lookback
		}
	}
	return e, nil
}

// Names returns the output column order.
func (e *Engineer) Names() []string { return append([]string(nil), e.names...) }

// WarmUp is the index of the first emitted row.
func (e *Engineer) WarmUp() int { return e.warmUp }

// Transform emits one row per bar from the warm-up offset on. Values that are
// still undefined stay NaN so the dataset builder can exclude them.
func (e *Engineer) Transform(bars []models.PriceBar) (*models.FeatureFrame, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	if len(bars) <= e.warmUp {
		return nil, &models.InsufficientDataError{Stage: stage, Need: e.warmUp + 1, Have: len(bars)}
	}

	columns := make([][]float64, len(e.indicators))
	for j, ind := range e.indicators {
		columns[j] = ind.Compute(bars)
	}

	n := len(bars) - e.warmUp
	frame := &models.FeatureFrame{
		Names:      e.Names(),
		Timestamps: make([]time.Time, 0, n),
		BarIndex:   make([]int, 0, n),
		Rows:       make([][]float64, 0, n),
	}
	for i := e.warmUp; i < len(bars); i++ {
		row := make([]float64, len(columns))
		for j := range columns {
			row[j] = columns[j][i]
		}
		frame.Timestamps = append(frame.Timestamps, bars[i].Timestamp)
		frame.BarIndex = append(frame.BarIndex, i)
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// ValidateBars rejects series that cannot be fed to feature computation.
func ValidateBars(bars []models.PriceBar) error {
	for i, b := range bars {
		fields := [...]struct {
			name string
			v    float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}}
		for _, f := range fields {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return &models.SchemaValidationError{Field: f.name, Index: i, Timestamp: b.Timestamp, Reason: "value is null or not finite"}
			}
			if f.v <= 0 {
				return &models.SchemaValidationError{Field: f.name, Index: i, Timestamp: b.Timestamp, Reason: "price must be positive"}
			}
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			return &models.SchemaValidationError{Field: "volume", Index: i, Timestamp: b.Timestamp, Reason: "volume must be a non-negative number"}
		}
		if b.Timestamp.IsZero() {
			return &models.SchemaValidationError{Field: "timestamp", Index: i, Timestamp: b.Timestamp, Reason: "timestamp is missing"}
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return &models.SchemaValidationError{Field: "timestamp", Index: i, Timestamp: b.Timestamp, Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}
