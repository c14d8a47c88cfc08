package models

import (
	"fmt"
	"math"
	"time"
)

type TargetType string

const (
	TargetDirection  TargetType = "direction"
	TargetReturns    TargetType = "returns"
	TargetVolatility TargetType = "volatility"
)

func ParseTargetType(s string) (TargetType, error) {
	switch t := TargetType(s); t {
	case TargetDirection, TargetReturns, TargetVolatility:
		return t, nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// IsClassification reports whether the target is a binary label.
func (t TargetType) IsClassification() bool { return t == TargetDirection }

// Undefined marks a feature or label value that cannot be computed yet.
func Undefined() float64 { return math.NaN() }

// Defined reports whether v carries a real value.
func Defined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FeatureRow holds the features of one timestamp.
type FeatureRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// FeatureFrame is the row-major output of feature engineering. Row i belongs
// to bar BarIndex[i]; undefined values are NaN.
type FeatureFrame struct {
	Names      []string
	Timestamps []time.Time
	BarIndex   []int
	Rows       [][]float64
}

func (f *FeatureFrame) Len() int { return len(f.Rows) }

// Row returns row i as a named mapping.
func (f *FeatureFrame) Row(i int) FeatureRow {
	values := make(map[string]float64, len(f.Names))
	for j, name := range f.Names {
		values[name] = f.Rows[i][j]
	}
	return FeatureRow{Timestamp: f.Timestamps[i], Values: values}
}

// Complete reports whether row i has no undefined value.
func (f *FeatureFrame) Complete(i int) bool {
	for _, v := range f.Rows[i] {
		if !Defined(v) {
			return false
		}
	}
	return true
}

// LabeledSample pairs a feature row with its forward-looking label.
type LabeledSample struct {
	Features FeatureRow `json:"features"`
	Label    float64    `json:"label"`
}

// Dataset is a chronologically ordered design matrix with labels.
type Dataset struct {
	FeatureNames []string
	Target       TargetType
	Timestamps   []time.Time
	BarIndex     []int
	X            [][]float64
	Y            []float64
}

func (d *Dataset) Len() int { return len(d.Y) }

// Slice returns rows [lo, hi) sharing the underlying storage.
func (d *Dataset) Slice(lo, hi int) *Dataset {
	return &Dataset{
		FeatureNames: d.FeatureNames,
		Target:       d.Target,
		Timestamps:   d.Timestamps[lo:hi],
		BarIndex:     d.BarIndex[lo:hi],
		X:            d.X[lo:hi],
		Y:            d.Y[lo:hi],
	}
}

// Range is Slice over an IndexRange.
func (d *Dataset) Range(r IndexRange) *Dataset { return d.Slice(r.Start, r.End) }

// Sample returns row i as a LabeledSample.
func (d *Dataset) Sample(i int) LabeledSample {
	values := make(map[string]float64, len(d.FeatureNames))
	for j, name := range d.FeatureNames {
		values[name] = d.X[i][j]
	}
	return LabeledSample{
		Features: FeatureRow{Timestamp: d.Timestamps[i], Values: values},
		Label:    d.Y[i],
	}
}
