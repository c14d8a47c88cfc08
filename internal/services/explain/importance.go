package explain

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"BoostLab/internal/domain/models"
)

// Method aggregates a feature's attributions across query rows.
type Method string

const (
	MeanAbs Method = "mean_abs"
	Mean    Method = "mean"
	Std     Method = "std"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MeanAbs:
		return MeanAbs, nil
	case Mean, Std:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown importance method %q", s)
}

// Importance aggregates attributions per feature and sorts by descending
// importance. top <= 0 keeps every feature.
func Importance(names []string, attrs []models.Attribution, method Method, top int) ([]models.FeatureImportance, error) {
	if len(attrs) == 0 {
		return nil, &models.InsufficientDataError{Stage: "explain", Need: 1, Have: 0}
	}
	out := make([]models.FeatureImportance, len(names))
	col := make([]float64, len(attrs))
	for j, name := range names {
		for i, a := range attrs {
			col[i] = a.Values[j]
		}
		var v float64
		switch method {
		case MeanAbs, "":
			for _, c := range col {
				v += math.Abs(c)
			}
			v /= float64(len(col))
		case Mean:
			v = stat.Mean(col, nil)
		case Std:
			v = stat.PopStdDev(col, nil)
		default:
			return nil, fmt.Errorf("unknown importance method %q", method)
		}
		out[j] = models.FeatureImportance{Feature: name, Importance: v}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Importance != out[b].Importance {
			return out[a].Importance > out[b].Importance
		}
		return out[a].Feature < out[b].Feature
	})
	if top > 0 && top < len(out) {
		out = out[:top]
	}
	return out, nil
}

// GlobalImportance explains at most MaxSamples of the trailing query rows and
// aggregates them.
func (a *Analyzer) GlobalImportance(ctx context.Context, X [][]float64, method Method, top int) ([]models.FeatureImportance, int, error) {
	if len(X) > a.maxSamples {
		X = X[len(X)-a.maxSamples:]
	}
	attrs, err := a.Explain(ctx, X)
	if err != nil {
		return nil, 0, err
	}
	imp, err := Importance(a.names, attrs, method, top)
	return imp, len(attrs), err
}

// ExplainPrediction reports the top contributions for one row, largest
// magnitude first.
func (a *Analyzer) ExplainPrediction(x []float64, top int) (*models.Explanation, error) {
	attr, err := a.Attribute(x)
	if err != nil {
		return nil, err
	}
	contribs := make([]models.Contribution, len(a.names))
	for j, name := range a.names {
		contribs[j] = models.Contribution{Feature: name, Value: x[j], Contribution: attr.Values[j]}
	}
	sort.SliceStable(contribs, func(i, k int) bool {
		return math.Abs(contribs[i].Contribution) > math.Abs(contribs[k].Contribution)
	})
	if top > 0 && top < len(contribs) {
		contribs = contribs[:top]
	}
	return &models.Explanation{Baseline: attr.Baseline, Prediction: attr.Output, Contributions: contribs}, nil
}
