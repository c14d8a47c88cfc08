// Package scoring holds the evaluation metrics shared by training, search and
// reporting.
package scoring

import (
	"fmt"
	"math"
	"sort"
)

type Metric string

const (
	AUC      Metric = "auc"
	LogLoss  Metric = "logloss"
	Accuracy Metric = "accuracy"
	RMSE     Metric = "rmse"
	MAE      Metric = "mae"
)

func Parse(s string) (Metric, error) {
	switch m := Metric(s); m {
	case AUC, LogLoss, Accuracy, RMSE, MAE:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Default is the early-stopping metric used when none is configured.
func Default(classification bool) Metric {
	if classification {
		return LogLoss
	}
	return RMSE
}

// SearchDefault is the trial objective used when none is configured.
func SearchDefault(classification bool) Metric {
	if classification {
		return AUC
	}
	return RMSE
}

// ForClassification reports whether m expects probabilities and 0/1 labels.
func (m Metric) ForClassification() bool {
	return m == AUC || m == LogLoss || m == Accuracy
}

func (m Metric) HigherIsBetter() bool { return m == AUC || m == Accuracy }

// Better reports whether a improves on b under m.
func (m Metric) Better(a, b float64) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// Worst is the sentinel score of a failed evaluation.
func (m Metric) Worst() float64 {
	if m.HigherIsBetter() {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

func (m Metric) Eval(y, pred []float64) float64 {
	switch m {
	case AUC:
		return ComputeAUC(y, pred)
	case LogLoss:
		return ComputeLogLoss(y, pred)
	case Accuracy:
		return ComputeAccuracy(y, pred)
	case MAE:
		return ComputeMAE(y, pred)
	default:
		return ComputeRMSE(y, pred)
	}
}

// ComputeAUC is the Mann-Whitney estimate with averaged ranks for ties.
// A single-class label set yields 0.5.
func ComputeAUC(y, p []float64) float64 {
	n := len(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && p[idx[j+1]] == p[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, sumPos float64
	for i, label := range y {
		if label > 0.5 {
			nPos++
			sumPos += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (sumPos - nPos*(nPos+1)/2) / (nPos * nNeg)
}

func ComputeLogLoss(y, p []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	const eps = 1e-15
	sum := 0.0
	for i := range y {
		q := math.Min(math.Max(p[i], eps), 1-eps)
		sum -= y[i]*math.Log(q) + (1-y[i])*math.Log(1-q)
	}
	return sum / float64(len(y))
}

func ComputeAccuracy(y, p []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	hit := 0
	for i := range y {
		if (p[i] > 0.5) == (y[i] > 0.5) {
			hit++
		}
	}
	return float64(hit) / float64(len(y))
}

func ComputeRMSE(y, p []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for i := range y {
		d := p[i] - y[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}

func ComputeMAE(y, p []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sum := 0.0
	for i := range y {
		sum += math.Abs(p[i] - y[i])
	}
	return sum / float64(len(y))
}
