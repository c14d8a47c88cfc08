// Package explain attributes model outputs to input features with sampled
// Shapley values measured against a background reference set.
package explain

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
)

// Predictor is the model output being explained.
type Predictor func(X [][]float64) []float64

type Option func(*Analyzer)

// WithPermutations sets how many feature orderings are sampled per query row.
func WithPermutations(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.permutations = n
		}
	}
}

func WithBackgroundSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.backgroundSize = n
		}
	}
}

func WithMaxSamples(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxSamples = n
		}
	}
}

func WithSeed(seed int64) Option {
	return func(a *Analyzer) { a.seed = seed }
}

type Analyzer struct {
	predict        Predictor
	names          []string
	background     [][]float64
	baseline       float64
	permutations   int
	backgroundSize int
	maxSamples     int
	seed           int64
	perms          [][]int
}

// New explains m through probabilities for classifiers and raw predictions
// for regressors.
func New(m domsvc.Model, names []string, reference [][]float64, opts ...Option) (*Analyzer, error) {
	if m.NumFeatures() != len(names) {
		return nil, fmt.Errorf("model has %d features, got %d names", m.NumFeatures(), len(names))
	}
	return NewWithPredictor(domsvc.Scorer(m), names, reference, opts...)
}

func NewWithPredictor(predict Predictor, names []string, reference [][]float64, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		predict:        predict,
		names:          names,
		permutations:   8,
		backgroundSize: 100,
		maxSamples:     500,
		seed:           42,
	}
	for _, o := range opts {
		o(a)
	}
	if len(reference) == 0 {
		return nil, &models.InsufficientDataError{Stage: "explain", Need: 1, Have: 0}
	}
	for i, row := range reference {
		if len(row) != len(names) {
			return nil, &models.SchemaValidationError{Field: "background", Index: i,
				Reason: fmt.Sprintf("row has %d values, want %d", len(row), len(names))}
		}
	}

	rng := rand.New(rand.NewSource(a.seed))
	a.background = sampleRows(rng, reference, a.backgroundSize)
	a.perms = make([][]int, a.permutations)
	for p := range a.perms {
		a.perms[p] = rng.Perm(len(names))
	}

	out := a.predict(a.background)
	for _, v := range out {
		a.baseline += v
	}
	a.baseline /= float64(len(out))
	return a, nil
}

// sampleRows draws k rows without replacement, kept in their original order.
func sampleRows(rng *rand.Rand, rows [][]float64, k int) [][]float64 {
	if k >= len(rows) {
		return rows
	}
	idx := rng.Perm(len(rows))[:k]
	sort.Ints(idx)
	out := make([][]float64, k)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// Baseline is the mean model output over the background set.
func (a *Analyzer) Baseline() float64 { return a.baseline }

func (a *Analyzer) FeatureNames() []string { return a.names }

// MaxSamples caps how many query rows aggregate importance considers.
func (a *Analyzer) MaxSamples() int { return a.maxSamples }

// Attribute computes contributions for one row. Baseline plus the sum of
// the values equals the model output for x.
func (a *Analyzer) Attribute(x []float64) (models.Attribution, error) {
	d := len(a.names)
	if len(x) != d {
		return models.Attribution{}, &models.SchemaValidationError{Field: "query", Index: -1,
			Reason: fmt.Sprintf("row has %d values, want %d", len(x), d)}
	}

	// One batch covers every (permutation, background) walk: d+1 rows each,
	// starting at the background row and switching one feature per step.
	walks := len(a.perms) * len(a.background)
	batch := make([][]float64, 0, walks*(d+1))
	for _, perm := range a.perms {
		for _, b := range a.background {
			z := append([]float64(nil), b...)
			batch = append(batch, append([]float64(nil), z...))
			for _, j := range perm {
				z[j] = x[j]
				batch = append(batch, append([]float64(nil), z...))
			}
		}
	}
	out := a.predict(batch)

	phi := make([]float64, d)
	k := 0
	for _, perm := range a.perms {
		for range a.background {
			prev := out[k]
			for step, j := range perm {
				cur := out[k+step+1]
				phi[j] += cur - prev
				prev = cur
			}
			k += d + 1
		}
	}
	for j := range phi {
		phi[j] /= float64(walks)
	}
	return models.Attribution{
		Baseline: a.baseline,
		Output:   a.predict([][]float64{x})[0],
		Values:   phi,
	}, nil
}

// Explain attributes every row of X, stopping early if ctx is done.
func (a *Analyzer) Explain(ctx context.Context, X [][]float64) ([]models.Attribution, error) {
	out := make([]models.Attribution, 0, len(X))
	for i, x := range X {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attr, err := a.Attribute(x)
		if err != nil {
			return nil, &models.StageError{Stage: "explain", Index: i, Err: err}
		}
		out = append(out, attr)
	}
	return out, nil
}
