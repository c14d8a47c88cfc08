// Package gbt implements second-order gradient-boosted regression trees with
// two growth families: leaf-wise (lightgbm) and depth-wise (xgboost).
package gbt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
)

const (
	formatName    = "boostlab-gbt"
	formatVersion = 1
)

// Booster is an additive ensemble of trees over a constant base score.
type Booster struct {
	cfg       Config
	baseScore float64
	trees     []Tree
	nFeatures int
	bestIter  int
}

func New(cfg Config) (*Booster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Booster{cfg: cfg}, nil
}

func (b *Booster) Config() Config { return b.cfg }

func (b *Booster) Family() models.ModelType { return b.cfg.Family }

func (b *Booster) Classifier() bool { return b.cfg.Objective == Binary }

func (b *Booster) NumFeatures() int { return b.nFeatures }

func (b *Booster) NumTrees() int { return len(b.trees) }

// BestIteration is the zero-based round kept after early stopping.
func (b *Booster) BestIteration() int { return b.bestIter }

func checkMatrix(X [][]float64, y []float64, nFeatures int, binary bool) error {
	if len(X) != len(y) {
		return fmt.Errorf("rows = %d, labels = %d", len(X), len(y))
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d feature %d is not finite", i, j)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("label %d is not finite", i)
		}
		if binary && y[i] != 0 && y[i] != 1 {
			return fmt.Errorf("label %d = %v, binary objective needs 0 or 1", i, y[i])
		}
	}
	return nil
}

// Fit trains from scratch. With a validation set and a positive patience the
// ensemble is truncated to the best validation round.
func (b *Booster) Fit(ctx context.Context, X [][]float64, y []float64, opts domsvc.FitOptions) (domsvc.Trajectory, error) {
	traj := domsvc.Trajectory{Metric: string(b.cfg.EvalMetric)}
	if len(X) < 2 {
		return traj, &models.InsufficientDataError{Stage: "fit", Need: 2, Have: len(X)}
	}
	binary := b.Classifier()
	nf := len(X[0])
	if nf == 0 {
		return traj, errors.New("fit: no features")
	}
	if err := checkMatrix(X, y, nf, binary); err != nil {
		return traj, fmt.Errorf("fit: %w", err)
	}
	hasValid := len(opts.ValidX) > 0
	if hasValid {
		if err := checkMatrix(opts.ValidX, opts.ValidY, nf, binary); err != nil {
			return traj, fmt.Errorf("fit validation set: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(b.cfg.Seed))
	bn := newBinner(X, nf, b.cfg.MaxBins)
	gr := &grower{
		cfg:   &b.cfg,
		bins:  bn.columns(X),
		edges: bn.edges,
		grad:  make([]float64, len(X)),
		hess:  make([]float64, len(X)),
	}

	b.nFeatures = nf
	b.trees = b.trees[:0]
	b.baseScore = initialScore(y, binary)
	F := constant(len(X), b.baseScore)
	var Fv []float64
	if hasValid {
		Fv = constant(len(opts.ValidX), b.baseScore)
	}

	metric := b.cfg.EvalMetric
	patience := opts.EarlyStoppingRounds
	best := metric.Worst()
	b.bestIter = -1

	for round := 0; round < b.cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return traj, fmt.Errorf("fit round %d: %w", round, err)
		}
		b.gradients(F, y, gr.grad, gr.hess)
		rows := sampleIndices(rng, len(X), b.cfg.Subsample)
		gr.features = sampleIndices(rng, nf, b.cfg.ColSample)

		var t Tree
		if b.cfg.Family == models.ModelXGBoost {
			t = gr.growDepthWise(rows)
		} else {
			t = gr.growLeafWise(rows)
		}
		b.trees = append(b.trees, t)

		for i, row := range X {
			F[i] += t.predict(row)
		}
		traj.Train = append(traj.Train, metric.Eval(y, b.link(F)))

		if !hasValid {
			b.bestIter = round
			continue
		}
		for i, row := range opts.ValidX {
			Fv[i] += t.predict(row)
		}
		score := metric.Eval(opts.ValidY, b.link(Fv))
		traj.Validation = append(traj.Validation, score)
		if b.bestIter < 0 || metric.Better(score, best) {
			best, b.bestIter = score, round
		}
		if patience > 0 && round-b.bestIter >= patience {
			traj.Stopped = true
			break
		}
	}

	if hasValid && patience > 0 {
		b.trees = b.trees[:b.bestIter+1]
		traj.BestScore = best
	} else {
		b.bestIter = len(b.trees) - 1
		traj.BestScore = traj.Train[len(traj.Train)-1]
		if hasValid {
			traj.BestScore = traj.Validation[len(traj.Validation)-1]
		}
	}
	traj.BestIteration = b.bestIter
	return traj, nil
}

func (b *Booster) gradients(F, y, grad, hess []float64) {
	if b.Classifier() {
		for i := range F {
			p := sigmoid(F[i])
			grad[i] = p - y[i]
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
		return
	}
	for i := range F {
		grad[i] = F[i] - y[i]
		hess[i] = 1
	}
}

func (b *Booster) link(F []float64) []float64 {
	if !b.Classifier() {
		return F
	}
	out := make([]float64, len(F))
	for i, v := range F {
		out[i] = sigmoid(v)
	}
	return out
}

// Margin returns the raw additive score of each row.
func (b *Booster) Margin(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		s := b.baseScore
		for k := range b.trees {
			s += b.trees[k].predict(row)
		}
		out[i] = s
	}
	return out
}

// Predict returns class labels for classifiers and values for regressors.
func (b *Booster) Predict(X [][]float64) []float64 {
	m := b.Margin(X)
	if b.Classifier() {
		for i, v := range m {
			if v > 0 {
				m[i] = 1
			} else {
				m[i] = 0
			}
		}
	}
	return m
}

func (b *Booster) PredictProbability(X [][]float64) ([]float64, error) {
	if !b.Classifier() {
		return nil, models.ErrNotClassifier
	}
	return b.link(b.Margin(X)), nil
}

type modelFile struct {
	Format        string  `json:"format"`
	Version       int     `json:"version"`
	Config        Config  `json:"config"`
	BaseScore     float64 `json:"base_score"`
	NumFeatures   int     `json:"num_features"`
	BestIteration int     `json:"best_iteration"`
	Trees         []Tree  `json:"trees"`
}

func (b *Booster) MarshalBinary() ([]byte, error) {
	return json.Marshal(modelFile{
		Format:        formatName,
		Version:       formatVersion,
		Config:        b.cfg,
		BaseScore:     b.baseScore,
		NumFeatures:   b.nFeatures,
		BestIteration: b.bestIter,
		Trees:         b.trees,
	})
}

// Load decodes a booster written by MarshalBinary.
func Load(data []byte) (*Booster, error) {
	var f modelFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if f.Format != formatName || f.Version != formatVersion {
		return nil, fmt.Errorf("unsupported model format %s v%d", f.Format, f.Version)
	}
	if err := f.Config.Validate(); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	for ti, t := range f.Trees {
		for ni, n := range t.Nodes {
			if n.Left < 0 {
				continue
			}
			if n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) || n.Left <= ni || n.Right <= ni ||
				n.Feature < 0 || n.Feature >= f.NumFeatures {
				return nil, fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
	}
	return &Booster{
		cfg:       f.Config,
		baseScore: f.BaseScore,
		trees:     f.Trees,
		nFeatures: f.NumFeatures,
		bestIter:  f.BestIteration,
	}, nil
}

func initialScore(y []float64, binary bool) float64 {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	if !binary {
		return mean
	}
	p := math.Min(math.Max(mean, 1e-6), 1-1e-6)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// sampleIndices draws round(frac*n) sorted indices without replacement.
func sampleIndices(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	out := rng.Perm(n)[:k]
	sort.Ints(out)
	return out
}

var _ domsvc.Model = (*Booster)(nil)
