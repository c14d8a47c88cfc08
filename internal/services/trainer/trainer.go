// Package trainer fits boosted-tree models behind the domain Model capability
// and evaluates them on held-out data.
package trainer

import (
	"context"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/services/gbt"
	"BoostLab/internal/services/scoring"
	"BoostLab/internal/services/split"
)

type Option func(*Trainer)

// WithEvalMetric sets the early-stopping metric.
func WithEvalMetric(m scoring.Metric) Option {
	return func(t *Trainer) { t.metric = m }
}

// WithEarlyStopping sets the patience in boosting rounds. Zero disables it.
func WithEarlyStopping(rounds int) Option {
	return func(t *Trainer) { t.patience = rounds }
}

// WithValidationFraction sets the trailing share of a train split reserved
// for early stopping when no explicit validation set is given.
func WithValidationFraction(f float64) Option {
	return func(t *Trainer) { t.validFraction = f }
}

// WithBaseParams sets parameters applied under every tuned configuration.
func WithBaseParams(p models.Params) Option {
	return func(t *Trainer) { t.base = p.Clone() }
}

type Trainer struct {
	family        models.ModelType
	target        models.TargetType
	metric        scoring.Metric
	patience      int
	validFraction float64
	base          models.Params
}

type Result struct {
	Model      domsvc.Model
	Trajectory domsvc.Trajectory
	Params     models.Params
	Duration   time.Duration
}

func New(family models.ModelType, target models.TargetType, opts ...Option) (*Trainer, error) {
	if _, err := models.ParseModelType(string(family)); err != nil {
		return nil, err
	}
	if _, err := models.ParseTargetType(string(target)); err != nil {
		return nil, err
	}
	t := &Trainer{
		family:        family,
		target:        target,
		metric:        scoring.Default(target.IsClassification()),
		patience:      50,
		validFraction: 0.2,
		base:          models.Params{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metric.ForClassification() != target.IsClassification() {
		return nil, fmt.Errorf("metric %q does not fit target %q", t.metric, target)
	}
	return t, nil
}

func (t *Trainer) Family() models.ModelType { return t.family }

func (t *Trainer) Target() models.TargetType { return t.target }

// NewModel builds an unfitted model of the configured family.
func (t *Trainer) NewModel(params models.Params) (domsvc.Model, error) {
	cfg := gbt.ConfigFromParams(t.family, gbt.ObjectiveFor(t.target), t.base.Merge(params))
	cfg.EvalMetric = t.metric
	return gbt.New(cfg)
}

// LoadModel decodes a model produced by a previous fit.
func LoadModel(data []byte) (domsvc.Model, error) {
	return gbt.Load(data)
}

// Fit trains on ds, holding out its trailing rows for early stopping.
func (t *Trainer) Fit(ctx context.Context, ds *models.Dataset, params models.Params) (*Result, error) {
	if t.patience <= 0 {
		return t.FitWithValidation(ctx, ds, nil, params)
	}
	fit, valid := split.EarlyStopSplit(models.IndexRange{Start: 0, End: ds.Len()}, t.validFraction)
	if valid.Len() == 0 {
		return t.FitWithValidation(ctx, ds, nil, params)
	}
	return t.FitWithValidation(ctx, ds.Range(fit), ds.Range(valid), params)
}

// FitWithValidation trains on train and early-stops on valid when given.
func (t *Trainer) FitWithValidation(ctx context.Context, train, valid *models.Dataset, params models.Params) (*Result, error) {
	start := time.Now()
	m, err := t.NewModel(params)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	opts := domsvc.FitOptions{}
	if valid != nil && valid.Len() > 0 {
		opts.ValidX, opts.ValidY = valid.X, valid.Y
		opts.EarlyStoppingRounds = t.patience
	}
	traj, err := m.Fit(ctx, train.X, train.Y, opts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Model:      m,
		Trajectory: traj,
		Params:     t.base.Merge(params),
		Duration:   time.Since(start),
	}, nil
}

// Score evaluates m on ds with metric.
func Score(m domsvc.Model, ds *models.Dataset, metric scoring.Metric) float64 {
	return metric.Eval(ds.Y, domsvc.Scorer(m)(ds.X))
}

// Evaluate reports the standard metric set for the model's objective.
func Evaluate(m domsvc.Model, ds *models.Dataset) map[string]float64 {
	out := make(map[string]float64)
	if ds.Len() == 0 {
		return out
	}
	scores := domsvc.Scorer(m)(ds.X)
	metrics := []scoring.Metric{scoring.RMSE, scoring.MAE}
	if m.Classifier() {
		metrics = []scoring.Metric{scoring.AUC, scoring.LogLoss, scoring.Accuracy}
	}
	for _, metric := range metrics {
		out[string(metric)] = metric.Eval(ds.Y, scores)
	}
	return out
}
