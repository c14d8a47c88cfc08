package service

import (
	"context"

	"BoostLab/internal/domain/models"
)

// FitOptions carries the held-out split used for early stopping.
type FitOptions struct {
	ValidX              [][]float64
	ValidY              []float64
	EarlyStoppingRounds int
}

// Trajectory is the per-round metric history of one fit.
type Trajectory struct {
	Metric        string    `json:"metric" yaml:"metric"`
	Train         []float64 `json:"train" yaml:"train"`
	Validation    []float64 `json:"validation,omitempty" yaml:"validation,omitempty"`
	BestIteration int       `json:"best_iteration" yaml:"best_iteration"`
	BestScore     float64   `json:"best_score" yaml:"best_score"`
	Stopped       bool      `json:"stopped" yaml:"stopped"`
}

// Model is the capability surface every boosting family exposes.
type Model interface {
	// Fit checks ctx between boosting rounds.
	Fit(ctx context.Context, X [][]float64, y []float64, opts FitOptions) (Trajectory, error)
	Predict(X [][]float64) []float64
	// PredictProbability returns P(y=1). Regression models return models.ErrNotClassifier.
	PredictProbability(X [][]float64) ([]float64, error)
	Family() models.ModelType
	Classifier() bool
	NumFeatures() int
	MarshalBinary() ([]byte, error)
}

// Scorer picks the model output used downstream: probabilities for
// classifiers, raw predictions otherwise.
func Scorer(m Model) func([][]float64) []float64 {
	if m.Classifier() {
		return func(X [][]float64) []float64 {
			p, _ := m.PredictProbability(X)
			return p
		}
	}
	return m.Predict
}
