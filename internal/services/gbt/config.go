package gbt

import (
	"fmt"

	"BoostLab/internal/domain/models"
	"BoostLab/internal/services/scoring"
)

type Objective string

const (
	Binary     Objective = "binary"
	Regression Objective = "regression"
)

// ObjectiveFor maps a target type to its loss.
func ObjectiveFor(t models.TargetType) Objective {
	if t.IsClassification() {
		return Binary
	}
	return Regression
}

// Config holds booster hyperparameters. Family decides how trees grow:
// lightgbm splits the best leaf first, xgboost grows level by level.
type Config struct {
	Family         models.ModelType `json:"family"`
	Objective      Objective        `json:"objective"`
	NEstimators    int              `json:"n_estimators"`
	LearningRate   float64          `json:"learning_rate"`
	MaxDepth       int              `json:"max_depth"`
	NumLeaves      int              `json:"num_leaves"`
	MinDataInLeaf  int              `json:"min_data_in_leaf"`
	MinChildWeight float64          `json:"min_child_weight"`
	Lambda         float64          `json:"reg_lambda"`
	Alpha          float64          `json:"reg_alpha"`
	Gamma          float64          `json:"gamma"`
	Subsample      float64          `json:"subsample"`
	ColSample      float64          `json:"colsample_bytree"`
	MaxBins        int              `json:"max_bin"`
	EvalMetric     scoring.Metric   `json:"eval_metric"`
	Seed           int64            `json:"seed"`
}

// DefaultConfig mirrors the reference defaults of each family.
func DefaultConfig(family models.ModelType, obj Objective) Config {
	c := Config{
		Family:       family,
		Objective:    obj,
		NEstimators:  100,
		LearningRate: 0.1,
		Subsample:    1,
		ColSample:    1,
		MaxBins:      255,
		EvalMetric:   scoring.Default(obj == Binary),
		Seed:         42,
	}
	switch family {
	case models.ModelXGBoost:
		c.MaxDepth = 6
		c.MinDataInLeaf = 1
		c.MinChildWeight = 1
		c.Lambda = 1
	default:
		c.MaxDepth = -1
		c.NumLeaves = 31
		c.MinDataInLeaf = 20
		c.MinChildWeight = 1e-3
	}
	return c
}

// ConfigFromParams overlays tuned parameters on the family defaults.
// Both lightgbm and xgboost spellings are accepted.
func ConfigFromParams(family models.ModelType, obj Objective, p models.Params) Config {
	c := DefaultConfig(family, obj)
	c.NEstimators = p.Int("n_estimators", c.NEstimators)
	c.LearningRate = p.Float("learning_rate", c.LearningRate)
	c.MaxDepth = p.Int("max_depth", c.MaxDepth)
	c.NumLeaves = p.Int("num_leaves", c.NumLeaves)
	c.MinDataInLeaf = p.Int("min_child_samples", p.Int("min_data_in_leaf", c.MinDataInLeaf))
	c.MinChildWeight = p.Float("min_child_weight", c.MinChildWeight)
	c.Lambda = p.Float("reg_lambda", p.Float("lambda", c.Lambda))
	c.Alpha = p.Float("reg_alpha", p.Float("alpha", c.Alpha))
	c.Gamma = p.Float("gamma", p.Float("min_split_gain", c.Gamma))
	c.Subsample = p.Float("subsample", c.Subsample)
	c.ColSample = p.Float("colsample_bytree", c.ColSample)
	c.MaxBins = p.Int("max_bin", c.MaxBins)
	if v, ok := p["seed"]; ok {
		c.Seed = int64(v)
	}
	return c
}

func (c Config) Validate() error {
	switch c.Family {
	case models.ModelLightGBM, models.ModelXGBoost:
	default:
		return fmt.Errorf("unknown model family %q", c.Family)
	}
	switch c.Objective {
	case Binary, Regression:
	default:
		return fmt.Errorf("unknown objective %q", c.Objective)
	}
	if c.NEstimators < 1 {
		return fmt.Errorf("n_estimators must be >= 1, got %d", c.NEstimators)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %v", c.LearningRate)
	}
	if c.Family == models.ModelLightGBM && c.NumLeaves < 2 {
		return fmt.Errorf("num_leaves must be >= 2, got %d", c.NumLeaves)
	}
	if c.Family == models.ModelXGBoost && c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1, got %d", c.MaxDepth)
	}
	if c.Subsample <= 0 || c.Subsample > 1 || c.ColSample <= 0 || c.ColSample > 1 {
		return fmt.Errorf("subsample and colsample_bytree must be in (0, 1]")
	}
	if c.Lambda < 0 || c.Alpha < 0 || c.Gamma < 0 || c.MinChildWeight < 0 {
		return fmt.Errorf("regularization terms must be non-negative")
	}
	if c.MaxBins < 2 || c.MaxBins > 65535 {
		return fmt.Errorf("max_bin must be in [2, 65535], got %d", c.MaxBins)
	}
	if c.EvalMetric.ForClassification() != (c.Objective == Binary) {
		return fmt.Errorf("eval metric %q does not fit objective %q", c.EvalMetric, c.Objective)
	}
	return nil
}
