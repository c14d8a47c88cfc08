package models

import (
	"fmt"
	"time"
)

// ModelType selects the boosting family. It is a closed set.
type ModelType string

const (
	ModelLightGBM ModelType = "lightgbm"
	ModelXGBoost  ModelType = "xgboost"
)

func ParseModelType(s string) (ModelType, error) {
	switch t := ModelType(s); t {
	case ModelLightGBM, ModelXGBoost:
		return t, nil
	}
	return "", fmt.Errorf("unknown model type %q", s)
}

// ArtifactFormatVersion is bumped whenever the on-disk model layout changes.
const ArtifactFormatVersion = 1

// TrainingSnapshot captures the configuration a model was trained under,
// enough to rebuild its feature matrix.
type TrainingSnapshot struct {
	Symbol              string   `json:"symbol" yaml:"symbol"`
	Timeframe           string   `json:"timeframe" yaml:"timeframe"`
	Indicators          []string `json:"indicators" yaml:"indicators"`
	TargetType          string   `json:"target_type" yaml:"target_type"`
	Horizon             int      `json:"horizon" yaml:"horizon"`
	DirectionThreshold  float64  `json:"direction_threshold" yaml:"direction_threshold"`
	NSplits             int      `json:"n_splits" yaml:"n_splits"`
	Scheme              string   `json:"scheme" yaml:"scheme"`
	TestSize            float64  `json:"test_size" yaml:"test_size"`
	EarlyStoppingRounds int      `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
	SearchTrials        int      `json:"search_trials" yaml:"search_trials"`
	SearchMetric        string   `json:"search_metric" yaml:"search_metric"`
	Seed                int64    `json:"seed" yaml:"seed"`
	TrainRows           int      `json:"train_rows" yaml:"train_rows"`
	TestRows            int      `json:"test_rows" yaml:"test_rows"`
}

// ModelArtifact is a fitted model plus everything needed to reproduce its
// predictions. It is immutable once saved.
type ModelArtifact struct {
	ID             string             `json:"id" yaml:"id"`
	ModelType      ModelType          `json:"model_type" yaml:"model_type"`
	TargetType     TargetType         `json:"target_type" yaml:"target_type"`
	Model          []byte             `json:"-" yaml:"-"`
	Params         Params             `json:"params" yaml:"params"`
	Metrics        map[string]float64 `json:"metrics" yaml:"metrics"`
	FeatureNames   []string           `json:"feature_names" yaml:"feature_names"`
	TrainingConfig TrainingSnapshot   `json:"training_config" yaml:"training_config"`
	BestTrial      *TrialSummary      `json:"best_trial,omitempty" yaml:"best_trial,omitempty"`
	CreatedAt      time.Time          `json:"created_at" yaml:"created_at"`
	FormatVersion  int                `json:"format_version" yaml:"format_version"`
}

// ArtifactID builds the default id: model type plus creation time.
func ArtifactID(t ModelType, at time.Time) string {
	return fmt.Sprintf("%s_%s", t, at.UTC().Format("20060102_150405"))
}

// TrainingEvent is published when a training run persists an artifact.
type TrainingEvent struct {
	EventID    string             `json:"event_id"`
	RequestID  string             `json:"request_id,omitempty"`
	ArtifactID string             `json:"artifact_id"`
	ModelType  ModelType          `json:"model_type"`
	TargetType TargetType         `json:"target_type"`
	Metrics    map[string]float64 `json:"metrics"`
	BestParams Params             `json:"best_params"`
	CreatedAt  time.Time          `json:"created_at"`
}
