package models

import "time"

// TrainingReport summarizes one pipeline run.
type TrainingReport struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	ArtifactID string             `json:"artifact_id" yaml:"artifact_id"`
	ModelType  ModelType          `json:"model_type" yaml:"model_type"`
	TargetType TargetType         `json:"target_type" yaml:"target_type"`
	Metric     string             `json:"metric" yaml:"metric"`
	BestParams Params             `json:"best_params" yaml:"best_params"`
	BestScore  float64            `json:"best_score" yaml:"best_score"`
	Trials     *TrialSummary      `json:"trials" yaml:"trials"`
	Cancelled  bool               `json:"cancelled" yaml:"cancelled"`
	TimedOut   bool               `json:"timed_out" yaml:"timed_out"`
	Metrics    map[string]float64 `json:"metrics" yaml:"metrics"`
	BestRound  int                `json:"best_iteration" yaml:"best_iteration"`
	Samples    int                `json:"samples" yaml:"samples"`
	Durations  map[string]float64 `json:"durations_seconds" yaml:"durations_seconds"`
	FinishedAt time.Time          `json:"finished_at" yaml:"finished_at"`
}

// Capabilities records which optional collaborators are usable in this process.
type Capabilities struct {
	Explain    bool `json:"explain"`
	Redis      bool `json:"redis"`
	Kafka      bool `json:"kafka"`
	ClickHouse bool `json:"clickhouse"`
	Insight    bool `json:"insight"`
}

// Prediction is one scored row returned by the predict endpoint.
type Prediction struct {
	Score    float64  `json:"score"`
	Position Position `json:"position"`
}
