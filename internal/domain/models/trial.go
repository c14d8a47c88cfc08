package models

import "time"

// Params maps hyperparameter names to values. Integer parameters hold whole numbers.
type Params map[string]float64

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Int reads an integer parameter or returns def when absent.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return def
}

// Float reads a float parameter or returns def when absent.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Merge returns p overlaid with o.
func (p Params) Merge(o Params) Params {
	out := p.Clone()
	for k, v := range o {
		out[k] = v
	}
	return out
}

type TrialStatus string

const (
	TrialCompleted TrialStatus = "completed"
	TrialFailed    TrialStatus = "failed"
	TrialPruned    TrialStatus = "pruned"
)

type TrialRecord struct {
	Number     int           `json:"number" yaml:"number"`
	Params     Params        `json:"params" yaml:"params"`
	FoldScores []float64     `json:"fold_scores" yaml:"fold_scores"`
	MeanScore  float64       `json:"mean_score" yaml:"mean_score"`
	StdScore   float64       `json:"std_score" yaml:"std_score"`
	Status     TrialStatus   `json:"status" yaml:"status"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// TrialSummary is the part of a search that survives into the artifact.
type TrialSummary struct {
	Number     int       `json:"number" yaml:"number"`
	MeanScore  float64   `json:"mean_score" yaml:"mean_score"`
	StdScore   float64   `json:"std_score" yaml:"std_score"`
	FoldScores []float64 `json:"fold_scores" yaml:"fold_scores"`
	Completed  int       `json:"completed" yaml:"completed"`
	Failed     int       `json:"failed" yaml:"failed"`
	Pruned     int       `json:"pruned" yaml:"pruned"`
}
