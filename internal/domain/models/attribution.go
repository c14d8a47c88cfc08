package models

// Attribution holds per-feature contributions for one query row.
// Sum(Values) + Baseline equals Output.
type Attribution struct {
	Baseline float64   `json:"baseline" yaml:"baseline"`
	Output   float64   `json:"output" yaml:"output"`
	Values   []float64 `json:"values" yaml:"values"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

type Contribution struct {
	Feature      string  `json:"feature" yaml:"feature"`
	Value        float64 `json:"value" yaml:"value"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
}

// Explanation is the per-instance breakdown reported to callers.
type Explanation struct {
	Baseline      float64        `json:"baseline" yaml:"baseline"`
	Prediction    float64        `json:"prediction" yaml:"prediction"`
	Contributions []Contribution `json:"contributions" yaml:"contributions"`
}

type ExplainReport struct {
	ArtifactID string              `json:"artifact_id" yaml:"artifact_id"`
	Method     string              `json:"method" yaml:"method"`
	Samples    int                 `json:"samples" yaml:"samples"`
	Baseline   float64             `json:"baseline" yaml:"baseline"`
	Importance []FeatureImportance `json:"importance" yaml:"importance"`
	Latest     *Explanation        `json:"latest,omitempty" yaml:"latest,omitempty"`
}
