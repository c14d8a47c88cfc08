package search

import (
	"fmt"
	"math"
	"sort"

	"BoostLab/internal/domain/models"
)

type Kind string

const (
	Int         Kind = "int"
	Float       Kind = "float"
	Categorical Kind = "categorical"
)

// Param is one searchable dimension. Int and Float use [Low, High];
// Categorical picks from Choices.
type Param struct {
	Name    string    `yaml:"name" json:"name"`
	Kind    Kind      `yaml:"kind" json:"kind"`
	Low     float64   `yaml:"low" json:"low"`
	High    float64   `yaml:"high" json:"high"`
	Log     bool      `yaml:"log" json:"log"`
	Choices []float64 `yaml:"choices" json:"choices"`
}

type Space []Param

func (s Space) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("search space is empty")
	}
	seen := make(map[string]bool, len(s))
	for _, p := range s {
		if p.Name == "" {
			return fmt.Errorf("parameter without name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case Int, Float:
			if math.IsNaN(p.Low) || math.IsNaN(p.High) || p.Low > p.High {
				return fmt.Errorf("%s: bounds [%v, %v] are invalid", p.Name, p.Low, p.High)
			}
			if p.Log && p.Low <= 0 {
				return fmt.Errorf("%s: log scale needs a positive lower bound", p.Name)
			}
		case Categorical:
			if len(p.Choices) == 0 {
				return fmt.Errorf("%s: no choices", p.Name)
			}
		default:
			return fmt.Errorf("%s: unknown kind %q", p.Name, p.Kind)
		}
	}
	return nil
}

// Sorted returns the space ordered by name so sampling order never depends
// on how the space was assembled.
func (s Space) Sorted() Space {
	out := append(Space(nil), s...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// internal bounds: log-transformed and widened by half a step for ints.
func (p Param) bounds() (float64, float64) {
	lo, hi := p.Low, p.High
	if p.Kind == Int {
		lo, hi = lo-0.5, hi+0.5
		if p.Log {
			lo = math.Max(p.Low-0.5, p.Low*0.5)
		}
	}
	if p.Log {
		return math.Log(lo), math.Log(hi)
	}
	return lo, hi
}

func (p Param) toInternal(v float64) float64 {
	if p.Log {
		return math.Log(v)
	}
	return v
}

func (p Param) fromInternal(x float64) float64 {
	v := x
	if p.Log {
		v = math.Exp(x)
	}
	if p.Kind == Int {
		v = math.Round(v)
	}
	return math.Min(math.Max(v, p.Low), p.High)
}

// DefaultSpace is the tuned region per family: shared shrinkage and sampling
// knobs plus the growth controls each family actually reads.
func DefaultSpace(family models.ModelType) Space {
	s := Space{
		{Name: "n_estimators", Kind: Int, Low: 50, High: 300},
		{Name: "learning_rate", Kind: Float, Low: 0.01, High: 0.3, Log: true},
		{Name: "subsample", Kind: Float, Low: 0.6, High: 1},
		{Name: "colsample_bytree", Kind: Float, Low: 0.6, High: 1},
		{Name: "reg_lambda", Kind: Float, Low: 1e-3, High: 10, Log: true},
	}
	switch family {
	case models.ModelXGBoost:
		s = append(s,
			Param{Name: "max_depth", Kind: Int, Low: 3, High: 8},
			Param{Name: "min_child_weight", Kind: Float, Low: 1, High: 10},
			Param{Name: "gamma", Kind: Float, Low: 0, High: 1},
		)
	default:
		s = append(s,
			Param{Name: "num_leaves", Kind: Int, Low: 8, High: 64},
			Param{Name: "min_data_in_leaf", Kind: Int, Low: 5, High: 50},
		)
	}
	return s.Sorted()
}

// Range is an inclusive numeric interval as written in configuration files.
type Range struct {
	Low  float64
	High float64
	Int  bool
	Log  bool
}

// FromRanges builds a space from named ranges. An empty map yields nil so
// callers can fall back to DefaultSpace.
func FromRanges(ranges map[string]Range) Space {
	if len(ranges) == 0 {
		return nil
	}
	s := make(Space, 0, len(ranges))
	for name, r := range ranges {
		kind := Float
		if r.Int {
			kind = Int
		}
		s = append(s, Param{Name: name, Kind: kind, Low: r.Low, High: r.High, Log: r.Log})
	}
	return s.Sorted()
}
