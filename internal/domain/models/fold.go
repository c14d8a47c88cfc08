package models

// IndexRange is the half-open interval [Start, End) over a sample sequence.
type IndexRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (r IndexRange) Len() int { return r.End - r.Start }

func (r IndexRange) Contains(i int) bool { return i >= r.Start && i < r.End }

// Overlaps reports whether r and o share an index.
func (r IndexRange) Overlaps(o IndexRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Fold is one train/validation pair. Validation always lies after Train.
type Fold struct {
	Index      int        `json:"index" yaml:"index"`
	Train      IndexRange `json:"train" yaml:"train"`
	Validation IndexRange `json:"validation" yaml:"validation"`
}
