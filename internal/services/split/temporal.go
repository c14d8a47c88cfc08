// Package split partitions chronologically ordered samples into folds
// without ever training on data later than the validation block.
package split

import (
	"fmt"

	"BoostLab/internal/domain/models"
)

const stage = "split"

type Scheme string

const (
	// Expanding: every fold trains on all samples before its validation block.
	Expanding Scheme = "expanding"
	// Rolling: the train window keeps the size of the first block and slides.
	Rolling Scheme = "rolling"
)

type Splitter struct {
	k      int
	scheme Scheme
}

func New(k int, scheme Scheme) (*Splitter, error) {
	if k < 1 {
		return nil, fmt.Errorf("split count must be >= 1, got %d", k)
	}
	switch scheme {
	case "":
		scheme = Expanding
	case Expanding, Rolling:
	default:
		return nil, fmt.Errorf("unknown split scheme %q", scheme)
	}
	return &Splitter{k: k, scheme: scheme}, nil
}

func (s *Splitter) K() int { return s.k }

// Split divides n samples into K+1 blocks of n/(K+1), the remainder going to
// the first train block, and returns K folds.
func (s *Splitter) Split(n int) ([]models.Fold, error) {
	if n < s.k+1 {
		return nil, &models.InsufficientDataError{Stage: stage, Need: s.k + 1, Have: n}
	}
	block := n / (s.k + 1)
	first := n - s.k*block

	folds := make([]models.Fold, 0, s.k)
	for i := 0; i < s.k; i++ {
		boundary := first + i*block
		train := models.IndexRange{Start: 0, End: boundary}
		if s.scheme == Rolling {
			train.Start = boundary - first
		}
		folds = append(folds, models.Fold{
			Index:      i,
			Train:      train,
			Validation: models.IndexRange{Start: boundary, End: boundary + block},
		})
	}
	return folds, nil
}

// FinalSplit returns the index where the holdout test block starts.
func FinalSplit(n int, testSize float64) (int, error) {
	if testSize <= 0 || testSize >= 1 {
		return 0, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	cut := int(float64(n) * (1 - testSize))
	if cut < 1 || cut >= n {
		return 0, &models.InsufficientDataError{Stage: stage, Need: 2, Have: n}
	}
	return cut, nil
}

// EarlyStopSplit carves the trailing fraction of r as an early-stopping set.
// The validation part is empty when r is too short to spare a row.
func EarlyStopSplit(r models.IndexRange, fraction float64) (fit, valid models.IndexRange) {
	nValid := int(float64(r.Len()) * fraction)
	if nValid < 1 && r.Len() >= 4 {
		nValid = 1
	}
	if r.Len()-nValid < 2 {
		nValid = 0
	}
	cut := r.End - nValid
	return models.IndexRange{Start: r.Start, End: cut}, models.IndexRange{Start: cut, End: r.End}
}
