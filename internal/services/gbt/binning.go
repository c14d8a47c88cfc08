package gbt

import (
	"sort"
)

// binner quantizes each feature into at most maxBins ordered buckets.
// Bucket b holds values x with edges[b-1] < x <= edges[b].
type binner struct {
	edges [][]float64
}

func newBinner(X [][]float64, nFeatures, maxBins int) *binner {
	b := &binner{edges: make([][]float64, nFeatures)}
	col := make([]float64, len(X))
	for j := 0; j < nFeatures; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		b.edges[j] = quantileEdges(sorted, maxBins)
	}
	return b
}

func quantileEdges(sorted []float64, maxBins int) []float64 {
	uniq := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) <= maxBins {
		return uniq
	}
	edges := make([]float64, 0, maxBins)
	n := len(sorted)
	for k := 1; k <= maxBins; k++ {
		v := sorted[k*n/maxBins-1]
		if len(edges) == 0 || v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	if last := sorted[n-1]; edges[len(edges)-1] < last {
		edges = append(edges, last)
	}
	return edges
}

func (b *binner) bin(j int, x float64) uint16 {
	e := b.edges[j]
	i := sort.SearchFloat64s(e, x)
	if i >= len(e) {
		i = len(e) - 1
	}
	return uint16(i)
}

// columns returns the bin matrix laid out column-major.
func (b *binner) columns(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(b.edges))
	for j := range out {
		col := make([]uint16, len(X))
		for i, row := range X {
			col[i] = b.bin(j, row[j])
		}
		out[j] = col
	}
	return out
}
