package gbt

import "math"

// Node is a tree node; Left < 0 marks a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict routes x <= threshold to the left; NaN goes left too.
func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		v := x[n.Feature]
		if v <= n.Threshold || math.IsNaN(v) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) leaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Left < 0 {
			n++
		}
	}
	return n
}
