package gbt

import "math"

type splitInfo struct {
	ok      bool
	feature int
	bin     int
	gain    float64
	gl, hl  float64
}

type growNode struct {
	id    int
	rows  []int
	g, h  float64
	depth int
	best  splitInfo
}

// grower builds one tree from gradient statistics over binned columns.
type grower struct {
	cfg      *Config
	bins     [][]uint16
	edges    [][]float64
	grad     []float64
	hess     []float64
	features []int
}

func (gr *grower) newNode(id int, rows []int, depth int) *growNode {
	n := &growNode{id: id, rows: rows, depth: depth}
	for _, i := range rows {
		n.g += gr.grad[i]
		n.h += gr.hess[i]
	}
	return n
}

// thresholdL1 applies the reg_alpha soft threshold to a gradient sum.
func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

func (gr *grower) score(g, h float64) float64 {
	t := thresholdL1(g, gr.cfg.Alpha)
	return t * t / (h + gr.cfg.Lambda)
}

func (gr *grower) leafValue(g, h float64) float64 {
	return -thresholdL1(g, gr.cfg.Alpha) / (h + gr.cfg.Lambda) * gr.cfg.LearningRate
}

func (gr *grower) findSplit(n *growNode) splitInfo {
	best := splitInfo{}
	minData := gr.cfg.MinDataInLeaf
	if minData < 1 {
		minData = 1
	}
	if len(n.rows) < 2*minData {
		return best
	}
	parent := gr.score(n.g, n.h)
	for _, j := range gr.features {
		nb := len(gr.edges[j])
		if nb < 2 {
			continue
		}
		hg := make([]float64, nb)
		hh := make([]float64, nb)
		hc := make([]int, nb)
		col := gr.bins[j]
		for _, i := range n.rows {
			b := col[i]
			hg[b] += gr.grad[i]
			hh[b] += gr.hess[i]
			hc[b]++
		}
		var gl, hl float64
		nl := 0
		for b := 0; b < nb-1; b++ {
			gl += hg[b]
			hl += hh[b]
			nl += hc[b]
			if nl < minData {
				continue
			}
			if len(n.rows)-nl < minData {
				break
			}
			gr2, hr := n.g-gl, n.h-hl
			if hl < gr.cfg.MinChildWeight || hr < gr.cfg.MinChildWeight {
				continue
			}
			gain := 0.5*(gr.score(gl, hl)+gr.score(gr2, hr)-parent) - gr.cfg.Gamma
			if gain > 1e-12 && (!best.ok || gain > best.gain) {
				best = splitInfo{ok: true, feature: j, bin: b, gain: gain, gl: gl, hl: hl}
			}
		}
	}
	return best
}

func (gr *grower) split(t *Tree, n *growNode, s splitInfo) (*growNode, *growNode) {
	col := gr.bins[s.feature]
	var left, right []int
	for _, i := range n.rows {
		if int(col[i]) <= s.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	lid, rid := len(t.Nodes), len(t.Nodes)+1
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1}, Node{Left: -1, Right: -1})
	t.Nodes[n.id] = Node{
		Feature:   s.feature,
		Threshold: gr.edges[s.feature][s.bin],
		Left:      lid,
		Right:     rid,
	}
	return gr.newNode(lid, left, n.depth+1), gr.newNode(rid, right, n.depth+1)
}

func (gr *grower) setLeaf(t *Tree, n *growNode) {
	t.Nodes[n.id] = Node{Left: -1, Right: -1, Value: gr.leafValue(n.g, n.h)}
}

// growDepthWise expands every node of a level before moving to the next.
func (gr *grower) growDepthWise(rows []int) Tree {
	t := Tree{Nodes: []Node{{Left: -1, Right: -1}}}
	level := []*growNode{gr.newNode(0, rows, 0)}
	for len(level) > 0 {
		var next []*growNode
		for _, n := range level {
			if n.depth >= gr.cfg.MaxDepth {
				gr.setLeaf(&t, n)
				continue
			}
			s := gr.findSplit(n)
			if !s.ok {
				gr.setLeaf(&t, n)
				continue
			}
			l, r := gr.split(&t, n, s)
			next = append(next, l, r)
		}
		level = next
	}
	return t
}

// growLeafWise repeatedly splits the leaf with the largest gain until
// NumLeaves is reached or no split helps.
func (gr *grower) growLeafWise(rows []int) Tree {
	t := Tree{Nodes: []Node{{Left: -1, Right: -1}}}
	root := gr.newNode(0, rows, 0)
	root.best = gr.findSplit(root)
	leaves := []*growNode{root}
	for len(leaves) < gr.cfg.NumLeaves {
		bi := -1
		bestGain := math.Inf(-1)
		for i, n := range leaves {
			if n.best.ok && n.best.gain > bestGain {
				bi, bestGain = i, n.best.gain
			}
		}
		if bi < 0 {
			break
		}
		l, r := gr.split(&t, leaves[bi], leaves[bi].best)
		for _, c := range []*growNode{l, r} {
			if gr.cfg.MaxDepth > 0 && c.depth >= gr.cfg.MaxDepth {
				continue
			}
			c.best = gr.findSplit(c)
		}
		leaves[bi] = l
		leaves = append(leaves, r)
	}
	for _, n := range leaves {
		gr.setLeaf(&t, n)
	}
	return t
}
