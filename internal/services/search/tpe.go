package search

import (
	"math"
	"math/rand"
	"sort"

	"BoostLab/internal/domain/models"
)

// tpeSampler is a univariate tree-structured Parzen estimator. Completed
// trials are split into a good and a bad group by score; each parameter is
// drawn from the good density l(x) and the candidate maximizing l(x)/g(x) wins.
type tpeSampler struct {
	space       Space
	rng         *rand.Rand
	nStartup    int
	nCandidates int
	gamma       float64
	maximize    bool
}

type observation struct {
	params models.Params
	score  float64
}

func (s *tpeSampler) suggest(obs []observation) models.Params {
	out := make(models.Params, len(s.space))
	if len(obs) < s.nStartup {
		for _, p := range s.space {
			out[p.Name] = s.uniform(p)
		}
		return out
	}

	sorted := append([]observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if s.maximize {
			return sorted[i].score > sorted[j].score
		}
		return sorted[i].score < sorted[j].score
	})
	nGood := int(math.Ceil(s.gamma * float64(len(sorted))))
	if nGood < 1 {
		nGood = 1
	}
	if nGood > 25 {
		nGood = 25
	}
	good, bad := sorted[:nGood], sorted[nGood:]

	for _, p := range s.space {
		if p.Kind == Categorical {
			out[p.Name] = s.suggestCategorical(p, good, bad)
		} else {
			out[p.Name] = s.suggestNumeric(p, good, bad)
		}
	}
	return out
}

func (s *tpeSampler) uniform(p Param) float64 {
	if p.Kind == Categorical {
		return p.Choices[s.rng.Intn(len(p.Choices))]
	}
	lo, hi := p.bounds()
	return p.fromInternal(lo + s.rng.Float64()*(hi-lo))
}

func (s *tpeSampler) suggestNumeric(p Param, good, bad []observation) float64 {
	lo, hi := p.bounds()
	if hi <= lo {
		return p.Low
	}
	l := newParzen(values(p, good), lo, hi)
	g := newParzen(values(p, bad), lo, hi)

	bestX, bestScore := 0.0, math.Inf(-1)
	for i := 0; i < s.nCandidates; i++ {
		x := l.sample(s.rng)
		score := l.logPDF(x) - g.logPDF(x)
		if score > bestScore {
			bestX, bestScore = x, score
		}
	}
	return p.fromInternal(bestX)
}

func (s *tpeSampler) suggestCategorical(p Param, good, bad []observation) float64 {
	weights := func(group []observation) []float64 {
		w := make([]float64, len(p.Choices))
		for i := range w {
			w[i] = 1
		}
		for _, o := range group {
			v, ok := o.params[p.Name]
			if !ok {
				continue
			}
			for i, c := range p.Choices {
				if c == v {
					w[i]++
				}
			}
		}
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		for i := range w {
			w[i] /= sum
		}
		return w
	}
	lw, gw := weights(good), weights(bad)

	best, bestScore := 0, math.Inf(-1)
	for i := 0; i < s.nCandidates; i++ {
		k := pickWeighted(s.rng, lw)
		score := math.Log(lw[k]) - math.Log(gw[k])
		if score > bestScore {
			best, bestScore = k, score
		}
	}
	return p.Choices[best]
}

func values(p Param, group []observation) []float64 {
	out := make([]float64, 0, len(group))
	for _, o := range group {
		if v, ok := o.params[p.Name]; ok {
			out = append(out, p.toInternal(v))
		}
	}
	return out
}

func pickWeighted(rng *rand.Rand, w []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, x := range w {
		acc += x
		if u < acc {
			return i
		}
	}
	return len(w) - 1
}

// parzen is an equally weighted mixture of truncated normals on [lo, hi],
// one per observation plus a wide prior centred on the range.
type parzen struct {
	mus, sigmas []float64
	lo, hi      float64
}

func newParzen(xs []float64, lo, hi float64) *parzen {
	width := hi - lo
	pz := &parzen{lo: lo, hi: hi}
	pz.mus = append(pz.mus, lo+width/2)
	pz.sigmas = append(pz.sigmas, width)

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	minSigma := width / math.Min(100, 1+float64(len(sorted)))
	for i, mu := range sorted {
		left, right := mu-lo, hi-mu
		if i > 0 {
			left = mu - sorted[i-1]
		}
		if i < len(sorted)-1 {
			right = sorted[i+1] - mu
		}
		sigma := math.Min(math.Max(math.Max(left, right), minSigma), width)
		pz.mus = append(pz.mus, mu)
		pz.sigmas = append(pz.sigmas, sigma)
	}
	return pz
}

func normCDF(z float64) float64 { return 0.5 * (1 + math.Erf(z/math.Sqrt2)) }

func (pz *parzen) logPDF(x float64) float64 {
	sum := 0.0
	for k, mu := range pz.mus {
		sg := pz.sigmas[k]
		mass := normCDF((pz.hi-mu)/sg) - normCDF((pz.lo-mu)/sg)
		if mass <= 0 {
			continue
		}
		z := (x - mu) / sg
		sum += math.Exp(-0.5*z*z) / (sg * math.Sqrt(2*math.Pi) * mass)
	}
	sum /= float64(len(pz.mus))
	if sum <= 0 {
		return -1e300
	}
	return math.Log(sum)
}

func (pz *parzen) sample(rng *rand.Rand) float64 {
	k := rng.Intn(len(pz.mus))
	mu, sg := pz.mus[k], pz.sigmas[k]
	for i := 0; i < 100; i++ {
		x := mu + sg*rng.NormFloat64()
		if x >= pz.lo && x <= pz.hi {
			return x
		}
	}
	return math.Min(math.Max(mu, pz.lo), pz.hi)
}
