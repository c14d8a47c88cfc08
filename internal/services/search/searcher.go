// Package search runs a budgeted Bayesian hyperparameter search where each
// trial is scored fold by fold.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"BoostLab/internal/domain/models"
)

const stage = "search"

// ErrTrialTimeout marks a trial abandoned after its own deadline.
var ErrTrialTimeout = errors.New("trial timed out")

// FoldScorer evaluates params on one fold. It should return promptly once
// ctx is done.
type FoldScorer func(ctx context.Context, params models.Params, fold int) (float64, error)

type Option func(*Searcher)

func WithTrials(n int) Option { return func(s *Searcher) { s.nTrials = n } }

// WithTimeout bounds the whole search. Zero means no wall-clock limit.
func WithTimeout(d time.Duration) Option { return func(s *Searcher) { s.timeout = d } }

// WithTrialTimeout bounds a single trial; a trial over budget is recorded failed.
func WithTrialTimeout(d time.Duration) Option { return func(s *Searcher) { s.trialTimeout = d } }

func WithSeed(seed int64) Option { return func(s *Searcher) { s.seed = seed } }

// WithParallelism runs up to n trials at once. Results are reproducible only for n = 1.
func WithParallelism(n int) Option { return func(s *Searcher) { s.parallelism = n } }

func WithMaximize(maximize bool) Option { return func(s *Searcher) { s.maximize = maximize } }

func WithStartupTrials(n int) Option { return func(s *Searcher) { s.nStartup = n } }

func WithCandidates(n int) Option { return func(s *Searcher) { s.nCandidates = n } }

// WithPruning enables the median rule once minTrials trials completed and at
// least warmupFolds folds of the current trial were scored.
func WithPruning(minTrials, warmupFolds int) Option {
	return func(s *Searcher) {
		s.pruning = true
		s.pruneMinTrials = minTrials
		s.pruneWarmup = warmupFolds
	}
}

// WithObserver is called after each trial is recorded.
func WithObserver(fn func(models.TrialRecord)) Option { return func(s *Searcher) { s.observer = fn } }

type Searcher struct {
	space          Space
	nTrials        int
	timeout        time.Duration
	trialTimeout   time.Duration
	seed           int64
	parallelism    int
	maximize       bool
	nStartup       int
	nCandidates    int
	pruning        bool
	pruneMinTrials int
	pruneWarmup    int
	observer       func(models.TrialRecord)
}

func New(space Space, opts ...Option) (*Searcher, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	s := &Searcher{
		space:          space.Sorted(),
		nTrials:        50,
		seed:           42,
		parallelism:    1,
		maximize:       true,
		nStartup:       10,
		nCandidates:    24,
		pruneMinTrials: 5,
		pruneWarmup:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s, nil
}

type Result struct {
	Best      *models.TrialRecord
	Trials    []models.TrialRecord
	Cancelled bool
	TimedOut  bool
	Elapsed   time.Duration
}

// Summary condenses the best trial and the status counts.
func (r *Result) Summary() *models.TrialSummary {
	if r.Best == nil {
		return nil
	}
	sum := &models.TrialSummary{
		Number:     r.Best.Number,
		MeanScore:  r.Best.MeanScore,
		StdScore:   r.Best.StdScore,
		FoldScores: r.Best.FoldScores,
	}
	for _, t := range r.Trials {
		switch t.Status {
		case models.TrialCompleted:
			sum.Completed++
		case models.TrialFailed:
			sum.Failed++
		case models.TrialPruned:
			sum.Pruned++
		}
	}
	return sum
}

// history is the shared trial store. All access goes through mu, and sampling
// happens under the same lock so suggestions follow trial-number order.
type history struct {
	mu      sync.Mutex
	trials  []models.TrialRecord
	issued  int
	sampler *tpeSampler
}

func (h *history) next() (int, models.Params) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.issued
	h.issued++
	obs := make([]observation, 0, len(h.trials))
	for _, t := range h.trials {
		if t.Status == models.TrialCompleted {
			obs = append(obs, observation{params: t.Params, score: t.MeanScore})
		}
	}
	return n, h.sampler.suggest(obs)
}

func (h *history) add(rec models.TrialRecord) {
	h.mu.Lock()
	h.trials = append(h.trials, rec)
	h.mu.Unlock()
}

// runningMeans returns the mean of the first k+1 fold scores of every
// completed trial.
func (h *history) runningMeans(k int) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []float64
	for _, t := range h.trials {
		if t.Status != models.TrialCompleted || len(t.FoldScores) <= k {
			continue
		}
		out = append(out, stat.Mean(t.FoldScores[:k+1], nil))
	}
	return out
}

func (h *history) snapshot() []models.TrialRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]models.TrialRecord(nil), h.trials...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Run executes up to the trial budget within the timeout. Cancellation stops
// new trials; the best trial so far is still returned.
func (s *Searcher) Run(ctx context.Context, nFolds int, score FoldScorer) (*Result, error) {
	if s.nTrials <= 0 {
		return nil, &models.InsufficientDataError{Stage: stage, Need: 1, Have: 0, Err: models.ErrNoTrials}
	}
	if nFolds < 1 {
		return nil, &models.InsufficientDataError{Stage: stage, Need: 1, Have: nFolds}
	}

	start := time.Now()
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	h := &history{sampler: &tpeSampler{
		space:       s.space,
		rng:         rand.New(rand.NewSource(s.seed)),
		nStartup:    s.nStartup,
		nCandidates: s.nCandidates,
		gamma:       0.25,
		maximize:    s.maximize,
	}}

	record := func(rec models.TrialRecord) {
		h.add(rec)
		if s.observer != nil {
			s.observer(rec)
		}
	}

	if s.parallelism == 1 {
		for i := 0; i < s.nTrials && runCtx.Err() == nil; i++ {
			n, params := h.next()
			record(s.runTrial(runCtx, h, n, params, nFolds, score))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.parallelism)
		for i := 0; i < s.nTrials && runCtx.Err() == nil; i++ {
			g.Go(func() error {
				if runCtx.Err() != nil {
					return nil
				}
				n, params := h.next()
				record(s.runTrial(runCtx, h, n, params, nFolds, score))
				return nil
			})
		}
		_ = g.Wait()
	}

	res := &Result{
		Trials:    h.snapshot(),
		Cancelled: ctx.Err() != nil,
		TimedOut:  ctx.Err() == nil && runCtx.Err() != nil,
		Elapsed:   time.Since(start),
	}
	res.Best = s.best(res.Trials)
	if res.Best == nil {
		return res, &models.InsufficientDataError{Stage: stage, Need: 1, Have: 0, Err: models.ErrNoTrials}
	}
	return res, nil
}

func (s *Searcher) best(trials []models.TrialRecord) *models.TrialRecord {
	var best *models.TrialRecord
	for i := range trials {
		t := &trials[i]
		if t.Status != models.TrialCompleted {
			continue
		}
		if best == nil || s.better(t.MeanScore, best.MeanScore) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func (s *Searcher) better(a, b float64) bool {
	if s.maximize {
		return a > b
	}
	return a < b
}

func (s *Searcher) worst() float64 {
	if s.maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

type trialOutcome struct {
	scores []float64
	pruned bool
	err    error
}

func (s *Searcher) runTrial(ctx context.Context, h *history, n int, params models.Params, nFolds int, score FoldScorer) models.TrialRecord {
	start := time.Now()
	tctx := ctx
	if s.trialTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.trialTimeout)
		defer cancel()
	}

	done := make(chan trialOutcome, 1)
	go func() {
		var out trialOutcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("panic: %v", r)
			}
			done <- out
		}()
		for k := 0; k < nFolds; k++ {
			if err := tctx.Err(); err != nil {
				out.err = err
				return
			}
			v, err := score(tctx, params, k)
			if err != nil {
				out.err = fmt.Errorf("fold %d: %w", k, err)
				return
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				out.err = fmt.Errorf("fold %d: score is not finite", k)
				return
			}
			out.scores = append(out.scores, v)
			if s.shouldPrune(h, k, out.scores, nFolds) {
				out.pruned = true
				return
			}
		}
	}()

	var out trialOutcome
	select {
	case out = <-done:
	case <-tctx.Done():
		select {
		case out = <-done:
		default:
			out = trialOutcome{err: ErrTrialTimeout}
		}
	}

	rec := models.TrialRecord{
		Number:     n,
		Params:     params,
		FoldScores: out.scores,
		Duration:   time.Since(start),
	}
	switch {
	case out.err != nil:
		if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			out.err = ErrTrialTimeout
		}
		rec.Status = models.TrialFailed
		rec.MeanScore = s.worst()
		rec.Error = (&models.TrialExecutionError{Trial: n, Err: out.err}).Error()
	case out.pruned:
		rec.Status = models.TrialPruned
		rec.MeanScore = stat.Mean(out.scores, nil)
	default:
		rec.Status = models.TrialCompleted
		rec.MeanScore, rec.StdScore = stat.PopMeanStdDev(out.scores, nil)
	}
	return rec
}

// shouldPrune applies the median rule after fold k.
func (s *Searcher) shouldPrune(h *history, k int, scores []float64, nFolds int) bool {
	if !s.pruning || k+1 < s.pruneWarmup || k+1 >= nFolds {
		return false
	}
	peers := h.runningMeans(k)
	if len(peers) < s.pruneMinTrials {
		return false
	}
	sort.Float64s(peers)
	median := stat.Quantile(0.5, stat.Empirical, peers, nil)
	return s.better(median, stat.Mean(scores, nil))
}
