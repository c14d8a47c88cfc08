package search

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"BoostLab/internal/domain/models"
)

var testSpace = Space{
	{Name: "x", Kind: Float, Low: 0, High: 1},
	{Name: "depth", Kind: Int, Low: 1, High: 12},
	{Name: "rate", Kind: Float, Low: 0.001, High: 1, Log: true},
}

func quadratic(_ context.Context, p models.Params, _ int) (float64, error) {
	return -math.Pow(p["x"]-0.3, 2) - math.Pow((p["depth"]-7)/12, 2) - math.Pow(math.Log10(p["rate"])+1, 2)/9, nil
}

func TestZeroTrialBudget(t *testing.T) {
	s, err := New(testSpace, WithTrials(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Run(context.Background(), 3, quadratic)
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) || !errors.Is(err, models.ErrNoTrials) {
		t.Fatalf("expected InsufficientDataError wrapping ErrNoTrials, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() *Result {
		s, _ := New(testSpace, WithTrials(30), WithSeed(7), WithStartupTrials(5))
		res, err := s.Run(context.Background(), 2, quadratic)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}
	a, b := run(), run()
	if len(a.Trials) != 30 || len(b.Trials) != 30 {
		t.Fatalf("trial counts %d %d", len(a.Trials), len(b.Trials))
	}
	for i := range a.Trials {
		for k, v := range a.Trials[i].Params {
			if b.Trials[i].Params[k] != v {
				t.Fatalf("trial %d param %s: %v vs %v", i, k, v, b.Trials[i].Params[k])
			}
		}
		if a.Trials[i].MeanScore != b.Trials[i].MeanScore {
			t.Fatalf("trial %d score differs", i)
		}
	}
	if a.Best.Number != b.Best.Number {
		t.Fatalf("best trial %d vs %d", a.Best.Number, b.Best.Number)
	}
}

func TestSuggestionsRespectSpace(t *testing.T) {
	s, _ := New(testSpace, WithTrials(60), WithStartupTrials(5))
	res, err := s.Run(context.Background(), 1, quadratic)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tr := range res.Trials {
		if x := tr.Params["x"]; x < 0 || x > 1 {
			t.Fatalf("x out of bounds: %v", x)
		}
		d := tr.Params["depth"]
		if d < 1 || d > 12 || d != math.Round(d) {
			t.Fatalf("depth invalid: %v", d)
		}
		if r := tr.Params["rate"]; r < 0.001 || r > 1 {
			t.Fatalf("rate out of bounds: %v", r)
		}
	}
}

func TestModelGuidedSamplingImproves(t *testing.T) {
	s, _ := New(testSpace, WithTrials(80), WithStartupTrials(10), WithSeed(3))
	res, err := s.Run(context.Background(), 1, quadratic)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	mean := func(trials []models.TrialRecord) float64 {
		sum := 0.0
		for _, tr := range trials {
			sum += tr.MeanScore
		}
		return sum / float64(len(trials))
	}
	early, late := mean(res.Trials[:10]), mean(res.Trials[60:])
	if late <= early {
		t.Fatalf("late trials (%v) not better than random startup (%v)", late, early)
	}
}

func TestFailedTrialsDoNotAbort(t *testing.T) {
	scorer := func(ctx context.Context, p models.Params, fold int) (float64, error) {
		if p["x"] > 0.6 {
			return 0, errors.New("fit diverged")
		}
		if p["x"] < 0.1 {
			panic("boom")
		}
		return quadratic(ctx, p, fold)
	}
	s, _ := New(testSpace, WithTrials(40), WithStartupTrials(40))
	res, err := s.Run(context.Background(), 2, scorer)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	failed := 0
	for _, tr := range res.Trials {
		if tr.Status != models.TrialFailed {
			continue
		}
		failed++
		if !math.IsInf(tr.MeanScore, -1) {
			t.Fatalf("failed trial score = %v, want -Inf", tr.MeanScore)
		}
		if tr.Error == "" {
			t.Fatal("failed trial without error message")
		}
	}
	if failed == 0 || len(res.Trials) != 40 {
		t.Fatalf("failed = %d of %d", failed, len(res.Trials))
	}
	if res.Best == nil || res.Best.Status != models.TrialCompleted {
		t.Fatalf("best = %+v", res.Best)
	}
	if sum := res.Summary(); sum.Failed != failed || sum.Completed+sum.Failed+sum.Pruned != 40 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestTrialTimeout(t *testing.T) {
	hang := func(ctx context.Context, p models.Params, fold int) (float64, error) {
		if p["x"] > 0.5 {
			time.Sleep(500 * time.Millisecond)
		}
		return 1, nil
	}
	s, _ := New(testSpace, WithTrials(6), WithTrialTimeout(20*time.Millisecond), WithStartupTrials(6))
	res, err := s.Run(context.Background(), 1, hang)
	if err != nil && !errors.Is(err, models.ErrNoTrials) {
		t.Fatalf("Run: %v", err)
	}
	for _, tr := range res.Trials {
		hung := tr.Params["x"] > 0.5
		if hung && (tr.Status != models.TrialFailed || !strings.Contains(tr.Error, "timed out")) {
			t.Fatalf("hung trial recorded as %s: %s", tr.Status, tr.Error)
		}
		if !hung && tr.Status != models.TrialCompleted {
			t.Fatalf("fast trial recorded as %s", tr.Status)
		}
	}
}

func TestSearchTimeout(t *testing.T) {
	slow := func(ctx context.Context, p models.Params, fold int) (float64, error) {
		select {
		case <-time.After(10 * time.Millisecond):
			return p["x"], nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	s, _ := New(testSpace, WithTrials(10000), WithTimeout(80*time.Millisecond))
	res, err := s.Run(context.Background(), 1, slow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut || res.Cancelled {
		t.Fatalf("timed out = %v cancelled = %v", res.TimedOut, res.Cancelled)
	}
	if len(res.Trials) >= 10000 || res.Best == nil {
		t.Fatalf("trials = %d best = %v", len(res.Trials), res.Best)
	}
}

func TestCancellationKeepsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	seen := 0
	s, _ := New(testSpace, WithTrials(50), WithObserver(func(models.TrialRecord) {
		seen++
		if seen == 3 {
			cancel()
		}
	}))
	res, err := s.Run(ctx, 2, quadratic)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled || len(res.Trials) != 3 || res.Best == nil {
		t.Fatalf("cancelled = %v trials = %d best = %v", res.Cancelled, len(res.Trials), res.Best)
	}
}

func TestMedianPruning(t *testing.T) {
	var calls int64
	scorer := func(_ context.Context, p models.Params, fold int) (float64, error) {
		atomic.AddInt64(&calls, 1)
		return p["x"], nil
	}
	s, _ := New(testSpace, WithTrials(40), WithStartupTrials(40), WithPruning(3, 1))
	res, err := s.Run(context.Background(), 4, scorer)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	pruned := 0
	for _, tr := range res.Trials {
		if tr.Status == models.TrialPruned {
			pruned++
			if len(tr.FoldScores) >= 4 {
				t.Fatalf("pruned trial scored all folds")
			}
		}
	}
	if pruned == 0 {
		t.Fatal("expected pruned trials")
	}
	if calls >= 40*4 {
		t.Fatalf("pruning saved nothing: %d calls", calls)
	}
	if res.Best.Status != models.TrialCompleted {
		t.Fatal("best trial must be completed")
	}
}

func TestParallelTrials(t *testing.T) {
	s, _ := New(testSpace, WithTrials(40), WithParallelism(4))
	res, err := s.Run(context.Background(), 2, quadratic)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trials) != 40 {
		t.Fatalf("trials = %d", len(res.Trials))
	}
	for i, tr := range res.Trials {
		if tr.Number != i {
			t.Fatalf("trial numbers not contiguous: %d at %d", tr.Number, i)
		}
	}
}

func TestMinimize(t *testing.T) {
	loss := func(_ context.Context, p models.Params, _ int) (float64, error) { return math.Abs(p["x"] - 0.5), nil }
	s, _ := New(testSpace, WithTrials(30), WithMaximize(false))
	res, err := s.Run(context.Background(), 1, loss)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tr := range res.Trials {
		if tr.MeanScore < res.Best.MeanScore {
			t.Fatalf("trial %d beats best under minimize", tr.Number)
		}
	}
}

func TestSpaceValidate(t *testing.T) {
	bad := []Space{
		{},
		{{Name: "a", Kind: Float, Low: 2, High: 1}},
		{{Name: "a", Kind: Float, Low: 0, High: 1, Log: true}},
		{{Name: "a", Kind: Categorical}},
		{{Name: "a", Kind: Int, Low: 1, High: 2}, {Name: "a", Kind: Int, Low: 1, High: 2}},
	}
	for i, sp := range bad {
		if err := sp.Validate(); err == nil {
			t.Errorf("space %d: expected error", i)
		}
	}
	cat := Space{{Name: "c", Kind: Categorical, Choices: []float64{0.5, 0.8, 1}}}
	s, _ := New(cat, WithTrials(20), WithStartupTrials(4))
	res, err := s.Run(context.Background(), 1, func(_ context.Context, p models.Params, _ int) (float64, error) {
		return p["c"], nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, tr := range res.Trials {
		if v := tr.Params["c"]; v != 0.5 && v != 0.8 && v != 1 {
			t.Fatalf("categorical value %v not in choices", v)
		}
	}
}

func TestDefaultSpaces(t *testing.T) {
	for _, family := range []models.ModelType{models.ModelLightGBM, models.ModelXGBoost} {
		s := DefaultSpace(family)
		if err := s.Validate(); err != nil {
			t.Fatalf("%s: %v", family, err)
		}
		names := make(map[string]bool, len(s))
		for _, p := range s {
			names[p.Name] = true
		}
		if family == models.ModelXGBoost && !names["max_depth"] {
			t.Errorf("xgboost space lacks max_depth")
		}
		if family == models.ModelLightGBM && !names["num_leaves"] {
			t.Errorf("lightgbm space lacks num_leaves")
		}
	}
}

func TestFromRanges(t *testing.T) {
	if FromRanges(nil) != nil {
		t.Fatalf("empty ranges should yield nil")
	}
	s := FromRanges(map[string]Range{
		"num_leaves":    {Low: 8, High: 32, Int: true},
		"learning_rate": {Low: 0.01, High: 0.2, Log: true},
	})
	if len(s) != 2 || s[0].Name != "learning_rate" || s[1].Kind != Int {
		t.Fatalf("unexpected space %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
