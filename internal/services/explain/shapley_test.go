package explain

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/services/gbt"
)

var names = []string{"a", "b", "c"}

func linear(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = 2*x[0] - 3*x[1] + 1
	}
	return out
}

func randomRows(n int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{rng.Float64(), rng.Float64(), rng.NormFloat64()}
	}
	return rows
}

func TestLinearModelAttributionIsExact(t *testing.T) {
	bg := randomRows(50, 1)
	a, err := NewWithPredictor(linear, names, bg)
	if err != nil {
		t.Fatalf("NewWithPredictor: %v", err)
	}
	var m0, m1 float64
	for _, b := range bg {
		m0 += b[0]
		m1 += b[1]
	}
	m0 /= float64(len(bg))
	m1 /= float64(len(bg))

	x := []float64{0.9, 0.1, 5}
	attr, err := a.Attribute(x)
	if err != nil {
		t.Fatalf("Attribute: %v", err)
	}
	want := []float64{2 * (x[0] - m0), -3 * (x[1] - m1), 0}
	for j := range want {
		if math.Abs(attr.Values[j]-want[j]) > 1e-9 {
			t.Fatalf("phi[%d] = %v, want %v", j, attr.Values[j], want[j])
		}
	}
}

func checkAdditive(t *testing.T, attr models.Attribution) {
	t.Helper()
	sum := attr.Baseline
	for _, v := range attr.Values {
		sum += v
	}
	if math.Abs(sum-attr.Output) > 1e-9 {
		t.Fatalf("baseline+sum = %v, output = %v", sum, attr.Output)
	}
}

func TestBoosterAttributionIsAdditive(t *testing.T) {
	X := randomRows(300, 2)
	y := make([]float64, len(X))
	for i, x := range X {
		if x[0]+0.5*x[1] > 0.75 {
			y[i] = 1
		}
	}
	for _, fam := range []models.ModelType{models.ModelLightGBM, models.ModelXGBoost} {
		cfg := gbt.DefaultConfig(fam, gbt.Binary)
		cfg.NEstimators = 30
		b, err := gbt.New(cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := b.Fit(context.Background(), X, y, domsvc.FitOptions{}); err != nil {
			t.Fatalf("Fit: %v", err)
		}
		a, err := New(b, names, X, WithBackgroundSize(40), WithPermutations(3))
		if err != nil {
			t.Fatalf("New analyzer: %v", err)
		}
		attrs, err := a.Explain(context.Background(), X[:20])
		if err != nil {
			t.Fatalf("Explain: %v", err)
		}
		for _, attr := range attrs {
			checkAdditive(t, attr)
			if attr.Output < 0 || attr.Output > 1 {
				t.Fatalf("%s: classifier output %v is not a probability", fam, attr.Output)
			}
		}
		imp, err := Importance(names, attrs, MeanAbs, 0)
		if err != nil {
			t.Fatalf("Importance: %v", err)
		}
		if imp[len(imp)-1].Feature != "c" {
			t.Errorf("%s: noise feature ranked %+v", fam, imp)
		}
	}
}

func TestAnalyzerIsDeterministic(t *testing.T) {
	bg := randomRows(200, 3)
	f := func(X [][]float64) []float64 {
		out := make([]float64, len(X))
		for i, x := range X {
			out[i] = math.Max(x[0], x[1]) * x[2]
		}
		return out
	}
	run := func() []models.Attribution {
		a, err := NewWithPredictor(f, names, bg, WithSeed(7), WithBackgroundSize(30))
		if err != nil {
			t.Fatalf("NewWithPredictor: %v", err)
		}
		attrs, err := a.Explain(context.Background(), bg[:5])
		if err != nil {
			t.Fatalf("Explain: %v", err)
		}
		for _, attr := range attrs {
			checkAdditive(t, attr)
		}
		return attrs
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("same seed produced different attributions")
	}
}

func TestImportanceMethods(t *testing.T) {
	attrs := []models.Attribution{
		{Values: []float64{1, -2, 0}},
		{Values: []float64{-1, -2, 0.5}},
	}
	cases := []struct {
		method Method
		first  string
		value  float64
	}{
		{MeanAbs, "b", 2},
		{Mean, "c", 0.25},
		{Std, "a", 1},
	}
	for _, tc := range cases {
		imp, err := Importance(names, attrs, tc.method, 1)
		if err != nil {
			t.Fatalf("%s: %v", tc.method, err)
		}
		if len(imp) != 1 || imp[0].Feature != tc.first || math.Abs(imp[0].Importance-tc.value) > 1e-12 {
			t.Errorf("%s: got %+v", tc.method, imp)
		}
	}
	if _, err := ParseMethod("median"); err == nil {
		t.Error("expected unknown method error")
	}
	if _, err := Importance(names, nil, MeanAbs, 0); err == nil {
		t.Error("expected error for empty attributions")
	}
}

func TestExplainPrediction(t *testing.T) {
	a, err := NewWithPredictor(linear, names, [][]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewWithPredictor: %v", err)
	}
	e, err := a.ExplainPrediction([]float64{1, 1, 4}, 2)
	if err != nil {
		t.Fatalf("ExplainPrediction: %v", err)
	}
	if len(e.Contributions) != 2 || e.Contributions[0].Feature != "b" || e.Contributions[1].Feature != "a" {
		t.Fatalf("contributions = %+v", e.Contributions)
	}
	if e.Baseline != 1 || e.Prediction != 0 || e.Contributions[0].Value != 1 {
		t.Fatalf("explanation = %+v", e)
	}
}

func TestRejectsBadShapes(t *testing.T) {
	if _, err := NewWithPredictor(linear, names, nil); err == nil {
		t.Fatal("expected error for empty background")
	}
	_, err := NewWithPredictor(linear, names, [][]float64{{1, 2}})
	var sve *models.SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected schema error, got %v", err)
	}
	a, _ := NewWithPredictor(linear, names, [][]float64{{1, 2, 3}})
	if _, err := a.Attribute([]float64{1}); err == nil {
		t.Fatal("expected error for short query row")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Explain(ctx, [][]float64{{1, 2, 3}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
