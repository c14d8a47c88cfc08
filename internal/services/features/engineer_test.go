package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"BoostLab/internal/domain/models"
	"BoostLab/internal/services/synthetic"
)

func sameValue(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func TestTransformIsCausal(t *testing.T) {
	e, err := NewEngineer(nil)
	if err != nil {
		t.Fatalf("NewEngineer: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 20; iter++ {
		bars := synthetic.RandomWalk(120, int64(iter))
		base, err := e.Transform(bars)
		if err != nil {
			t.Fatalf("Transform: %v", err)
		}

		cut := e.WarmUp() + rng.Intn(len(bars)-e.WarmUp()-1)
		mutated := append([]models.PriceBar(nil), bars...)
		for i := cut + 1; i < len(mutated); i++ {
			k := 0.5 + rng.Float64()
			mutated[i].Open *= k
			mutated[i].High *= k * 1.1
			mutated[i].Low *= k * 0.9
			mutated[i].Close *= k
			mutated[i].Volume *= 2
		}
		got, err := e.Transform(mutated)
		if err != nil {
			t.Fatalf("Transform mutated: %v", err)
		}
		for r := 0; r < got.Len() && got.BarIndex[r] <= cut; r++ {
			for j := range got.Names {
				if !sameValue(base.Rows[r][j], got.Rows[r][j]) {
					t.Fatalf("iter %d: feature %s at bar %d changed after mutating bars > %d",
						iter, got.Names[j], got.BarIndex[r], cut)
				}
			}
		}
	}
}

func TestTransformDropsWarmUp(t *testing.T) {
	e, err := NewEngineer([]string{"sma_5", "price_change"})
	if err != nil {
		t.Fatalf("NewEngineer: %v", err)
	}
	if e.WarmUp() != 4 {
		t.Fatalf("warm-up = %d, want 4", e.WarmUp())
	}
	bars := synthetic.RandomWalk(10, 1)
	frame, err := e.Transform(bars)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if frame.Len() != 6 || frame.BarIndex[0] != 4 {
		t.Fatalf("rows = %d first = %d, want 6 rows from bar 4", frame.Len(), frame.BarIndex[0])
	}
	want := 0.0
	for i := 0; i < 5; i++ {
		want += bars[i].Close
	}
	if got := frame.Row(0).Values["sma_5"]; math.Abs(got-want/5) > 1e-12 {
		t.Fatalf("sma_5 = %v, want %v", got, want/5)
	}
	for r := 0; r < frame.Len(); r++ {
		if !frame.Complete(r) {
			t.Fatalf("row %d has undefined value", r)
		}
	}
}

func TestTransformRejectsBadInput(t *testing.T) {
	e, _ := NewEngineer([]string{"sma_5"})

	bars := synthetic.RandomWalk(30, 2)
	bars[12].Close = 0
	_, err := e.Transform(bars)
	var sve *models.SchemaValidationError
	if !errors.As(err, &sve) || sve.Index != 12 || sve.Field != "close" {
		t.Fatalf("expected schema error at close[12], got %v", err)
	}

	bars = synthetic.RandomWalk(30, 2)
	bars[5].Timestamp = bars[4].Timestamp
	if _, err := e.Transform(bars); !errors.As(err, &sve) || sve.Field != "timestamp" {
		t.Fatalf("expected timestamp schema error, got %v", err)
	}

	var ide *models.InsufficientDataError
	if _, err := e.Transform(synthetic.RandomWalk(4, 3)); !errors.As(err, &ide) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestNewEngineerRejectsUnknown(t *testing.T) {
	if _, err := NewEngineer([]string{"sma_5", "moon_phase"}); err == nil {
		t.Fatal("expected error for unknown indicator")
	}
	if _, err := NewEngineer([]string{"sma_5", "sma_5"}); err == nil {
		t.Fatal("expected error for duplicate indicator")
	}
}

func TestIndicatorLookbackMatchesFirstDefined(t *testing.T) {
	bars := synthetic.RandomWalk(80, 5)
	for _, name := range DefaultIndicators {
		ind, _ := Lookup(name)
		col := ind.Compute(bars)
		first := -1
		for i, v := range col {
			if models.Defined(v) {
				first = i
				break
			}
		}
		if first != ind.Lookback {
			t.Errorf("%s: first defined at %d, lookback %d", name, first, ind.Lookback)
		}
	}
}
