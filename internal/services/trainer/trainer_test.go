package trainer

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"BoostLab/internal/domain/models"
	"BoostLab/internal/services/scoring"
)

func dataset(n int, seed int64, target models.TargetType) *models.Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &models.Dataset{FeatureNames: []string{"a", "b"}, Target: target}
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		a, b := rng.Float64(), rng.Float64()
		y := a - b + 0.1*rng.NormFloat64()
		if target == models.TargetDirection {
			if y > 0 {
				y = 1
			} else {
				y = 0
			}
		}
		ds.X = append(ds.X, []float64{a, b})
		ds.Y = append(ds.Y, y)
		ds.Timestamps = append(ds.Timestamps, start.AddDate(0, 0, i))
		ds.BarIndex = append(ds.BarIndex, i)
	}
	return ds
}

func TestFitHoldsOutTail(t *testing.T) {
	tr, err := New(models.ModelLightGBM, models.TargetDirection,
		WithEvalMetric(scoring.AUC), WithEarlyStopping(15), WithBaseParams(models.Params{"n_estimators": 300}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ds := dataset(300, 1, models.TargetDirection)
	res, err := tr.Fit(context.Background(), ds, models.Params{"learning_rate": 0.2})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(res.Trajectory.Validation) == 0 {
		t.Fatal("expected validation trajectory")
	}
	if res.Trajectory.Metric != "auc" {
		t.Fatalf("metric = %s", res.Trajectory.Metric)
	}
	if res.Params["n_estimators"] != 300 || res.Params["learning_rate"] != 0.2 {
		t.Fatalf("params = %v", res.Params)
	}
	m := Evaluate(res.Model, ds)
	if m["auc"] < 0.8 {
		t.Fatalf("auc = %v", m["auc"])
	}
	if _, ok := m["logloss"]; !ok {
		t.Fatal("missing logloss")
	}
}

func TestRegressionTrainer(t *testing.T) {
	tr, err := New(models.ModelXGBoost, models.TargetReturns, WithEarlyStopping(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ds := dataset(200, 2, models.TargetReturns)
	res, err := tr.Fit(context.Background(), ds, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(res.Trajectory.Validation) != 0 {
		t.Fatal("no validation expected without early stopping")
	}
	if rmse := Score(res.Model, ds, scoring.RMSE); rmse > 0.2 {
		t.Fatalf("rmse = %v", rmse)
	}
	m := Evaluate(res.Model, ds)
	if _, ok := m["mae"]; !ok {
		t.Fatalf("metrics = %v", m)
	}
}

func TestNewRejectsMismatchedMetric(t *testing.T) {
	if _, err := New(models.ModelXGBoost, models.TargetVolatility, WithEvalMetric(scoring.AUC)); err == nil {
		t.Fatal("expected error for auc on volatility target")
	}
	if _, err := New("randomforest", models.TargetDirection); err == nil {
		t.Fatal("expected error for unknown family")
	}
}
