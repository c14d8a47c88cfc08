package repository

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"BoostLab/internal/domain/models"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/services/gbt"
)

func gbtCheck(data []byte) (int, error) {
	b, err := gbt.Load(data)
	if err != nil {
		return 0, err
	}
	return b.NumFeatures(), nil
}

func fittedArtifact(t *testing.T) (*models.ModelArtifact, *gbt.Booster, [][]float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	X := make([][]float64, 120)
	y := make([]float64, len(X))
	for i := range X {
		X[i] = []float64{rng.Float64(), rng.NormFloat64()}
		if X[i][0] > 0.5 {
			y[i] = 1
		}
	}
	cfg := gbt.DefaultConfig(models.ModelXGBoost, gbt.Binary)
	cfg.NEstimators = 10
	b, err := gbt.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Fit(context.Background(), X, y, domsvc.FitOptions{}); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return &models.ModelArtifact{
		ModelType:    models.ModelXGBoost,
		TargetType:   models.TargetDirection,
		Model:        data,
		Params:       models.Params{"max_depth": 6, "learning_rate": 0.1},
		Metrics:      map[string]float64{"auc": 0.91, "logloss": 0.33},
		FeatureNames: []string{"x0", "x1"},
		TrainingConfig: models.TrainingSnapshot{
			Symbol: "SYN", Indicators: []string{"sma_5"}, TargetType: "direction", Horizon: 1, NSplits: 3,
		},
		BestTrial: &models.TrialSummary{Number: 4, MeanScore: 0.9, FoldScores: []float64{0.88, 0.92}, Completed: 5},
		CreatedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}, b, X
}

func newStore(t *testing.T) *FileArtifactStore {
	t.Helper()
	s, err := NewFileArtifactStore(t.TempDir(), gbtCheck, nil)
	if err != nil {
		t.Fatalf("NewFileArtifactStore: %v", err)
	}
	return s
}

func TestArtifactRoundTripReproducesPredictions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, b, X := fittedArtifact(t)

	id, err := s.Save(ctx, a)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "xgboost_20240506_070809" {
		t.Fatalf("id = %q", id)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Params, a.Params) || !reflect.DeepEqual(got.FeatureNames, a.FeatureNames) ||
		!reflect.DeepEqual(got.Metrics, a.Metrics) || !reflect.DeepEqual(got.BestTrial, a.BestTrial) ||
		!got.CreatedAt.Equal(a.CreatedAt) || got.TrainingConfig.Symbol != "SYN" {
		t.Fatalf("metadata mismatch:\n got %+v\nwant %+v", got, a)
	}

	loaded, err := gbt.Load(got.Model)
	if err != nil {
		t.Fatalf("gbt.Load: %v", err)
	}
	want, _ := b.PredictProbability(X)
	have, _ := loaded.PredictProbability(X)
	if !reflect.DeepEqual(want, have) {
		t.Fatal("predictions differ after reload")
	}

	entries, _ := os.ReadDir(s.Root())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			t.Fatalf("temporary directory left behind: %s", e.Name())
		}
	}
}

func TestArtifactIDCollisionAndListing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		a, _, _ := fittedArtifact(t)
		if i == 2 {
			a.CreatedAt = a.CreatedAt.Add(time.Hour)
		}
		id, err := s.Save(ctx, a)
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	want := []string{"xgboost_20240506_070809", "xgboost_20240506_070809_1", "xgboost_20240506_080809"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v", ids)
	}
	listed, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(listed, want) {
		t.Fatalf("List = %v", listed)
	}
	latest, err := s.Latest(ctx)
	if err != nil || latest.ID != want[2] {
		t.Fatalf("Latest = %v, %v", latest, err)
	}
	again, _ := s.Load(ctx, want[1])
	if again.ID != want[1] {
		t.Fatalf("suffixed artifact id = %q", again.ID)
	}
}

func TestSaveLeavesArtifactUnchanged(t *testing.T) {
	s := newStore(t)
	a, _, _ := fittedArtifact(t)
	a.CreatedAt = time.Time{}
	before := *a

	id, err := s.Save(context.Background(), a)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !reflect.DeepEqual(*a, before) {
		t.Fatalf("Save mutated its input:\n got %+v\nwant %+v", *a, before)
	}
	got, err := s.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != id || got.CreatedAt.IsZero() || got.FormatVersion != models.ArtifactFormatVersion {
		t.Fatalf("stored artifact id %q created %v version %d", got.ID, got.CreatedAt, got.FormatVersion)
	}
}

func TestPartialArtifactsAreNotLoadable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "lightgbm_20990101_000000")
	if !errors.Is(err, models.ErrArtifactNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.Latest(ctx); !errors.Is(err, models.ErrArtifactNotFound) {
		t.Fatalf("expected not found on empty store, got %v", err)
	}
	if _, err := s.Load(ctx, "../etc"); !errors.Is(err, models.ErrArtifactNotFound) {
		t.Fatalf("expected traversal to be rejected, got %v", err)
	}

	a, _, _ := fittedArtifact(t)
	id, _ := s.Save(ctx, a)

	// a crashed save leaves only a temporary directory
	tmp := filepath.Join(s.Root(), tmpPrefix+"xgboost_x-123")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		t.Fatal(err)
	}
	ids, _ := s.List(ctx)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("List = %v", ids)
	}

	if err := os.Remove(filepath.Join(s.Root(), id, modelFile)); err != nil {
		t.Fatal(err)
	}
	var ioErr *models.ArtifactIOError
	if _, err := s.Load(ctx, id); !errors.As(err, &ioErr) {
		t.Fatalf("expected ArtifactIOError, got %v", err)
	}
}

func TestLoadRejectsMismatchedMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a, _, _ := fittedArtifact(t)
	a.FeatureNames = []string{"only_one"}
	id, err := s.Save(ctx, a)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(ctx, id); err == nil || !strings.Contains(err.Error(), "features") {
		t.Fatalf("expected feature count error, got %v", err)
	}

	b, _, _ := fittedArtifact(t)
	b.ID = "manual"
	if _, err := s.Save(ctx, b); err != nil {
		t.Fatalf("Save: %v", err)
	}
	meta := filepath.Join(s.Root(), "manual", metadataFile)
	raw, _ := os.ReadFile(meta)
	raw = []byte(strings.Replace(string(raw), "format_version: 1", "format_version: 9", 1))
	if err := os.WriteFile(meta, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "manual"); err == nil || !strings.Contains(err.Error(), "format version") {
		t.Fatalf("expected version error, got %v", err)
	}

	empty, _, _ := fittedArtifact(t)
	empty.Model = nil
	if _, err := s.Save(ctx, empty); err == nil {
		t.Fatal("expected error for empty model")
	}
}
