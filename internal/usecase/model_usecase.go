package usecase

import (
	"context"
	"fmt"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/services/backtest"
	"BoostLab/pkg/config"
)

// ModelUsecase serves saved artifacts: listing, metadata and scoring.
type ModelUsecase struct {
	cfg   *config.Config
	store drepo.ArtifactStore
}

func NewModelUsecase(cfg *config.Config, store drepo.ArtifactStore) *ModelUsecase {
	return &ModelUsecase{cfg: cfg, store: store}
}

// List returns artifact metadata oldest first.
func (u *ModelUsecase) List(ctx context.Context) ([]*models.ModelArtifact, error) {
	ids, err := u.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ModelArtifact, 0, len(ids))
	for _, id := range ids {
		a, err := u.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		a.Model = nil
		out = append(out, a)
	}
	return out, nil
}

func (u *ModelUsecase) Get(ctx context.Context, id string) (*models.ModelArtifact, error) {
	a, err := u.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Model = nil
	return a, nil
}

// Predict scores raw feature rows given in the artifact's feature order.
func (u *ModelUsecase) Predict(ctx context.Context, req *models.PredictRequest) ([]models.Prediction, error) {
	ld, err := loadArtifact(ctx, u.store, req.ID)
	if err != nil {
		return nil, err
	}
	want := ld.model.NumFeatures()
	for i, row := range req.Rows {
		if len(row) != want {
			return nil, &models.SchemaValidationError{Field: "rows", Index: i,
				Reason: fmt.Sprintf("row has %d values, model expects %d (%v)", len(row), want, ld.art.FeatureNames)}
		}
		for _, v := range row {
			if !models.Defined(v) {
				return nil, &models.SchemaValidationError{Field: "rows", Index: i, Reason: "value is NaN or infinite"}
			}
		}
	}
	pol := backtest.DefaultPolicy(ld.model.Classifier(), u.cfg.Backtest.AllowShort)
	if ld.model.Classifier() {
		pol.Long, pol.Short = u.cfg.Backtest.LongThreshold, u.cfg.Backtest.ShortThreshold
	}
	scores := domsvc.Scorer(ld.model)(req.Rows)
	out := make([]models.Prediction, len(scores))
	for i, s := range scores {
		out[i] = models.Prediction{Score: s, Position: pol.Position(s)}
	}
	return out, nil
}
