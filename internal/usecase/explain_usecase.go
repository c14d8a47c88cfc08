package usecase

import (
	"context"
	"time"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	"BoostLab/internal/services/explain"
	"BoostLab/pkg/cache"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"
)

type ExplainUsecase struct {
	cfg     *config.Config
	source  drepo.PriceSeriesSource
	store   drepo.ArtifactStore
	cache   cache.Service
	metrics drepo.Metrics
	l       *applogger.Logger
}

func NewExplainUsecase(
	cfg *config.Config,
	source drepo.PriceSeriesSource,
	store drepo.ArtifactStore,
	c cache.Service,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *ExplainUsecase {
	return &ExplainUsecase{cfg: cfg, source: source, store: store, cache: c, metrics: metrics, l: l}
}

func (u *ExplainUsecase) Enabled() bool { return u.cfg.Explain.Enabled }

// Explain attributes the saved model's outputs over the artifact's own
// symbol and timeframe, and breaks down the most recent prediction.
func (u *ExplainUsecase) Explain(ctx context.Context, req *models.ExplainRequest) (*models.ExplainReport, error) {
	if !u.Enabled() {
		return nil, models.ErrExplainDisabled
	}
	method, err := explain.ParseMethod(req.Method)
	if err != nil {
		return nil, &models.SchemaValidationError{Field: "method", Index: -1, Reason: err.Error()}
	}
	if req.Top <= 0 {
		req.Top = 10
	}
	key, err := cacheKey("explain", req.ID, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, hit, err := cache.Remember(ctx, u.cache, key, u.cfg.Cache.TTL, func() (*models.ExplainReport, error) {
		return u.explain(ctx, req, method)
	})
	if err != nil {
		u.metrics.RecordError("explain")
		return nil, err
	}
	u.metrics.RecordLatency("explain", time.Since(start).Seconds())
	u.l.Debug("explain served", applogger.String("key", key), applogger.Bool("cache_hit", hit))
	return report, nil
}

func (u *ExplainUsecase) explain(ctx context.Context, req *models.ExplainRequest, method explain.Method) (*models.ExplainReport, error) {
	ld, err := loadArtifact(ctx, u.store, req.ID)
	if err != nil {
		return nil, err
	}
	snap := ld.art.TrainingConfig
	w, err := parseWindow(firstNonEmpty(snap.Symbol, u.cfg.Data.Symbol), firstNonEmpty(snap.Timeframe, u.cfg.Data.Timeframe), "", "")
	if err != nil {
		return nil, err
	}
	bars, err := loadBars(ctx, u.source, w)
	if err != nil {
		return nil, err
	}
	rows, err := featureRows(bars, ld.art.FeatureNames)
	if err != nil {
		return nil, err
	}

	ec := u.cfg.Explain
	an, err := explain.New(ld.model, ld.art.FeatureNames, rows.X,
		explain.WithBackgroundSize(ec.BackgroundSize),
		explain.WithMaxSamples(ec.MaxSamples),
		explain.WithPermutations(ec.NPermutations),
		explain.WithSeed(ec.Seed),
	)
	if err != nil {
		return nil, err
	}
	imp, n, err := an.GlobalImportance(ctx, rows.X, method, req.Top)
	if err != nil {
		return nil, err
	}
	latest, err := an.ExplainPrediction(rows.X[len(rows.X)-1], req.Top)
	if err != nil {
		return nil, err
	}
	return &models.ExplainReport{
		ArtifactID: req.ID,
		Method:     string(method),
		Samples:    n,
		Baseline:   an.Baseline(),
		Importance: imp,
		Latest:     latest,
	}, nil
}
