package usecase

import (
	"context"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/services/backtest"
	"BoostLab/internal/services/trainer"
	"BoostLab/pkg/cache"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"
)

const (
	ModeSingle      = "single"
	ModeWalkForward = "walk_forward"
)

// BacktestUsecase replays a saved model over price history.
type BacktestUsecase struct {
	cfg       *config.Config
	source    drepo.PriceSeriesSource
	store     drepo.ArtifactStore
	cache     cache.Service
	insight   domsvc.TextInsightService
	publisher drepo.EventPublisher
	metrics   drepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

func NewBacktestUsecase(
	cfg *config.Config,
	source drepo.PriceSeriesSource,
	store drepo.ArtifactStore,
	c cache.Service,
	insight domsvc.TextInsightService,
	publisher drepo.EventPublisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *BacktestUsecase {
	return &BacktestUsecase{
		cfg:       cfg,
		source:    source,
		store:     store,
		cache:     c,
		insight:   insight,
		publisher: publisher,
		metrics:   metrics,
		l:         l,
		now:       time.Now,
	}
}

// loaded is an artifact with its decoded model.
type loaded struct {
	art   *models.ModelArtifact
	model domsvc.Model
}

func loadArtifact(ctx context.Context, store drepo.ArtifactStore, id string) (*loaded, error) {
	art, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := trainer.LoadModel(art.Model)
	if err != nil {
		return nil, &models.ArtifactIOError{ID: id, Op: "decode", Err: err}
	}
	return &loaded{art: art, model: m}, nil
}

// window falls back from the request to the artifact's training data, then config.
func (u *BacktestUsecase) window(req *models.BacktestRequest, snap models.TrainingSnapshot) (window, error) {
	symbol := firstNonEmpty(req.Symbol, snap.Symbol, u.cfg.Data.Symbol)
	tf := firstNonEmpty(req.Timeframe, snap.Timeframe, u.cfg.Data.Timeframe)
	return parseWindow(symbol, tf, req.From, req.To)
}

func (u *BacktestUsecase) engine(req *models.BacktestRequest, tf drepo.Timeframe) (*backtest.Engine, error) {
	bc := u.cfg.Backtest
	cfg := backtest.Config{
		InitialCapital: bc.InitialCapital,
		FeeRate:        bc.FeeRate,
		RiskFreeRate:   bc.RiskFreeRate,
		PeriodsPerYear: periodsPerYear(bc.PeriodsPerYear, tf),
		AllowShort:     bc.AllowShort,
	}
	if req.FeeRate != nil {
		cfg.FeeRate = *req.FeeRate
	}
	if req.AllowShort != nil {
		cfg.AllowShort = *req.AllowShort
	}
	e, err := backtest.NewEngine(cfg)
	if err != nil {
		return nil, &models.SchemaValidationError{Field: "backtest", Index: -1, Reason: err.Error()}
	}
	return e, nil
}

// policy uses configured thresholds for probabilities and zero-centred ones
// for regression scores; request values override both.
func (u *BacktestUsecase) policy(req *models.BacktestRequest, classification, allowShort bool) (backtest.ThresholdPolicy, error) {
	p := backtest.DefaultPolicy(classification, allowShort)
	if classification {
		p.Long, p.Short = u.cfg.Backtest.LongThreshold, u.cfg.Backtest.ShortThreshold
	}
	if req.LongThreshold != nil {
		p.Long = *req.LongThreshold
	}
	if req.ShortThreshold != nil {
		p.Short = *req.ShortThreshold
	}
	if p.Short > p.Long {
		return p, &models.SchemaValidationError{Field: "short_threshold", Index: -1,
			Reason: fmt.Sprintf("%v exceeds long_threshold %v", p.Short, p.Long)}
	}
	return p, nil
}

// Backtest scores every bar with the saved model and replays the signals.
func (u *BacktestUsecase) Backtest(ctx context.Context, req *models.BacktestRequest) (*models.BacktestReport, error) {
	key, err := cacheKey("backtest", req.ID, req)
	if err != nil {
		return nil, err
	}
	return u.cached(ctx, key, req.Commentary, func() (*models.BacktestReport, error) {
		return u.single(ctx, req)
	})
}

// WalkForward retrains the artifact's configuration on a sliding window so
// every signal is out of sample.
func (u *BacktestUsecase) WalkForward(ctx context.Context, req *models.WalkForwardRequest) (*models.BacktestReport, error) {
	if req.TrainWindow == 0 {
		req.TrainWindow = u.cfg.Backtest.TrainWindow
	}
	if req.Step == 0 {
		req.Step = u.cfg.Backtest.Step
	}
	key, err := cacheKey("walkforward", req.ID, req)
	if err != nil {
		return nil, err
	}
	return u.cached(ctx, key, req.Commentary, func() (*models.BacktestReport, error) {
		return u.walkForward(ctx, req)
	})
}

func (u *BacktestUsecase) cached(ctx context.Context, key string, commentary bool, compute func() (*models.BacktestReport, error)) (*models.BacktestReport, error) {
	start := time.Now()
	report, hit, err := cache.Remember(ctx, u.cache, key, u.cfg.Cache.TTL, func() (*models.BacktestReport, error) {
		r, err := compute()
		if err != nil {
			return nil, err
		}
		u.finish(ctx, r, commentary)
		return r, nil
	})
	if err != nil {
		u.metrics.RecordError("backtest")
		return nil, err
	}
	u.metrics.RecordLatency("backtest", time.Since(start).Seconds())
	u.l.Debug("backtest served", applogger.String("key", key), applogger.Bool("cache_hit", hit))
	return report, nil
}

// finish adds commentary, records metrics and announces a fresh report.
func (u *BacktestUsecase) finish(ctx context.Context, r *models.BacktestReport, commentary bool) {
	if commentary && u.insight != nil && u.insight.Enabled() {
		text, err := u.insight.Commentary(ctx, r)
		if err != nil {
			u.l.Warn("commentary unavailable", applogger.String("artifact_id", r.ArtifactID), applogger.Error(err))
		}
		r.Commentary = text
	}
	u.metrics.RecordBacktest(r.ArtifactID, &r.Result)
	if err := u.publisher.PublishBacktestCompleted(ctx, r); err != nil {
		u.l.Warn("backtest event not published", applogger.Error(err))
	}
}

func (u *BacktestUsecase) single(ctx context.Context, req *models.BacktestRequest) (*models.BacktestReport, error) {
	ld, err := loadArtifact(ctx, u.store, req.ID)
	if err != nil {
		return nil, err
	}
	w, err := u.window(req, ld.art.TrainingConfig)
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
	eng, err := u.engine(req, w.Timeframe)
	if err != nil {
		return nil, err
	}
	pol, err := u.policy(req, ld.model.Classifier(), eng.Config().AllowShort)
	if err != nil {
		return nil, err
	}
	scores := domsvc.Scorer(ld.model)(rows.X)
	signals := pol.Signals(rows.Timestamps, scores)
	res, err := eng.Run(signals, backtest.AlignBars(bars, rows.BarIndex))
	if err != nil {
		return nil, err
	}
	return u.report(req, w, ModeSingle, eng, res), nil
}

func (u *BacktestUsecase) walkForward(ctx context.Context, req *models.WalkForwardRequest) (*models.BacktestReport, error) {
	ld, err := loadArtifact(ctx, u.store, req.ID)
	if err != nil {
		return nil, err
	}
	snap := ld.art.TrainingConfig
	w, err := u.window(&req.BacktestRequest, snap)
	if err != nil {
		return nil, err
	}
	bars, err := loadBars(ctx, u.source, w)
	if err != nil {
		return nil, err
	}
	ds, err := labeledDataset(bars, ld.art.FeatureNames, ld.art.TargetType, snap.Horizon, snap.DirectionThreshold)
	if err != nil {
		return nil, err
	}
	eng, err := u.engine(&req.BacktestRequest, w.Timeframe)
	if err != nil {
		return nil, err
	}
	pol, err := u.policy(&req.BacktestRequest, ld.art.TargetType.IsClassification(), eng.Config().AllowShort)
	if err != nil {
		return nil, err
	}
	tr, err := trainer.New(ld.art.ModelType, ld.art.TargetType, trainer.WithEarlyStopping(snap.EarlyStoppingRounds))
	if err != nil {
		return nil, err
	}
	if req.TrainWindow <= snap.Horizon {
		return nil, &models.SchemaValidationError{Field: "train_window", Index: -1,
			Reason: fmt.Sprintf("must exceed the label horizon %d", snap.Horizon)}
	}
	wf := backtest.WalkForward{TrainWindow: req.TrainWindow, Step: req.Step, Purge: snap.Horizon}
	fit := func(ctx context.Context, train *models.Dataset) (func([][]float64) []float64, error) {
		r, err := tr.Fit(ctx, train, ld.art.Params)
		if err != nil {
			return nil, err
		}
		return domsvc.Scorer(r.Model), nil
	}
	signals, rowIdx, err := wf.Signals(ctx, ds, fit, pol)
	if err != nil {
		return nil, err
	}
	barIdx := make([]int, len(rowIdx))
	for i, r := range rowIdx {
		barIdx[i] = ds.BarIndex[r]
	}
	res, err := eng.Run(signals, backtest.AlignBars(bars, barIdx))
	if err != nil {
		return nil, err
	}
	return u.report(&req.BacktestRequest, w, ModeWalkForward, eng, res), nil
}

func (u *BacktestUsecase) report(req *models.BacktestRequest, w window, mode string, eng *backtest.Engine, res *models.BacktestResult) *models.BacktestReport {
	return &models.BacktestReport{
		ArtifactID:  req.ID,
		Symbol:      w.Symbol,
		Mode:        mode,
		AllowShort:  eng.Config().AllowShort,
		Result:      *res,
		GeneratedAt: u.now().UTC(),
	}
}

func cacheKey(kind, id string, req interface{}) (string, error) {
	h, err := cache.HashValue(req)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	return cache.GenerateKeyWithParams(kind, id, h), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
