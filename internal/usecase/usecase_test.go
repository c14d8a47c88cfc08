package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"BoostLab/internal/domain/models"
	"BoostLab/internal/repository"
	"BoostLab/internal/services/scoring"
	"BoostLab/internal/services/synthetic"
	"BoostLab/internal/services/trainer"
	"BoostLab/pkg/cache"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"
	"BoostLab/pkg/metrics"

	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	mu        sync.Mutex
	trainings []*models.TrainingEvent
	backtests int
}

func (p *countingPublisher) PublishTrainingCompleted(_ context.Context, ev *models.TrainingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trainings = append(p.trainings, ev)
	return nil
}

func (p *countingPublisher) PublishBacktestCompleted(context.Context, *models.BacktestReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backtests++
	return nil
}

func (p *countingPublisher) Close() error { return nil }

type fixture struct {
	cfg      *config.Config
	source   *repository.SyntheticPriceSource
	store    *repository.FileArtifactStore
	cache    *cache.MemoryCache
	pub      *countingPublisher
	pipeline *TrainingPipeline
}

func modelCheck(b []byte) (int, error) {
	m, err := trainer.LoadModel(b)
	if err != nil {
		return 0, err
	}
	return m.NumFeatures(), nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithBars(t, synthetic.Sine(300, 20, 100, 10))
}

func newFixtureWithBars(t *testing.T, bars []models.PriceBar) *fixture {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Search.NTrials = 3
	cfg.Search.NStartupTrials = 3
	cfg.Search.Pruning = false
	cfg.Validation.NSplits = 3
	cfg.Model.EarlyStoppingRounds = 5
	cfg.Search.SearchSpace = map[string]map[string]config.ParamSpec{
		"lightgbm": {
			"n_estimators":     {Range: []float64{10, 30}, Kind: "int"},
			"learning_rate":    {Range: []float64{0.05, 0.3}, Kind: "float", Log: true},
			"min_data_in_leaf": {Range: []float64{3, 10}, Kind: "int"},
		},
	}
	cfg.Explain.BackgroundSize = 10
	cfg.Explain.MaxSamples = 20
	cfg.Explain.NPermutations = 2

	store, err := repository.NewFileArtifactStore(t.TempDir(), modelCheck, applogger.Nop())
	require.NoError(t, err)
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	f := &fixture{
		cfg:    cfg,
		source: repository.NewStaticPriceSource(bars),
		store:  store,
		cache:  mc,
		pub:    &countingPublisher{},
	}
	f.pipeline = NewTrainingPipeline(cfg, f.source, store, f.pub, metrics.Nop{}, mc, applogger.Nop())
	return f
}

func TestTrainingPipelineRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.pipeline.Run(ctx, &models.TrainRequest{RequestID: "run-1"})
	require.NoError(t, err)
	require.Equal(t, "run-1", report.RunID)
	require.Equal(t, models.ModelLightGBM, report.ModelType)
	require.Equal(t, "auc", report.Metric)
	require.Equal(t, 3, report.Trials.Completed)
	require.Contains(t, report.Metrics, "auc")
	require.Contains(t, report.Metrics, "logloss")
	require.Contains(t, report.Metrics, "accuracy")
	for _, stage := range []string{"load", "dataset", "search", "final_fit", "save", "total"} {
		require.Contains(t, report.Durations, stage)
	}

	art, err := f.store.Load(ctx, report.ArtifactID)
	require.NoError(t, err)
	require.Equal(t, report.BestParams, art.Params)
	require.Equal(t, 1, art.TrainingConfig.Horizon)
	require.NotNil(t, art.BestTrial)

	require.Len(t, f.pub.trainings, 1)
	require.Equal(t, report.ArtifactID, f.pub.trainings[0].ArtifactID)

	ok, err := f.cache.TryLock(ctx, trainLockKey, 0)
	require.NoError(t, err)
	require.True(t, ok, "lock must be released after the run")
}

func TestPlanMetricDefaults(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.cfg.Search.Metric)

	rp, err := f.pipeline.plan(&models.TrainRequest{})
	require.NoError(t, err)
	require.Equal(t, scoring.AUC, rp.metric)
	require.True(t, rp.metric.HigherIsBetter(), "classification search must maximize")
	require.Equal(t, scoring.LogLoss, rp.stop)

	rp, err = f.pipeline.plan(&models.TrainRequest{TargetType: "returns"})
	require.NoError(t, err)
	require.Equal(t, scoring.RMSE, rp.metric)
	require.Equal(t, scoring.RMSE, rp.stop)

	f.cfg.Search.Metric = "accuracy"
	rp, err = f.pipeline.plan(&models.TrainRequest{})
	require.NoError(t, err)
	require.Equal(t, scoring.Accuracy, rp.metric)
	require.Equal(t, scoring.Accuracy, rp.stop)
}

func TestTrainingPipelineSmallSineSeries(t *testing.T) {
	f := newFixtureWithBars(t, synthetic.Sine(100, 20, 100, 10))
	require.Equal(t, 1, f.cfg.Target.Horizon)
	require.Equal(t, "direction", f.cfg.Target.Type)
	require.Equal(t, 3, f.cfg.Validation.NSplits)
	ctx := context.Background()

	report, err := f.pipeline.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, "auc", report.Metric)

	art, err := f.store.Load(ctx, report.ArtifactID)
	require.NoError(t, err)
	require.NotEmpty(t, art.FeatureNames)
	require.Equal(t, "auc", art.TrainingConfig.SearchMetric)
	require.Equal(t, report.Samples, art.TrainingConfig.TrainRows+art.TrainingConfig.TestRows)
	require.Contains(t, art.Metrics, "auc")
}

func TestFinalFitIgnoresHoldoutRows(t *testing.T) {
	bars := synthetic.Sine(300, 20, 100, 10)
	base, err := newFixtureWithBars(t, bars).pipeline.Run(context.Background(), nil)
	require.NoError(t, err)

	// Rescaling the last bars changes only holdout rows.
	tail := append([]models.PriceBar(nil), bars...)
	for i := len(tail) - 15; i < len(tail); i++ {
		b := &tail[i]
		b.Open, b.High, b.Low, b.Close = b.Open*1.3, b.High*1.3, b.Low*1.3, b.Close*1.3
	}
	moved, err := newFixtureWithBars(t, tail).pipeline.Run(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, base.Samples, moved.Samples)
	require.Equal(t, base.BestParams, moved.BestParams)
	require.Equal(t, base.BestScore, moved.BestScore)
	require.Equal(t, base.BestRound, moved.BestRound, "best iteration must not depend on holdout rows")
}

func TestTrainingPipelineBusyAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.Run(ctx, &models.TrainRequest{ModelType: "catboost"})
	require.True(t, models.IsInputError(err), "unknown model type is an input error: %v", err)

	ok, _ := f.cache.TryLock(ctx, trainLockKey, 0)
	require.True(t, ok)
	_, err = f.pipeline.Run(ctx, nil)
	require.True(t, IsBusy(err), "expected busy, got %v", err)

	f.cfg.Search.NTrials = 0
	require.NoError(t, f.cache.Unlock(ctx, trainLockKey))
	_, err = f.pipeline.Run(ctx, nil)
	require.ErrorIs(t, err, models.ErrNoTrials)
}

func TestBacktestExplainAndPredict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report, err := f.pipeline.Run(ctx, nil)
	require.NoError(t, err)
	id := report.ArtifactID

	bt := NewBacktestUsecase(f.cfg, f.source, f.store, f.cache, nil, f.pub, metrics.Nop{}, applogger.Nop())
	single, err := bt.Backtest(ctx, &models.BacktestRequest{ID: id})
	require.NoError(t, err)
	require.Equal(t, ModeSingle, single.Mode)
	require.Greater(t, single.Result.NBars, 0)
	require.Equal(t, f.cfg.Backtest.InitialCapital, single.Result.InitialCapital)

	again, err := bt.Backtest(ctx, &models.BacktestRequest{ID: id})
	require.NoError(t, err)
	require.Equal(t, single.Result.TotalReturn, again.Result.TotalReturn)
	require.Equal(t, 1, f.pub.backtests, "cached report must not be republished")

	fee := 0.0
	free, err := bt.Backtest(ctx, &models.BacktestRequest{ID: id, FeeRate: &fee})
	require.NoError(t, err)
	require.Zero(t, free.Result.TotalFeesPaid)

	long, short := 0.4, 0.6
	_, err = bt.Backtest(ctx, &models.BacktestRequest{ID: id, LongThreshold: &long, ShortThreshold: &short})
	require.True(t, models.IsInputError(err))

	wf, err := bt.WalkForward(ctx, &models.WalkForwardRequest{
		BacktestRequest: models.BacktestRequest{ID: id},
		TrainWindow:     120,
		Step:            40,
	})
	require.NoError(t, err)
	require.Equal(t, ModeWalkForward, wf.Mode)
	require.Less(t, wf.Result.NBars, single.Result.NBars)

	ex := NewExplainUsecase(f.cfg, f.source, f.store, f.cache, metrics.Nop{}, applogger.Nop())
	exp, err := ex.Explain(ctx, &models.ExplainRequest{ID: id, Top: 5, Method: "mean_abs"})
	require.NoError(t, err)
	require.Len(t, exp.Importance, 5)
	require.Equal(t, 20, exp.Samples)
	require.NotNil(t, exp.Latest)
	require.LessOrEqual(t, len(exp.Latest.Contributions), 5)

	f.cfg.Explain.Enabled = false
	_, err = ex.Explain(ctx, &models.ExplainRequest{ID: id})
	require.ErrorIs(t, err, models.ErrExplainDisabled)

	mu := NewModelUsecase(f.cfg, f.store)
	list, err := mu.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].Model)

	width := len(list[0].FeatureNames)
	row := make([]float64, width)
	preds, err := mu.Predict(ctx, &models.PredictRequest{ID: id, Rows: [][]float64{row}})
	require.NoError(t, err)
	require.Len(t, preds, 1)
	require.GreaterOrEqual(t, preds[0].Score, 0.0)
	require.LessOrEqual(t, preds[0].Score, 1.0)

	_, err = mu.Predict(ctx, &models.PredictRequest{ID: id, Rows: [][]float64{row[:width-1]}})
	var sve *models.SchemaValidationError
	require.True(t, errors.As(err, &sve))

	_, err = mu.Get(ctx, "missing_20240101_000000")
	require.ErrorIs(t, err, models.ErrArtifactNotFound)
}
