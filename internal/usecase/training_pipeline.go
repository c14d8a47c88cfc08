package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	"BoostLab/internal/services/features"
	"BoostLab/internal/services/scoring"
	"BoostLab/internal/services/search"
	"BoostLab/internal/services/split"
	"BoostLab/internal/services/trainer"
	"BoostLab/pkg/cache"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"

	"github.com/google/uuid"
)

const trainLockKey = "lock:train"

// TrainingPipeline runs load, features, target, search, final fit and save
// as one unit. Only one run holds the training lock at a time.
type TrainingPipeline struct {
	cfg       *config.Config
	source    drepo.PriceSeriesSource
	store     drepo.ArtifactStore
	publisher drepo.EventPublisher
	metrics   drepo.Metrics
	lock      cache.Service
	l         *applogger.Logger
}

func NewTrainingPipeline(
	cfg *config.Config,
	source drepo.PriceSeriesSource,
	store drepo.ArtifactStore,
	publisher drepo.EventPublisher,
	metrics drepo.Metrics,
	lock cache.Service,
	l *applogger.Logger,
) *TrainingPipeline {
	return &TrainingPipeline{
		cfg:       cfg,
		source:    source,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		lock:      lock,
		l:         l,
	}
}

// runPlan is the effective configuration of one run after request overrides.
type runPlan struct {
	family  models.ModelType
	target  models.TargetType
	horizon int
	trials  int
	metric  scoring.Metric
	stop    scoring.Metric // early stopping
	window  window
}

func (p *TrainingPipeline) plan(req *models.TrainRequest) (runPlan, error) {
	c := p.cfg
	rp := runPlan{horizon: c.Target.Horizon, trials: c.Search.NTrials}
	var err error
	modelType := c.Model.Type
	if req.ModelType != "" {
		modelType = req.ModelType
	}
	if rp.family, err = models.ParseModelType(modelType); err != nil {
		return rp, &models.SchemaValidationError{Field: "model_type", Index: -1, Reason: err.Error()}
	}
	targetType := c.Target.Type
	if req.TargetType != "" {
		targetType = req.TargetType
	}
	if rp.target, err = models.ParseTargetType(targetType); err != nil {
		return rp, &models.SchemaValidationError{Field: "target_type", Index: -1, Reason: err.Error()}
	}
	if req.Horizon > 0 {
		rp.horizon = req.Horizon
	}
	if req.Trials > 0 {
		rp.trials = req.Trials
	}

	classification := rp.target.IsClassification()
	rp.metric = scoring.SearchDefault(classification)
	rp.stop = scoring.Default(classification)
	// A configured metric is only honoured when it fits the effective target.
	if c.Search.Metric != "" {
		m, err := scoring.Parse(c.Search.Metric)
		if err != nil {
			return rp, err
		}
		if m.ForClassification() == classification {
			rp.metric, rp.stop = m, m
		}
	}

	symbol := c.Data.Symbol
	if req.Symbol != "" {
		symbol = req.Symbol
	}
	rp.window, err = parseWindow(symbol, c.Data.Timeframe, c.Data.From, c.Data.To)
	return rp, err
}

func (p *TrainingPipeline) space(family models.ModelType) search.Space {
	ranges := make(map[string]search.Range)
	for name, spec := range p.cfg.Search.SearchSpace[string(family)] {
		ranges[name] = search.Range{Low: spec.Range[0], High: spec.Range[1], Int: spec.Kind == "int", Log: spec.Log}
	}
	if s := search.FromRanges(ranges); s != nil {
		return s
	}
	return search.DefaultSpace(family)
}

// Run executes one training run. An empty request uses the configuration as is.
func (p *TrainingPipeline) Run(ctx context.Context, req *models.TrainRequest) (*models.TrainingReport, error) {
	if req == nil {
		req = &models.TrainRequest{}
	}
	rp, err := p.plan(req)
	if err != nil {
		return nil, err
	}

	if p.lock != nil {
		ok, err := p.lock.TryLock(ctx, trainLockKey, p.cfg.Search.Timeout+time.Hour)
		if err != nil {
			return nil, fmt.Errorf("acquire training lock: %w", err)
		}
		if !ok {
			return nil, models.ErrTrainingBusy
		}
		defer func() { _ = p.lock.Unlock(context.WithoutCancel(ctx), trainLockKey) }()
	}

	runID := req.RequestID
	if runID == "" {
		runID = uuid.NewString()
	}
	l := p.l.With(
		applogger.String("run_id", runID),
		applogger.String("model_type", string(rp.family)),
		applogger.String("target_type", string(rp.target)),
	)
	start := time.Now()
	durations := make(map[string]float64)
	mark := func(name string, since time.Time) { durations[name] = time.Since(since).Seconds() }

	report, err := p.run(ctx, rp, runID, l, mark)
	durations["total"] = time.Since(start).Seconds()
	p.metrics.RecordLatency("train", durations["total"])
	if err != nil {
		p.metrics.RecordError("train")
		l.Error("training run failed", applogger.Error(err))
		return nil, err
	}
	report.Durations = durations
	l.Info("training run finished",
		applogger.String("artifact_id", report.ArtifactID),
		applogger.Float64("best_score", report.BestScore),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (p *TrainingPipeline) run(ctx context.Context, rp runPlan, runID string, l *applogger.Logger, mark func(string, time.Time)) (*models.TrainingReport, error) {
	c := p.cfg
	t0 := time.Now()
	bars, err := loadBars(ctx, p.source, rp.window)
	if err != nil {
		return nil, err
	}
	mark("load", t0)

	t0 = time.Now()
	indicators := c.Features.Indicators
	if len(indicators) == 0 {
		indicators = features.DefaultIndicators
	}
	ds, err := labeledDataset(bars, indicators, rp.target, rp.horizon, c.Target.DirectionThreshold)
	if err != nil {
		return nil, err
	}
	cut, err := split.FinalSplit(ds.Len(), c.Validation.TestSize)
	if err != nil {
		return nil, err
	}
	train, test := ds.Slice(0, cut), ds.Slice(cut, ds.Len())
	splitter, err := split.New(c.Validation.NSplits, split.Scheme(c.Validation.Scheme))
	if err != nil {
		return nil, err
	}
	folds, err := splitter.Split(train.Len())
	if err != nil {
		return nil, err
	}
	mark("dataset", t0)
	l.Info("dataset ready",
		applogger.Int("bars", len(bars)),
		applogger.Int("samples", ds.Len()),
		applogger.Int("train", train.Len()),
		applogger.Int("test", test.Len()),
		applogger.Int("folds", len(folds)),
	)

	tr, err := trainer.New(rp.family, rp.target,
		trainer.WithEvalMetric(rp.stop),
		trainer.WithEarlyStopping(c.Model.EarlyStoppingRounds),
		trainer.WithBaseParams(models.Params(c.Model.BaseParams)),
	)
	if err != nil {
		return nil, err
	}

	t0 = time.Now()
	maximize := rp.metric.HigherIsBetter()
	if c.Search.Direction != "" {
		maximize = c.Search.Direction == "maximize"
	}
	opts := []search.Option{
		search.WithTrials(rp.trials),
		search.WithTimeout(c.Search.Timeout),
		search.WithTrialTimeout(c.Search.TrialTimeout),
		search.WithSeed(c.Search.Seed),
		search.WithParallelism(c.Search.Parallelism),
		search.WithMaximize(maximize),
		search.WithStartupTrials(c.Search.NStartupTrials),
		search.WithCandidates(c.Search.NEICandidates),
		search.WithObserver(func(rec models.TrialRecord) {
			p.metrics.RecordTrial(string(rp.family), string(rec.Status), rec.Duration.Seconds())
			l.Info("trial recorded",
				applogger.Int("trial", rec.Number),
				applogger.String("status", string(rec.Status)),
				applogger.Float64("score", rec.MeanScore),
				applogger.Floats("fold_scores", rec.FoldScores),
				applogger.Duration("elapsed", rec.Duration),
			)
		}),
	}
	if c.Search.Pruning {
		opts = append(opts, search.WithPruning(c.Search.PruningMinTrials, c.Search.PruningWarmup))
	}
	searcher, err := search.New(p.space(rp.family), opts...)
	if err != nil {
		return nil, err
	}
	res, err := searcher.Run(ctx, len(folds), func(ctx context.Context, params models.Params, fold int) (float64, error) {
		f := folds[fold]
		r, err := tr.Fit(ctx, train.Range(f.Train), params)
		if err != nil {
			return 0, err
		}
		return trainer.Score(r.Model, train.Range(f.Validation), rp.metric), nil
	})
	if err != nil {
		return nil, err
	}
	mark("search", t0)
	p.metrics.RecordBestScore(string(rp.family), string(rp.metric), res.Best.MeanScore)

	// A cancelled search still persists its best trial.
	fitCtx := ctx
	if res.Cancelled {
		fitCtx = context.WithoutCancel(ctx)
	}

	t0 = time.Now()
	final, err := tr.Fit(fitCtx, train, res.Best.Params)
	if err != nil {
		return nil, &models.StageError{Stage: "final_fit", Index: -1, Err: err}
	}
	mark("final_fit", t0)
	p.metrics.RecordEarlyStop(string(rp.family), final.Trajectory.BestIteration)
	holdout := trainer.Evaluate(final.Model, test)

	t0 = time.Now()
	blob, err := final.Model.MarshalBinary()
	if err != nil {
		return nil, &models.ArtifactIOError{Op: "encode", Err: err}
	}
	art := &models.ModelArtifact{
		ModelType:    rp.family,
		TargetType:   rp.target,
		Model:        blob,
		Params:       final.Params,
		Metrics:      holdout,
		FeatureNames: ds.FeatureNames,
		TrainingConfig: models.TrainingSnapshot{
			Symbol:              rp.window.Symbol,
			Timeframe:           string(rp.window.Timeframe),
			Indicators:          append([]string(nil), ds.FeatureNames...),
			TargetType:          string(rp.target),
			Horizon:             rp.horizon,
			DirectionThreshold:  c.Target.DirectionThreshold,
			NSplits:             c.Validation.NSplits,
			Scheme:              c.Validation.Scheme,
			TestSize:            c.Validation.TestSize,
			EarlyStoppingRounds: c.Model.EarlyStoppingRounds,
			SearchTrials:        rp.trials,
			SearchMetric:        string(rp.metric),
			Seed:                c.Search.Seed,
			TrainRows:           train.Len(),
			TestRows:            test.Len(),
		},
		BestTrial: res.Summary(),
		CreatedAt: time.Now().UTC(),
	}
	id, err := p.store.Save(fitCtx, art)
	if err != nil {
		return nil, err
	}
	mark("save", t0)
	p.metrics.RecordArtifactSaved(string(rp.family))

	ev := &models.TrainingEvent{
		EventID:    uuid.NewString(),
		RequestID:  runID,
		ArtifactID: id,
		ModelType:  rp.family,
		TargetType: rp.target,
		Metrics:    holdout,
		BestParams: final.Params,
		CreatedAt:  art.CreatedAt,
	}
	if err := p.publisher.PublishTrainingCompleted(fitCtx, ev); err != nil {
		// A lost event does not fail the run.
		l.Warn("training event not published", applogger.Error(err))
	}

	return &models.TrainingReport{
		RunID:      runID,
		ArtifactID: id,
		ModelType:  rp.family,
		TargetType: rp.target,
		Metric:     string(rp.metric),
		BestParams: final.Params,
		BestScore:  res.Best.MeanScore,
		Trials:     res.Summary(),
		Cancelled:  res.Cancelled,
		TimedOut:   res.TimedOut,
		Metrics:    holdout,
		BestRound:  final.Trajectory.BestIteration,
		Samples:    ds.Len(),
		FinishedAt: time.Now().UTC(),
	}, nil
}

// IsBusy reports whether err means another run holds the training lock.
func IsBusy(err error) bool { return errors.Is(err, models.ErrTrainingBusy) }
