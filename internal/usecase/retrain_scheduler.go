package usecase

import (
	"context"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// RetrainScheduler runs the training pipeline on a cron schedule. A tick
// that fires while the previous run is still going is skipped.
type RetrainScheduler struct {
	spec     string
	pipeline trainRunner
	cron     *cron.Cron
	l        *applogger.Logger
}

// NewRetrainScheduler returns nil when no schedule is configured.
func NewRetrainScheduler(cfg *config.Config, pipeline *TrainingPipeline, l *applogger.Logger) *RetrainScheduler {
	if cfg.Schedule.RetrainCron == "" {
		return nil
	}
	return newRetrainScheduler(cfg.Schedule.RetrainCron, pipeline, l)
}

func newRetrainScheduler(spec string, pipeline trainRunner, l *applogger.Logger) *RetrainScheduler {
	cl := cronLogger{l: l}
	return &RetrainScheduler{
		spec:     spec,
		pipeline: pipeline,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		l:        l,
	}
}

// Start registers the job and starts ticking. Runs inherit ctx.
func (s *RetrainScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule retrain %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.l.Info("retrain scheduler started", applogger.String("schedule", s.spec))
	return nil
}

// Stop waits for a running job, or for ctx.
func (s *RetrainScheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("retrain scheduler stop: %w", ctx.Err())
	}
}

func (s *RetrainScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	id := "scheduled-" + uuid.NewString()
	start := time.Now()
	report, err := s.pipeline.Run(ctx, &models.TrainRequest{RequestID: id})
	switch {
	case err == nil:
		s.l.Info("scheduled retrain finished",
			applogger.String("run_id", id),
			applogger.String("artifact_id", report.ArtifactID),
			applogger.Duration("elapsed", time.Since(start)),
		)
	case IsBusy(err):
		s.l.Info("scheduled retrain skipped, trainer busy", applogger.String("run_id", id))
	default:
		s.l.Error("scheduled retrain failed", applogger.String("run_id", id), applogger.Error(err))
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
