package repository

import (
	"context"

	"BoostLab/internal/domain/models"
)

// ArtifactStore persists fitted models. Save is atomic: a failed save never
// leaves a loadable artifact behind.
type ArtifactStore interface {
	Save(ctx context.Context, a *models.ModelArtifact) (string, error)
	Load(ctx context.Context, id string) (*models.ModelArtifact, error)
	List(ctx context.Context) ([]string, error)
	Latest(ctx context.Context) (*models.ModelArtifact, error)
}

// EventPublisher announces finished runs to downstream consumers.
type EventPublisher interface {
	PublishTrainingCompleted(ctx context.Context, ev *models.TrainingEvent) error
	PublishBacktestCompleted(ctx context.Context, report *models.BacktestReport) error
	Close() error
}

type Metrics interface {
	RecordTrial(model, status string, seconds float64)
	RecordBestScore(model, metric string, score float64)
	RecordEarlyStop(model string, iteration int)
	RecordBacktest(artifactID string, r *models.BacktestResult)
	RecordArtifactSaved(model string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
