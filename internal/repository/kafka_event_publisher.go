package repository

import (
	"context"
	"fmt"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	pkgkafka "BoostLab/pkg/kafka"
	applogger "BoostLab/pkg/logger"
)

const (
	EventTrainingCompleted = "training.completed"
	EventBacktestCompleted = "backtest.completed"
)

// eventPublisher is the part of pkg/kafka.Producer the publisher uses.
type eventPublisher interface {
	Publish(ctx context.Context, topic, eventType string, key []byte, value any) error
	Close() error
}

// KafkaEventPublisher announces finished runs on one topic, keyed by artifact
// id so every event of a model lands on the same partition.
type KafkaEventPublisher struct {
	p     eventPublisher
	topic string
	l     *applogger.Logger
}

func NewKafkaEventPublisher(p *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaEventPublisher {
	return newKafkaEventPublisher(p, topic, l)
}

func newKafkaEventPublisher(p eventPublisher, topic string, l *applogger.Logger) *KafkaEventPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaEventPublisher{p: p, topic: topic, l: l}
}

func (k *KafkaEventPublisher) PublishTrainingCompleted(ctx context.Context, ev *models.TrainingEvent) error {
	if err := k.p.Publish(ctx, k.topic, EventTrainingCompleted, []byte(ev.ArtifactID), ev); err != nil {
		k.l.Error("publish training event failed",
			applogger.String("artifact_id", ev.ArtifactID), applogger.Error(err))
		return fmt.Errorf("publish %s: %w", EventTrainingCompleted, err)
	}
	return nil
}

func (k *KafkaEventPublisher) PublishBacktestCompleted(ctx context.Context, report *models.BacktestReport) error {
	// The equity curve and trade list stay local; consumers get the summary.
	summary := *report
	summary.Result.EquityCurve = nil
	summary.Result.Trades = nil
	if err := k.p.Publish(ctx, k.topic, EventBacktestCompleted, []byte(report.ArtifactID), &summary); err != nil {
		k.l.Error("publish backtest event failed",
			applogger.String("artifact_id", report.ArtifactID), applogger.Error(err))
		return fmt.Errorf("publish %s: %w", EventBacktestCompleted, err)
	}
	return nil
}

func (k *KafkaEventPublisher) Close() error { return k.p.Close() }

// NoopEventPublisher is used when Kafka is disabled.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishTrainingCompleted(context.Context, *models.TrainingEvent) error {
	return nil
}

func (NoopEventPublisher) PublishBacktestCompleted(context.Context, *models.BacktestReport) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }

var (
	_ drepo.EventPublisher = (*KafkaEventPublisher)(nil)
	_ drepo.EventPublisher = NoopEventPublisher{}
)
