package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"BoostLab/internal/domain/models"
)

type published struct {
	topic, eventType, key string
	value                 []byte
}

type fakeProducer struct {
	out []published
	err error
}

func (f *fakeProducer) Publish(_ context.Context, topic, eventType string, key []byte, value any) error {
	if f.err != nil {
		return f.err
	}
	b, _ := json.Marshal(value)
	f.out = append(f.out, published{topic: topic, eventType: eventType, key: string(key), value: b})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestKafkaEventPublisherStripsCurves(t *testing.T) {
	fp := &fakeProducer{}
	pub := newKafkaEventPublisher(fp, "boostlab.events", nil)

	report := &models.BacktestReport{
		ArtifactID: "lightgbm_20240101_000000",
		Result: models.BacktestResult{
			TotalReturn: 0.1,
			EquityCurve: []models.EquityPoint{{Equity: 1}},
			Trades:      []models.Trade{{PnL: 1}},
		},
	}
	if err := pub.PublishBacktestCompleted(context.Background(), report); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(report.Result.Trades) != 1 {
		t.Fatalf("caller's report must not be modified")
	}
	if len(fp.out) != 1 || fp.out[0].eventType != EventBacktestCompleted || fp.out[0].key != report.ArtifactID {
		t.Fatalf("unexpected message %+v", fp.out)
	}
	var got models.BacktestReport
	if err := json.Unmarshal(fp.out[0].value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Result.EquityCurve != nil || got.Result.Trades != nil || got.Result.TotalReturn != 0.1 {
		t.Fatalf("unexpected payload %+v", got.Result)
	}
}

func TestKafkaEventPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := newKafkaEventPublisher(&fakeProducer{err: boom}, "t", nil)
	err := pub.PublishTrainingCompleted(context.Background(), &models.TrainingEvent{ArtifactID: "a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
