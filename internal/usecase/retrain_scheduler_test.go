package usecase

import (
	"context"
	"errors"
	"testing"

	"BoostLab/internal/domain/models"
	applogger "BoostLab/pkg/logger"
)

type countingRunner struct {
	calls int
	err   error
}

func (r *countingRunner) Run(_ context.Context, req *models.TrainRequest) (*models.TrainingReport, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &models.TrainingReport{RunID: req.RequestID, ArtifactID: "a1"}, nil
}

func TestRetrainSchedulerRunOnce(t *testing.T) {
	for _, err := range []error{nil, models.ErrTrainingBusy, errors.New("disk full")} {
		r := &countingRunner{err: err}
		s := newRetrainScheduler("@every 1h", r, applogger.Nop())
		s.runOnce(context.Background())
		if r.calls != 1 {
			t.Fatalf("err=%v: runner called %d times", err, r.calls)
		}
	}

	r := &countingRunner{}
	s := newRetrainScheduler("@every 1h", r, applogger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.runOnce(ctx)
	if r.calls != 0 {
		t.Fatalf("cancelled scheduler must not train")
	}
}

func TestRetrainSchedulerLifecycle(t *testing.T) {
	s := newRetrainScheduler("@every 1h", &countingRunner{}, applogger.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	bad := newRetrainScheduler("not a schedule", &countingRunner{}, applogger.Nop())
	if err := bad.Start(context.Background()); err == nil {
		t.Fatal("expected an invalid schedule to fail")
	}
}
