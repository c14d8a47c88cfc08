package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"BoostLab/internal/domain/models"
	pkgkafka "BoostLab/pkg/kafka"
	applogger "BoostLab/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// trainRunner is the part of TrainingPipeline the handler drives.
type trainRunner interface {
	Run(ctx context.Context, req *models.TrainRequest) (*models.TrainingReport, error)
}

// KafkaTrainHandler runs one training pipeline per message on the request topic.
type KafkaTrainHandler struct {
	topic    string
	pipeline trainRunner
	validate *validator.Validate
	l        *applogger.Logger
}

func NewKafkaTrainHandler(topic string, pipeline *TrainingPipeline, l *applogger.Logger) *KafkaTrainHandler {
	return newKafkaTrainHandler(topic, pipeline, l)
}

func newKafkaTrainHandler(topic string, pipeline trainRunner, l *applogger.Logger) *KafkaTrainHandler {
	return &KafkaTrainHandler{topic: topic, pipeline: pipeline, validate: validator.New(), l: l}
}

func (h *KafkaTrainHandler) Topic() string { return h.topic }

// Handle decodes {model_type, target_type, horizon, trials, symbol, request_id}.
// Malformed or invalid requests are permanent failures and go straight to the DLQ;
// a busy trainer or infrastructure error is retried.
func (h *KafkaTrainHandler) Handle(ctx context.Context, b []byte) error {
	var req models.TrainRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode train request: %w", err))
	}
	if err := h.validate.StructCtx(ctx, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("invalid train request: %w", err))
	}
	report, err := h.pipeline.Run(ctx, &req)
	if err != nil {
		if models.IsInputError(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.l.Info("train request handled",
		applogger.String("request_id", report.RunID),
		applogger.String("artifact_id", report.ArtifactID),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTrainHandler)(nil)
