//go:build wireinject
// +build wireinject

package di

import (
	"BoostLab/internal/usecase"
	"BoostLab/pkg/config"
	"BoostLab/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideBarImporter,
	ProvidePriceSource,
	ProvideArtifactStore,
	ProvideKafkaProducer,
	ProvideEventPublisher,
	ProvideRedisCache,
	ProvideCache,
	ProvideInsight,
)

var usecaseSet = wire.NewSet(
	usecase.NewTrainingPipeline,
	usecase.NewBacktestUsecase,
	usecase.NewExplainUsecase,
	usecase.NewModelUsecase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		usecaseSet,

		ProvideCapabilities,
		ProvideRateLimiter,
		ProvideAPIHandler,
		ProvideHTTPServer,

		ProvideKafkaTrainHandler,
		ProvideKafkaConsumer,
		usecase.NewRetrainScheduler,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeToolkit wires the one-shot CLI.
func InitializeToolkit(cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		infraSet,
		usecase.NewTrainingPipeline,
		usecase.NewBacktestUsecase,
		wire.Struct(new(Toolkit), "*"),
	)
	return nil, nil, nil
}
