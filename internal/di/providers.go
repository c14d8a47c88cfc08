package di

import (
	"context"
	"fmt"
	"time"

	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	domsvc "BoostLab/internal/domain/service"
	"BoostLab/internal/handler/api"
	internalrepo "BoostLab/internal/repository"
	"BoostLab/internal/service/ratelimit"
	"BoostLab/internal/services/insight"
	"BoostLab/internal/services/trainer"
	"BoostLab/internal/usecase"
	"BoostLab/pkg/cache"
	pkgch "BoostLab/pkg/clickhouse"
	"BoostLab/pkg/config"
	xhttp "BoostLab/pkg/http"
	pkgkafka "BoostLab/pkg/kafka"
	applogger "BoostLab/pkg/logger"
	"BoostLab/pkg/metrics"
	"BoostLab/pkg/server"

	echomw "github.com/labstack/echo/v4/middleware"
)

// ProvideLogger builds the process logger from the app.log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.App.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("app", cfg.App.Name), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics returns a Prometheus recorder, or a no-op one when metrics are off.
func ProvideMetrics(cfg *config.Config) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis when enabled. A failed connection
// degrades to a memory-only cache instead of failing startup.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return nil, func() {}, nil
	}
	r, err := cache.NewRedisCache(
		cache.WithRedisServer(rc.Addr, rc.Password, rc.DB),
		cache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		l.Warn("redis unavailable, using memory cache", applogger.String("addr", rc.Addr), applogger.Error(err))
		return nil, func() {}, nil
	}
	return r, func() { _ = r.Close() }, nil
}

// ProvideCache layers memory over Redis when Redis is reachable.
func ProvideCache(cfg *config.Config, r *cache.RedisCache) (cache.Service, func()) {
	var c cache.Service
	if r != nil {
		c = cache.NewLayeredCache(r,
			cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
		)
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	return c, func() { _ = c.Close() }
}

// ProvideClickHouseClient creates a ClickHouse client and its schema. It is
// nil when disabled; a connection failure is fatal only when ClickHouse is
// the configured price source.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	cc := cfg.ClickHouse
	if !cc.Enabled && cfg.Data.Source != "clickhouse" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithServer(cc.Host, cc.Port, cc.Database),
		pkgch.WithCredentials(cc.User, cc.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithHTTP(cc.UseHTTP),
		pkgch.WithTimeouts(cc.DialTimeout, cc.ReadTimeout, cc.WriteTimeout, cc.MaxExecutionTime),
	)
	if err != nil {
		if cfg.Data.Source == "clickhouse" {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		l.Warn("clickhouse unavailable", applogger.String("host", cc.Host), applogger.Error(err))
		return nil, func() {}, nil
	}

	if cc.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, pkgch.BarsSchema(cc.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse ready", applogger.String("table", client.BarsTable()))
	return client, func() { _ = client.Close() }, nil
}

// ProvideBarImporter returns the ClickHouse bar writer, or nil without ClickHouse.
func ProvideBarImporter(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHPriceSource {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHPriceSource(ch, l)
}

// ProvidePriceSource picks the configured bar source.
func ProvidePriceSource(cfg *config.Config, ch *internalrepo.CHPriceSource, l *applogger.Logger) (drepo.PriceSeriesSource, error) {
	switch cfg.Data.Source {
	case "csv":
		return internalrepo.NewCSVPriceSource(cfg.Data.CSVPath, l), nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("price source: clickhouse is not configured")
		}
		return ch, nil
	case "synthetic":
		return internalrepo.NewSyntheticPriceSource(cfg.Data.SyntheticBars, cfg.Data.SyntheticSeed), nil
	}
	return nil, fmt.Errorf("price source: unknown source %q", cfg.Data.Source)
}

func checkModel(b []byte) (int, error) {
	m, err := trainer.LoadModel(b)
	if err != nil {
		return 0, err
	}
	return m.NumFeatures(), nil
}

// ProvideArtifactStore opens the artifact directory. Loads verify that the
// model payload decodes and matches the metadata's feature count.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) (drepo.ArtifactStore, error) {
	s, err := internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir, checkModel, l)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	return s, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithKeyOrdering(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher publishes completion events to Kafka, or drops them.
func ProvideEventPublisher(cfg *config.Config, p *pkgkafka.Producer, l *applogger.Logger) drepo.EventPublisher {
	if p == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(p, cfg.Kafka.EventsTopic, l)
}

// ProvideInsight returns the commentary client, or nil without a URL.
func ProvideInsight(cfg *config.Config) domsvc.TextInsightService {
	if s := insight.New(cfg); s != nil {
		return s
	}
	return nil
}

// ProvideCapabilities reports which optional collaborators came up.
func ProvideCapabilities(
	cfg *config.Config,
	r *cache.RedisCache,
	p *pkgkafka.Producer,
	ch *pkgch.Client,
	ins domsvc.TextInsightService,
) models.Capabilities {
	return models.Capabilities{
		Explain:    cfg.Explain.Enabled,
		Redis:      r != nil,
		Kafka:      p != nil,
		ClickHouse: ch != nil,
		Insight:    ins != nil && ins.Enabled(),
	}
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
}

// ProvideAPIHandler wires the usecases into the HTTP handler.
func ProvideAPIHandler(
	l *applogger.Logger,
	mu *usecase.ModelUsecase,
	bu *usecase.BacktestUsecase,
	eu *usecase.ExplainUsecase,
	tp *usecase.TrainingPipeline,
	caps models.Capabilities,
	limiter *ratelimit.Limiter,
) *api.Handler {
	return api.NewHandler(l, mu, bu, eu, tp, caps, limiter.Middleware())
}

// ProvideHTTPServer builds the echo server around the API handler.
func ProvideHTTPServer(cfg *config.Config, h *api.Handler, l *applogger.Logger) *xhttp.Server {
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(origins),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithLogger(l),
		xhttp.WithMiddleware(echomw.GzipWithConfig(echomw.GzipConfig{Level: 5, MinLength: 1024})),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

func ProvideKafkaTrainHandler(cfg *config.Config, tp *usecase.TrainingPipeline, l *applogger.Logger) *usecase.KafkaTrainHandler {
	return usecase.NewKafkaTrainHandler(cfg.Kafka.Consumer.Topic, tp, l)
}

// ProvideKafkaConsumer creates the train-request consumer. It is nil unless
// both Kafka and the consumer are enabled. Exhausted messages go to the DLQ
// through the shared producer.
func ProvideKafkaConsumer(
	cfg *config.Config,
	p *pkgkafka.Producer,
	h *usecase.KafkaTrainHandler,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	kc := cfg.Kafka.Consumer
	if p == nil || !kc.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic, p),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	if err := consumer.RegisterHandler(h); err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	scheduler *usecase.RetrainScheduler,
	caps models.Capabilities,
) *server.App {
	l.Info("capabilities",
		applogger.Bool("explain", caps.Explain),
		applogger.Bool("redis", caps.Redis),
		applogger.Bool("kafka", caps.Kafka),
		applogger.Bool("clickhouse", caps.ClickHouse),
		applogger.Bool("insight", caps.Insight),
	)
	var jobs []server.Background
	if scheduler != nil {
		jobs = append(jobs, scheduler)
	}
	return server.New(cfg, l, srv, consumer, jobs...)
}

// Toolkit is what the one-shot CLI needs.
type Toolkit struct {
	Logger    *applogger.Logger
	Pipeline  *usecase.TrainingPipeline
	Backtests *usecase.BacktestUsecase
	Importer  *internalrepo.CHPriceSource
}
