package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BoostLab/pkg/config"
	xhttp "BoostLab/pkg/http"
	pkgkafka "BoostLab/pkg/kafka"
	applogger "BoostLab/pkg/logger"
)

// Background is a job that runs alongside the HTTP server.
type Background interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the entire application lifecycle: the HTTP API and,
// when Kafka is enabled, the train-request consumer.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	jobs       []Background
}

// New creates a new App. consumer may be nil.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer, jobs ...Background) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		consumer:   consumer,
		jobs:       jobs,
	}
}

// Run starts the application and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Consumer.Topic))
	}

	for _, j := range a.jobs {
		if err := j.Start(ctx); err != nil {
			return fmt.Errorf("start background job: %w", err)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then waits for in-flight work.
func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, j := range a.jobs {
		if err := j.Stop(ctx); err != nil {
			a.l.Warn("background job stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.l.Info("shutdown complete")
	return firstErr
}
