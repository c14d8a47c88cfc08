package metrics

import (
	"BoostLab/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trials         *prometheus.CounterVec
	trialDuration  *prometheus.HistogramVec
	bestScore      *prometheus.GaugeVec
	earlyStop      *prometheus.HistogramVec
	backtestReturn *prometheus.GaugeVec
	backtestSharpe *prometheus.GaugeVec
	backtestMDD    *prometheus.GaugeVec
	backtestTrades *prometheus.GaugeVec
	artifactsSaved *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg. A nil reg
// uses the default registerer served at /metrics.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		trials: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostlab_search_trials_total",
				Help: "Hyperparameter trials by final status",
			},
			[]string{"model", "status"},
		),
		trialDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boostlab_search_trial_duration_seconds",
				Help:    "Wall time of one hyperparameter trial",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"model"},
		),
		bestScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boostlab_search_best_score",
				Help: "Best cross-validation score of the last search",
			},
			[]string{"model", "metric"},
		),
		earlyStop: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boostlab_train_best_iteration",
				Help:    "Boosting round selected by early stopping",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"model"},
		),
		backtestReturn: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boostlab_backtest_total_return",
				Help: "Total return of the last backtest per artifact",
			},
			[]string{"artifact"},
		),
		backtestSharpe: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boostlab_backtest_sharpe_ratio",
				Help: "Sharpe ratio of the last backtest per artifact",
			},
			[]string{"artifact"},
		),
		backtestMDD: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boostlab_backtest_max_drawdown",
				Help: "Max drawdown of the last backtest per artifact",
			},
			[]string{"artifact"},
		),
		backtestTrades: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boostlab_backtest_trades",
				Help: "Closed trades of the last backtest per artifact",
			},
			[]string{"artifact"},
		),
		artifactsSaved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostlab_artifacts_saved_total",
				Help: "Model artifacts persisted",
			},
			[]string{"model"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boostlab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boostlab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120, 600, 3600},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTrial(model, status string, seconds float64) {
	r.trials.WithLabelValues(model, status).Inc()
	r.trialDuration.WithLabelValues(model).Observe(seconds)
}

func (r *Recorder) RecordBestScore(model, metric string, score float64) {
	r.bestScore.WithLabelValues(model, metric).Set(score)
}

func (r *Recorder) RecordEarlyStop(model string, iteration int) {
	r.earlyStop.WithLabelValues(model).Observe(float64(iteration))
}

func (r *Recorder) RecordBacktest(artifactID string, res *models.BacktestResult) {
	if res == nil {
		return
	}
	r.backtestReturn.WithLabelValues(artifactID).Set(res.TotalReturn)
	r.backtestSharpe.WithLabelValues(artifactID).Set(res.SharpeRatio)
	r.backtestMDD.WithLabelValues(artifactID).Set(res.MaxDrawdown)
	r.backtestTrades.WithLabelValues(artifactID).Set(float64(res.TotalTrades))
}

func (r *Recorder) RecordArtifactSaved(model string) {
	r.artifactsSaved.WithLabelValues(model).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTrial(string, string, float64) {}
func (Nop) RecordBestScore(string, string, float64) {}
func (Nop) RecordEarlyStop(string, int) {}
func (Nop) RecordBacktest(string, *models.BacktestResult) {}
func (Nop) RecordArtifactSaved(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
