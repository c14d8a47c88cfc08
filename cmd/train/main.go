// Command train runs one training pipeline from the command line, optionally
// importing a CSV into ClickHouse first and backtesting the new artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"BoostLab/internal/di"
	"BoostLab/internal/domain/models"
	drepo "BoostLab/internal/domain/repository"
	"BoostLab/internal/repository"
	"BoostLab/pkg/config"
	applogger "BoostLab/pkg/logger"

	"gopkg.in/yaml.v3"
)

type options struct {
	config     string
	modelType  string
	targetType string
	horizon    int
	trials     int
	symbol     string
	importCSV  string
	backtest   bool
	walk       bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "configs/config.yaml", "config file path")
	flag.StringVar(&o.modelType, "model", "", "override model_type (lightgbm|xgboost)")
	flag.StringVar(&o.targetType, "target", "", "override target_type (direction|returns|volatility)")
	flag.IntVar(&o.horizon, "horizon", 0, "override label horizon in bars")
	flag.IntVar(&o.trials, "trials", 0, "override search trial budget")
	flag.StringVar(&o.symbol, "symbol", "", "override data symbol")
	flag.StringVar(&o.importCSV, "import-csv", "", "load this OHLCV CSV into ClickHouse before training")
	flag.BoolVar(&o.backtest, "backtest", false, "backtest the new artifact")
	flag.BoolVar(&o.walk, "walk-forward", false, "walk-forward backtest the new artifact")
	flag.Parse()

	cfg, err := config.LoadWithEnv(o.config)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	tk, cleanup, err := di.InitializeToolkit(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, tk, o)
	stop()
	cleanup()
	if err != nil {
		tk.Logger.Error("train command failed", applogger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, tk *di.Toolkit, o options) error {
	symbol := o.symbol
	if symbol == "" {
		symbol = cfg.Data.Symbol
	}
	if o.importCSV != "" {
		if err := importCSV(ctx, tk, o.importCSV, symbol, drepo.NormalizeTimeframe(cfg.Data.Timeframe)); err != nil {
			return err
		}
	}

	report, err := tk.Pipeline.Run(ctx, &models.TrainRequest{
		ModelType:  o.modelType,
		TargetType: o.targetType,
		Horizon:    o.horizon,
		Trials:     o.trials,
		Symbol:     o.symbol,
	})
	if err != nil {
		return err
	}
	if err := printYAML("training", report); err != nil {
		return err
	}

	if o.backtest {
		bt, err := tk.Backtests.Backtest(ctx, &models.BacktestRequest{ID: report.ArtifactID})
		if err != nil {
			return err
		}
		bt.Result.EquityCurve, bt.Result.Trades = nil, nil
		if err := printYAML("backtest", bt); err != nil {
			return err
		}
	}
	if o.walk {
		wf, err := tk.Backtests.WalkForward(ctx, &models.WalkForwardRequest{BacktestRequest: models.BacktestRequest{ID: report.ArtifactID}})
		if err != nil {
			return err
		}
		wf.Result.EquityCurve, wf.Result.Trades = nil, nil
		if err := printYAML("walk_forward", wf); err != nil {
			return err
		}
	}
	return nil
}

func importCSV(ctx context.Context, tk *di.Toolkit, path, symbol string, tf drepo.Timeframe) error {
	if tk.Importer == nil {
		return fmt.Errorf("import-csv: clickhouse is not enabled")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("import-csv: %w", err)
	}
	defer f.Close()
	bars, err := repository.ReadBarsCSV(ctx, f)
	if err != nil {
		return fmt.Errorf("import-csv: %w", err)
	}
	return tk.Importer.StoreBars(ctx, symbol, tf, bars)
}

func printYAML(name string, v interface{}) error {
	out, err := yaml.Marshal(map[string]interface{}{name: v})
	if err != nil {
		return fmt.Errorf("encode %s report: %w", name, err)
	}
	_, err = os.Stdout.Write(out)
	return err
}
