package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"BoostLab/internal/di"
	"BoostLab/pkg/config"

	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file path")
	check := flag.Bool("check", false, "validate the config, print the effective values and exit")
	flag.Parse()

	if err := run(*configPath, *check); err != nil {
		fmt.Fprintf(os.Stderr, "boostlab: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, check bool) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if check {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()

	// Blocks until SIGINT or SIGTERM.
	return app.Run(context.Background())
}
