// Command populate-procedures scans a derivatives tree for per-session
// pipeline output directories and records them as procedures.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"studycore/internal/config"
	"studycore/internal/core"
	"studycore/internal/procedures"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to optional YAML configuration")
		pipeline   = flag.String("pipeline", "kepost", "pipeline name to scan for")
		overwrite  = flag.Bool("overwrite", false, "refresh outputs of procedures that already exist")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, *pipeline, *overwrite, logger); err != nil {
		logger.Error("populate failed", zap.String("pipeline", *pipeline), zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath, pipeline string, overwrite bool, logger *zap.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Paths.DerivativesRoot == "" {
		return fmt.Errorf("derivatives root not configured")
	}

	store, err := core.OpenStorage(core.StorageDriver(cfg.Storage.Driver), cfg.Storage.SQLitePath, cfg.Storage.PostgresDSN, core.DefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	populator := procedures.NewPopulator(store, logger)
	populator.Overwrite = overwrite
	report, err := populator.Populate(ctx, cfg.Paths.DerivativesRoot, pipeline)
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d sessions, created %d procedures, updated %d\n",
		report.SessionsScanned, report.ProceduresCreated, report.ProceduresUpdated)
	return nil
}
