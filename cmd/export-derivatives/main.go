// Command export-derivatives renders the per-session derivative availability
// report and publishes it to the configured blob sink, replacing the previous
// report. With -out it writes the CSV locally instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"studycore/internal/blob"
	"studycore/internal/config"
	"studycore/internal/core"
	"studycore/internal/export"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to optional YAML configuration")
		out        = flag.String("out", "", "write the report to a local file instead of publishing")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, *out, logger); err != nil {
		logger.Error("export failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath, out string, logger *zap.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := core.OpenStorage(core.StorageDriver(cfg.Storage.Driver), cfg.Storage.SQLitePath, cfg.Storage.PostgresDSN, core.DefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	exporter := export.NewExporter(store, logger)
	exporter.RawRoot = cfg.Paths.RawRoot
	exporter.BIDSRoot = cfg.Paths.BIDSRoot
	exporter.DerivativesRoot = cfg.Paths.DerivativesRoot

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := exporter.WriteCSV(ctx, f); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", out)
		return nil
	}

	sink, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob sink: %w", err)
	}
	info, err := exporter.Publish(ctx, sink, cfg.Export.ReportKey)
	if err != nil {
		return err
	}
	fmt.Printf("report published to %s (%d bytes)\n", info.Key, info.Size)
	return nil
}
