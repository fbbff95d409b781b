package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/numatrix/numatrix/internal/collector"
	"github.com/numatrix/numatrix/internal/config"
	"github.com/numatrix/numatrix/internal/logger"
	"github.com/numatrix/numatrix/internal/storage"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "numatrix",
		Short:         "Personal year numerology and event distribution analysis",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "",
		"path to configuration file (default "+defaultConfigPath+" when present)")

	root.AddCommand(
		newReduceCmd(),
		newCodeCmd(),
		newCycleCmd(),
		newAnalyzeCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

// load reads and validates configuration once and initializes logging.
func (a *app) load() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if path != "" {
		logger.Info("Configuration loaded from %s", path)
	} else {
		logger.Debug("No configuration file, using defaults and environment")
	}
	a.cfg = cfg
	return cfg, nil
}

func openStorage(cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func closeStorage(store *storage.Storage) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

// buildRegistry registers the remote sources, wrapped with the record cache
// when store is set, plus one source per local CSV file.
func buildRegistry(cfg *config.Config, store *storage.Storage, files []string) *collector.Registry {
	opts := collector.HTTPOptions{
		Timeout:        cfg.Sources.Timeout,
		MaxRetries:     cfg.Sources.MaxRetries,
		RetryDelayBase: cfg.Sources.RetryDelayBase,
		UserAgent:      cfg.Sources.UserAgent,
	}
	remote := []collector.Source{
		collector.NewWikidataSource(cfg.Sources.WikidataURL, opts),
		collector.NewOWIDSource(cfg.Sources.OWIDURL, opts),
	}

	reg := collector.NewRegistry()
	for _, src := range remote {
		if store != nil && cfg.Sources.CacheTTL > 0 {
			src = collector.NewCachedSource(src, store, cfg.Sources.CacheTTL)
		}
		reg.Register(src)
	}
	for _, f := range files {
		reg.Register(collector.NewCSVFileSource("", f))
	}
	return reg
}
