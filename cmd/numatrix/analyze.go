package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/numatrix/numatrix/internal/analyzer"
	"github.com/numatrix/numatrix/internal/collector"
	"github.com/numatrix/numatrix/internal/config"
	"github.com/numatrix/numatrix/internal/logger"
	"github.com/numatrix/numatrix/internal/models"
	"github.com/numatrix/numatrix/internal/pipeline"
	"github.com/numatrix/numatrix/internal/report"
	"github.com/numatrix/numatrix/internal/storage"
	"github.com/numatrix/numatrix/internal/telegram"
)

type analyzeFlags struct {
	sources   []string
	files     []string
	format    string
	csvOut    string
	reference string
	target    int
	limit     int
	breakdown []string
	save      bool
	notify    bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Collect events and test the personal year distribution",
		Long: "Collect dated events from the configured sources and local CSV files, " +
			"map each event year to a personal year code for the reference date, " +
			"and test whether the target code is over-represented.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, f)
		},
	}
	cmd.Flags().StringSliceVarP(&f.sources, "source", "s", nil, "remote source to query: wikidata, owid (default from schedule.sources)")
	cmd.Flags().StringSliceVarP(&f.files, "file", "f", nil, "local CSV file of events (repeatable)")
	cmd.Flags().StringVarP(&f.format, "format", "o", "text", "output format: text, json, yaml")
	cmd.Flags().StringVar(&f.csvOut, "csv", "", "write per-event codes to this CSV file")
	cmd.Flags().StringVar(&f.reference, "reference", "", "reference birth date (default analysis.reference_date)")
	cmd.Flags().IntVar(&f.target, "target", 0, "target code 1-9 (default analysis.target_code)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum records per source (default sources.limit)")
	cmd.Flags().StringSliceVar(&f.breakdown, "breakdown", []string{"decade", "category", "source"}, "breakdown dimensions")
	cmd.Flags().BoolVar(&f.save, "save", true, "record the run in history")
	cmd.Flags().BoolVar(&f.notify, "notify", false, "send the summary to Telegram")
	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, f *analyzeFlags) error {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return err
	}
	opts, err := analysisOptions(cfg, f)
	if err != nil {
		return err
	}

	sources := f.sources
	if len(sources) == 0 && len(f.files) == 0 {
		sources = cfg.Schedule.Sources
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	reg := buildRegistry(cfg, store, f.files)
	for _, file := range f.files {
		sources = append(sources, collector.NewCSVFileSource("", file).Name())
	}

	var runStore pipeline.RunStore
	if f.save {
		runStore = store
	}
	var notifier pipeline.Notifier
	if f.notify {
		if !cfg.Telegram.Enabled {
			return fmt.Errorf("--notify requires telegram.enabled")
		}
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		notifier = client
	}

	runner := pipeline.NewRunner(reg, runStore, notifier, opts)
	result, err := runner.Run(cmd.Context(), sources)
	if err != nil && result == nil {
		return err
	}
	if err != nil {
		logger.Error("%v", err)
	}

	if f.csvOut != "" {
		if err := writeCSVFile(f.csvOut, result.Analysis); err != nil {
			return err
		}
		logger.Info("Wrote %d records to %s", len(result.Analysis), f.csvOut)
	}
	return report.Write(cmd.OutOrStdout(), format, result.Run)
}

func analysisOptions(cfg *config.Config, f *analyzeFlags) (pipeline.Options, error) {
	opts := pipeline.Options{
		Reference:      cfg.Analysis.Reference(),
		TargetCode:     cfg.Analysis.TargetCode,
		Alpha:          cfg.Analysis.SignificanceLevel,
		MinGroupSize:   cfg.Analysis.MinGroupSize,
		Limit:          cfg.Sources.Limit,
		DedupeDistance: cfg.Sources.DedupeDistance,
	}
	if f == nil {
		opts.Groupings = analyzer.AllGroupings
		return opts, nil
	}

	if f.reference != "" {
		ref, err := models.ParseDate(f.reference)
		if err != nil {
			return opts, fmt.Errorf("invalid --reference: %w", err)
		}
		opts.Reference = ref
	}
	if f.target != 0 {
		if f.target < 1 || f.target > 9 {
			return opts, fmt.Errorf("--target must be between 1 and 9")
		}
		opts.TargetCode = f.target
	}
	if f.limit > 0 {
		opts.Limit = f.limit
	}
	for _, name := range f.breakdown {
		by, err := analyzer.ParseGroupBy(name)
		if err != nil {
			return opts, err
		}
		opts.Groupings = append(opts.Groupings, by)
	}
	return opts, nil
}

func writeCSVFile(path string, analysis []models.AnalysisRecord) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.CSV(out, analysis); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var _ pipeline.RunStore = (*storage.Storage)(nil)
