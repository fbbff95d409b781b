package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/numatrix/numatrix/internal/config"
	"github.com/numatrix/numatrix/internal/logger"
	"github.com/numatrix/numatrix/internal/models"
	"github.com/numatrix/numatrix/internal/pipeline"
	"github.com/numatrix/numatrix/internal/scheduler"
	"github.com/numatrix/numatrix/internal/storage"
	"github.com/numatrix/numatrix/internal/telegram"
)

func newServeCmd(a *app) *cobra.Command {
	var skipInitial bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis on a cron schedule and notify via Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, !skipInitial)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first scheduled run instead of running at startup")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, initial bool) error {
	if parent == nil {
		parent = context.Background()
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	opts, err := analysisOptions(cfg, nil)
	if err != nil {
		return err
	}
	var notifier pipeline.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}
	runner := pipeline.NewRunner(buildRegistry(cfg, store, nil), store, notifier, opts)

	sched, err := scheduler.New(cfg.Schedule.Timezone)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, latestRun(store))
	}

	consecutiveFailures := 0
	handleRunResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Analysis run failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	task := func(taskCtx context.Context) {
		handleRunResult(runScheduled(taskCtx, runner, cfg.Schedule.Sources))
		if err := store.RotateRuns(); err != nil {
			logger.Warn("Failed to rotate runs: %v", err)
		}
	}

	if initial {
		logger.Debug("Running initial analysis")
		task(ctx)
	}

	if err := sched.Schedule(cfg.Schedule.Cron, task); err != nil {
		return err
	}
	sched.Start()
	logger.Info("Scheduler started (cron: %q, timezone: %s, next run: %s, sources: %v)",
		cfg.Schedule.Cron, sched.Location(), sched.Next().Format(time.RFC3339), cfg.Schedule.Sources)

	<-ctx.Done()
	sched.Stop()
	logger.Info("Service stopped")
	return nil
}

func runScheduled(ctx context.Context, runner *pipeline.Runner, sources []string) error {
	start := time.Now()
	logger.Info("Starting analysis run")
	result, err := runner.Run(ctx, sources)
	if err != nil {
		return err
	}
	logger.Info("Analysis run %s completed in %v", result.Run.ID, time.Since(start))
	return nil
}

func latestRun(store *storage.Storage) telegram.LatestRunFunc {
	return func() (*models.Run, error) {
		runs, err := store.ListRuns(1)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, nil
		}
		return runs[0], nil
	}
}
