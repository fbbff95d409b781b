package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/numatrix/numatrix/internal/report"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		show   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs or show one in full",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			w := cmd.OutOrStdout()
			if show != "" {
				run, err := store.GetRun(show)
				if err != nil {
					return err
				}
				return report.Write(w, f, run)
			}

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			switch f {
			case report.FormatJSON:
				return report.JSON(w, runs)
			case report.FormatYAML:
				return report.YAML(w, runs)
			}
			return report.History(w, runs, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	cmd.Flags().StringVar(&show, "show", "", "run id to show in full")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "output format: text, json, yaml")
	return cmd
}
