package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/numatrix/numatrix/internal/models"
	"github.com/numatrix/numatrix/internal/numerology"
	"github.com/numatrix/numatrix/internal/report"
)

func newReduceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reduce N...",
		Short: "Reduce integers to a single digit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				n, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid integer %q", arg)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d -> %d\n", n, numerology.Reduce(n))
			}
			return nil
		},
	}
}

func newCodeCmd() *cobra.Command {
	var on string
	cmd := &cobra.Command{
		Use:   "code BIRTHDATE",
		Short: "Show life path and personal year, month and day codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			birth, err := models.ParseDate(args[0])
			if err != nil {
				return err
			}
			target := models.DateOf(time.Now())
			if on != "" {
				if target, err = models.ParseDate(on); err != nil {
					return fmt.Errorf("invalid --on date: %w", err)
				}
			}

			py := numerology.PersonalYearCode(birth, target.Year)
			pm := numerology.PersonalMonthCode(birth, target.Year, target.Month)
			pd := numerology.PersonalDayCode(birth, target)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-16s %s\n", "Birth date", birth)
			fmt.Fprintf(w, "%-16s %d\n", "Life path", numerology.LifePathCode(birth))
			fmt.Fprintf(w, "%-16s %d  (%d) %s\n", "Personal year", py, target.Year, numerology.Interpret(py))
			fmt.Fprintf(w, "%-16s %d  (%04d-%02d)\n", "Personal month", pm, target.Year, target.Month)
			fmt.Fprintf(w, "%-16s %d  (%s)\n", "Personal day", pd, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&on, "on", "", "target date (default today)")
	return cmd
}

func newCycleCmd() *cobra.Command {
	var (
		start  int
		years  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "cycle BIRTHDATE",
		Short: "Project personal year codes over a range of years",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			birth, err := models.ParseDate(args[0])
			if err != nil {
				return err
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if start == 0 {
				start = time.Now().Year()
			}
			entries := numerology.LifeCycle(birth, start, years)

			w := cmd.OutOrStdout()
			switch f {
			case report.FormatJSON:
				return report.JSON(w, entries)
			case report.FormatYAML:
				return report.YAML(w, entries)
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%d  %d  %s\n", e.Year, e.Code, e.Interpretation)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first year (default current year)")
	cmd.Flags().IntVar(&years, "years", 8, "number of years after start")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, yaml")
	return cmd
}
