// Package pipeline runs a complete analysis: collect records from sources,
// map them to personal year codes, test the distribution and record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/numatrix/numatrix/internal/analyzer"
	"github.com/numatrix/numatrix/internal/collector"
	"github.com/numatrix/numatrix/internal/logger"
	"github.com/numatrix/numatrix/internal/models"
)

// ErrNoRecords is returned when no source produced any record.
var ErrNoRecords = errors.New("no records collected")

// Fetcher resolves a source id to records.
type Fetcher interface {
	Fetch(ctx context.Context, id string, limit int) ([]models.EventRecord, error)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(run *models.Run) error
}

// Notifier announces completed runs.
type Notifier interface {
	SendRun(run *models.Run) error
}

// Options controls analysis parameters.
type Options struct {
	Reference      models.Date
	TargetCode     int
	Alpha          float64
	MinGroupSize   int
	Limit          int
	DedupeDistance int // negative disables deduplication
	Groupings      []analyzer.GroupBy
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Reference:      analyzer.DefaultReferenceDate,
		TargetCode:     analyzer.DefaultTargetCode,
		Alpha:          analyzer.DefaultAlpha,
		MinGroupSize:   20,
		Limit:          1000,
		DedupeDistance: 2,
		Groupings:      analyzer.AllGroupings,
	}
}

// Result is a completed run plus the per-record analysis behind it.
type Result struct {
	Run      *models.Run
	Analysis []models.AnalysisRecord
}

// Runner executes analysis runs. Store and Notifier are optional.
type Runner struct {
	fetcher  Fetcher
	store    RunStore
	notifier Notifier
	opts     Options
	now      func() time.Time
}

// NewRunner creates a runner. store and notifier may be nil.
func NewRunner(fetcher Fetcher, store RunStore, notifier Notifier, opts Options) *Runner {
	return &Runner{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// Run fetches every named source, then analyzes, saves and notifies.
// A failing source is logged and skipped; the run fails only when nothing
// was collected. Save and notify failures are returned with the result.
func (r *Runner) Run(ctx context.Context, sources []string) (*Result, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources given")
	}

	var records []models.EventRecord
	var used []string
	for _, id := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := r.fetcher.Fetch(ctx, id, r.opts.Limit)
		if err != nil {
			if errors.Is(err, collector.ErrUnknownSource) {
				return nil, err
			}
			logger.Warn("Skipping source %s: %v", id, err)
			continue
		}
		logger.Info("Collected %d records from %s", len(recs), id)
		for i := range recs {
			if recs[i].Source == "" {
				recs[i].Source = id
			}
		}
		records = append(records, recs...)
		used = append(used, id)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w from %v", ErrNoRecords, sources)
	}

	if r.opts.DedupeDistance >= 0 && len(used) > 1 {
		before := len(records)
		records = collector.Dedupe(records, r.opts.DedupeDistance)
		if dropped := before - len(records); dropped > 0 {
			logger.Info("Dropped %d duplicate records across sources", dropped)
		}
	}

	result := r.Analyze(records, used)

	if r.store != nil {
		if err := r.store.SaveRun(result.Run); err != nil {
			return result, fmt.Errorf("failed to save run: %w", err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.SendRun(result.Run); err != nil {
			return result, fmt.Errorf("failed to send notification: %w", err)
		}
	}
	return result, nil
}

// Analyze runs the statistics over records without fetching or saving.
func (r *Runner) Analyze(records []models.EventRecord, sources []string) *Result {
	analysis := analyzer.MapRecordsToCodes(records, r.opts.Reference)
	hyp := analyzer.TestUniformDistribution(analysis, r.opts.TargetCode)

	run := &models.Run{
		Sources:       sources,
		ReferenceDate: r.opts.Reference,
		InputCount:    len(records),
		Skipped:       len(records) - len(analysis),
		Hypothesis:    hyp,
		Significance:  analyzer.Significance(hyp, r.opts.Alpha),
		CreatedAt:     r.now(),
	}

	if len(r.opts.Groupings) > 0 {
		run.Breakdowns = make(map[string][]models.GroupResult, len(r.opts.Groupings))
		for _, by := range r.opts.Groupings {
			run.Breakdowns[string(by)] = analyzer.Breakdown(analysis, by, r.opts.TargetCode, r.opts.MinGroupSize)
		}
	}

	if run.Skipped > 0 {
		logger.Info("Skipped %d records without a usable date", run.Skipped)
	}
	logger.Info("Code %d: %d of %d (expected %.1f), chi2=%.2f p=%.4f supported=%v",
		hyp.TargetCode, hyp.Observed, hyp.Total, hyp.Expected,
		run.Significance.ChiSquare, run.Significance.PValue, hyp.Supported)

	return &Result{Run: run, Analysis: analysis}
}
