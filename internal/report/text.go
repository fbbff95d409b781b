package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/numatrix/numatrix/internal/analyzer"
	"github.com/numatrix/numatrix/internal/models"
)

const (
	colorTitle lipgloss.Color = "#89b4fa"
	colorMuted lipgloss.Color = "#7f849c"
	colorAbove lipgloss.Color = "#f38ba8"
	colorBelow lipgloss.Color = "#a6e3a1"
	colorEven  lipgloss.Color = "#f9e2af"

	barWidth = 30

	belowFactor = 0.8
)

// Level classifies a bucket count against the uniform expectation.
type Level string

const (
	Above  Level = "above"
	Below  Level = "below"
	Normal Level = "normal"
)

// Classify marks count as Above when it exceeds expected by more than 20%,
// Below when it falls more than 20% short, and Normal otherwise.
func Classify(count int, expected float64) Level {
	c := float64(count)
	switch {
	case c > expected*analyzer.SupportFactor:
		return Above
	case c < expected*belowFactor:
		return Below
	default:
		return Normal
	}
}

type styles struct {
	title  lipgloss.Style
	muted  lipgloss.Style
	bold   lipgloss.Style
	levels map[Level]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Foreground(colorTitle).Bold(true),
		muted: r.NewStyle().Foreground(colorMuted),
		bold:  r.NewStyle().Bold(true),
		levels: map[Level]lipgloss.Style{
			Above:  r.NewStyle().Foreground(colorAbove),
			Below:  r.NewStyle().Foreground(colorBelow),
			Normal: r.NewStyle().Foreground(colorEven),
		},
	}
}

// Text writes a human-readable summary of run.
func Text(w io.Writer, run *models.Run) error {
	st := newStyles(w)
	h := run.Hypothesis
	sig := run.Significance

	var b strings.Builder
	b.WriteString(st.title.Render("Personal year distribution") + "\n")
	fmt.Fprintf(&b, "  %-15s %s\n", "Reference date", run.ReferenceDate)
	fmt.Fprintf(&b, "  %-15s %s\n", "Sources", strings.Join(run.Sources, ", "))
	fmt.Fprintf(&b, "  %-15s %s analyzed, %s skipped\n", "Events",
		humanize.Comma(int64(h.Total)), humanize.Comma(int64(run.Skipped)))
	if run.ID != "" {
		fmt.Fprintf(&b, "  %-15s %s\n", "Run", st.muted.Render(run.ID))
	}
	b.WriteString("\n")

	if h.Total == 0 {
		b.WriteString(st.muted.Render("No dated events to analyze.") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	writeDistribution(&b, st, h)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Target code %d: %s observed, %.1f expected (%+.1f, %.1f%%)\n",
		h.TargetCode, humanize.Comma(int64(h.Observed)), h.Expected, h.Deviation, h.Percentage)
	verdict := "no"
	if h.Supported {
		verdict = "yes"
	}
	fmt.Fprintf(&b, "Hypothesis supported: %s\n", st.bold.Render(verdict))

	uniform := "consistent with uniform"
	if !sig.Uniform {
		uniform = "not uniform"
	}
	fmt.Fprintf(&b, "Chi-square %.2f (df %d), p = %.4f: %s at alpha %.2f\n",
		sig.ChiSquare, sig.DegreesOfFreedom, sig.PValue, uniform, sig.Alpha)
	fmt.Fprintf(&b, "Z-score %.2f, concentration ratio %.2f\n", sig.ZScore, sig.ConcentrationRatio)

	keys := make([]string, 0, len(run.Breakdowns))
	for k := range run.Breakdowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeBreakdown(&b, st, k, h.TargetCode, run.Breakdowns[k])
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeDistribution(b *strings.Builder, st styles, h models.HypothesisResult) {
	maxCount := 0
	for _, c := range h.Counts {
		maxCount = max(maxCount, c)
	}

	codes := make([]int, 0, analyzer.Buckets+1)
	if h.Counts[0] > 0 {
		codes = append(codes, 0)
	}
	for code := 1; code <= analyzer.Buckets; code++ {
		codes = append(codes, code)
	}

	fmt.Fprintf(b, "%s\n", st.muted.Render(fmt.Sprintf("%4s %8s %7s  %-*s  %s", "Code", "Count", "Share", barWidth, "", "vs expected")))
	for _, code := range codes {
		count := h.Counts[code]
		share := float64(count) / float64(h.Total) * 100
		bar := ""
		if maxCount > 0 {
			bar = strings.Repeat("█", count*barWidth/maxCount)
		}
		level := Classify(count, h.Expected)
		label := fmt.Sprintf("%4d", code)
		if code == h.TargetCode {
			label = st.bold.Render(label)
		}
		fmt.Fprintf(b, "%s %8s %6.1f%%  %-*s  %s\n",
			label, humanize.Comma(int64(count)), share,
			barWidth, bar, st.levels[level].Render(string(level)))
	}
}

func writeBreakdown(b *strings.Builder, st styles, by string, target int, groups []models.GroupResult) {
	fmt.Fprintf(b, "\n%s\n", st.title.Render("Breakdown by "+by))
	if len(groups) == 0 {
		b.WriteString(st.muted.Render("  no group large enough") + "\n")
		return
	}
	fmt.Fprintf(b, "%s\n", st.muted.Render(fmt.Sprintf("  %-24s %8s %8s %7s  %s", "Group", "Total", fmt.Sprintf("Code %d", target), "Share", "Supported")))
	for _, g := range groups {
		supported := "no"
		if g.Result.Supported {
			supported = "yes"
		}
		fmt.Fprintf(b, "  %-24s %8s %8s %6.1f%%  %s\n",
			truncate(g.Key, 24),
			humanize.Comma(int64(g.Result.Total)),
			humanize.Comma(int64(g.Result.Observed)),
			g.Result.Percentage, supported)
	}
	d := analyzer.TargetDispersion(groups)
	fmt.Fprintf(b, "  %s\n", st.muted.Render(fmt.Sprintf(
		"share across %d groups: mean %.1f%%, stddev %.1f, range %.1f%%-%.1f%%",
		d.Groups, d.Mean, d.StdDev, d.Min, d.Max)))
}

// History writes one line per run, newest first as given.
func History(w io.Writer, runs []*models.Run, now time.Time) error {
	st := newStyles(w)
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, st.muted.Render("No runs recorded."))
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.muted.Render(fmt.Sprintf("%-36s  %-14s  %-20s %8s %10s %8s  %s",
		"ID", "When", "Sources", "Events", "Target", "p", "Supported")))
	for _, r := range runs {
		h := r.Hypothesis
		supported := "no"
		if h.Supported {
			supported = "yes"
		}
		fmt.Fprintf(&b, "%-36s  %-14s  %-20s %8s %10s %8.4f  %s\n",
			r.ID,
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"),
			truncate(strings.Join(r.Sources, ","), 20),
			humanize.Comma(int64(h.Total)),
			fmt.Sprintf("%d: %.1f%%", h.TargetCode, h.Percentage),
			r.Significance.PValue,
			supported)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
