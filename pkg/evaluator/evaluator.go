// Package evaluator turns the episode summaries of a run into aggregate
// statistics, a CSV export and a terminal report.
package evaluator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/dojo/pkg/results"
)

// Report aggregates the cumulative rewards of finalized episodes.
type Report struct {
	Episodes    int
	TotalReward float64
	MeanReturn  float64
	StdReturn   float64 // population standard deviation
	MinReturn   float64
	MaxReturn   float64
	BestEpisode int
	MeanSteps   float64
	// Spread is MaxReturn - MinReturn.
	Spread float64
}

// Evaluate computes a Report. An empty input yields the zero Report with
// BestEpisode -1.
func Evaluate(summaries []results.Summary) Report {
	if len(summaries) == 0 {
		return Report{BestEpisode: -1}
	}

	returns := make([]float64, len(summaries))
	steps := make([]float64, len(summaries))
	for i, s := range summaries {
		returns[i] = s.Cumulative
		steps[i] = float64(s.Steps)
	}

	mean, std := stat.PopMeanStdDev(returns, nil)
	best := floats.MaxIdx(returns)
	minR, maxR := floats.Min(returns), floats.Max(returns)
	return Report{
		Episodes:    len(summaries),
		TotalReward: floats.Sum(returns),
		MeanReturn:  mean,
		StdReturn:   std,
		MinReturn:   minR,
		MaxReturn:   maxR,
		BestEpisode: summaries[best].Episode,
		MeanSteps:   stat.Mean(steps, nil),
		Spread:      maxR - minR,
	}
}

// MovingAverage smooths the cumulative rewards over a trailing window. The
// first window-1 values average over the episodes seen so far.
func MovingAverage(summaries []results.Summary, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(summaries))
	var sum float64
	for i, s := range summaries {
		sum += s.Cumulative
		if i >= window {
			sum -= summaries[i-window].Cumulative
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

var csvHeader = []string{"Episode", "CumulativeReward", "MeanReward", "Steps"}

// WriteCSV writes one row per summary, preceded by a header.
func WriteCSV(w io.Writer, summaries []results.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			strconv.Itoa(s.Episode),
			strconv.FormatFloat(s.Cumulative, 'f', -1, 64),
			strconv.FormatFloat(s.Mean, 'f', -1, 64),
			strconv.Itoa(s.Steps),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6"))
	labelStyle = lipgloss.NewStyle().Width(16).Foreground(lipgloss.Color("#94A3B8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8FAFC"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Render formats the report for a terminal.
func (r Report) Render(title string) string {
	rows := [][2]string{
		{"Episodes", strconv.Itoa(r.Episodes)},
		{"Mean return", fmt.Sprintf("%.2f ± %.2f", r.MeanReturn, r.StdReturn)},
		{"Min / max", fmt.Sprintf("%.2f / %.2f", r.MinReturn, r.MaxReturn)},
		{"Best episode", strconv.Itoa(r.BestEpisode)},
		{"Mean length", fmt.Sprintf("%.1f", r.MeanSteps)},
		{"Total reward", fmt.Sprintf("%.2f", r.TotalReward)},
	}
	lines := []string{titleStyle.Render(title)}
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+valueStyle.Render(row[1]))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
