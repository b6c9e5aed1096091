package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/boristopalov/dojo/internal/store"
	"github.com/boristopalov/dojo/pkg/evaluator"
	"github.com/boristopalov/dojo/pkg/results"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
)

func dbPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = os.Getenv("DOJO_DB")
	}
	if path == "" {
		return "", fmt.Errorf("no database: pass --db or set DOJO_DB")
	}
	return path, nil
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath(cmd)
			if err != nil {
				return err
			}
			db, err := store.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			agentName, _ := cmd.Flags().GetString("agent")
			runs, err := db.Runs(cmd.Context(), agentName)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println(dimStyle.Render("no runs recorded"))
				return nil
			}

			rows := [][]string{{"RUN", "AGENT", "STARTED", "EPISODES"}}
			for _, r := range runs {
				rows = append(rows, []string{r.ID, r.AgentName, results.RunStamp(r.StartedAt.Local()), strconv.Itoa(r.Episodes)})
			}
			fmt.Print(renderTable(rows))
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database (defaults to $DOJO_DB)")
	cmd.Flags().String("agent", "", "only list runs of this agent")
	return cmd
}

func episodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episodes <run-id>",
		Short: "Show the episode summaries of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := dbPath(cmd)
			if err != nil {
				return err
			}
			db, err := store.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			summaries, err := db.Episodes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				return fmt.Errorf("run %s has no recorded episodes", args[0])
			}

			window, _ := cmd.Flags().GetInt("window")
			smoothed := evaluator.MovingAverage(summaries, window)
			rows := [][]string{{"EPISODE", "RETURN", "MEAN", "STEPS", "AVG" + strconv.Itoa(window)}}
			for i, s := range summaries {
				rows = append(rows, []string{
					strconv.Itoa(s.Episode),
					strconv.FormatFloat(s.Cumulative, 'f', 2, 64),
					strconv.FormatFloat(s.Mean, 'f', 3, 64),
					strconv.Itoa(s.Steps),
					strconv.FormatFloat(smoothed[i], 'f', 2, 64),
				})
			}
			fmt.Print(renderTable(rows))
			fmt.Println(evaluator.Evaluate(summaries).Render("run " + args[0]))
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database (defaults to $DOJO_DB)")
	cmd.Flags().Int("window", 10, "moving average window")
	return cmd
}

// renderTable left-aligns columns; the first row is the header.
func renderTable(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for r, row := range rows {
		for i, cell := range row {
			style := cellStyle.Width(widths[i] + 2)
			if r == 0 {
				style = style.Inherit(headerStyle)
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteString("\n")
	}
	return b.String()
}
