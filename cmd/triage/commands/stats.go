package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded analysis runs",
	Long: `Summarize recorded analysis runs: outcomes, durations, strategy use and
the tasks recommended most often.

Use --days to limit the window and --json for structured output.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().Int("days", 0, "Only include runs from the last N days (0 = all)")
	statsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	store, closeHistory, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeHistory()
	if store == nil {
		_, _ = fmt.Fprintln(out, "History is disabled (history.enabled: false).")
		return nil
	}

	result, err := stats.New(store).Compute(cmd.Context(), days)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, result)
	}
	return printStats(out, result)
}

func printStats(out io.Writer, r *stats.Result) error {
	if r.TotalRuns == 0 {
		_, _ = fmt.Fprintln(out, "No analysis runs recorded.")
		return nil
	}

	_, _ = fmt.Fprintf(out, "Runs:       %d (%s to %s)\n", r.TotalRuns,
		r.FirstRunAt.Local().Format("2006-01-02"), r.LastRunAt.Local().Format("2006-01-02"))
	_, _ = fmt.Fprintf(out, "Outcomes:   %d succeeded, %d analyze failed, %d suggest failed (%.0f%% success)\n",
		r.Succeeded, r.AnalyzeFailed, r.SuggestFailed, r.SuccessRate)
	_, _ = fmt.Fprintf(out, "Duration:   %s total, %s average\n", r.TotalDuration, r.AvgRunDuration)
	_, _ = fmt.Fprintf(out, "Tasks:      %d submitted, %d scored\n", r.TasksSubmitted, r.TasksScored)

	names := make([]string, 0, len(r.StrategyBreakdown))
	for name := range r.StrategyBreakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	_, _ = fmt.Fprint(out, "Strategies:")
	for _, name := range names {
		_, _ = fmt.Fprintf(out, " %s=%d", name, r.StrategyBreakdown[name])
	}
	_, _ = fmt.Fprintln(out)

	if len(r.TopTasks) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MOST RECOMMENDED\tTIMES\tBEST SCORE")
	for _, t := range r.TopTasks {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", t.Title, t.Count, weight(t.BestScore))
	}
	return w.Flush()
}
