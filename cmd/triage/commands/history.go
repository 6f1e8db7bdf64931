package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/history"
	"github.com/marcus/triage/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past analysis runs",
	Long: `Show recorded analysis runs, newest first.

Pass a run id (or a unique prefix of one from the listing) to show that
run's top recommendations. Use --prune to delete runs older than a number
of days.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", history.DefaultLimit, "Number of runs to show")
	historyCmd.Flags().Int("prune", 0, "Delete runs older than this many days")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	pruneDays, _ := cmd.Flags().GetInt("prune")
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

	ctx := cmd.Context()
	if pruneDays > 0 {
		n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -pruneDays))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Pruned %d run(s) older than %d day(s).\n", n, pruneDays)
		return nil
	}

	if len(args) == 1 {
		run, err := findRun(cmd, store, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, run)
		}
		printRun(out, run)
		return nil
	}

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		if runs == nil {
			runs = []history.Run{}
		}
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No analysis runs recorded.")
		return nil
	}
	return writeHistoryTable(out, runs)
}

// findRun resolves an exact id, or a prefix matching exactly one recent run.
func findRun(cmd *cobra.Command, store *history.Store, id string) (*history.Run, error) {
	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := store.Recent(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *history.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}

func writeHistoryTable(out io.Writer, runs []history.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSTARTED\tSTRATEGY\tTASKS\tPHASE\tDURATION\tRESULT")
	for _, r := range runs {
		result := topTitles(r)
		if !r.Succeeded() {
			result = r.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Strategy,
			r.TaskCount,
			r.Phase,
			r.Duration().Round(time.Millisecond),
			result,
		)
	}
	return w.Flush()
}

func printRun(out io.Writer, r *history.Run) {
	_, _ = fmt.Fprintf(out, "Run:      %s\n", r.ID)
	_, _ = fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "Strategy: %s (urgency %s, importance %s, effort %s, dependency %s)\n",
		r.Strategy, weight(r.Weights.Urgency), weight(r.Weights.Importance), weight(r.Weights.Effort), weight(r.Weights.Dependency))
	_, _ = fmt.Fprintf(out, "Tasks:    %d submitted, %d scored\n", r.TaskCount, r.ScoredCount)
	_, _ = fmt.Fprintf(out, "Phase:    %s in %s\n", r.Phase, r.Duration().Round(time.Millisecond))
	if r.Error != "" {
		_, _ = fmt.Fprintf(out, "Error:    %s\n", r.Error)
	}
	if r.Succeeded() {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, ui.NewRenderer(0).Top(r.Top))
	}
}

func topTitles(r history.Run) string {
	titles := make([]string, 0, len(r.Top))
	for _, t := range r.Top {
		titles = append(titles, t.Title)
	}
	return strings.Join(titles, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
