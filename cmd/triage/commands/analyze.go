package commands

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score tasks and show the top recommendations",
	Long: `Score a task list with the configured scoring service.

Tasks come from a JSON or YAML file (--file, or "-" for stdin) and/or a
single task given with --title, --due, --hours and --importance. The list
is weighted by the selected strategy, scored, and printed together with
the top recommendations.

Use --json to output the scored tasks and recommendations as JSON.`,
	Example: `  triage analyze -f tasks.json
  triage analyze -f tasks.yaml -s deadline
  triage analyze --title "Fix login" --due 2025-01-10 --hours 2 --importance 8
  cat tasks.json | triage analyze -f - --json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("file", "f", "", "Bulk task file (JSON or YAML), - for stdin")
	analyzeCmd.Flags().String("title", "", "Title of a single task")
	analyzeCmd.Flags().String("due", "", "Due date of a single task (YYYY-MM-DD)")
	analyzeCmd.Flags().String("hours", "", "Estimated hours of a single task")
	analyzeCmd.Flags().String("importance", "", "Importance of a single task (1-10)")
	analyzeCmd.Flags().String("deps", "", "Comma-separated ids the single task depends on")
	analyzeCmd.Flags().StringP("strategy", "s", "", "Strategy: smart, fastest, high-impact, deadline")
	analyzeCmd.Flags().Bool("json", false, "Output as JSON")
	analyzeCmd.Flags().Bool("progress", false, "Show live progress while the service responds")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeOutput is the --json shape.
type analyzeOutput struct {
	RunID    string       `json:"run_id,omitempty"`
	Strategy string       `json:"strategy"`
	Phase    string       `json:"phase"`
	Tasks    []tasks.Task `json:"tasks"`
	Top      []tasks.Task `json:"top"`
	Message  string       `json:"message"`
	Error    string       `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	strategyFlag, _ := cmd.Flags().GetString("strategy")
	asJSON, _ := cmd.Flags().GetBool("json")
	progress, _ := cmd.Flags().GetBool("progress")
	out := cmd.OutOrStdout()
	log := logging.Component("cli")

	store := tasks.NewStore()
	if err := fillStore(cmd, store, file); err != nil {
		_, _ = fmt.Fprintln(out, feedback(err))
		return err
	}

	rec, closeHistory, err := openHistory(cfg)
	if err != nil {
		// history is an audit trail; analysis still works without it
		log.WarnCtx("history unavailable", map[string]any{"error": err})
		rec, closeHistory = nil, func() {}
	}
	defer closeHistory()

	st := resolveStrategy(strategyFlag, cfg)
	opts := analyzerOptions(cfg, st, rec)

	var events chan analysis.Event
	if progress && !asJSON {
		events = make(chan analysis.Event, 16)
		opts = append(opts, analysis.WithEventHandler(func(e analysis.Event) {
			select {
			case events <- e:
			default:
			}
		}))
	}

	analyzer := analysis.New(store, newScoringClient(cfg), opts...)

	ctx, cancel := signalContext(log)
	defer cancel()

	var (
		report *analysis.Report
		runErr error
	)
	if events != nil {
		done := make(chan struct{})
		go func() {
			report, runErr = analyzer.Run(ctx)
			close(events)
			close(done)
		}()
		p := tea.NewProgram(ui.NewProgress(events), tea.WithOutput(cmd.ErrOrStderr()), tea.WithInput(nil))
		if _, err := p.Run(); err != nil {
			log.WarnCtx("progress display failed", map[string]any{"error": err})
		}
		<-done
	} else {
		report, runErr = analyzer.Run(ctx)
	}

	if asJSON {
		if err := writeAnalyzeJSON(out, analyzer, store, report, runErr); err != nil {
			return err
		}
	} else {
		printAnalysis(out, store, report, runErr)
	}

	if errors.Is(runErr, analysis.ErrNothingToAnalyze) {
		return nil
	}
	return runErr
}

// fillStore adds the file and single-task flags to store.
func fillStore(cmd *cobra.Command, store *tasks.Store, file string) error {
	if file != "" {
		if _, err := loadFile(store, file, cmd.InOrStdin()); err != nil {
			return err
		}
	}

	title, _ := cmd.Flags().GetString("title")
	due, _ := cmd.Flags().GetString("due")
	hours, _ := cmd.Flags().GetString("hours")
	importance, _ := cmd.Flags().GetString("importance")
	deps, _ := cmd.Flags().GetString("deps")
	if title == "" && due == "" && hours == "" && importance == "" && deps == "" {
		return nil
	}

	_, err := store.AddSingle(tasks.Fields{
		Title:          title,
		DueDate:        due,
		EstimatedHours: hours,
		Importance:     importance,
		Dependencies:   deps,
	})
	return err
}

func printAnalysis(out io.Writer, store *tasks.Store, report *analysis.Report, runErr error) {
	r := ui.NewRenderer(0)

	if report != nil {
		_, _ = fmt.Fprintln(out, r.Tasks(store.Snapshot()))
		if report.Phase == analysis.PhaseDone {
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, r.Top(report.Top))
		}
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, r.Summary(report))
	}
	_, _ = fmt.Fprintln(out, feedback(runErr))
}

func writeAnalyzeJSON(out io.Writer, analyzer *analysis.Analyzer, store *tasks.Store, report *analysis.Report, runErr error) error {
	o := analyzeOutput{
		Strategy: analyzer.Strategy().String(),
		Phase:    analyzer.Phase().String(),
		Tasks:    store.Snapshot(),
		Top:      []tasks.Task{},
		Message:  feedback(runErr),
	}
	if report != nil {
		o.RunID = report.ID
		o.Phase = report.Phase.String()
		if report.Top != nil {
			o.Top = report.Top
		}
	}
	if runErr != nil {
		o.Error = runErr.Error()
	}

	return writeJSON(out, o)
}
