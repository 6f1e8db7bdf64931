package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/scheduler"
	"github.com/marcus/triage/internal/tasks"
	"github.com/marcus/triage/internal/ui"
	"github.com/marcus/triage/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze when the task file changes or on a schedule",
	Long: `Keep a task list scored.

With --file, the file is loaded at start and reloaded whenever it changes;
every successful reload triggers an analysis. With --cron or --interval
(or watch.cron / watch.interval in config) the current list is re-scored
periodically, since due dates move. A trigger that arrives while an
analysis is still running is skipped.`,
	Example: `  triage watch -f tasks.yaml
  triage watch -f tasks.json --interval 30m
  triage watch -f tasks.json --cron "0 9 * * 1-5" -s deadline`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("file", "f", "", "Task file to load and watch")
	watchCmd.Flags().String("cron", "", "Cron expression for periodic re-analysis")
	watchCmd.Flags().String("interval", "", "Interval for periodic re-analysis (e.g. 30m)")
	watchCmd.Flags().Duration("debounce", 0, "Quiet period after a file change before reloading")
	watchCmd.Flags().StringP("strategy", "s", "", "Strategy: smart, fastest, high-impact, deadline")
	rootCmd.AddCommand(watchCmd)
}

// watcher owns the shared store and analyzer of a watch session.
type watcher struct {
	store    *tasks.Store
	analyzer *analysis.Analyzer
	renderer *ui.Renderer
	file     string
	log      *logging.Logger

	// busy is held for a reload plus analysis; dirty marks a file change
	// not yet loaded.
	busy  sync.Mutex
	dirty atomic.Bool

	outMu sync.Mutex
	out   io.Writer
}

func runWatch(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	strategyFlag, _ := cmd.Flags().GetString("strategy")
	log := logging.Component("watch")

	wcfg, err := watchConfig(cmd, cfg)
	if err != nil {
		return err
	}
	scheduled := wcfg.Cron != "" || wcfg.Interval != ""
	if file == "-" {
		return errors.New("watch needs a file path, not stdin")
	}
	if file == "" && !scheduled {
		return errors.New("nothing to watch: pass --file, --cron or --interval")
	}

	rec, closeHistory, err := openHistory(cfg)
	if err != nil {
		log.WarnCtx("history unavailable", map[string]any{"error": err})
		rec, closeHistory = nil, func() {}
	}
	defer closeHistory()

	store := tasks.NewStore()
	w := &watcher{
		store:    store,
		analyzer: analysis.New(store, newScoringClient(cfg), analyzerOptions(cfg, resolveStrategy(strategyFlag, cfg), rec)...),
		renderer: ui.NewRenderer(0),
		file:     file,
		log:      log,
		out:      cmd.OutOrStdout(),
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	if file != "" {
		if err := w.reload(); err != nil {
			return err
		}
		go w.trigger(ctx, "start")

		fw, err := watch.NewFileWatcher(file, wcfg.Debounce, func(c watch.Change) {
			w.onFileChange(ctx, c)
		})
		if err != nil {
			return err
		}
		go func() {
			if err := fw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.ErrorCtx("file watcher stopped", map[string]any{"error": err})
				cancel()
			}
		}()
		w.printf("Watching %s (Ctrl+C to exit)\n", fw.Path())
	}

	var sched *scheduler.Scheduler
	if scheduled {
		sched, err = scheduler.NewFromConfig(wcfg)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.AddJob(func(jobCtx context.Context) error {
			return w.run(jobCtx, "schedule")
		})
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		w.printf("Next scheduled analysis: %s\n", sched.NextRun().Format(time.RFC3339))
	}

	<-ctx.Done()

	if sched != nil {
		if err := sched.Stop(); err != nil && err != scheduler.ErrNotRunning {
			log.Errorf("stopping scheduler: %v", err)
		}
	}
	log.Info("watch stopped")
	return nil
}

// watchConfig overlays the command flags on the configured watch settings.
func watchConfig(cmd *cobra.Command, cfg *config.Config) (*config.WatchConfig, error) {
	wcfg := cfg.Watch
	cronFlag, _ := cmd.Flags().GetString("cron")
	intervalFlag, _ := cmd.Flags().GetString("interval")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	if cronFlag != "" || intervalFlag != "" {
		wcfg.Cron, wcfg.Interval = cronFlag, intervalFlag
	}
	if debounce > 0 {
		wcfg.Debounce = debounce
	}
	if wcfg.Cron != "" && wcfg.Interval != "" {
		return nil, config.ErrCronAndInterval
	}
	return &wcfg, nil
}

func (w *watcher) reload() error {
	n, err := loadFile(w.store, w.file, nil)
	if err != nil {
		return err
	}
	w.log.InfoCtx("tasks loaded", map[string]any{"path": w.file, "tasks": n})
	return nil
}

func (w *watcher) onFileChange(ctx context.Context, c watch.Change) {
	if c.Op == "remove" || c.Op == "rename" {
		w.log.WarnCtx("task file moved away, keeping current tasks", map[string]any{"path": c.Path, "op": c.Op})
		return
	}
	w.dirty.Store(true)
	go w.trigger(ctx, "file")
}

// trigger runs an analysis and logs instead of returning the error.
func (w *watcher) trigger(ctx context.Context, reason string) {
	if err := w.run(ctx, reason); err != nil {
		w.log.WarnCtx("analysis failed", map[string]any{"reason": reason, "error": err})
	}
}

// run reloads the file if it changed and performs one analysis. A trigger
// that arrives while a run is in progress is skipped; a file change it
// carried is picked up by the run in progress before it returns.
func (w *watcher) run(ctx context.Context, reason string) error {
	for {
		if !w.busy.TryLock() {
			w.log.InfoCtx("analysis in progress, trigger skipped", map[string]any{"reason": reason})
			return nil
		}
		err := w.runLocked(ctx, reason)
		w.busy.Unlock()

		// Checked after unlocking: a change marked between the last load and
		// the unlock had its own trigger rejected by TryLock.
		if !w.dirty.Load() || ctx.Err() != nil {
			return err
		}
		if err != nil {
			w.log.WarnCtx("analysis failed", map[string]any{"reason": reason, "error": err})
		}
		reason = "file"
	}
}

func (w *watcher) runLocked(ctx context.Context, reason string) error {
	if w.dirty.Swap(false) {
		if err := w.reload(); err != nil {
			w.log.WarnCtx("reload failed, keeping current tasks", map[string]any{"path": w.file, "error": err})
			w.printf("%s\n", feedback(err))
			return nil
		}
	}
	return w.analyze(ctx, reason)
}

func (w *watcher) analyze(ctx context.Context, reason string) error {
	report, err := w.analyzer.Run(ctx)
	switch {
	case errors.Is(err, analysis.ErrInFlight):
		w.log.InfoCtx("analysis in progress, trigger skipped", map[string]any{"reason": reason})
		return nil
	case errors.Is(err, analysis.ErrNothingToAnalyze):
		w.printf("%s\n", feedback(err))
		return nil
	}

	w.outMu.Lock()
	defer w.outMu.Unlock()
	_, _ = fmt.Fprintf(w.out, "\n[%s] %s\n", time.Now().Format("15:04:05"), reason)
	if report != nil && report.Phase == analysis.PhaseDone {
		_, _ = fmt.Fprintln(w.out, w.renderer.Top(report.Top))
	}
	if report != nil {
		_, _ = fmt.Fprintln(w.out, w.renderer.Summary(report))
	}
	_, _ = fmt.Fprintln(w.out, feedback(err))
	return err
}

func (w *watcher) printf(format string, args ...any) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	_, _ = fmt.Fprintf(w.out, format, args...)
}
