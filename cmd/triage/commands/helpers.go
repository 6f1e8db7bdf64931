package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/db"
	"github.com/marcus/triage/internal/history"
	"github.com/marcus/triage/internal/logging"
	"github.com/marcus/triage/internal/scoring"
	"github.com/marcus/triage/internal/strategy"
	"github.com/marcus/triage/internal/tasks"
)

// newScoringClient builds a scoring client from configuration.
func newScoringClient(cfg *config.Config) *scoring.Client {
	return scoring.New(cfg.Scoring.BaseURL,
		scoring.WithPaths(cfg.Scoring.AnalyzePath, cfg.Scoring.SuggestPath),
		scoring.WithTimeout(cfg.Scoring.Timeout),
		scoring.WithRetry(cfg.Scoring.MaxAttempts, cfg.Scoring.RetryDelay),
	)
}

// openHistory opens the run history database. It returns a nil store and a
// no-op closer when history is disabled.
func openHistory(cfg *config.Config) (*history.Store, func(), error) {
	if !cfg.History.Enabled {
		return nil, func() {}, nil
	}
	database, err := db.Open(cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return history.NewStore(database.SQL()), func() { _ = database.Close() }, nil
}

// analyzerOptions collects the options shared by analyze and watch.
func analyzerOptions(cfg *config.Config, s strategy.Strategy, rec *history.Store) []analysis.Option {
	opts := []analysis.Option{
		analysis.WithStrategy(s),
		analysis.WithTopN(cfg.Scoring.TopN),
	}
	if rec != nil {
		opts = append(opts, analysis.WithRecorder(rec))
	}
	return opts
}

// resolveStrategy picks the flag value over the configured one.
func resolveStrategy(flag string, cfg *config.Config) strategy.Strategy {
	name := strings.TrimSpace(flag)
	if name == "" {
		name = cfg.Strategy
	}
	return strategy.Strategy(strings.ToLower(name))
}

// readBulk reads a bulk task file, or stdin for "-", and returns it as JSON.
// YAML is accepted by extension, or on stdin when it does not look like JSON.
func readBulk(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return tasks.YAMLToJSON(data)
	case ".json":
		return data, nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return data, nil
	}
	return tasks.YAMLToJSON(data)
}

// loadFile replaces the contents of store with the tasks in path.
func loadFile(store *tasks.Store, path string, stdin io.Reader) (int, error) {
	payload, err := readBulk(path, stdin)
	if err != nil {
		return 0, err
	}
	// validate before clearing so a bad edit keeps the previous tasks
	if _, err := tasks.ParseBulk(payload); err != nil {
		return 0, err
	}
	store.Clear()
	added, err := store.AddBulk(payload)
	return len(added), err
}

// feedback is the one-line outcome shown after an analysis attempt.
func feedback(err error) string {
	var stepErr *analysis.StepError
	switch {
	case err == nil:
		return "Analysis complete."
	case errors.Is(err, analysis.ErrNothingToAnalyze):
		return "No tasks to analyze."
	case errors.Is(err, analysis.ErrInFlight):
		return "Analysis already in progress."
	case errors.Is(err, tasks.ErrValidation):
		return "Please fill all required fields correctly: " + err.Error()
	case errors.Is(err, tasks.ErrInvalidBulk):
		return "Invalid bulk tasks: " + strings.TrimPrefix(err.Error(), tasks.ErrInvalidBulk.Error()+": ")
	case errors.As(err, &stepErr) && stepErr.Step == analysis.StepSuggest:
		return "Error fetching top suggestions: " + remoteDetail(stepErr.Err)
	case errors.As(err, &stepErr):
		return "Error analyzing tasks: " + remoteDetail(stepErr.Err)
	case errors.Is(err, context.Canceled):
		return "Analysis cancelled."
	default:
		return "Error: " + err.Error()
	}
}

// remoteDetail prefers the server's own error text.
func remoteDetail(err error) string {
	var statusErr *scoring.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message()
	}
	return err.Error()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(log *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received signal %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
