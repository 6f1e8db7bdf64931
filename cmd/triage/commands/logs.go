package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View logs",
	Long: `View triage logs.

Displays recent log entries. Use --follow to stream logs in real-time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		follow, _ := cmd.Flags().GetBool("follow")
		out := cmd.OutOrStdout()

		logDir := logging.ExpandPath(cfg.Logging.Path)
		if logDir == "" {
			return fmt.Errorf("logging.path is empty: logs go to stderr")
		}

		if follow {
			return followLogs(cmd, logDir, tail)
		}
		return showLogs(out, logDir, tail)
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	rootCmd.AddCommand(logsCmd)
}

// logEntry is a parsed JSON log line.
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func logFiles(logDir string) ([]string, error) {
	files, err := logging.LogFiles(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log dir: %w", err)
	}
	return files, nil
}

func showLogs(out io.Writer, logDir string, n int) error {
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		_, _ = fmt.Fprintln(out, "No log files found.")
		return nil
	}

	for _, line := range readLastLines(files, n) {
		printLogLine(out, line)
	}
	return nil
}

func followLogs(cmd *cobra.Command, logDir string, initialLines int) error {
	out := cmd.OutOrStdout()
	files, err := logFiles(logDir)
	if err != nil {
		return err
	}
	if len(files) > 0 && initialLines > 0 {
		for _, line := range readLastLines(files, initialLines) {
			printLogLine(out, line)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	ctx, cancel := signalContext(logging.Component("cli"))
	defer cancel()

	// track today's file; a new one appears at date rollover
	currentFile := currentLogFile(logDir)
	var file *os.File
	var reader *bufio.Reader
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	if currentFile != "" {
		if file, err = os.Open(currentFile); err == nil {
			_, _ = file.Seek(0, io.SeekEnd)
			reader = bufio.NewReader(file)
		}
	}

	_, _ = fmt.Fprintln(out, "--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if newFile := currentLogFile(logDir); newFile != currentFile {
				if file != nil {
					_ = file.Close()
					file = nil
				}
				currentFile = newFile
				f, err := os.Open(currentFile)
				if err != nil {
					reader = nil
					continue
				}
				file = f
				reader = bufio.NewReader(file)
			}

			if event.Op.Has(fsnotify.Write) && reader != nil {
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						break
					}
					printLogLine(out, strings.TrimSuffix(line, "\n"))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func currentLogFile(logDir string) string {
	path := filepath.Join(logDir, logging.FileName(time.Now()))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// readLastLines returns the last n lines across files, which are ordered
// newest first.
func readLastLines(files []string, n int) []string {
	var lines []string
	for _, file := range files {
		if len(lines) >= n {
			break
		}

		fileLines := readFileLines(file)
		remaining := n - len(lines)
		if len(fileLines) > remaining {
			fileLines = fileLines[len(fileLines)-remaining:]
		}
		lines = append(fileLines, lines...)
	}
	return lines
}

func readFileLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func printLogLine(out io.Writer, line string) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Message == "" {
		_, _ = fmt.Fprintln(out, line)
		return
	}

	var b strings.Builder
	b.WriteString(entry.Time.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(formatLogLevel(entry.Level))
	if entry.Component != "" {
		b.WriteString(" [" + entry.Component + "]")
	}
	b.WriteString(" " + entry.Message)
	if entry.RunID != "" {
		b.WriteString(" run_id=" + entry.RunID)
	}
	if entry.Error != "" {
		b.WriteString(" error=" + entry.Error)
	}
	_, _ = fmt.Fprintln(out, b.String())
}

func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "":
		return "???"
	default:
		if len(level) > 3 {
			level = level[:3]
		}
		return strings.ToUpper(level)
	}
}
