package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func logName(d time.Time) string {
	return "triage-" + d.Format("2006-01-02") + ".log"
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"json file", Config{Path: tmpDir, Level: "info", Format: "json"}, false},
		{"text file", Config{Path: tmpDir, Level: "debug", Format: "text"}, false},
		{"invalid level", Config{Path: tmpDir, Level: "loud"}, true},
		{"stderr only", Config{Level: "warn"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				_ = logger.Close()
			}
		})
	}
}

func TestNew_CreatesDailyFile(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := New(Config{Path: tmpDir, Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = logger.Close() }()

	logger.InfoCtx("analysis complete", map[string]any{"run_id": "abc"})

	data, err := os.ReadFile(filepath.Join(tmpDir, logName(time.Now())))
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), `"run_id":"abc"`) {
		t.Errorf("log file missing field: %s", data)
	}
}

func TestNewWriter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "json", "debug")
	if err != nil {
		t.Fatal(err)
	}

	logger.WithComponent("scoring").WarnCtx("request failed", map[string]any{
		"status": 503,
		"error":  errors.New("unavailable"),
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "scoring" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["level"] != "warn" || entry["message"] != "request failed" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(503) || entry["error"] != "unavailable" {
		t.Errorf("fields = %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "text", "warn")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Infof("hidden %d", 2)
	logger.Errorf("shown %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level entries written: %s", out)
	}
	if !strings.Contains(out, "shown 3") {
		t.Errorf("error entry missing: %s", out)
	}
}

func TestRetentionPrunesOldFiles(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now()
	for _, d := range []time.Time{now.AddDate(0, 0, -10), now.AddDate(0, 0, -8), now.AddDate(0, 0, -3)} {
		if err := os.WriteFile(filepath.Join(tmpDir, logName(d)), []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	other := filepath.Join(tmpDir, "notes.log")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	logger, err := New(Config{Path: tmpDir, RetentionDays: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = logger.Close() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		files, _ := LogFiles(tmpDir)
		if len(files) == 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	files, err := LogFiles(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("files after pruning = %v, want today and 3 days ago", files)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestLogFiles_NewestFirst(t *testing.T) {
	tmpDir := t.TempDir()
	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(tmpDir, logName(now.AddDate(0, 0, -i))), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := LogFiles(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	if filepath.Base(files[0]) != logName(now) {
		t.Errorf("first file = %s, want today's", files[0])
	}
}

func TestGlobalLogger(t *testing.T) {
	if err := Init(Config{Path: t.TempDir(), Level: "info"}); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() {
		globalMu.Lock()
		_ = globalLogger.Close()
		globalLogger = nil
		globalMu.Unlock()
	})

	c := Component("analysis")
	if c.Component() != "analysis" {
		t.Errorf("Component() = %q", c.Component())
	}
	if c.Dir() == "" {
		t.Error("component logger lost log dir")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.RetentionDays != 7 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if !strings.Contains(cfg.Path, filepath.Join("triage", "logs")) {
		t.Errorf("default path %q not under triage/logs", cfg.Path)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"DEBUG", false},
		{"invalid", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if _, err := ParseLevel(tt.level); (err != nil) != tt.wantErr {
				t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("ExpandPath(~/logs) = %q", got)
	}
	if got := ExpandPath("/var/log"); got != "/var/log" {
		t.Errorf("ExpandPath(/var/log) = %q", got)
	}
}

func TestFileName(t *testing.T) {
	day := time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)
	if got := FileName(day); got != "triage-2024-02-29.log" {
		t.Errorf("FileName() = %q", got)
	}
	if _, ok := fileDate(FileName(day)); !ok {
		t.Error("fileDate should accept FileName output")
	}
}
