package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadLastLines(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "triage-2024-01-01.log")
	newer := filepath.Join(dir, "triage-2024-01-02.log")
	_ = os.WriteFile(older, []byte("a\nb\nc\n"), 0644)
	_ = os.WriteFile(newer, []byte("d\ne\n"), 0644)

	files := []string{newer, older}
	tests := []struct {
		n    int
		want string
	}{
		{1, "e"},
		{2, "d,e"},
		{4, "b,c,d,e"},
		{10, "a,b,c,d,e"},
	}
	for _, tt := range tests {
		if got := strings.Join(readLastLines(files, tt.n), ","); got != tt.want {
			t.Errorf("readLastLines(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestPrintLogLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{
			`{"level":"warn","time":"2024-05-01T09:00:00Z","component":"analysis","run_id":"abc","error":"timeout","message":"analysis failed"}`,
			[]string{"WRN", "[analysis]", "analysis failed", "run_id=abc", "error=timeout"},
		},
		{`{"level":"info","message":"tasks loaded"}`, []string{"INF", "tasks loaded"}},
		{"plain text line", []string{"plain text line"}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printLogLine(&buf, tt.line)
		for _, want := range tt.want {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("printLogLine(%s) = %q, missing %q", tt.line, buf.String(), want)
			}
		}
	}
}

func TestFormatLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DBG",
		"info":  "INF",
		"warn":  "WRN",
		"error": "ERR",
		"fatal": "FAT",
		"":      "???",
	}
	for in, want := range tests {
		if got := formatLogLevel(in); got != want {
			t.Errorf("formatLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShowLogs_NoFiles(t *testing.T) {
	var buf bytes.Buffer
	if err := showLogs(&buf, filepath.Join(t.TempDir(), "none"), 10); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No log files found.") {
		t.Errorf("output = %q", buf.String())
	}
}
