package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/strategy"
)

func update(t *testing.T, m Progress, msg tea.Msg) (Progress, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	p, ok := next.(Progress)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return p, cmd
}

func TestProgress_FollowsRun(t *testing.T) {
	events := make(chan analysis.Event)
	m := NewProgress(events)
	if m.Init() == nil {
		t.Fatal("Init() should start the spinner and event wait")
	}

	m, cmd := update(t, m, eventMsg(analysis.Event{
		Type:      analysis.EventRunStart,
		RunID:     "run-1",
		Strategy:  strategy.Fastest,
		Phase:     analysis.PhaseIdle,
		TaskCount: 3,
	}))
	if cmd == nil {
		t.Error("expected a command waiting for the next event")
	}

	m, _ = update(t, m, eventMsg(analysis.Event{Type: analysis.EventPhase, Phase: analysis.PhaseAwaitingAnalyze}))
	view := m.View()
	if !strings.Contains(view, "fastest · 3 tasks") || !strings.Contains(view, "Scoring tasks") {
		t.Errorf("View() = %q", view)
	}
	if m.Done() {
		t.Error("Done() before run end")
	}

	rep := &analysis.Report{Phase: analysis.PhaseDone}
	m, cmd = update(t, m, eventMsg(analysis.Event{Type: analysis.EventRunEnd, Phase: analysis.PhaseDone, Report: rep}))
	if !m.Done() || m.Report() != rep {
		t.Error("run end not recorded")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("run end should quit")
	}
	if !strings.Contains(m.View(), "Analysis complete") {
		t.Errorf("View() = %q", m.View())
	}
	if len(m.steps) != 1 {
		t.Errorf("steps = %v", m.steps)
	}
}

func TestProgress_Failure(t *testing.T) {
	m := NewProgress(nil)
	m, _ = update(t, m, eventMsg(analysis.Event{
		Type:  analysis.EventRunEnd,
		Phase: analysis.PhaseFailed,
		Error: "analyze failed: 500 Internal Server Error",
	}))
	if !strings.Contains(m.View(), "✗ analyze failed: 500 Internal Server Error") {
		t.Errorf("View() = %q", m.View())
	}
}

func TestProgress_ClosedChannel(t *testing.T) {
	events := make(chan analysis.Event)
	close(events)
	m := NewProgress(events)

	msg := waitForEvent(events)()
	if _, ok := msg.(closedMsg); !ok {
		t.Fatalf("waitForEvent on closed channel = %T", msg)
	}
	m, cmd := update(t, m, msg)
	if !m.Done() || cmd == nil {
		t.Error("closed channel should end the model")
	}
}

func TestProgress_CtrlC(t *testing.T) {
	m := NewProgress(nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || m.View() != "" {
		t.Error("ctrl+c should quit with an empty view")
	}
}

func TestPhaseLabel(t *testing.T) {
	if phaseLabel(analysis.PhaseAwaitingSuggest) != "Fetching suggestions" {
		t.Error("unexpected label for awaiting_suggest")
	}
	if phaseLabel(analysis.Phase("other")) != "other" {
		t.Error("unknown phases should render as-is")
	}
}
