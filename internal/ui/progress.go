package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/triage/internal/analysis"
)

// eventMsg wraps an analysis event delivered to the model.
type eventMsg analysis.Event

// closedMsg is sent when the event channel is closed.
type closedMsg struct{}

// Progress follows one analysis invocation and quits when it ends.
type Progress struct {
	events  <-chan analysis.Event
	spinner spinner.Model
	styles  *Styles

	runID     string
	strategy  string
	taskCount int
	phase     analysis.Phase
	steps     []analysis.Phase

	done     bool
	quitting bool
	errMsg   string
	report   *analysis.Report
}

// NewProgress creates a model reading from events.
func NewProgress(events <-chan analysis.Event) Progress {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	return Progress{
		events:  events,
		spinner: spin,
		styles:  NewStyles(),
		phase:   analysis.PhaseIdle,
	}
}

// Init implements tea.Model.
func (m Progress) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan analysis.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

// Update implements tea.Model.
func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m.apply(analysis.Event(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case closedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Progress) apply(e analysis.Event) {
	switch e.Type {
	case analysis.EventRunStart:
		m.runID = e.RunID
		m.strategy = e.Strategy.String()
		m.taskCount = e.TaskCount
		m.phase = e.Phase
	case analysis.EventPhase:
		m.phase = e.Phase
		m.steps = append(m.steps, e.Phase)
	case analysis.EventRunEnd:
		m.phase = e.Phase
		m.errMsg = e.Error
		m.report = e.Report
		m.done = true
	}
}

// Done reports whether the invocation has ended.
func (m Progress) Done() bool { return m.done }

// Report returns the finished report, if the run ended normally.
func (m Progress) Report() *analysis.Report { return m.report }

// View implements tea.Model.
func (m Progress) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if m.runID != "" {
		b.WriteString(m.styles.Label.Render(fmt.Sprintf("%s · %d tasks", m.strategy, m.taskCount)))
		b.WriteString("\n")
	}

	switch {
	case !m.done:
		b.WriteString(m.spinner.View() + " " + m.styles.StatusRunning.Render(phaseLabel(m.phase)))
	case m.errMsg != "":
		b.WriteString(m.styles.StatusError.Render("✗ " + m.errMsg))
	default:
		b.WriteString(m.styles.StatusOK.Render("✓ " + phaseLabel(m.phase)))
		if m.report != nil {
			b.WriteString(m.styles.Label.Render(" in " + m.report.Duration().Round(time.Millisecond).String()))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func phaseLabel(p analysis.Phase) string {
	switch p {
	case analysis.PhaseIdle:
		return "Waiting"
	case analysis.PhasePreparing:
		return "Preparing batch"
	case analysis.PhaseAwaitingAnalyze:
		return "Scoring tasks"
	case analysis.PhaseAwaitingSuggest:
		return "Fetching suggestions"
	case analysis.PhaseDone:
		return "Analysis complete"
	case analysis.PhaseFailed:
		return "Analysis failed"
	default:
		return string(p)
	}
}
