// Package ui renders tasks and analysis results for the terminal.
package ui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/triage/internal/analysis"
	"github.com/marcus/triage/internal/tasks"
)

// DefaultWidth is the card width when the terminal size is unknown.
const DefaultWidth = 64

// Styles holds lipgloss styles for the UI.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Muted    lipgloss.Style
	Card     lipgloss.Style

	// Border colors by priority
	High     lipgloss.AdaptiveColor
	Medium   lipgloss.AdaptiveColor
	Low      lipgloss.AdaptiveColor
	Unscored lipgloss.AdaptiveColor

	StatusOK      lipgloss.Style
	StatusError   lipgloss.Style
	StatusRunning lipgloss.Style
}

// NewStyles creates the default style set.
func NewStyles() *Styles {
	subtle := lipgloss.AdaptiveColor{Light: "#666", Dark: "#888"}
	highlight := lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	green := lipgloss.AdaptiveColor{Light: "#22863a", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#b08800", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cb2431", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0366d6", Dark: "#58a6ff"}

	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight),

		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333", Dark: "#ccc"}),

		Label: lipgloss.NewStyle().
			Foreground(subtle),

		Muted: lipgloss.NewStyle().
			Foreground(subtle).
			Italic(true),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),

		High:     red,
		Medium:   yellow,
		Low:      green,
		Unscored: subtle,

		StatusOK:      lipgloss.NewStyle().Foreground(green).Bold(true),
		StatusError:   lipgloss.NewStyle().Foreground(red).Bold(true),
		StatusRunning: lipgloss.NewStyle().Foreground(blue).Bold(true),
	}
}

// BorderColor returns the card border color for a priority.
func (s *Styles) BorderColor(p tasks.Priority) lipgloss.AdaptiveColor {
	switch p {
	case tasks.PriorityHigh:
		return s.High
	case tasks.PriorityMedium:
		return s.Medium
	case tasks.PriorityLow:
		return s.Low
	default:
		return s.Unscored
	}
}

// Renderer draws task cards.
type Renderer struct {
	styles *Styles
	width  int
}

// NewRenderer creates a renderer for cards of the given width. A width of
// zero or less uses DefaultWidth.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{styles: NewStyles(), width: width}
}

// Tasks renders the task listing: every task with its hours and importance.
func (r *Renderer) Tasks(ts []tasks.Task) string {
	if len(ts) == 0 {
		return r.styles.Muted.Render("No tasks.")
	}
	cards := make([]string, 0, len(ts))
	for _, t := range ts {
		cards = append(cards, r.card(t, true))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// Top renders the recommendation panel.
func (r *Renderer) Top(ts []tasks.Task) string {
	var b strings.Builder
	b.WriteString(r.styles.Title.Render("Top Recommendations"))
	b.WriteString("\n")
	if len(ts) == 0 {
		b.WriteString(r.styles.Muted.Render("No suggestions."))
		return b.String()
	}
	cards := make([]string, 0, len(ts))
	for _, t := range ts {
		cards = append(cards, r.card(t, false))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, cards...))
	return b.String()
}

// Summary renders a one-line outcome for a finished invocation.
func (r *Renderer) Summary(rep *analysis.Report) string {
	if rep == nil {
		return ""
	}
	line := rep.Strategy.String() + " · " + strconv.Itoa(rep.TaskCount) + " tasks · " +
		rep.Duration().Round(time.Millisecond).String()
	if rep.Err != nil {
		return r.styles.StatusError.Render("✗ ") + r.styles.Label.Render(line)
	}
	return r.styles.StatusOK.Render("✓ ") + r.styles.Label.Render(line)
}

func (r *Renderer) card(t tasks.Task, listing bool) string {
	lines := []string{
		r.styles.Subtitle.Render(t.Title) + " " + r.styles.Label.Render("(Due: "+t.DueDate+")"),
		"Score: " + FormatScore(t.Score),
	}
	if listing {
		lines = append(lines, "Hours: "+formatFloat(t.EstimatedHours)+" | Importance: "+strconv.Itoa(t.Importance))
	}
	if t.Explanation != nil && *t.Explanation != "" {
		lines = append(lines, r.styles.Muted.Render(*t.Explanation))
	}

	style := r.styles.Card.
		Width(r.width - 2).
		BorderForeground(r.styles.BorderColor(t.Priority()))
	return style.Render(strings.Join(lines, "\n"))
}

// FormatScore renders a score the way the scoring service reports it, or
// "N/A" when the task has none.
func FormatScore(score *float64) string {
	if score == nil {
		return "N/A"
	}
	return formatFloat(*score)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
