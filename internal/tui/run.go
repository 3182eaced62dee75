// Package tui renders the live run dashboard: a progress bar over the
// sample pool plus counters, driven by the scheduler's progress
// callback. Rendering is a pure function of the latest snapshot; the
// engine never blocks on the terminal.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/flowbench/flowbench/internal/scheduler"
)

// ProgressMsg carries a progress snapshot into the dashboard.
type ProgressMsg scheduler.Progress

// DoneMsg tells the dashboard the run finished.
type DoneMsg struct {
	Err error
}

// Styles contains lipgloss styles for the dashboard.
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purple
			Padding(1, 2),
	}
}

// RunModel is the bubbletea model for one suite run.
type RunModel struct {
	suiteName string
	total     int

	latest   scheduler.Progress
	done     bool
	err      error
	quitting bool

	startTime time.Time
	width     int

	bar    progress.Model
	spin   spinner.Model
	styles Styles
}

// NewRunModel creates a dashboard for a run of the given size.
func NewRunModel(suiteName string, totalSamples int) RunModel {
	bar := progress.New(progress.WithDefaultGradient())
	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	return RunModel{
		suiteName: suiteName,
		total:     totalSamples,
		latest:    scheduler.Progress{Total: totalSamples, Pending: totalSamples},
		startTime: time.Now(),
		bar:       bar,
		spin:      spin,
		styles:    DefaultStyles(),
	}
}

// Init starts the spinner (required by Bubble Tea).
func (m RunModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update handles messages and updates the model state (required by Bubble Tea).
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 12
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}

	case ProgressMsg:
		m.latest = scheduler.Progress(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard (required by Bubble Tea).
func (m RunModel) View() string {
	if m.quitting {
		return ""
	}

	title := m.styles.Title.Render(fmt.Sprintf("flowbench · %s", m.suiteName))

	ratio := 0.0
	if m.latest.Total > 0 {
		ratio = float64(m.latest.Completed) / float64(m.latest.Total)
	}
	bar := m.bar.ViewAs(ratio)

	counters := fmt.Sprintf("%d/%d done · %d running · %d pending",
		m.latest.Completed, m.latest.Total, m.latest.Running, m.latest.Pending)
	if m.latest.Failed > 0 {
		counters += " · " + m.styles.Error.Render(fmt.Sprintf("%d failed", m.latest.Failed))
	}

	elapsed := time.Since(m.startTime).Round(time.Second)
	timing := fmt.Sprintf("elapsed %s", elapsed)
	if m.latest.EstimatedRemaining != nil {
		remaining := time.Duration(*m.latest.EstimatedRemaining * float64(time.Second)).Round(time.Second)
		timing += fmt.Sprintf(" · ~%s remaining", remaining)
	}

	var status string
	switch {
	case m.done && m.err != nil:
		status = m.styles.Error.Render("run failed: " + m.err.Error())
	case m.done:
		status = m.styles.Success.Render("run complete")
	default:
		status = m.spin.View() + m.styles.Status.Render(" evaluating samples")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		bar,
		"",
		counters,
		m.styles.Muted.Render(timing),
		"",
		status,
		m.styles.Muted.Render("q to quit"),
	)

	return m.styles.Border.Render(body) + "\n"
}
