// Package tui provides the read-only watch view over a task file.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/ralph/internal/render"
	"github.com/pablasso/ralph/internal/task"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFAF"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AF5F5F"))
)

// Watch runs the watch TUI until the user quits.
func Watch(taskFile string) error {
	p := tea.NewProgram(newModel(taskFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type tickMsg time.Time

// Model polls the task file on a fixed tick. It holds on to the last good
// config so a mid-write parse failure doesn't blank the screen.
type Model struct {
	taskFile string
	cfg      *task.Config
	loadErr  error
	bar      progress.Model
	width    int
}

func newModel(taskFile string) Model {
	return Model{
		taskFile: taskFile,
		bar:      progress.New(progress.WithDefaultGradient()),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reload(), tick())
}

// reload re-reads the task file off the event loop.
func (m Model) reload() tea.Cmd {
	path := m.taskFile
	return func() tea.Msg {
		cfg, err := task.Load(path)
		if err != nil {
			return loadResult{err: err}
		}
		return loadResult{cfg: cfg}
	}
}

type loadResult struct {
	cfg *task.Config
	err error
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 10
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
	case tickMsg:
		return m, tea.Batch(m.reload(), tick())
	case loadResult:
		if msg.err != nil {
			m.loadErr = msg.err
		} else {
			m.cfg = msg.cfg
			m.loadErr = nil
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	if m.cfg == nil {
		if m.loadErr != nil {
			b.WriteString(errStyle.Render(fmt.Sprintf("cannot read %s: %v", m.taskFile, m.loadErr)))
		} else {
			b.WriteString(subtleStyle.Render("loading..."))
		}
		b.WriteString("\n\n" + subtleStyle.Render("q to quit"))
		return b.String()
	}

	counts := m.cfg.Counts()

	b.WriteString(titleStyle.Render(m.cfg.Project))
	b.WriteString("\n\n")

	ratio := 0.0
	if counts.Total > 0 {
		ratio = float64(counts.Completed) / float64(counts.Total)
	}
	b.WriteString(m.bar.ViewAs(ratio))
	b.WriteString(fmt.Sprintf(" %d/%d\n", counts.Completed, counts.Total))

	if line := render.StatusLine(counts.Running, counts.Failed, counts.Pending); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.cfg.CompletedAt != nil {
		b.WriteString("\n" + subtleStyle.Render("run completed "+m.cfg.CompletedAt.Format(time.RFC3339)))
		b.WriteString("\n")
	}

	if m.loadErr != nil {
		b.WriteString("\n" + subtleStyle.Render("task file briefly unreadable, showing last good state"))
		b.WriteString("\n")
	}

	b.WriteString("\n" + subtleStyle.Render("q to quit"))
	return b.String()
}
