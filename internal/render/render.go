// Package render turns run state into the redrawn terminal status screen.
// Everything here is a pure function of its inputs; the scheduler decides
// when to write the result to the terminal.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/ralph/internal/supervisor"
	"github.com/pablasso/ralph/internal/task"
)

const (
	filledChar = "■"
	emptyChar  = "□"

	// BarWidth is the character width of the progress bar portion.
	BarWidth = 30

	// MaxDisplayTasks caps the task rows shown per redraw.
	MaxDisplayTasks = 10

	// titleBudget is the character budget before a title is truncated.
	titleBudget = 50
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFAF"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AF87"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AF5F5F"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAF5F"))
)

// ProgressBar renders a block-character bar with percent and counts, like:
// ■■■■■■□□□□ 60% (3/5). A zero total renders an explicit empty state rather
// than dividing by zero.
func ProgressBar(completed, total, width int) string {
	if total <= 0 {
		return fmt.Sprintf("%s 0%% (0/0)", strings.Repeat(emptyChar, width))
	}

	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}

	percent := int(math.Round(100 * float64(completed) / float64(total)))
	filled := int(math.Round(float64(width) * float64(completed) / float64(total)))

	bar := strings.Repeat(filledChar, filled) + strings.Repeat(emptyChar, width-filled)
	return fmt.Sprintf("%s %d%% (%d/%d)", bar, percent, completed, total)
}

// StatusLine joins the non-zero status categories. Returns "" when all
// counts are zero.
func StatusLine(running, failed, pending int) string {
	var parts []string
	if running > 0 {
		parts = append(parts, runningStyle.Render(fmt.Sprintf("▶ %d running", running)))
	}
	if failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("✗ %d failed", failed)))
	}
	if pending > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("○ %d pending", pending)))
	}
	return strings.Join(parts, " │ ")
}

// TaskList renders up to maxDisplay task rows: running tasks first, then
// failed, then pending. Completed tasks are never shown. Each id is a
// clickable link to the task's log file under runDir.
func TaskList(tasks []task.Task, runDir string, maxDisplay int) []string {
	var rows []string

	add := func(status string) {
		for i := range tasks {
			if len(rows) >= maxDisplay {
				return
			}
			if tasks[i].Status != status {
				continue
			}
			rows = append(rows, taskRow(&tasks[i], runDir))
		}
	}

	add(task.StatusRunning)
	add(task.StatusFailed)
	add(task.StatusPending)

	return rows
}

func taskRow(t *task.Task, runDir string) string {
	var marker string
	switch t.Status {
	case task.StatusRunning:
		marker = runningStyle.Render("▶")
	case task.StatusFailed:
		marker = errorStyle.Render("✗")
	default:
		marker = subtleStyle.Render("○")
	}

	id := Link(t.ID, "file://"+supervisor.LogPath(runDir, t.ID))
	return fmt.Sprintf("  %s %s %s", marker, id, TruncateTitle(t.Title))
}

// TruncateTitle shortens a title past the fixed character budget.
func TruncateTitle(title string) string {
	if len(title) <= titleBudget {
		return title
	}
	return title[:titleBudget-3] + "..."
}

// Link wraps text in an OSC 8 hyperlink escape sequence. Terminals without
// hyperlink support show the plain text.
func Link(text, url string) string {
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, text)
}

// ClearScreen is the escape sequence for a full clear-and-home redraw.
// Cycles are seconds apart, so redrawing everything beats diffing.
const ClearScreen = "\x1b[2J\x1b[H"

// Screen composes the full status screen for one scheduling cycle.
func Screen(cfg *task.Config, counts task.Counts, runDir string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(cfg.Project))
	if cfg.Description != "" {
		b.WriteString(subtleStyle.Render(" — " + cfg.Description))
	}
	b.WriteString("\n\n")

	b.WriteString(successStyle.Render(ProgressBar(counts.Completed, counts.Total, BarWidth)))
	b.WriteString("\n")

	if line := StatusLine(counts.Running, counts.Failed, counts.Pending); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	rows := TaskList(cfg.Tasks, runDir, MaxDisplayTasks)
	if len(rows) > 0 {
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString(row)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Countdown renders the between-cycle heartbeat line. It is redrawn in place
// each second.
func Countdown(seconds int) string {
	return subtleStyle.Render(fmt.Sprintf("next check in %ds (ctrl-c to stop)", seconds))
}
