package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// Task is one line of the progress display: authenticating, walking issue
// pages, waiting on the model or saving the digest.
type Task struct {
	ID       TaskID
	Name     string
	Status   TaskStatus
	Message  string
	Count    int
	Progress float64
	Error    error
}

// NewTask creates a pending task.
func NewTask(id TaskID, name string) Task {
	return Task{
		ID:     id,
		Name:   name,
		Status: StatusPending,
	}
}

// fraction is Progress clamped to [0, 1].
func (t Task) fraction() float64 {
	return min(max(t.Progress, 0), 1)
}

func (t Task) label() string {
	if t.Status == StatusPending {
		return taskDimStyle.Render(t.Name)
	}
	return taskNameStyle.Render(t.Name)
}

// details renders everything after the name. A bounded page walk shows a bar
// and percentage while it runs; the page message and running issue count
// follow it.
func (t Task) details(prog progress.Model) []string {
	var parts []string
	if t.Status == StatusRunning && t.Progress > 0 {
		parts = append(parts, prog.ViewAs(t.fraction()), fmt.Sprintf("%d%%", int(t.fraction()*100)))
	}
	if t.Message != "" {
		parts = append(parts, messageStyle.Render(t.Message))
	}
	if t.Count > 0 {
		parts = append(parts, messageStyle.Render(fmt.Sprintf("(%d)", t.Count)))
	}
	if t.Error != nil {
		parts = append(parts, errorStyle.Render(t.Error.Error()))
	}
	return parts
}

// View renders the task line.
func (t Task) View(spinnerFrame string, prog progress.Model) string {
	line := fmt.Sprintf("  %s %s", StatusIcon(t.Status, spinnerFrame), t.label())
	if parts := t.details(prog); len(parts) > 0 {
		line += " " + strings.Join(parts, " ")
	}
	return line
}
