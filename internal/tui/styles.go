package tui

import (
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"

	"zentaocli/pkg/contracts/events"
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	InfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// FormatLog renders a log entry as one styled line with a [HH:MM:SS] stamp.
func FormatLog(e events.LogEntry) string {
	stamp := MutedStyle.Render(e.Time.Format("[15:04:05]"))
	style := InfoStyle
	switch {
	case e.IsError():
		style = ErrorStyle
	case e.Level >= slog.LevelWarn:
		style = WarnStyle
	}
	return stamp + " " + style.Render(e.Message)
}

// FormatCompletion renders the final line of a run.
func FormatCompletion(c events.Completion) string {
	if c.Success {
		return SuccessStyle.Render("✔ " + c.Message)
	}
	return ErrorStyle.Render(fmt.Sprintf("✘ %s", c.Message))
}
