// Package tui shows a running job in the terminal: a progress bar, a
// spinner while the job runs, and a scrolling log. Ctrl+C cancels the job;
// the view stays up until the job's Completion arrives.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"zentaocli/pkg/contracts/events"
)

const (
	defaultWidth  = 80
	logHeight     = 12
	maxLogLines   = 500
	progressWidth = 50
)

// Job is the part of a background job the view needs.
type Job interface {
	Events() <-chan events.Event
	Cancel()
}

type eventMsg struct{ ev events.Event }

type closedMsg struct{}

// Model is the bubbletea model of a running job.
type Model struct {
	title string
	job   Job

	spinner  spinner.Model
	progress progress.Model
	logs     viewport.Model

	lines      []string
	percent    int
	cancelling bool
	done       bool
	completion *events.Completion
	width      int
}

// New returns a model that follows job
func New(title string, job Job) Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = TitleStyle

	return Model{
		title:    title,
		job:      job,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		logs:     viewport.New(defaultWidth-4, logHeight),
		width:    defaultWidth,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.job.Events()))
}

// waitForEvent delivers the next event of ch, or closedMsg once it closes.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling {
				m.cancelling = true
				m.job.Cancel()
				m.appendLine(WarnStyle.Render("Cancelling..."))
			}
			return m, nil
		case "q", "esc", "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.logs.Width = max(20, msg.Width-4)
		m.progress.Width = min(progressWidth, max(10, msg.Width-10))
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.handle(msg.ev)
		return m, waitForEvent(m.job.Events())

	case closedMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handle(ev events.Event) {
	switch ev := ev.(type) {
	case events.LogEntry:
		m.appendLine(FormatLog(ev))
	case events.ProgressUpdate:
		m.percent = ev.Percent
	case events.Completion:
		m.done = true
		m.completion = &ev
		if ev.Success {
			m.percent = 100
		}
		m.appendLine(FormatCompletion(ev))
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.logs.SetContent(strings.Join(m.lines, "\n"))
	m.logs.GotoBottom()
}

func (m Model) View() string {
	status := m.spinner.View() + " " + InfoStyle.Render("running")
	switch {
	case m.completion != nil && m.completion.Success:
		status = SuccessStyle.Render("done")
	case m.completion != nil:
		status = ErrorStyle.Render("failed")
	case m.cancelling:
		status = m.spinner.View() + " " + WarnStyle.Render("cancelling")
	}

	header := TitleStyle.Render(m.title) + "  " + status
	bar := m.progress.ViewAs(float64(m.percent)/100) + fmt.Sprintf(" %3d%%", m.percent)
	hint := MutedStyle.Render("ctrl+c cancel")
	if m.done {
		hint = MutedStyle.Render("q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		bar,
		"",
		logBoxStyle.Render(m.logs.View()),
		hint,
	) + "\n"
}

// Completion returns the job's final event, nil while the job runs.
func (m Model) Completion() *events.Completion {
	return m.completion
}

// Lines returns the rendered log lines.
func (m Model) Lines() []string {
	return append([]string(nil), m.lines...)
}

// Percent returns the last reported progress.
func (m Model) Percent() int {
	return m.percent
}

// Run shows job until its event channel closes and returns its Completion.
func Run(ctx context.Context, title string, job Job) (*events.Completion, error) {
	final, err := tea.NewProgram(New(title, job), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(Model)
	if !ok || m.Completion() == nil {
		return nil, fmt.Errorf("job ended without a completion")
	}
	return m.Completion(), nil
}
