package tui

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zentaocli/pkg/contracts/events"
)

type fakeJob struct {
	ch      chan events.Event
	cancels int
}

func newFakeJob() *fakeJob {
	return &fakeJob{ch: make(chan events.Event, 16)}
}

func (j *fakeJob) Events() <-chan events.Event { return j.ch }
func (j *fakeJob) Cancel()                     { j.cancels++ }

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_Events(t *testing.T) {
	job := newFakeJob()
	m := New("导出", job)

	at := time.Date(2026, 10, 17, 9, 30, 5, 0, time.Local)
	m, cmd := step(t, m, eventMsg{ev: events.LogEntry{Time: at, Level: slog.LevelInfo, Message: "Starting browser"}})
	require.NotNil(t, cmd, "keeps listening")
	m, _ = step(t, m, eventMsg{ev: events.ProgressUpdate{Percent: 40}})
	m, _ = step(t, m, eventMsg{ev: events.LogEntry{Time: at, Level: slog.LevelError, Message: "Login failed"}})

	assert.Equal(t, 40, m.Percent())
	lines := m.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[09:30:05]")
	assert.Contains(t, lines[0], "Starting browser")
	assert.Contains(t, lines[1], "Login failed")
	assert.Nil(t, m.Completion())
	assert.Contains(t, m.View(), "ctrl+c cancel")

	m, _ = step(t, m, eventMsg{ev: events.Completion{Success: true, Message: "All exports finished"}})
	require.NotNil(t, m.Completion())
	assert.True(t, m.Completion().Success)
	assert.Equal(t, 100, m.Percent())
	assert.Contains(t, m.View(), "q quit")

	_, cmd = step(t, m, closedMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_CtrlCCancelsOnce(t *testing.T) {
	job := newFakeJob()
	m := New("导出", job)

	ctrlC := tea.KeyMsg{Type: tea.KeyCtrlC}
	m, cmd := step(t, m, ctrlC)
	assert.Nil(t, cmd, "the view waits for the completion")
	m, _ = step(t, m, ctrlC)
	assert.Equal(t, 1, job.cancels)
	assert.Contains(t, m.View(), "cancelling")

	m, _ = step(t, m, eventMsg{ev: events.Completion{Message: "Cancelled", Err: errors.New("context canceled")}})
	assert.False(t, m.Completion().Success)
	assert.True(t, strings.Contains(m.Lines()[len(m.Lines())-1], "Cancelled"))

	_, cmd = step(t, m, ctrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWaitForEvent(t *testing.T) {
	job := newFakeJob()
	job.ch <- events.ProgressUpdate{Percent: 5}
	close(job.ch)

	cmd := waitForEvent(job.Events())
	assert.Equal(t, eventMsg{ev: events.ProgressUpdate{Percent: 5}}, cmd())
	assert.Equal(t, closedMsg{}, cmd())
}
