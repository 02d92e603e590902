package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "zentaocli/internal/errors"
	"zentaocli/pkg/contracts/events"
)

func drain(t *testing.T, job *Job) []events.Event {
	t.Helper()
	var out []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel was not closed")
		}
	}
}

func lastCompletion(t *testing.T, evs []events.Event) events.Completion {
	t.Helper()
	require.NotEmpty(t, evs)
	c, ok := evs[len(evs)-1].(events.Completion)
	require.True(t, ok, "last event is %T", evs[len(evs)-1])
	return c
}

func TestRunner_Success(t *testing.T) {
	r := NewRunner(quietLogger(), nil, 8)

	job, err := r.Start(context.Background(), KindConsolidate, func(ctx context.Context, rep *Reporter) (*Outcome, error) {
		rep.Info("working", slog.String("file", "a.xlsx"))
		rep.Progress(50)
		return &Outcome{Message: "merged", Result: 3}, nil
	})
	require.NoError(t, err)

	evs := drain(t, job)
	<-job.Done()

	require.Len(t, evs, 3)
	assert.Equal(t, events.LogEntry{Time: evs[0].(events.LogEntry).Time, Level: slog.LevelInfo, Message: "working file=a.xlsx"}, evs[0])
	assert.Equal(t, events.ProgressUpdate{Percent: 50}, evs[1])
	assert.Equal(t, events.Completion{Success: true, Message: "merged", Result: 3}, evs[2])

	status, jobErr := job.Status()
	assert.Equal(t, JobStatusCompleted, status)
	assert.NoError(t, jobErr)
	assert.False(t, r.Active(KindConsolidate))
}

func TestRunner_LogsJobFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(slog.New(slog.NewJSONHandler(&buf, nil)), nil, 8)

	job, err := r.Start(context.Background(), KindFill, func(ctx context.Context, rep *Reporter) (*Outcome, error) {
		rep.Info("filling")
		return nil, errors.New("template locked")
	})
	require.NoError(t, err)
	drain(t, job)
	<-job.Done()

	byMsg := make(map[string]map[string]any)
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		byMsg[entry["msg"].(string)] = entry
	}

	require.Contains(t, byMsg, "filling")
	assert.Equal(t, job.ID, byMsg["filling"]["run_id"])
	assert.NotEmpty(t, byMsg["filling"]["trace_id"])

	done := byMsg["worker_complete"]
	require.NotNil(t, done)
	assert.Equal(t, "runner", done["component"])
	assert.Equal(t, job.ID, done["job_id"])
	assert.Equal(t, string(KindFill), done["kind"])
	assert.Equal(t, string(JobStatusFailed), done["status"])
	assert.Contains(t, done["error"], "template locked")
}

func TestRunner_Busy(t *testing.T) {
	r := NewRunner(quietLogger(), nil, 8)
	release := make(chan struct{})

	job, err := r.Start(context.Background(), KindExport, func(ctx context.Context, rep *Reporter) (*Outcome, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, r.Active(KindExport))

	_, err = r.Start(context.Background(), KindExport, func(context.Context, *Reporter) (*Outcome, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrWorkerBusy)

	other, err := r.Start(context.Background(), KindFill, func(context.Context, *Reporter) (*Outcome, error) { return nil, nil })
	require.NoError(t, err)
	drain(t, other)

	close(release)
	drain(t, job)
	<-job.Done()

	again, err := r.Start(context.Background(), KindExport, func(context.Context, *Reporter) (*Outcome, error) { return nil, nil })
	require.NoError(t, err)
	drain(t, again)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Wait(ctx))
}

func TestRunner_FailureBecomesCompletion(t *testing.T) {
	r := NewRunner(quietLogger(), nil, 8)

	job, err := r.Start(context.Background(), KindExport, func(context.Context, *Reporter) (*Outcome, error) {
		return nil, apperrors.NewEntityNotFoundError("网关")
	})
	require.NoError(t, err)

	c := lastCompletion(t, drain(t, job))
	assert.False(t, c.Success)
	assert.Equal(t, `Product "网关" not found`, c.Message)
	assert.ErrorIs(t, c.Err, apperrors.ErrEntityNotFound)

	<-job.Done()
	status, _ := job.Status()
	assert.Equal(t, JobStatusFailed, status)
}

func TestRunner_Panic(t *testing.T) {
	r := NewRunner(quietLogger(), nil, 8)

	job, err := r.Start(context.Background(), KindBugQuery, func(context.Context, *Reporter) (*Outcome, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	require.NoError(t, err)

	c := lastCompletion(t, drain(t, job))
	assert.False(t, c.Success)

	var pe *PanicError
	require.True(t, errors.As(c.Err, &pe))
	assert.Equal(t, KindBugQuery, pe.Kind)
	assert.NotEmpty(t, pe.Stack)
}

func TestRunner_Cancel(t *testing.T) {
	r := NewRunner(quietLogger(), nil, 8)
	started := make(chan struct{})

	job, err := r.Start(context.Background(), KindExport, func(ctx context.Context, rep *Reporter) (*Outcome, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	<-started
	job.Cancel()

	c := lastCompletion(t, drain(t, job))
	assert.False(t, c.Success)
	assert.Equal(t, "Cancelled", c.Message)
	assert.ErrorIs(t, c.Err, apperrors.ErrCancelled)
	assert.ErrorIs(t, c.Err, context.Canceled)

	<-job.Done()
	status, _ := job.Status()
	assert.Equal(t, JobStatusCancelled, status)
}

func TestReporter(t *testing.T) {
	t.Run("debug stays out of the channel", func(t *testing.T) {
		rep := NewReporter(context.Background(), 8, slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelDebug})))
		rep.Logger().Debug("hidden")
		rep.Warn("careful")
		rep.Complete(true, "ok", nil, nil)

		var evs []events.Event
		for ev := range rep.Events() {
			evs = append(evs, ev)
		}
		require.Len(t, evs, 2)
		entry := evs[0].(events.LogEntry)
		assert.Equal(t, "careful", entry.Message)
		assert.Equal(t, slog.LevelWarn, entry.Level)
		assert.False(t, entry.IsError())
	})

	t.Run("complete is idempotent", func(t *testing.T) {
		rep := NewReporter(context.Background(), 8, quietLogger())
		rep.Complete(false, "first", errors.New("x"), nil)
		rep.Complete(true, "second", nil, nil)
		rep.Info("after close")

		var evs []events.Event
		for ev := range rep.Events() {
			evs = append(evs, ev)
		}
		require.Len(t, evs, 1)
		assert.Equal(t, "first", evs[0].(events.Completion).Message)
	})

	t.Run("send gives up when the consumer is gone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		rep := NewReporter(ctx, 0, quietLogger())
		cancel()

		done := make(chan struct{})
		go func() {
			rep.Error("nobody listens")
			rep.Progress(150)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("send blocked after the consumer context ended")
		}
		assert.Equal(t, 100, rep.LastProgress())
	})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
