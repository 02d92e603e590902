package operations

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"zentaocli/internal/infrastructure"
	"zentaocli/pkg/contracts/events"
)

// Kind names a class of background worker. At most one worker per kind runs
// at a time.
type Kind string

const (
	KindExport      Kind = "export"
	KindLogin       Kind = "login"
	KindConsolidate Kind = "consolidate"
	KindBugQuery    Kind = "bugquery"
	KindFill        Kind = "fill"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Outcome is what a successful worker hands back.
type Outcome struct {
	Message string
	Result  any
}

// Work is the body of a worker. It reports through rep and must honour ctx.
type Work func(ctx context.Context, rep *Reporter) (*Outcome, error)

// Job is one running or finished worker.
type Job struct {
	ID        string
	Kind      Kind
	StartedAt time.Time

	rep    *Reporter
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	status      JobStatus
	completedAt time.Time
	err         error
}

// Events returns the job's event stream. Completion is the last event.
func (j *Job) Events() <-chan events.Event {
	return j.rep.Events()
}

// Cancel asks the worker to stop at its next poll.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the worker has returned.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Status returns the job status and the worker's error, if any
func (j *Job) Status() (JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.err
}

func (j *Job) finish(status JobStatus, err error) {
	j.mu.Lock()
	j.status = status
	j.err = err
	j.completedAt = time.Now()
	j.mu.Unlock()
}

// Runner starts workers on background goroutines.
type Runner struct {
	mu      sync.Mutex
	active  map[Kind]*Job
	wg      sync.WaitGroup
	logger  *slog.Logger
	tracer  *RunTracer
	bufSize int
}

// NewRunner creates a runner. buffer is the event channel capacity.
func NewRunner(logger *slog.Logger, tracer *RunTracer, buffer int) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer, _ = NewRunTracer(nil)
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Runner{
		active:  make(map[Kind]*Job),
		logger:  infrastructure.WithComponent(logger, "runner"),
		tracer:  tracer,
		bufSize: buffer,
	}
}

// Start runs work on a new goroutine. ctx bounds the consumer: the job's own
// context is derived from it and cancelled by Job.Cancel. A second Start for
// a kind that is still running returns ErrWorkerBusy.
func (r *Runner) Start(ctx context.Context, kind Kind, work Work) (*Job, error) {
	r.mu.Lock()
	if _, busy := r.active[kind]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", kind, ErrWorkerBusy)
	}

	runID := infrastructure.NewRunID()
	jobCtx, cancel := context.WithCancel(ctx)
	jobCtx = infrastructure.WithRunID(infrastructure.EnsureTraceID(jobCtx), runID)

	job := &Job{
		ID:        runID,
		Kind:      kind,
		StartedAt: time.Now(),
		rep:       NewReporter(ctx, r.bufSize, infrastructure.LoggerWithContext(jobCtx, r.logger)),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    JobStatusRunning,
	}
	r.active[kind] = job
	r.wg.Add(1)
	r.mu.Unlock()

	r.logWorkerStart(jobCtx, job)

	go r.run(jobCtx, job, work)
	return job, nil
}

func (r *Runner) run(ctx context.Context, job *Job, work Work) {
	ctx, span := r.tracer.StartRun(ctx, job.Kind, job.ID)

	var (
		out *Outcome
		err error
	)
	defer func() {
		if rec := recover(); rec != nil {
			pe := &PanicError{Kind: job.Kind, Value: rec, Stack: string(debug.Stack())}
			r.logWorkerPanic(ctx, job, pe)
			err = pe
		}

		err = normalize(err)
		r.tracer.EndSpan(span, err)

		status := JobStatusCompleted
		switch {
		case err != nil && ctx.Err() != nil:
			status = JobStatusCancelled
		case err != nil:
			status = JobStatusFailed
		}
		job.finish(status, err)

		r.mu.Lock()
		delete(r.active, job.Kind)
		r.mu.Unlock()

		if err != nil {
			job.rep.Complete(false, failureMessage(err), err, nil)
		} else {
			msg, result := "Done", any(nil)
			if out != nil {
				msg, result = out.Message, out.Result
			}
			job.rep.Complete(true, msg, nil, result)
		}

		r.logWorkerComplete(ctx, job, status, err)

		job.cancel()
		close(job.done)
		r.wg.Done()
	}()

	out, err = work(ctx, job.rep)
}

// Active reports whether a worker of kind is running
func (r *Runner) Active(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[kind]
	return ok
}

// Wait blocks until every started worker has returned or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
