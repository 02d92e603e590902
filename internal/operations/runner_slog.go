package operations

import (
	"context"
	"log/slog"
	"time"

	"zentaocli/internal/infrastructure"
)

func (r *Runner) jobLogger(ctx context.Context, job *Job) *slog.Logger {
	fields := map[string]any{
		"job_id": job.ID,
		"kind":   string(job.Kind),
	}
	if traceID := infrastructure.TraceIDFromContext(ctx); traceID != "" {
		fields["otel_trace_id"] = traceID
	}
	return infrastructure.WithFields(r.logger, fields)
}

// logWorkerStart logs the start of a worker
func (r *Runner) logWorkerStart(ctx context.Context, job *Job) {
	r.jobLogger(ctx, job).InfoContext(ctx, "worker_start")
}

// logWorkerComplete logs how a worker ended
func (r *Runner) logWorkerComplete(ctx context.Context, job *Job, status JobStatus, err error) {
	logger := infrastructure.WithError(r.jobLogger(ctx, job), err)
	attrs := []any{
		slog.String("status", string(status)),
		slog.Duration("duration", time.Since(job.StartedAt)),
	}
	if err != nil {
		logger.ErrorContext(ctx, "worker_complete", attrs...)
		return
	}
	logger.InfoContext(ctx, "worker_complete", attrs...)
}

// logWorkerPanic logs a recovered panic with its stack
func (r *Runner) logWorkerPanic(ctx context.Context, job *Job, pe *PanicError) {
	r.jobLogger(ctx, job).ErrorContext(ctx, "worker_panic",
		slog.Any("panic", pe.Value),
		slog.String("stack", pe.Stack))
}
