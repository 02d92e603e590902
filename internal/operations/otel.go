package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zentaocli/internal/infrastructure"
)

const (
	TracerName = "zentaocli.operations"
)

// RunTracer opens a span per state transition and records export metrics.
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.ExportMetrics
}

// NewRunTracer builds a tracer from initialised providers. Nil providers
// give the global (no-op until configured) tracer and no-op metrics.
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	rt := &RunTracer{tracer: otel.Tracer(TracerName)}
	if providers == nil {
		m, err := infrastructure.CreateExportMetrics(nil)
		if err != nil {
			return nil, err
		}
		rt.metrics = m
		return rt, nil
	}

	if providers.Tracer != nil {
		rt.tracer = providers.Tracer
	}
	m, err := infrastructure.CreateExportMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create export metrics: %w", err)
	}
	rt.metrics = m
	return rt, nil
}

// StartRun opens the root span of one run
func (rt *RunTracer) StartRun(ctx context.Context, kind Kind, runID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, fmt.Sprintf("run.%s", kind),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.kind", string(kind)),
		),
	)
}

// StartPhase opens a span for entering phase
func (rt *RunTracer) StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "phase."+phase,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run.phase", phase)),
	)
}

// EndSpan closes span with a status derived from err
func (rt *RunTracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordExport counts the outcome of one target export
func (rt *RunTracer) RecordExport(ctx context.Context, target string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	rt.metrics.RecordExport(ctx, target, outcome)
}

// RecordDownloadWait records how long a download took
func (rt *RunTracer) RecordDownloadWait(ctx context.Context, target string, d time.Duration) {
	rt.metrics.RecordDownloadWait(ctx, target, d)
}
