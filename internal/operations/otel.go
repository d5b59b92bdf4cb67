package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"evalpanel/internal/infrastructure"
	"evalpanel/internal/selection"
)

// PipelineTracer provides OpenTelemetry instrumentation for pipeline runs
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PanelMetrics
}

// NewPipelineTracer creates a tracer over the given providers. Nil providers
// yield a tracer whose spans and instruments are no-ops.
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	if providers == nil {
		var err error
		providers, err = infrastructure.InitializeOTel(&infrastructure.OTelConfig{
			ServiceName:    infrastructure.MeterName,
			ServiceVersion: infrastructure.ServiceVersion,
			TraceExporter:  "none",
			MetricExporter: "none",
		}, nil)
		if err != nil {
			return nil, err
		}
	}

	metrics, err := infrastructure.CreatePanelMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create panel metrics: %w", err)
	}

	return &PipelineTracer{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// TraceRun creates the root span of a run
func (pt *PipelineTracer) TraceRun(ctx context.Context, runID string, shards int) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.shards", shards),
		),
	)
}

// TraceShard creates the span covering one shard worker
func (pt *PipelineTracer) TraceShard(ctx context.Context, shard int, name string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "pipeline.shard",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("shard.index", shard),
			attribute.String("shard.name", name),
		),
	)
}

// TraceStage creates a span for one stage execution
func (pt *PipelineTracer) TraceStage(ctx context.Context, stage Stage) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, fmt.Sprintf("pipeline.stage.%s", stage.ID()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage.id", stage.ID()),
			attribute.String("stage.scope", string(stage.Scope())),
		),
	)
}

// RecordStage closes out a stage span and records its duration
func (pt *PipelineTracer) RecordStage(ctx context.Context, span trace.Span, stage Stage, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Float64("stage.duration_seconds", duration.Seconds()))

	pt.metrics.StageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stage.ID()),
			attribute.String("status", status),
		),
	)
}

// RecordShard counts a finished shard worker
func (pt *PipelineTracer) RecordShard(ctx context.Context, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	pt.metrics.ShardsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// RecordRows counts the user-month rows of the final panel
func (pt *PipelineTracer) RecordRows(ctx context.Context, rows int) {
	pt.metrics.RowsTotal.Add(ctx, int64(rows))
}

// RecordLedger counts the users each selection step removed
func (pt *PipelineTracer) RecordLedger(ctx context.Context, ledger *selection.Ledger) {
	entries := ledger.Entries()
	for i := 1; i < len(entries); i++ {
		dropped := entries[i-1].Users - entries[i].Users
		if dropped <= 0 {
			continue
		}
		pt.metrics.UsersDropped.Add(ctx, dropped,
			metric.WithAttributes(attribute.String("step", entries[i].Step)))
	}
}

// RecordValidationFailure counts a failed validation check
func (pt *PipelineTracer) RecordValidationFailure(ctx context.Context, check string) {
	pt.metrics.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("check", check)))
	infrastructure.AddSpanEvent(ctx, "validation.failed", attribute.String("check", check))
}

// RecordRunCompletion sets the final status on the run span
func (pt *PipelineTracer) RecordRunCompletion(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("run.duration_seconds", duration.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "run completed")
}
