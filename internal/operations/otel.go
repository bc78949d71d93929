package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"btcforecast/internal/infrastructure"
)

const (
	TracerName = "btcforecast.pipeline"
)

// RunTracer provides OpenTelemetry instrumentation for pipeline runs
type RunTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewRunTracer creates a tracer backed by providers
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	return &RunTracer{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// NewNoopRunTracer returns a tracer that records nothing
func NewNoopRunTracer() *RunTracer {
	return &RunTracer{tracer: tracenoop.NewTracerProvider().Tracer(TracerName)}
}

// Metrics returns the pipeline instruments, nil for a no-op tracer
func (rt *RunTracer) Metrics() *infrastructure.PipelineMetrics {
	return rt.metrics
}

// TraceRun creates a span for the whole run
func (rt *RunTracer) TraceRun(ctx context.Context, runID string, stageIDs []string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.StringSlice("run.stages", stageIDs),
		),
	)
}

// TraceStage creates a span for a single stage
func (rt *RunTracer) TraceStage(ctx context.Context, runID, stageID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage_id", stageID),
		),
	)
}

// RecordStageCompletion ends a stage span and records its metrics
func (rt *RunTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("stage.duration_seconds", duration.Seconds()))

	infrastructure.RecordStageMetrics(ctx, rt.metrics, stageID, duration, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "stage completed")
	}
	span.End()
}

// RecordStageOutput counts what a successful stage produced
func (rt *RunTracer) RecordStageOutput(ctx context.Context, stageID string, state *RunState) {
	attrs := metric.WithAttributes(attribute.String("stage_id", stageID))

	switch stageID {
	case StageIDLoad:
		if raw := state.GetRaw(); raw != nil {
			infrastructure.AddSpanEvent(ctx, "series.loaded", map[string]interface{}{
				"series": raw.Name,
				"points": raw.Len(),
			})
			if rt.metrics != nil {
				rt.metrics.PointsLoaded.Add(ctx, int64(raw.Len()), attrs)
			}
		}
	case StageIDForecast:
		if result := state.GetResult(); result != nil {
			infrastructure.AddSpanEvent(ctx, "forecast.generated", map[string]interface{}{
				"order":   result.Order.String(),
				"horizon": result.Horizon(),
				"aic":     result.AIC,
			})
			if rt.metrics != nil {
				rt.metrics.ModelFits.Add(ctx, 1, metric.WithAttributes(attribute.String("order", result.Order.String())))
				rt.metrics.ForecastPoints.Add(ctx, int64(result.Horizon()), attrs)
			}
		}
	}
}

// RecordRunCompletion ends the run span
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, status RunStatus, duration time.Duration, err error) {
	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "run completed")
	}
	span.End()
}
