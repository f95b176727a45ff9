package hooks

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook emits an OpenTelemetry client span per query
type TracingHook struct {
	tracer trace.Tracer
}

// NewTracingHook creates a new tracing hook
func NewTracingHook(tracer trace.Tracer) *TracingHook {
	return &TracingHook{tracer: tracer}
}

type spanCtxKey struct{}

// BeforeQuery implements bun.QueryHook
func (h *TracingHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	if h.tracer == nil {
		return ctx
	}

	ctx, span := h.tracer.Start(ctx, "db."+OperationType(event.Query),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return context.WithValue(ctx, spanCtxKey{}, span)
}

// AfterQuery implements bun.QueryHook
func (h *TracingHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	span, ok := ctx.Value(spanCtxKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", queryPreview(event.Query)),
		attribute.String("db.operation", OperationType(event.Query)),
	)

	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
