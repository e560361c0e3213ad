package clog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// traceFields 返回 ctx 中 Span 的 trace_id 与 span_id
func traceFields(ctx context.Context) []slog.Attr {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}
