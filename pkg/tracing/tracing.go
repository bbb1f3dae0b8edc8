package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Init installs a global tracer provider that writes finished spans to the log.
// The returned func flushes and shuts it down.
func Init(serviceName string, log *zap.Logger) func(context.Context) error {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(NewLogExporter(log), sdktrace.WithBatchTimeout(2*time.Second)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// LogExporter is a span exporter backed by zap.
type LogExporter struct {
	log *zap.Logger
}

func NewLogExporter(log *zap.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.String("span_id", s.SpanContext().SpanID().String()),
			zap.String("span", s.Name()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.log.Debug("span", fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
