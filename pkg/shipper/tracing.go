package shipper

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerOrNoop returns t, or a no-op tracer when t is nil. Adapters built in
// tests are given a nil tracer.
func TracerOrNoop(t trace.Tracer) trace.Tracer {
	if t == nil {
		return noop.NewTracerProvider().Tracer("carrierbridge")
	}
	return t
}

// StartSpan opens the span of one adapter call.
func StartSpan(ctx context.Context, t trace.Tracer, c Carrier, op string) (context.Context, trace.Span) {
	return t.Start(ctx, string(c)+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("carrier", string(c)),
			attribute.String("operation", op),
		),
	)
}

// EndSpan records err on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := KindOf(err); kind != 0 {
			span.SetAttributes(attribute.String("error.kind", kind.String()))
		}
	}
	span.End()
}
