package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/calcq/message"
)

// tracerName is the instrumentation scope name for calcq tracing.
const tracerName = "github.com/xraph/calcq"

// Tracing returns middleware that wraps request processing in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: calcq.request.id, calcq.asset.id,
// calcq.column, calcq.user.id. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, req *message.CalculationRequest, next Handler) error {
		ctx, span := tracer.Start(ctx, "calcq.request.process",
			trace.WithAttributes(
				attribute.String("calcq.request.id", req.RequestID.String()),
				attribute.String("calcq.asset.id", req.AssetID),
				attribute.String("calcq.column", req.ColumnName),
				attribute.String("calcq.user.id", req.UserID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
