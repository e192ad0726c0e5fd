package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/benvon/taskboard/internal/board"

// StartMutation opens a span covering the remote half of an optimistic
// mutation. The span is a child of whatever request span ctx carries.
func StartMutation(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "board.mutation "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("board.mutation", name)),
	)
}

// EndMutation records the outcome and ends the span. A failed call is
// marked rolled back.
func EndMutation(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		span.SetAttributes(attribute.Bool("board.rolled_back", true))
	} else {
		span.SetAttributes(attribute.Bool("board.rolled_back", false))
	}
	span.End()
}
