package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OtelEmitter records each node event as a zero-duration OpenTelemetry
// span, letting node lifecycle events show up alongside distributed
// traces from the rest of the service.
type OtelEmitter struct {
	tracer trace.Tracer
}

// NewOtelEmitter creates an OtelEmitter that starts spans on tracer.
func NewOtelEmitter(tracer trace.Tracer) *OtelEmitter {
	return &OtelEmitter{tracer: tracer}
}

func (o *OtelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Type))
	defer span.End()
	span.SetAttributes(attribute.String("node", event.Node))
	for k, v := range event.Meta {
		span.SetAttributes(attribute.String(k, toString(v)))
	}
	if event.Err != nil {
		span.SetStatus(codes.Error, event.Err.Error())
		span.RecordError(event.Err)
	}
}

func (o *OtelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		o.Emit(e)
	}
	return nil
}

func (o *OtelEmitter) Flush(context.Context) error { return nil }

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
