package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext is the W3C trace context persisted next to a row, so work
// picked up later (outbox publishing) continues the originating trace.
type TraceContext struct {
	Parent string // traceparent
	State  string // tracestate
}

// CaptureTraceContext serializes the span context carried by ctx.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

func (tc TraceContext) IsZero() bool {
	return tc.Parent == "" && tc.State == ""
}

// Resume returns ctx carrying the stored span context as its remote parent.
func (tc TraceContext) Resume(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	carrier.Set("traceparent", tc.Parent)
	if tc.State != "" {
		carrier.Set("tracestate", tc.State)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
