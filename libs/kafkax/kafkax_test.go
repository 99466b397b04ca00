package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMeta_Fallbacks(t *testing.T) {
	msg := kafka.Message{Topic: "booking.slot.reserved.v1", Key: []byte("slot-1")}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "slot-1" || meta.EventType != "booking.slot.reserved.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}

	msg.Headers = EventMeta{EventID: "evt-9", EventType: "custom.v1"}.Headers()
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-9" || meta.EventType != "custom.v1" {
		t.Fatalf("headers should win, got %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e", EventType: "t"}.Headers())
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("traceparent header missing: %v", headers)
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != traceID {
		t.Fatalf("trace id mismatch: %s", got.TraceID())
	}
}

func TestReadyCheck_NoBrokers(t *testing.T) {
	if err := ReadyCheck("")(context.Background()); err == nil {
		t.Fatal("expected error without brokers")
	}
}
