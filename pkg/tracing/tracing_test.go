package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig()

	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("unexpected endpoint: %s", cfg.Endpoint)
	}
	if cfg.ServiceName != "work-report-queue" {
		t.Errorf("unexpected service name: %s", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), DefaultTracerConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Shutdown should be a no-op
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown returned error: %v", err)
	}
}

func TestItemSpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	ctx, span := ItemSpan(context.Background(), "item-1", "E1/2024-01-01", 2)
	_, child := StorageSpan(ctx, "create")
	child.End()
	span.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	if ended[0].Name() != "storage.create" {
		t.Errorf("expected storage.create first, got %s", ended[0].Name())
	}
	if ended[0].Parent().SpanID() != ended[1].SpanContext().SpanID() {
		t.Error("storage span should be a child of the item span")
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[1].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["queue.item_id"].AsString() != "item-1" {
		t.Errorf("unexpected item id attribute: %v", attrs["queue.item_id"])
	}
	if attrs["queue.attempt"].AsInt64() != 2 {
		t.Errorf("unexpected attempt attribute: %v", attrs["queue.attempt"])
	}
}
