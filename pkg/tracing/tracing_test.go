package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "webrtc-signal" {
		t.Errorf("expected service name 'webrtc-signal', got '%s'", cfg.ServiceName)
	}
	if cfg.JaegerURL != "http://localhost:14268/api/traces" {
		t.Errorf("unexpected Jaeger URL: %s", cfg.JaegerURL)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// No tracer provider installed, still returns a usable noop span.
	_, span := StartSpan(ctx, "test.operation")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestAddSpanAttributes(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test")
	defer span.End()

	AddSpanAttributes(ctx,
		attribute.String("test.key", "test.value"),
		attribute.Int("test.number", 42),
	)
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test")
	defer span.End()

	err := &testError{message: "test error"}
	RecordError(ctx, err)
}

func TestTraceHTTPRequest(t *testing.T) {
	ctx := context.Background()
	_, span := TraceHTTPRequest(ctx, "GET", "/healthz")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceSignalEvent(t *testing.T) {
	ctx := context.Background()
	_, span := TraceSignalEvent(ctx, "join-room", "participant-123")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

func TestTraceRegistryOperation(t *testing.T) {
	ctx := context.Background()
	_, span := TraceRegistryOperation(ctx, "join", "room-456")
	if span == nil {
		t.Error("expected non-nil span")
	}
	span.End()
}

type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
