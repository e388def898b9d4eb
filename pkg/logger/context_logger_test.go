package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAttachesIDs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithRequestID(context.Background(), "req_1_abcd")
	ctx = WithTraceID(ctx, "0af7651916cd43dd8448eb211c80319c")

	cl.WithContext(ctx).Info("handled")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req_1_abcd" {
		t.Errorf("request_id = %v, want req_1_abcd", fields["request_id"])
	}
	if fields["trace_id"] != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("trace_id = %v, want the span trace id", fields["trace_id"])
	}
}

func TestWithContextBareContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	cl.WithContext(context.Background()).Info("handled")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if len(entries[0].Context) != 0 {
		t.Errorf("expected no fields, got %v", entries[0].ContextMap())
	}
}
