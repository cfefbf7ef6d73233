package logger

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext() = %q, want req-123", got)
	}
}

func TestWithContext_AddsRequestID(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	ctx := WithRequestID(context.Background(), "req-9")
	l.With("component", "manager").WithContext(ctx).Info("handled")

	entry := decodeEntry(t, buf.Bytes())
	if entry["request_id"] != "req-9" || entry["component"] != "manager" {
		t.Errorf("entry = %v", entry)
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.WithContext(context.Background()).Info("handled")

	if _, ok := decodeEntry(t, buf.Bytes())["request_id"]; ok {
		t.Error("request_id should be absent")
	}
}
