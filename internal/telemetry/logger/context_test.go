package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func newJSONLogger(t *testing.T) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}

func TestWithLogger_FromContext(t *testing.T) {
	l, buf := newJSONLogger(t)

	ctx := WithLogger(context.Background(), l)
	retrieved := FromContext(ctx)
	if retrieved == nil {
		t.Fatal("FromContext returned nil")
	}

	retrieved.Info("session issued")
	if buf.Len() == 0 {
		t.Error("logger from context produced no output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to the default logger")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-01J8ZK3VQ4")
	if got := RequestIDFromContext(ctx); got != "req-01J8ZK3VQ4" {
		t.Errorf("RequestIDFromContext() = %q, want req-01J8ZK3VQ4", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q, want empty", got)
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-aa41bc")
	if got := TraceIDFromContext(ctx); got != "trace-aa41bc" {
		t.Errorf("TraceIDFromContext() = %q, want trace-aa41bc", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("TraceIDFromContext(empty) = %q, want empty", got)
	}
}

func TestL_EnrichesWithIDs(t *testing.T) {
	l, buf := newJSONLogger(t)

	ctx := WithLogger(context.Background(), l)
	ctx = WithRequestID(ctx, "req-01J8ZK3VQ4")
	ctx = WithTraceID(ctx, "trace-aa41bc")

	L(ctx).Info("login accepted", "user_id", "cgus-admin")

	entry := lastEntry(t, buf)
	if got, _ := entry["request_id"].(string); got != "req-01J8ZK3VQ4" {
		t.Errorf("request_id = %v, want req-01J8ZK3VQ4", entry["request_id"])
	}
	if got, _ := entry["trace_id"].(string); got != "trace-aa41bc" {
		t.Errorf("trace_id = %v, want trace-aa41bc", entry["trace_id"])
	}
	if got, _ := entry["user_id"].(string); got != "cgus-admin" {
		t.Errorf("user_id = %v, want cgus-admin", entry["user_id"])
	}
}

func TestL_WithoutIDs(t *testing.T) {
	l, buf := newJSONLogger(t)

	ctx := WithLogger(context.Background(), l)
	L(ctx).Info("sweep complete")

	entry := lastEntry(t, buf)
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id present without WithRequestID")
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id present without WithTraceID")
	}
}

func TestContextKeysIndependent(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTraceID(ctx, "trace-2")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q, want req-1", got)
	}
	if got := TraceIDFromContext(ctx); got != "trace-2" {
		t.Errorf("TraceIDFromContext() = %q, want trace-2", got)
	}
}
